// Package solana provides ed25519 signature verification for Solana
// wallet addresses and the wire-encoding handling that goes with them.
package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// DecodeAddress decodes a base58 Solana address into an ed25519 public key.
func DecodeAddress(address string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("base58 decode failed: %w", err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(decoded))
	}
	return ed25519.PublicKey(decoded), nil
}

// ValidateAddress reports whether a string is a well-formed Solana address.
func ValidateAddress(address string) error {
	_, err := DecodeAddress(address)
	return err
}

// DecodeSignature decodes a signature that may arrive base58- or
// base64-encoded. The base58 alphabet excludes '+', '/' and '=', so their
// presence unambiguously marks base64 for well-formed inputs. Encoding
// detection lives here and nowhere else; an explicit-tag migration only
// needs to touch this function.
func DecodeSignature(signature string) ([]byte, error) {
	if strings.ContainsAny(signature, "+/=") {
		decoded, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return nil, fmt.Errorf("base64 decode failed: %w", err)
		}
		return decoded, nil
	}
	decoded, err := base58.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("base58 decode failed: %w", err)
	}
	return decoded, nil
}

// VerifySignature checks an ed25519 signature over message against the
// public key behind a base58 address. It fails closed: malformed
// addresses, signatures, or lengths all return false, never an error.
func VerifySignature(address, message, signature string) bool {
	pub, err := DecodeAddress(address)
	if err != nil {
		return false
	}
	sig, err := DecodeSignature(signature)
	if err != nil {
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, []byte(message), sig)
}
