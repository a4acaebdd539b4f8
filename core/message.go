package core

import (
	"fmt"
	"strings"
	"time"
)

// Challenge messages are fixed-line-order plaintext blocks so wallets can
// display them to the user before signing. The first line is a preamble
// stating the domain and intent, followed by a blank line and then
// "Label: value" lines in a strict order. Parsing fails closed: any
// missing line, wrong preamble, or empty value yields nil.
const (
	MessageDomain = "desperse.app"

	downloadPreamble = MessageDomain + " wants you to authorize a download with your Solana account."
	signInPreamble   = MessageDomain + " wants you to sign in with your Solana account."
)

// DownloadMessage is the structured form of a download grant challenge.
type DownloadMessage struct {
	AssetID   string
	Wallet    string
	Nonce     string
	ExpiresAt time.Time
}

// SignInMessage is the structured form of a sign-in challenge.
type SignInMessage struct {
	Wallet   string
	Nonce    string
	IssuedAt time.Time
}

// BuildDownloadMessage renders a download grant challenge for signing.
func BuildDownloadMessage(m DownloadMessage) string {
	var b strings.Builder
	b.WriteString(downloadPreamble)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Asset: %s\n", m.AssetID)
	fmt.Fprintf(&b, "Wallet: %s\n", m.Wallet)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Expires At: %s", m.ExpiresAt.UTC().Format(time.RFC3339))
	return b.String()
}

// ParseDownloadMessage parses a download grant challenge back into its
// fields. Returns nil if the message does not match the expected shape.
func ParseDownloadMessage(message string) *DownloadMessage {
	fields := parseLabeledBlock(message, downloadPreamble, []string{"Asset", "Wallet", "Nonce", "Expires At"})
	if fields == nil {
		return nil
	}
	expiresAt, err := time.Parse(time.RFC3339, fields[3])
	if err != nil {
		return nil
	}
	return &DownloadMessage{
		AssetID:   fields[0],
		Wallet:    fields[1],
		Nonce:     fields[2],
		ExpiresAt: expiresAt,
	}
}

// BuildSignInMessage renders a sign-in challenge for signing.
func BuildSignInMessage(m SignInMessage) string {
	var b strings.Builder
	b.WriteString(signInPreamble)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Wallet: %s\n", m.Wallet)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// ParseSignInMessage parses a sign-in challenge back into its fields.
// Returns nil if the message does not match the expected shape.
func ParseSignInMessage(message string) *SignInMessage {
	fields := parseLabeledBlock(message, signInPreamble, []string{"Wallet", "Nonce", "Issued At"})
	if fields == nil {
		return nil
	}
	issuedAt, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return nil
	}
	return &SignInMessage{
		Wallet:   fields[0],
		Nonce:    fields[1],
		IssuedAt: issuedAt,
	}
}

// parseLabeledBlock extracts the values of "Label: value" lines following
// the preamble and a blank separator line. Labels must appear in order and
// every value must be non-empty.
func parseLabeledBlock(message, preamble string, labels []string) []string {
	lines := strings.Split(message, "\n")
	if len(lines) < 2+len(labels) {
		return nil
	}
	if lines[0] != preamble || lines[1] != "" {
		return nil
	}
	values := make([]string, 0, len(labels))
	for i, label := range labels {
		value, ok := strings.CutPrefix(lines[2+i], label+": ")
		if !ok || value == "" {
			return nil
		}
		values = append(values, value)
	}
	return values
}
