package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cdecaire/desperse-public-sub002/core"
	"github.com/cdecaire/desperse-public-sub002/internal/solana"
	"github.com/cdecaire/desperse-public-sub002/ports"
)

// reconcileTimeout bounds the background identity-provider work spawned
// after a login; the request itself never waits on it.
const reconcileTimeout = 15 * time.Second

// SIWSService orchestrates the Sign-In-With-Solana protocol: challenge
// issuance, signature verification, user lookup/creation, and session
// token issuance.
type SIWSService struct {
	challenges ports.ChallengeStore
	users      ports.UserStore
	identity   ports.IdentityProvider
	tokenizer  ports.Tokenizer
	events     ports.EventPublisher
	log        zerolog.Logger
}

// NewSIWSService creates a new sign-in service.
func NewSIWSService(
	challenges ports.ChallengeStore,
	users ports.UserStore,
	identity ports.IdentityProvider,
	tokenizer ports.Tokenizer,
	events ports.EventPublisher,
	log zerolog.Logger,
) *SIWSService {
	return &SIWSService{
		challenges: challenges,
		users:      users,
		identity:   identity,
		tokenizer:  tokenizer,
		events:     events,
		log:        log,
	}
}

// SignInChallenge is what a wallet receives to sign.
type SignInChallenge struct {
	Nonce   string
	Message string
}

// SessionGrant is the result of a successful login.
type SessionGrant struct {
	Token     string
	ExpiresAt time.Time
	User      *core.User
	IsNew     bool
}

// GenerateChallenge issues a sign-in challenge for a wallet, silently
// superseding any prior unconsumed one for the same wallet.
func (s *SIWSService) GenerateChallenge(ctx context.Context, wallet string) (*SignInChallenge, error) {
	if err := solana.ValidateAddress(wallet); err != nil {
		return nil, core.ErrInvalidAddress
	}

	ch, err := s.challenges.Issue(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to issue challenge: %w", err)
	}

	message := core.BuildSignInMessage(core.SignInMessage{
		Wallet:   wallet,
		Nonce:    ch.Nonce,
		IssuedAt: ch.IssuedAt,
	})

	return &SignInChallenge{Nonce: ch.Nonce, Message: message}, nil
}

// VerifySignature checks a signed sign-in challenge and consumes it.
func (s *SIWSService) VerifySignature(ctx context.Context, wallet, signature, message string) error {
	if err := solana.ValidateAddress(wallet); err != nil {
		return core.ErrInvalidAddress
	}

	parsed := core.ParseSignInMessage(message)
	if parsed == nil {
		return core.ErrMessageMalformed
	}
	if parsed.Wallet != wallet {
		return core.ErrMessageMismatch
	}

	// The pending challenge is checked before the signature so replay
	// failures surface with their own codes, but only consumed after the
	// signature verifies: a bad signature leaves the challenge available
	// for a retry, and the atomic consume still guarantees single use
	// under concurrent attempts.
	if err := s.challenges.Peek(ctx, wallet, parsed.Nonce); err != nil {
		return err
	}

	if !solana.VerifySignature(wallet, message, signature) {
		return core.ErrInvalidSignature
	}

	return s.challenges.Consume(ctx, wallet, parsed.Nonce)
}

// FindOrCreateUser resolves the account behind a wallet, creating one on
// first login. Lookup order: wallet-link table, then the legacy direct
// address field, then creation. The second return value reports whether
// the user was created by this call.
func (s *SIWSService) FindOrCreateUser(ctx context.Context, wallet, displayNameHint string) (*core.User, bool, error) {
	user, err := s.users.FindByWalletLink(ctx, wallet)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		user, err = s.users.FindByLegacyWallet(ctx, wallet)
		if err != nil {
			return nil, false, err
		}
	}
	if user != nil {
		s.maybeReconcile(user, wallet)
		return user, false, nil
	}

	user, err = s.createUser(ctx, wallet, displayNameHint)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// Login composes signature verification, user resolution, and session
// token issuance into the full sign-in flow.
func (s *SIWSService) Login(ctx context.Context, wallet, signature, message string) (*SessionGrant, error) {
	if err := s.VerifySignature(ctx, wallet, signature, message); err != nil {
		return nil, err
	}

	user, isNew, err := s.FindOrCreateUser(ctx, wallet, "")
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokenizer.Issue(user.ID, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	// Best-effort: a broken event bus must not fail a valid login.
	if err := s.events.PublishLogin(ctx, user.ID, wallet); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to publish login event")
	}

	return &SessionGrant{Token: token, ExpiresAt: expiresAt, User: user, IsNew: isNew}, nil
}

func (s *SIWSService) createUser(ctx context.Context, wallet, displayNameHint string) (*core.User, error) {
	name, err := s.deriveDisplayName(ctx, wallet, displayNameHint)
	if err != nil {
		return nil, err
	}

	// Provisioning a provider account is best-effort. When it fails the
	// user gets a local placeholder marker and login proceeds; a later
	// reconciliation upgrades it.
	marker := core.LocalMarkerPrefix + uuid.New().String()
	provider, err := s.identity.ImportUser(ctx, core.ImportRequest{
		LinkedWallet:         wallet,
		CreateEmbeddedWallet: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("wallet", wallet).Msg("identity provider import failed, using local marker")
	} else if provider != nil {
		marker = provider.ID
	}

	user := &core.User{
		ID:             uuid.New().String(),
		DisplayName:    name,
		IdentityMarker: marker,
		CreatedAt:      time.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.users.LinkWallet(ctx, &core.WalletLink{
		Wallet:    wallet,
		UserID:    user.ID,
		Primary:   true,
		CreatedAt: user.CreatedAt,
	}); err != nil {
		return nil, err
	}

	return user, nil
}

// deriveDisplayName builds a deterministic slug from the address's first
// and last four characters, then walks numeric suffixes until free.
func (s *SIWSService) deriveDisplayName(ctx context.Context, wallet, hint string) (string, error) {
	base := hint
	if base == "" {
		base = wallet[:4] + "-" + wallet[len(wallet)-4:]
	}

	name := base
	for i := 2; ; i++ {
		taken, err := s.users.DisplayNameTaken(ctx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
		if i > 50 {
			// Pathological collision runs fall back to a unique suffix.
			return base + "-" + uuid.New().String()[:8], nil
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

// maybeReconcile upgrades a locally synthesized identity marker in the
// background: find the provider account for the wallet, replace the
// placeholder, and register any provider-managed companion wallet.
// Failures are logged and swallowed; login never waits on or fails over
// provider availability.
func (s *SIWSService) maybeReconcile(user *core.User, wallet string) {
	if !core.IsLocalMarker(user.IdentityMarker) {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		provider, err := s.identity.FindUserByWallet(ctx, wallet)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("identity reconciliation lookup failed")
			return
		}
		if provider == nil {
			provider, err = s.identity.ImportUser(ctx, core.ImportRequest{
				LinkedWallet:         wallet,
				CreateEmbeddedWallet: true,
			})
			if err != nil {
				s.log.Warn().Err(err).Str("user_id", user.ID).Msg("identity reconciliation import failed")
				return
			}
		}

		if err := s.users.UpdateIdentityMarker(ctx, user.ID, provider.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to upgrade identity marker")
			return
		}
		if provider.EmbeddedWallet != "" {
			if err := s.users.LinkWallet(ctx, &core.WalletLink{
				Wallet:    provider.EmbeddedWallet,
				UserID:    user.ID,
				CreatedAt: time.Now(),
			}); err != nil {
				s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to link companion wallet")
			}
		}

		if err := s.events.PublishReconciliation(ctx, user.ID, wallet, provider.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to publish reconciliation event")
		}
	}()
}
