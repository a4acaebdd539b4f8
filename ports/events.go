package ports

import "context"

// EventPublisher notifies other components about authentication events.
// Publishing is best-effort: callers log failures and carry on.
type EventPublisher interface {
	// PublishLogin announces a successful wallet login.
	PublishLogin(ctx context.Context, userID, wallet string) error

	// PublishReconciliation announces that a user's locally synthesized
	// identity marker was upgraded to a provider-backed one.
	PublishReconciliation(ctx context.Context, userID, wallet, marker string) error
}
