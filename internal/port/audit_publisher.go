package port

import (
	"context"

	"github.com/quangtdn/storeledger/internal/core/domain"
)

// AuditPublisher forwards committed movement entries to an external audit
// trail. Publishing is best-effort: failures are logged by the caller and
// never affect the mutation path.
type AuditPublisher interface {
	PublishMovement(ctx context.Context, entry domain.MovementEntry) error
}
