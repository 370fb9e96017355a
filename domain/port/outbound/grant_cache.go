package outbound

import (
	"context"

	"github.com/ajkula/GoAccessGate/domain/model"
)

// GrantCache remembers approvals per user and key so views can be restored after a restart
type GrantCache interface {
	Load(ctx context.Context, username string, key model.GrantKey) (*model.CachedGrant, bool, error)
	Save(ctx context.Context, username string, key model.GrantKey, grant *model.CachedGrant) error
	Delete(ctx context.Context, username string, key model.GrantKey) error
}
