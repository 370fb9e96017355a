package outbound

import (
	"context"

	"github.com/ajkula/GoAccessGate/domain/model"
)

// Notifier surfaces transient messages for user-initiated actions
type Notifier interface {
	Notify(ctx context.Context, notification model.Notification)
}
