package inbound

import (
	"context"

	"github.com/ajkula/GoAccessGate/domain/model"
)

// HealthStatus summarizes the background approval checks
type HealthStatus struct {
	Serving     bool   `json:"serving"`
	LastError   string `json:"lastError,omitempty"`
	LastSuccess string `json:"lastSuccess,omitempty"`
}

// AccessService is what UI-facing adapters consume to enable or disable controls
type AccessService interface {
	// IsPermitted reports whether the current user holds an active grant
	IsPermitted(module model.Module, requestType model.RequestType) bool

	// RemainingDisplay returns the HH:MM:SS countdown, nil when the grant does not expire or is absent
	RemainingDisplay(module model.Module, requestType model.RequestType) *string

	// View returns the full derived view of one key
	View(module model.Module, requestType model.RequestType) (model.AccessGrantView, error)

	// Views returns every watched key
	Views() []model.AccessGrantView

	// OpenRequestDialog runs the pre-submission checks and opens the module dialog
	OpenRequestDialog(ctx context.Context, module model.Module, requestType model.RequestType) (model.RequestDialog, error)

	// RequestAccess submits a new access request
	RequestAccess(ctx context.Context, module model.Module, requestType model.RequestType, remarks string) (*model.AccessRequest, error)

	// Refresh forces an approval check on every module
	Refresh(ctx context.Context) error

	// Watch registers fn for view changes; the returned func unregisters it
	Watch(fn func(model.AccessGrantView)) func()

	// CurrentUser returns the identity of the current credentials, nil when logged out
	CurrentUser() *model.Identity

	Health() HealthStatus

	Start(ctx context.Context) error
	Stop()
}
