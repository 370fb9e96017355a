package service

import (
	"context"
	"sync"
	"time"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// GateOptions configures an AccessGate
type GateOptions struct {
	Module         model.Module
	RequestTypes   []model.RequestType
	PollInterval   time.Duration
	StoreTimeout   time.Duration
	Cache          outbound.GrantCache
	CacheFreshness time.Duration
}

// AccessGate decides, for one module, which request types the current user may perform.
// It owns the module's poller and one expiry timer per request type; all of them share
// the gate's context so Stop tears them down together.
type AccessGate struct {
	module       model.Module
	requestTypes []model.RequestType
	clock        outbound.Clock
	logger       outbound.Logger
	submitter    *RequestSubmitter
	credentials  outbound.CredentialSource
	poller       *ApprovalPoller

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	timers    map[model.RequestType]*ExpiryTimer
	listeners map[uint64]func(model.AccessGrantView)
	nextID    uint64
}

func NewAccessGate(
	store outbound.AccessRequestStore,
	credentials outbound.CredentialSource,
	submitter *RequestSubmitter,
	clock outbound.Clock,
	logger outbound.Logger,
	options GateOptions,
) *AccessGate {
	gate := &AccessGate{
		module:       options.Module,
		requestTypes: append([]model.RequestType(nil), options.RequestTypes...),
		clock:        clock,
		logger:       logger,
		submitter:    submitter,
		credentials:  credentials,
		timers:       make(map[model.RequestType]*ExpiryTimer),
		listeners:    make(map[uint64]func(model.AccessGrantView)),
	}

	keys := make([]model.GrantKey, 0, len(gate.requestTypes))
	for _, requestType := range gate.requestTypes {
		keys = append(keys, model.GrantKey{Module: gate.module, RequestType: requestType})
	}

	gate.poller = NewApprovalPoller(store, credentials, clock, logger, PollerOptions{
		Keys:           keys,
		Interval:       options.PollInterval,
		Timeout:        options.StoreTimeout,
		Cache:          options.Cache,
		CacheFreshness: options.CacheFreshness,
		OnUpdate:       gate.onPollUpdate,
	})
	return gate
}

// Module returns the module the gate decides for
func (g *AccessGate) Module() model.Module {
	return g.module
}

// RequestTypes returns the watched request types
func (g *AccessGate) RequestTypes() []model.RequestType {
	return append([]model.RequestType(nil), g.requestTypes...)
}

// Start creates the expiry timers and starts polling
func (g *AccessGate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.cancel != nil {
		g.mu.Unlock()
		return nil
	}
	g.ctx, g.cancel = context.WithCancel(ctx)
	for _, requestType := range g.requestTypes {
		requestType := requestType
		g.timers[requestType] = NewExpiryTimer(
			g.ctx,
			g.clock,
			func(string) { g.publish(requestType) },
			func() { g.onExpire(requestType) },
		)
	}
	runCtx := g.ctx
	g.mu.Unlock()

	return g.poller.Start(runCtx)
}

// Stop cancels polling and every countdown. Safe to call any number of times.
func (g *AccessGate) Stop() {
	g.poller.Stop()

	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	timers := g.timers
	g.timers = make(map[model.RequestType]*ExpiryTimer)
	g.mu.Unlock()

	for _, timer := range timers {
		timer.Detach()
	}
	if cancel != nil {
		cancel()
	}
}

// Refresh forces an approval check
func (g *AccessGate) Refresh(ctx context.Context) error {
	return g.poller.Refresh(ctx)
}

// LastError returns the last poll failure of the gate, nil when the last check succeeded
func (g *AccessGate) LastError() error {
	return g.poller.LastError()
}

func (g *AccessGate) LastSuccess() time.Time {
	return g.poller.LastSuccess()
}

// Watches reports whether requestType is one of the gate's watched types
func (g *AccessGate) Watches(requestType model.RequestType) bool {
	for _, watched := range g.requestTypes {
		if watched == requestType {
			return true
		}
	}
	return false
}

// IsPermitted is true when the last poll saw an active grant and its countdown has not fired since
func (g *AccessGate) IsPermitted(requestType model.RequestType) bool {
	key := g.key(requestType)
	if !g.poller.IsApproved(key) {
		return false
	}
	timer := g.timer(requestType)
	return timer == nil || !timer.HasExpired()
}

// RemainingDisplay returns the countdown of requestType, nil when there is none
func (g *AccessGate) RemainingDisplay(requestType model.RequestType) *string {
	if !g.IsPermitted(requestType) {
		return nil
	}
	timer := g.timer(requestType)
	if timer == nil {
		return nil
	}
	return timer.RemainingDisplay()
}

// View derives the full state of requestType
func (g *AccessGate) View(requestType model.RequestType) model.AccessGrantView {
	key := g.key(requestType)
	view := model.AccessGrantView{
		Module:      g.module,
		RequestType: requestType,
		State:       model.GateNoRequest,
	}

	pending := g.poller.Pending(g.module)
	if pending != nil {
		view.PendingType = pending.RequestType
	}

	approval := g.poller.Approval(key)
	timer := g.timer(requestType)

	switch {
	case approval != nil && (timer == nil || !timer.HasExpired()):
		view.IsApproved = true
		view.ExpiresAt = approval.ExpiresAt
		view.State = model.GateApprovedActive
		if timer != nil {
			view.RemainingDisplay = timer.RemainingDisplay()
		}
	case approval != nil:
		view.ExpiresAt = approval.ExpiresAt
		view.State = model.GateApprovedExpired
	case pending != nil && pending.RequestType == requestType:
		view.State = model.GatePending
	default:
		if expired := g.poller.ExpiredApproval(key); expired != nil {
			view.ExpiresAt = expired.ExpiresAt
			view.State = model.GateApprovedExpired
		}
	}

	return view
}

// Views derives the state of every watched request type
func (g *AccessGate) Views() []model.AccessGrantView {
	views := make([]model.AccessGrantView, 0, len(g.requestTypes))
	for _, requestType := range g.requestTypes {
		views = append(views, g.View(requestType))
	}
	return views
}

// Watch registers fn for view changes. The returned func unregisters it.
func (g *AccessGate) Watch(fn func(model.AccessGrantView)) func() {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.listeners[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

// OpenRequestDialog runs the pre-submission checks with the current credentials
func (g *AccessGate) OpenRequestDialog(ctx context.Context, requestType model.RequestType) (model.RequestDialog, error) {
	creds, err := g.credentials.Current()
	if err != nil {
		g.logger.Debug("Credentials unavailable", "module", g.module, "error", err)
	}
	return g.submitter.OpenRequestDialog(ctx, g.module, requestType, creds)
}

// Dialog returns the request dialog state of the module
func (g *AccessGate) Dialog() model.RequestDialog {
	return g.submitter.Dialog(g.module)
}

// RequestAccess submits a request with the current credentials. The new pending state
// is picked up by an immediate check.
func (g *AccessGate) RequestAccess(ctx context.Context, requestType model.RequestType, remarks string) (*model.AccessRequest, error) {
	creds, err := g.credentials.Current()
	if err != nil {
		g.logger.Debug("Credentials unavailable", "module", g.module, "error", err)
	}

	created, err := g.submitter.Submit(ctx, g.module, requestType, remarks, creds)
	if err != nil {
		return nil, err
	}

	if err := g.poller.Refresh(ctx); err != nil {
		g.logger.Debug("Post-submit refresh failed", "module", g.module, "error", err)
	}
	return created, nil
}

func (g *AccessGate) onPollUpdate(result PollResult) {
	for _, requestType := range g.requestTypes {
		timer := g.timer(requestType)
		if timer == nil {
			continue
		}

		if approval, ok := result.Approvals[g.key(requestType)]; ok {
			timer.Attach(approval.ExpiresAt)
		} else {
			timer.Detach()
		}
		g.publish(requestType)
	}
}

func (g *AccessGate) onExpire(requestType model.RequestType) {
	g.logger.Info("Access grant expired", "module", g.module, "requestType", requestType)
	g.publish(requestType)
}

func (g *AccessGate) publish(requestType model.RequestType) {
	g.mu.RLock()
	listeners := make([]func(model.AccessGrantView), 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	g.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	view := g.View(requestType)
	for _, fn := range listeners {
		fn(view)
	}
}

func (g *AccessGate) timer(requestType model.RequestType) *ExpiryTimer {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.timers[requestType]
}

func (g *AccessGate) key(requestType model.RequestType) model.GrantKey {
	return model.GrantKey{Module: g.module, RequestType: requestType}
}
