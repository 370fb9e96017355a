package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

const (
	DefaultPollInterval   = 60 * time.Second
	DefaultStoreTimeout   = 15 * time.Second
	DefaultCacheFreshness = time.Hour
)

// PollResult is what one approval check derived for the watched keys
type PollResult struct {
	Approvals map[model.GrantKey]*model.AccessRequest // active grants
	Expired   map[model.GrantKey]*model.AccessRequest // approved but past ExpiresAt
	Pending   map[model.Module]*model.AccessRequest   // the user's pending request per module
	Username  string
	CheckedAt time.Time
}

// PollerOptions configures an ApprovalPoller
type PollerOptions struct {
	Keys           []model.GrantKey
	Interval       time.Duration
	Timeout        time.Duration
	Cache          outbound.GrantCache
	CacheFreshness time.Duration
	OnUpdate       func(PollResult)
}

// ApprovalPoller checks the store immediately and then on a fixed interval, keeping
// the latest approval per watched key. A failed check keeps the last known state.
type ApprovalPoller struct {
	store       outbound.AccessRequestStore
	credentials outbound.CredentialSource
	clock       outbound.Clock
	logger      outbound.Logger

	keys           []model.GrantKey
	interval       time.Duration
	timeout        time.Duration
	cache          outbound.GrantCache
	cacheFreshness time.Duration
	onUpdate       func(PollResult)

	// serializes apply + onUpdate so listeners observe results in the order they were applied
	applyMu sync.Mutex

	mu          sync.RWMutex
	gen         uint64
	running     bool
	cancel      context.CancelFunc
	stopped     chan struct{}
	result      PollResult
	lastErr     error
	lastSuccess time.Time
}

func NewApprovalPoller(
	store outbound.AccessRequestStore,
	credentials outbound.CredentialSource,
	clock outbound.Clock,
	logger outbound.Logger,
	options PollerOptions,
) *ApprovalPoller {
	if options.Interval <= 0 {
		options.Interval = DefaultPollInterval
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultStoreTimeout
	}
	if options.CacheFreshness <= 0 {
		options.CacheFreshness = DefaultCacheFreshness
	}

	keys := make([]model.GrantKey, len(options.Keys))
	copy(keys, options.Keys)

	return &ApprovalPoller{
		store:          store,
		credentials:    credentials,
		clock:          clock,
		logger:         logger,
		keys:           keys,
		interval:       options.Interval,
		timeout:        options.Timeout,
		cache:          options.Cache,
		cacheFreshness: options.CacheFreshness,
		onUpdate:       options.OnUpdate,
		result:         emptyPollResult(""),
	}
}

// Start runs an immediate check followed by one check per interval until Stop
func (p *ApprovalPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.gen++
	gen := p.gen
	p.running = true
	p.cancel = cancel
	p.stopped = make(chan struct{})
	stopped := p.stopped
	ticker := p.clock.NewTicker(p.interval)
	p.mu.Unlock()

	go p.loop(runCtx, gen, ticker, stopped)
	p.logger.Info("Approval poller started", "keys", len(p.keys), "interval", p.interval.String())
	return nil
}

// Stop cancels the schedule. Results of checks still in flight are discarded.
// Safe to call any number of times.
func (p *ApprovalPoller) Stop() {
	// an apply that already passed its generation check finishes its onUpdate first
	p.applyMu.Lock()
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.applyMu.Unlock()
		return
	}
	p.gen++
	p.running = false
	cancel := p.cancel
	stopped := p.stopped
	p.cancel = nil
	p.stopped = nil
	p.mu.Unlock()
	p.applyMu.Unlock()

	cancel()
	<-stopped
	p.logger.Info("Approval poller stopped")
}

// IsRunning returns true while the periodic schedule is active
func (p *ApprovalPoller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Refresh runs one check now and returns its error, if any
func (p *ApprovalPoller) Refresh(ctx context.Context) error {
	p.mu.RLock()
	running := p.running
	gen := p.gen
	p.mu.RUnlock()

	if !running {
		return model.ErrPollerStopped
	}
	return p.check(ctx, gen)
}

// Approval returns the active grant last observed for key, nil when none
func (p *ApprovalPoller) Approval(key model.GrantKey) *model.AccessRequest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result.Approvals[key].Clone()
}

// IsApproved reports whether the last successful check found an active grant for key
func (p *ApprovalPoller) IsApproved(key model.GrantKey) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.result.Approvals[key]
	return ok
}

// ExpiredApproval returns an approved-but-expired grant last observed for key
func (p *ApprovalPoller) ExpiredApproval(key model.GrantKey) *model.AccessRequest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result.Expired[key].Clone()
}

// Pending returns the user's pending request for module, nil when none
func (p *ApprovalPoller) Pending(module model.Module) *model.AccessRequest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result.Pending[module].Clone()
}

// LastError returns the error of the last failed check, cleared by the next success
func (p *ApprovalPoller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// LastSuccess returns the time of the last successful check
func (p *ApprovalPoller) LastSuccess() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSuccess
}

func (p *ApprovalPoller) loop(ctx context.Context, gen uint64, ticker outbound.Ticker, stopped chan<- struct{}) {
	defer close(stopped)
	defer ticker.Stop()

	p.hydrate(ctx, gen)

	var inflight sync.WaitGroup
	defer inflight.Wait()

	launch := func() {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			_ = p.check(ctx, gen)
		}()
	}

	launch()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			launch()
		}
	}
}

// check runs a single approval check; it never lets a failure reach the caller's state
func (p *ApprovalPoller) check(ctx context.Context, gen uint64) error {
	creds, err := p.credentials.Current()
	if err != nil || !creds.Valid() {
		p.logger.Debug("No credentials, reporting every key as not approved")
		result := emptyPollResult("")
		result.CheckedAt = p.clock.Now()
		p.apply(gen, result, nil)
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	requests, err := p.store.ListRequests(reqCtx, creds.Token)
	cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		pollErr := fmt.Errorf("%w: %w", model.ErrPoll, err)
		p.recordFailure(gen, pollErr)
		return pollErr
	}

	result := DeriveGrants(requests, p.keys, creds.Username(), p.clock.Now())
	p.apply(gen, result, nil)
	p.persist(ctx, result)
	return nil
}

func (p *ApprovalPoller) apply(gen uint64, result PollResult, err error) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.Lock()
	if gen != p.gen || !p.running {
		p.mu.Unlock()
		p.logger.Debug("Discarding approval check result from a stopped generation")
		return
	}
	p.result = result
	p.lastErr = err
	p.lastSuccess = result.CheckedAt
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate(result)
	}
}

func (p *ApprovalPoller) recordFailure(gen uint64, err error) {
	p.mu.Lock()
	if gen == p.gen && p.running {
		p.lastErr = err
	}
	p.mu.Unlock()

	p.logger.Warn("Approval check failed, keeping last known state", "error", err)
}

// hydrate seeds the state from the grant cache before the first check resolves
func (p *ApprovalPoller) hydrate(ctx context.Context, gen uint64) {
	if p.cache == nil {
		return
	}
	creds, err := p.credentials.Current()
	if err != nil || !creds.Valid() {
		return
	}

	now := p.clock.Now()
	result := emptyPollResult(creds.Username())
	result.CheckedAt = now

	for _, key := range p.keys {
		entry, ok, err := p.cache.Load(ctx, creds.Username(), key)
		if err != nil {
			p.logger.Warn("Failed to load cached grant", "key", key.String(), "error", err)
			continue
		}
		if !ok || !entry.FreshAt(now, p.cacheFreshness) {
			continue
		}
		result.Approvals[key] = entry.Request.Clone()
	}

	if len(result.Approvals) == 0 {
		return
	}

	p.logger.Debug("Restored cached grants", "count", len(result.Approvals))
	p.applyMu.Lock()
	p.mu.Lock()
	if gen != p.gen || !p.running {
		p.mu.Unlock()
		p.applyMu.Unlock()
		return
	}
	p.result = result
	onUpdate := p.onUpdate
	p.mu.Unlock()
	if onUpdate != nil {
		onUpdate(result)
	}
	p.applyMu.Unlock()
}

func (p *ApprovalPoller) persist(ctx context.Context, result PollResult) {
	if p.cache == nil || result.Username == "" {
		return
	}

	for _, key := range p.keys {
		var err error
		if approval, ok := result.Approvals[key]; ok {
			err = p.cache.Save(ctx, result.Username, key, &model.CachedGrant{
				Request:  approval,
				CachedAt: result.CheckedAt,
			})
		} else {
			err = p.cache.Delete(ctx, result.Username, key)
		}
		if err != nil {
			p.logger.Warn("Failed to update grant cache", "key", key.String(), "error", err)
		}
	}
}

// DeriveGrants picks, for every key, the first request that is an active grant for username
// at now. It also records approved-but-expired grants and the user's pending request per module.
func DeriveGrants(requests []*model.AccessRequest, keys []model.GrantKey, username string, now time.Time) PollResult {
	result := emptyPollResult(username)
	result.CheckedAt = now

	watched := make(map[model.GrantKey]bool, len(keys))
	modules := make(map[model.Module]bool, len(keys))
	for _, key := range keys {
		watched[key] = true
		modules[key.Module] = true
	}

	for _, request := range requests {
		if request == nil || request.Username != username {
			continue
		}

		if request.IsPending() && modules[request.Module] {
			if _, exists := result.Pending[request.Module]; !exists {
				result.Pending[request.Module] = request.Clone()
			}
			continue
		}

		key := request.Key()
		if !watched[key] || !request.IsApproved() {
			continue
		}

		if request.GrantsFor(key, username, now) {
			if _, exists := result.Approvals[key]; !exists {
				result.Approvals[key] = request.Clone()
			}
			continue
		}

		if _, exists := result.Expired[key]; !exists {
			result.Expired[key] = request.Clone()
		}
	}

	return result
}

func emptyPollResult(username string) PollResult {
	return PollResult{
		Approvals: make(map[model.GrantKey]*model.AccessRequest),
		Expired:   make(map[model.GrantKey]*model.AccessRequest),
		Pending:   make(map[model.Module]*model.AccessRequest),
		Username:  username,
	}
}
