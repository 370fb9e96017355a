package service

import (
	"context"
	"sync"
	"time"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// fakeClock only moves when Advance is called. Ticks are delivered the way time.Ticker
// delivers them: a slow reader misses ticks instead of queueing them.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) outbound.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{
		clock:  c,
		c:      make(chan time.Time, 1),
		period: d,
		next:   c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		for !t.next.After(c.now) {
			select {
			case t.c <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
}

// ActiveTickers counts tickers that were created and not stopped
func (c *fakeClock) ActiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type fakeTicker struct {
	clock  *fakeClock
	c      chan time.Time
	period time.Duration
	next   time.Time
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	for i, other := range t.clock.tickers {
		if other == t {
			t.clock.tickers = append(t.clock.tickers[:i], t.clock.tickers[i+1:]...)
			return
		}
	}
}

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

// fakeStore is an in-memory AccessRequestStore with injectable failures
type fakeStore struct {
	mu        sync.Mutex
	requests  []*model.AccessRequest
	listErr   error
	createErr error
	lists     int
	creates   int
	tokens    []string

	// when set, CreateRequest blocks until it is closed
	createGate chan struct{}
}

func (s *fakeStore) ListRequests(ctx context.Context, token string) ([]*model.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists++
	s.tokens = append(s.tokens, token)
	if s.listErr != nil {
		return nil, s.listErr
	}

	out := make([]*model.AccessRequest, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *fakeStore) CreateRequest(ctx context.Context, token string, request *model.AccessRequest) (*model.AccessRequest, error) {
	s.mu.Lock()
	s.creates++
	gate := s.createGate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return nil, s.createErr
	}
	stored := request.Clone()
	stored.Status = model.AccessRequestPending
	s.requests = append(s.requests, stored)
	return stored.Clone(), nil
}

func (s *fakeStore) set(requests ...*model.AccessRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = requests
}

func (s *fakeStore) failLists(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

func (s *fakeStore) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func (s *fakeStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// fakeCredentials returns whatever was last set, like a credentials file read on every call
type fakeCredentials struct {
	mu    sync.Mutex
	creds model.Credentials
	err   error
}

func newFakeCredentials(username string, role model.UserRole) *fakeCredentials {
	return &fakeCredentials{creds: model.Credentials{
		Token:    "token-" + username,
		Identity: &model.Identity{Username: username, Role: role},
	}}
}

func (f *fakeCredentials) Current() (model.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds, f.err
}

func (f *fakeCredentials) logout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = model.Credentials{}
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []model.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification model.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) all() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Notification(nil), n.notifications...)
}

func approved(module model.Module, requestType model.RequestType, username string, expiresAt *time.Time) *model.AccessRequest {
	return &model.AccessRequest{
		RequestID:   string(module) + "-" + string(requestType) + "-" + username,
		Module:      module,
		RequestType: requestType,
		Username:    username,
		Status:      model.AccessRequestApproved,
		ExpiresAt:   expiresAt,
	}
}

func pending(module model.Module, requestType model.RequestType, username string) *model.AccessRequest {
	return &model.AccessRequest{
		RequestID:   "pending-" + string(module) + "-" + username,
		Module:      module,
		RequestType: requestType,
		Username:    username,
		Status:      model.AccessRequestPending,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
