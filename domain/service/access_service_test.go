package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
)

func newTestAccessService(t *testing.T, store *fakeStore, creds *fakeCredentials) (inbound.AccessService, *fakeClock) {
	t.Helper()
	clock := newFakeClock(testEpoch)
	svc := NewAccessService(store, creds, &recordingNotifier{}, clock, nopLogger{}, AccessServiceOptions{
		Modules: []ModuleAccess{
			{Module: model.ModuleScheduler, RequestTypes: []model.RequestType{model.RequestTypeEdit, model.RequestTypeDelete}},
			{Module: model.ModuleTrips, RequestTypes: []model.RequestType{model.RequestTypeUnlockAllDates}},
			{Module: model.ModuleTrips, RequestTypes: []model.RequestType{model.RequestTypeEdit}},
		},
		PollInterval: time.Minute,
		StoreTimeout: time.Second,
	})
	t.Cleanup(svc.Stop)
	return svc, clock
}

// waitForInitialChecks blocks until every gate applied the check it runs on Start
func waitForInitialChecks(t *testing.T, svc inbound.AccessService) {
	t.Helper()
	impl := svc.(*accessService)
	require.Eventually(t, func() bool {
		for _, gate := range impl.gates {
			if gate.LastSuccess().IsZero() {
				return false
			}
		}
		return true
	}, waitFor, pollGap)
}

func TestAccessService_UnknownKeys(t *testing.T) {
	svc, _ := newTestAccessService(t, &fakeStore{}, newFakeCredentials("alice", model.RoleUser))

	_, err := svc.View(model.ModuleTripExpenses, model.RequestTypeEdit)
	assert.ErrorIs(t, err, model.ErrUnknownModule)

	_, err = svc.View(model.ModuleTrips, model.RequestTypeEdit)
	assert.ErrorIs(t, err, model.ErrUnknownRequestType, "duplicate module entries are ignored")

	_, err = svc.RequestAccess(context.Background(), model.ModuleScheduler, model.RequestTypeUnlockAllDates, "")
	assert.ErrorIs(t, err, model.ErrUnknownRequestType)

	assert.False(t, svc.IsPermitted(model.ModuleTripExpenses, model.RequestTypeEdit))
	assert.Nil(t, svc.RemainingDisplay(model.ModuleTripExpenses, model.RequestTypeEdit))
}

func TestAccessService_ViewsFollowConfiguration(t *testing.T) {
	store := &fakeStore{}
	store.set(
		approved(model.ModuleTrips, model.RequestTypeUnlockAllDates, "alice", timePtr(testEpoch.Add(90*time.Minute))),
		approved(model.ModuleScheduler, model.RequestTypeEdit, "bob", nil),
	)
	svc, _ := newTestAccessService(t, store, newFakeCredentials("alice", model.RoleUser))

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Start(context.Background()))
	waitForInitialChecks(t, svc)
	require.NoError(t, svc.Refresh(context.Background()))

	views := svc.Views()
	require.Len(t, views, 3)
	assert.Equal(t, model.GrantKey{Module: model.ModuleScheduler, RequestType: model.RequestTypeEdit}, views[0].Key())
	assert.Equal(t, model.GrantKey{Module: model.ModuleScheduler, RequestType: model.RequestTypeDelete}, views[1].Key())
	assert.Equal(t, model.GrantKey{Module: model.ModuleTrips, RequestType: model.RequestTypeUnlockAllDates}, views[2].Key())

	assert.False(t, svc.IsPermitted(model.ModuleScheduler, model.RequestTypeEdit), "grant belongs to another user")
	assert.True(t, svc.IsPermitted(model.ModuleTrips, model.RequestTypeUnlockAllDates))
	require.NotNil(t, svc.RemainingDisplay(model.ModuleTrips, model.RequestTypeUnlockAllDates))
	assert.Equal(t, "01:30:00", *svc.RemainingDisplay(model.ModuleTrips, model.RequestTypeUnlockAllDates))
}

func TestAccessService_CurrentUser(t *testing.T) {
	creds := newFakeCredentials("alice", model.RoleApprover)
	svc, _ := newTestAccessService(t, &fakeStore{}, creds)

	user := svc.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, model.RoleApprover, user.Role)

	creds.logout()
	assert.Nil(t, svc.CurrentUser())
}

func TestAccessService_Health(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newTestAccessService(t, store, newFakeCredentials("alice", model.RoleUser))
	require.NoError(t, svc.Start(context.Background()))
	waitForInitialChecks(t, svc)
	require.NoError(t, svc.Refresh(context.Background()))

	health := svc.Health()
	assert.True(t, health.Serving)
	assert.Equal(t, testEpoch.Format(time.RFC3339), health.LastSuccess)

	store.failLists(errors.New("connection reset"))
	err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPoll)

	health = svc.Health()
	assert.False(t, health.Serving)
	assert.Contains(t, health.LastError, "connection reset")

	store.failLists(nil)
	require.NoError(t, svc.Refresh(context.Background()))
	assert.True(t, svc.Health().Serving)
}

func TestAccessService_WatchSpansModules(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newTestAccessService(t, store, newFakeCredentials("alice", model.RoleUser))
	require.NoError(t, svc.Start(context.Background()))
	waitForInitialChecks(t, svc)
	require.NoError(t, svc.Refresh(context.Background()))

	modules := make(chan model.Module, 16)
	unwatch := svc.Watch(func(view model.AccessGrantView) {
		select {
		case modules <- view.Module:
		default:
		}
	})

	store.set(approved(model.ModuleTrips, model.RequestTypeUnlockAllDates, "alice", nil))
	require.NoError(t, svc.Refresh(context.Background()))

	seen := map[model.Module]bool{}
	for len(modules) > 0 {
		seen[<-modules] = true
	}
	assert.True(t, seen[model.ModuleScheduler])
	assert.True(t, seen[model.ModuleTrips])

	unwatch()
	unwatch()
	require.NoError(t, svc.Refresh(context.Background()))
	assert.Empty(t, modules)
}

func TestAccessService_StopBeforeStart(t *testing.T) {
	svc, _ := newTestAccessService(t, &fakeStore{}, newFakeCredentials("alice", model.RoleUser))

	svc.Stop()
	svc.Stop()
	assert.ErrorIs(t, svc.Refresh(context.Background()), model.ErrPollerStopped)
}
