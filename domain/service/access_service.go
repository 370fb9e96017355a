package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// ModuleAccess names a module and the request types its screens gate on
type ModuleAccess struct {
	Module       model.Module
	RequestTypes []model.RequestType
}

// AccessServiceOptions configures the gates built by NewAccessService
type AccessServiceOptions struct {
	Modules        []ModuleAccess
	PollInterval   time.Duration
	StoreTimeout   time.Duration
	Cache          outbound.GrantCache
	CacheFreshness time.Duration
}

type accessService struct {
	credentials outbound.CredentialSource
	logger      outbound.Logger
	submitter   *RequestSubmitter
	gates       map[model.Module]*AccessGate
	order       []model.Module

	mu      sync.Mutex
	running bool
}

// NewAccessService instantiates one AccessGate per configured module; all gates share
// the same store, credential source and submitter.
func NewAccessService(
	store outbound.AccessRequestStore,
	credentials outbound.CredentialSource,
	notifier outbound.Notifier,
	clock outbound.Clock,
	logger outbound.Logger,
	options AccessServiceOptions,
) inbound.AccessService {
	submitter := NewRequestSubmitter(store, notifier, clock, logger, options.StoreTimeout)

	s := &accessService{
		credentials: credentials,
		logger:      logger,
		submitter:   submitter,
		gates:       make(map[model.Module]*AccessGate),
	}

	for _, module := range options.Modules {
		if _, exists := s.gates[module.Module]; exists {
			logger.Warn("Duplicate module in access configuration, ignoring", "module", module.Module)
			continue
		}
		s.gates[module.Module] = NewAccessGate(store, credentials, submitter, clock, logger, GateOptions{
			Module:         module.Module,
			RequestTypes:   module.RequestTypes,
			PollInterval:   options.PollInterval,
			StoreTimeout:   options.StoreTimeout,
			Cache:          options.Cache,
			CacheFreshness: options.CacheFreshness,
		})
		s.order = append(s.order, module.Module)
	}

	return s
}

func (s *accessService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	for _, module := range s.order {
		if err := s.gates[module].Start(ctx); err != nil {
			for _, started := range s.order {
				if started == module {
					break
				}
				s.gates[started].Stop()
			}
			return fmt.Errorf("failed to start %s gate: %w", module, err)
		}
	}

	s.running = true
	s.logger.Info("Access service started", "modules", len(s.order))
	return nil
}

func (s *accessService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	for _, module := range s.order {
		s.gates[module].Stop()
	}
	s.running = false
	s.logger.Info("Access service stopped")
}

func (s *accessService) IsPermitted(module model.Module, requestType model.RequestType) bool {
	gate, err := s.gate(module, requestType)
	if err != nil {
		return false
	}
	return gate.IsPermitted(requestType)
}

func (s *accessService) RemainingDisplay(module model.Module, requestType model.RequestType) *string {
	gate, err := s.gate(module, requestType)
	if err != nil {
		return nil
	}
	return gate.RemainingDisplay(requestType)
}

func (s *accessService) View(module model.Module, requestType model.RequestType) (model.AccessGrantView, error) {
	gate, err := s.gate(module, requestType)
	if err != nil {
		return model.AccessGrantView{}, err
	}
	return gate.View(requestType), nil
}

func (s *accessService) Views() []model.AccessGrantView {
	var views []model.AccessGrantView
	for _, module := range s.order {
		views = append(views, s.gates[module].Views()...)
	}
	return views
}

func (s *accessService) OpenRequestDialog(ctx context.Context, module model.Module, requestType model.RequestType) (model.RequestDialog, error) {
	gate, err := s.gate(module, requestType)
	if err != nil {
		return model.RequestDialog{Module: module}, err
	}
	return gate.OpenRequestDialog(ctx, requestType)
}

func (s *accessService) RequestAccess(ctx context.Context, module model.Module, requestType model.RequestType, remarks string) (*model.AccessRequest, error) {
	gate, err := s.gate(module, requestType)
	if err != nil {
		return nil, err
	}
	return gate.RequestAccess(ctx, requestType, remarks)
}

// Refresh checks every module; the returned error joins the failures
func (s *accessService) Refresh(ctx context.Context) error {
	var errs []error
	for _, module := range s.order {
		if err := s.gates[module].Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", module, err))
		}
	}
	return errors.Join(errs...)
}

func (s *accessService) Watch(fn func(model.AccessGrantView)) func() {
	cancels := make([]func(), 0, len(s.order))
	for _, module := range s.order {
		cancels = append(cancels, s.gates[module].Watch(fn))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, cancel := range cancels {
				cancel()
			}
		})
	}
}

func (s *accessService) CurrentUser() *model.Identity {
	creds, err := s.credentials.Current()
	if err != nil || !creds.Valid() {
		return nil
	}
	identity := *creds.Identity
	return &identity
}

// Health is serving until a gate's last check failed
func (s *accessService) Health() inbound.HealthStatus {
	status := inbound.HealthStatus{Serving: true}

	var lastSuccess time.Time
	for _, module := range s.order {
		gate := s.gates[module]
		if err := gate.LastError(); err != nil {
			status.Serving = false
			if status.LastError == "" {
				status.LastError = fmt.Sprintf("%s: %v", module, err)
			}
		}
		if success := gate.LastSuccess(); !success.IsZero() && (lastSuccess.IsZero() || success.Before(lastSuccess)) {
			lastSuccess = success
		}
	}

	if !lastSuccess.IsZero() {
		status.LastSuccess = lastSuccess.Format(time.RFC3339)
	}
	return status
}

func (s *accessService) gate(module model.Module, requestType model.RequestType) (*AccessGate, error) {
	gate, ok := s.gates[module]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownModule, module)
	}
	if !gate.Watches(requestType) {
		return nil, fmt.Errorf("%w: %s for %s", model.ErrUnknownRequestType, requestType, module)
	}
	return gate, nil
}
