package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// RequestSubmitter opens the request dialog of a module and submits new access requests,
// keeping at most one pending request per user and module.
type RequestSubmitter struct {
	store    outbound.AccessRequestStore
	notifier outbound.Notifier
	clock    outbound.Clock
	logger   outbound.Logger
	timeout  time.Duration

	mu      sync.Mutex
	dialogs map[model.Module]*model.RequestDialog
}

func NewRequestSubmitter(
	store outbound.AccessRequestStore,
	notifier outbound.Notifier,
	clock outbound.Clock,
	logger outbound.Logger,
	timeout time.Duration,
) *RequestSubmitter {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &RequestSubmitter{
		store:    store,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		timeout:  timeout,
		dialogs:  make(map[model.Module]*model.RequestDialog),
	}
}

// OpenRequestDialog checks that creds are usable and that no pending request exists for
// the module before opening its dialog. Any failure leaves the dialog closed.
func (s *RequestSubmitter) OpenRequestDialog(
	ctx context.Context,
	module model.Module,
	requestType model.RequestType,
	creds model.Credentials,
) (model.RequestDialog, error) {
	if !creds.Valid() {
		s.notifyFailure(ctx, module, requestType, creds, "Please log in again to request access.")
		return s.Dialog(module), model.ErrAuth
	}

	if err := s.checkPending(ctx, module, requestType, creds); err != nil {
		return s.Dialog(module), err
	}

	s.mu.Lock()
	dialog := &model.RequestDialog{
		Module:      module,
		RequestType: requestType,
		Open:        true,
	}
	s.dialogs[module] = dialog
	opened := *dialog
	s.mu.Unlock()

	s.logger.Debug("Request dialog opened", "module", module, "requestType", requestType, "username", creds.Username())
	return opened, nil
}

// CloseRequestDialog discards the dialog of module. A submission in flight is not cancelled.
func (s *RequestSubmitter) CloseRequestDialog(module model.Module) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dialog, ok := s.dialogs[module]; ok && !dialog.Submitting {
		delete(s.dialogs, module)
	}
}

// Dialog returns the current dialog state of module
func (s *RequestSubmitter) Dialog(module model.Module) model.RequestDialog {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dialog, ok := s.dialogs[module]; ok {
		return *dialog
	}
	return model.RequestDialog{Module: module}
}

// Submit creates a pending request for module and requestType. A second call for the same
// module while one is in flight returns ErrSubmitInFlight without reaching the store. The
// pending check of OpenRequestDialog is repeated before the create.
func (s *RequestSubmitter) Submit(
	ctx context.Context,
	module model.Module,
	requestType model.RequestType,
	remarks string,
	creds model.Credentials,
) (*model.AccessRequest, error) {
	if !creds.Valid() {
		s.notifyFailure(ctx, module, requestType, creds, "Please log in again to request access.")
		return nil, model.ErrAuth
	}

	if !s.beginSubmit(module, requestType, remarks) {
		s.logger.Debug("Ignoring submit while another is in flight", "module", module, "username", creds.Username())
		return nil, model.ErrSubmitInFlight
	}

	// the dialog may be stale or skipped entirely, so the store is asked again
	if err := s.checkPending(ctx, module, requestType, creds); err != nil {
		s.endSubmit(module, errors.Is(err, model.ErrDuplicatePending))
		return nil, err
	}

	requestID, err := uuid.NewV7()
	if err != nil {
		s.endSubmit(module, false)
		return nil, &model.SubmissionError{Err: err}
	}

	request := &model.AccessRequest{
		RequestID:   requestID.String(),
		Module:      module,
		RequestType: requestType,
		Remarks:     remarks,
		Username:    creds.Identity.Username,
		UserRole:    creds.Identity.Role,
		Status:      model.AccessRequestPending,
	}

	s.logger.Info("Submitting access request", "requestID", request.RequestID, "module", module, "requestType", requestType, "username", request.Username)

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	created, err := s.store.CreateRequest(reqCtx, creds.Token, request)
	cancel()

	if err != nil {
		s.endSubmit(module, false)

		message := model.StoreMessage(err)
		s.logger.Error("Failed to submit access request", "requestID", request.RequestID, "module", module, "error", err)

		notice := message
		if notice == "" {
			notice = "Failed to submit the access request. Please try again."
		}
		s.notifyFailure(ctx, module, requestType, creds, notice)
		return nil, &model.SubmissionError{Message: message, Err: err}
	}

	s.endSubmit(module, true)

	if created == nil {
		created = request
	}

	s.logger.Info("Access request submitted", "requestID", created.RequestID, "module", module, "requestType", requestType)
	s.notify(ctx, model.Notification{
		Level:       model.NotificationSuccess,
		Module:      module,
		RequestType: requestType,
		Username:    creds.Username(),
		Message:     fmt.Sprintf("%s access requested for %s.", requestType, module),
		Timestamp:   s.clock.Now(),
	})
	return created, nil
}

// checkPending fails with ErrLookup when the store cannot be asked and with a
// DuplicatePendingError when the user already waits on module.
func (s *RequestSubmitter) checkPending(
	ctx context.Context,
	module model.Module,
	requestType model.RequestType,
	creds model.Credentials,
) error {
	existing, err := s.findPending(ctx, module, creds)
	if err != nil {
		s.logger.Warn("Pending request lookup failed", "module", module, "username", creds.Username(), "error", err)
		s.notifyFailure(ctx, module, requestType, creds, "Unable to check existing requests. Please try again.")
		return fmt.Errorf("%w: %w", model.ErrLookup, err)
	}
	if existing == nil {
		return nil
	}

	s.notifyFailure(ctx, module, requestType, creds,
		fmt.Sprintf("You already have a pending %s request for %s.", existing.RequestType, module))
	return &model.DuplicatePendingError{
		Module:       module,
		ExistingType: existing.RequestType,
		RequestID:    existing.RequestID,
	}
}

func (s *RequestSubmitter) findPending(ctx context.Context, module model.Module, creds model.Credentials) (*model.AccessRequest, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	requests, err := s.store.ListRequests(reqCtx, creds.Token)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("store did not answer within %s: %w", s.timeout, err)
		}
		return nil, err
	}

	username := creds.Username()
	for _, request := range requests {
		if request != nil && request.Module == module && request.Username == username && request.IsPending() {
			return request, nil
		}
	}
	return nil, nil
}

func (s *RequestSubmitter) beginSubmit(module model.Module, requestType model.RequestType, remarks string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	dialog, ok := s.dialogs[module]
	if !ok {
		dialog = &model.RequestDialog{Module: module, Open: true}
		s.dialogs[module] = dialog
	}
	if dialog.Submitting {
		return false
	}
	dialog.RequestType = requestType
	dialog.Remarks = remarks
	dialog.Submitting = true
	return true
}

func (s *RequestSubmitter) endSubmit(module model.Module, closeDialog bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dialog, ok := s.dialogs[module]
	if !ok {
		return
	}
	dialog.Submitting = false
	if closeDialog {
		delete(s.dialogs, module)
	}
}

func (s *RequestSubmitter) notifyFailure(
	ctx context.Context,
	module model.Module,
	requestType model.RequestType,
	creds model.Credentials,
	message string,
) {
	s.notify(ctx, model.Notification{
		Level:       model.NotificationError,
		Module:      module,
		RequestType: requestType,
		Username:    creds.Username(),
		Message:     message,
		Timestamp:   s.clock.Now(),
	})
}

func (s *RequestSubmitter) notify(ctx context.Context, notification model.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notification)
}
