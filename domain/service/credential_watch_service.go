package service

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// Refresher is anything that can re-run its approval checks on demand
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CredentialWatchService re-checks approvals as soon as the credentials file changes,
// so a login or logout is reflected without waiting for the next poll interval.
type CredentialWatchService struct {
	watcher   outbound.FileWatcher
	refresher Refresher
	clock     outbound.Clock
	logger    outbound.Logger
	timeout   time.Duration
	minGap    time.Duration

	mu       sync.RWMutex
	path     string
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	lastSync time.Time
}

func NewCredentialWatchService(
	watcher outbound.FileWatcher,
	refresher Refresher,
	clock outbound.Clock,
	logger outbound.Logger,
) *CredentialWatchService {
	return &CredentialWatchService{
		watcher:   watcher,
		refresher: refresher,
		clock:     clock,
		logger:    logger,
		timeout:   30 * time.Second,
		minGap:    time.Second,
	}
}

// Start watches path and processes its events until Stop
func (s *CredentialWatchService) Start(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("Credential watcher already running")
		return nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		s.logger.Error("Failed to get absolute path", "path", path, "error", err)
		return err
	}

	if err := s.watcher.Watch(ctx, absPath); err != nil {
		s.logger.Error("Failed to watch credentials file", "path", absPath, "error", err)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.path = absPath
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.processEvents(runCtx, s.done)

	s.logger.Info("Watching credentials file", "path", absPath)
	return nil
}

// Stop ends event processing and releases the watcher
func (s *CredentialWatchService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	if err := s.watcher.Stop(); err != nil {
		s.logger.Error("Error stopping file watcher", "error", err)
		return err
	}

	s.logger.Info("Credential watcher stopped")
	return nil
}

// IsWatching returns true while the service and its watcher are active
func (s *CredentialWatchService) IsWatching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running && s.watcher.IsWatching()
}

func (s *CredentialWatchService) processEvents(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			s.handleEvent(ctx, event)

		case err, ok := <-s.watcher.Errors():
			if !ok {
				return
			}
			s.logger.Error("File watcher error", "error", err)
		}
	}
}

func (s *CredentialWatchService) handleEvent(ctx context.Context, event outbound.FileChangeEvent) {
	s.mu.Lock()
	if filepath.Clean(event.FilePath) != s.path {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	if !s.lastSync.IsZero() && now.Sub(s.lastSync) < s.minGap {
		s.mu.Unlock()
		s.logger.Debug("Skipping credentials event due to rate limiting", "path", event.FilePath)
		return
	}
	s.lastSync = now
	s.mu.Unlock()

	s.logger.Info("Credentials changed, refreshing approvals", "path", event.FilePath, "type", event.EventType)

	refreshCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.refresher.Refresh(refreshCtx); err != nil {
		s.logger.Warn("Refresh after credentials change failed", "error", err)
	}
}
