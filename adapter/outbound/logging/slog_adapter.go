package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/ajkula/GoAccessGate/config"
)

type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// represents a single log entry to be processed asynchronously
type LogMessage struct {
	Level LogLevel
	Msg   string
	Args  []any
	Time  time.Time
}

// implements the Logger port on top of slog, writing from a single goroutine
// so callers never block on I/O
type SlogAdapter struct {
	logger    *slog.Logger
	logChan   chan LogMessage
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	slogLevel *slog.LevelVar
	closer    io.Closer
	dropped   atomic.Int64
	stopOnce  sync.Once
}

// NewSlogAdapter builds the logger described by cfg.Logging
func NewSlogAdapter(cfg *config.Config) (*SlogAdapter, error) {
	writer, closer, err := openOutput(cfg.Logging.Output, cfg.Logging.FilePath)
	if err != nil {
		return nil, err
	}
	adapter := NewSlogAdapterWithWriter(cfg, writer)
	adapter.closer = closer
	return adapter, nil
}

// NewSlogAdapterWithWriter logs to w instead of the configured output
func NewSlogAdapterWithWriter(cfg *config.Config, w io.Writer) *SlogAdapter {
	ctx, cancel := context.WithCancel(context.Background())

	levelVar := &slog.LevelVar{}
	levelVar.Set(parseSlogLevel(configuredLevel(cfg)))

	channelSize := cfg.Logging.ChannelSize
	if channelSize <= 0 {
		channelSize = 1000
	}

	adapter := &SlogAdapter{
		logger:    slog.New(newHandler(cfg.Logging.Format, w, levelVar)),
		logChan:   make(chan LogMessage, channelSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		slogLevel: levelVar,
	}

	go adapter.processLogs()

	return adapter
}

func configuredLevel(cfg *config.Config) string {
	if cfg.Logging.Level != "" {
		return cfg.Logging.Level
	}
	return cfg.General.LogLevel
}

func newHandler(format string, w io.Writer, level slog.Leveler) slog.Handler {
	if strings.EqualFold(format, "text") {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(w),
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == "error" && a.Value.Kind() == slog.KindAny {
					if err, ok := a.Value.Any().(error); ok {
						return tint.Err(err)
					}
				}
				return a
			},
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

func openOutput(output, filePath string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if filePath == "" {
			return nil, nil, fmt.Errorf("logging.filePath is required for file output")
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return f, f, nil
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", output)
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// UpdateLevel changes the level at runtime
func (s *SlogAdapter) UpdateLevel(logLvl string) {
	normalizedLevel := strings.ToLower(logLvl)
	s.slogLevel.Set(parseSlogLevel(normalizedLevel))
	s.Info("Logger level updated dynamically", "new_level", normalizedLevel)
}

// Dropped is the number of messages discarded because the buffer was full
func (s *SlogAdapter) Dropped() int64 {
	return s.dropped.Load()
}

func (s *SlogAdapter) processLogs() {
	defer close(s.done)

	for {
		select {
		case msg := <-s.logChan:
			s.writeLog(msg)
		case <-s.ctx.Done():
			for {
				select {
				case msg := <-s.logChan:
					s.writeLog(msg)
				default:
					return
				}
			}
		}
	}
}

// converts string level to slog.Level
func parseSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func (s *SlogAdapter) writeLog(msg LogMessage) {
	r := slog.NewRecord(msg.Time, msg.Level.slogLevel(), msg.Msg, 0)
	r.Add(msg.Args...)
	_ = s.logger.Handler().Handle(context.Background(), r)
}

func (s *SlogAdapter) sendLog(level LogLevel, msg string, args ...any) {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.logChan <- LogMessage{
		Level: level,
		Msg:   msg,
		Args:  args,
		Time:  time.Now(),
	}:
	default:
		s.dropped.Add(1)
	}
}

func (s *SlogAdapter) shouldLog(level LogLevel) bool {
	return level.slogLevel() >= s.slogLevel.Level()
}

func (s *SlogAdapter) Error(msg string, args ...any) {
	if !s.shouldLog(LevelError) {
		return
	}
	s.sendLog(LevelError, msg, args...)
}

func (s *SlogAdapter) Warn(msg string, args ...any) {
	if !s.shouldLog(LevelWarn) {
		return
	}
	s.sendLog(LevelWarn, msg, args...)
}

func (s *SlogAdapter) Info(msg string, args ...any) {
	if !s.shouldLog(LevelInfo) {
		return
	}
	s.sendLog(LevelInfo, msg, args...)
}

func (s *SlogAdapter) Debug(msg string, args ...any) {
	if !s.shouldLog(LevelDebug) {
		return
	}
	s.sendLog(LevelDebug, msg, args...)
}

// Shutdown flushes buffered messages and closes the output file, if any
func (s *SlogAdapter) Shutdown() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
		if s.closer != nil {
			s.closer.Close()
		}
	})
}
