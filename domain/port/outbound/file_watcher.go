package outbound

import (
	"context"
)

// file change event types
const (
	FileCreated  = "create"
	FileModified = "modify"
	FileRemoved  = "remove"
)

// represents a file system change event
type FileChangeEvent struct {
	FilePath  string `json:"filePath"`  // Path to the changed file
	EventType string `json:"eventType"` // FileCreated, FileModified or FileRemoved
}

// watches files such as the credentials file for changes
type FileWatcher interface {
	// starts monitoring a file for changes
	Watch(ctx context.Context, path string) error

	// stops watching all files and releases resources
	Stop() error

	// returns a channel for receiving file change events
	Events() <-chan FileChangeEvent

	// returns a channel for receiving file watcher errors
	Errors() <-chan error

	// returns true if the watcher is currently monitoring files
	IsWatching() bool
}
