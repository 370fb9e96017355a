package model

import "time"

type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a transient, user-visible message raised by a user-initiated action
type Notification struct {
	Level       NotificationLevel `json:"level"`
	Module      Module            `json:"module"`
	RequestType RequestType       `json:"requestType,omitempty"`
	Username    string            `json:"username"`
	Message     string            `json:"message"`
	Timestamp   time.Time         `json:"timestamp"`
}

// RequestDialog is the state of the request-access dialog of a module
type RequestDialog struct {
	Module      Module      `json:"module"`
	RequestType RequestType `json:"requestType"`
	Remarks     string      `json:"remarks"`
	Open        bool        `json:"open"`
	Submitting  bool        `json:"submitting"`
}
