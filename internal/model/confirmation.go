package model

import "time"

type ConfirmStatus string

const (
	StatusCompleted ConfirmStatus = "completed"
	StatusFailed    ConfirmStatus = "failed"
)

// Confirmation is posted back to the origin once per processed command.
type Confirmation struct {
	CommandID string        `json:"commandId"`
	Status    ConfirmStatus `json:"status"`
	Message   string        `json:"message"`
	Timestamp float64       `json:"timestamp"`
}

func NewConfirmation(commandID string, ok bool, message string, at time.Time) Confirmation {
	status := StatusCompleted
	if !ok {
		status = StatusFailed
	}
	return Confirmation{
		CommandID: commandID,
		Status:    status,
		Message:   message,
		Timestamp: float64(at.UnixNano()) / float64(time.Second),
	}
}
