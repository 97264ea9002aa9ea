package model

type contextKey string

const (
	ContextJobID     contextKey = "jobID"
	ContextAttemptID contextKey = "attemptID"
	ContextSubtype   contextKey = "printSubtype"
)
