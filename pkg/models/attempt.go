package models

import "time"

// AttemptOutcome classifies the result of a single provider attempt.
type AttemptOutcome string

const (
	OutcomeSuccess         AttemptOutcome = "success"
	OutcomeTransportError  AttemptOutcome = "transport_error"
	OutcomeValidationError AttemptOutcome = "validation_error"
)

// AttemptRecord describes one provider attempt. It is not persisted.
type AttemptRecord struct {
	Index    int            `json:"index"`
	Endpoint string         `json:"endpoint"`
	Outcome  AttemptOutcome `json:"outcome"`
	Reason   string         `json:"reason,omitempty"`
	Latency  time.Duration  `json:"latency"`
}
