package core

import (
	"time"

	"go.uber.org/zap"
)

// Outcomes reported to a Recorder.
const (
	OutcomePosted   = "posted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Recorder receives operational counters from the services. The metrics package
// provides the Prometheus implementation.
type Recorder interface {
	EntryPosted(source SourceType, outcome string)
	EntryReversed(outcome string)
	MovementRecorded(t MovementType, reason Reason, outcome string)
	ReportServed(report string, d time.Duration)
	IntegrityViolation(check string)
}

type nopRecorder struct{}

func (nopRecorder) EntryPosted(SourceType, string)                {}
func (nopRecorder) EntryReversed(string)                          {}
func (nopRecorder) MovementRecorded(MovementType, Reason, string) {}
func (nopRecorder) ReportServed(string, time.Duration)            {}
func (nopRecorder) IntegrityViolation(string)                     {}

// NopRecorder discards everything.
func NopRecorder() Recorder { return nopRecorder{} }

func orNop(logger *zap.Logger, rec Recorder) (*zap.Logger, Recorder) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return logger, rec
}

// outcomeOf classifies an error for metrics: validation rejections versus failures.
func outcomeOf(err error) string {
	if err == nil {
		return OutcomePosted
	}
	if e, ok := AsError(err); ok && e.Code != CodeIntegrityViolation {
		return OutcomeRejected
	}
	return OutcomeFailed
}
