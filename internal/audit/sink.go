package audit

import "log/slog"

// SlogSink writes audit events to a structured logger. This is the default
// sink wired in by cmd/arbiter; deployments that need durable storage add
// the sqlite-backed sink alongside it.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink that logs through the given logger.
// A nil logger uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Log writes the entry as a structured log record.
func (s *SlogSink) Log(entry Entry) {
	s.logger.Info("audit",
		"id", entry.ID,
		"kind", string(entry.Kind),
		"timestamp", entry.Timestamp,
		"detail", entry.Detail,
	)
}

// LogCapabilityViolation writes the violation as a structured log record.
func (s *SlogSink) LogCapabilityViolation(detail ViolationDetail) {
	s.logger.Warn("capability violation",
		"capability", detail.Capability,
		"mode", detail.Mode,
		"allowed", detail.Allowed,
		"timestamp", detail.Timestamp,
	)
}

// MultiSink fans every event out to all child sinks in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a fan-out sink. Nil children are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiSink{sinks: kept}
}

// Log forwards the entry to every child sink.
func (m *MultiSink) Log(entry Entry) {
	for _, s := range m.sinks {
		s.Log(entry)
	}
}

// LogCapabilityViolation forwards the violation to every child sink.
func (m *MultiSink) LogCapabilityViolation(detail ViolationDetail) {
	for _, s := range m.sinks {
		s.LogCapabilityViolation(detail)
	}
}
