package monitoring

import (
	"time"

	"github.com/smilemakc/cil/internal/domain"
)

// EventType represents the kind of strand-lifecycle event being logged.
type EventType string

const (
	EventStrandAppended EventType = "strand_appended"
	EventStrandUpdated EventType = "strand_updated"
	EventResonanceSwept EventType = "resonance_swept"
	EventClusterSwept EventType = "cluster_swept"
	EventBackpressure EventType = "backpressure_engaged"
	EventLLMDegraded EventType = "llm_degraded"
	EventBoundExceeded EventType = "bound_exceeded"
	EventInfo EventType = "info"
	EventError EventType = "error"
)

// LogLevel represents the severity of a log event.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError LogLevel = "error"
)

// LogEvent is a single structured record of something that happened to a
// strand or to a CIL subsystem, carrying enough of the strand's
// classification fields to be filtered/aggregated without a store lookup.
type LogEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type EventType `json:"type"`
	Level LogLevel `json:"level"`
	Message string `json:"message"`

	StrandID string `json:"strand_id,omitempty"`
	Kind domain.Kind `json:"kind,omitempty"`
	BraidLevel int `json:"braid_level,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	Tags []string `json:"tags,omitempty"`

	Phi float64 `json:"phi,omitempty"`
	Rho float64 `json:"rho,omitempty"`
	ThetaContribution float64 `json:"theta_contribution,omitempty"`
	Selection float64 `json:"selection,omitempty"`

	Duration time.Duration `json:"duration,omitempty"`

	Error error `json:"-"`
	ErrorMessage string `json:"error_message,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

func fromStrand(t EventType, level LogLevel, message string, s *domain.Strand) *LogEvent {
	scores := s.Scores()
	resonance := s.ResonanceState()
	return &LogEvent{
		Timestamp: time.Now(),
		Type: t,
		Level: level,
		Message: message,
		StrandID: s.ID().String(),
		Kind: s.Kind(),
		BraidLevel: s.BraidLevel(),
		Symbol: s.Symbol(),
		Timeframe: s.Timeframe(),
		Tags: s.Tags(),
		Phi: resonance.Phi,
		Rho: resonance.Rho,
		ThetaContribution: resonance.ThetaContribution,
		Selection: scores.Selection,
	}
}

// NewStrandAppendedEvent builds the event logged when C1 appends a new strand.
func NewStrandAppendedEvent(s *domain.Strand) *LogEvent {
	return fromStrand(EventStrandAppended, LevelInfo, "strand appended", s)
}

// NewStrandUpdatedEvent builds the event logged when C1's mutable subset changes.
func NewStrandUpdatedEvent(s *domain.Strand) *LogEvent {
	return fromStrand(EventStrandUpdated, LevelInfo, "strand updated", s)
}

// NewResonanceSweepEvent builds the event logged after a telemetry/resonance pass.
func NewResonanceSweepEvent(examined int, duration time.Duration) *LogEvent {
	return &LogEvent{
		Timestamp: time.Now(), Type: EventResonanceSwept, Level: LevelInfo,
		Message: "resonance sweep completed", Duration: duration,
		Metadata: map[string]any{"examined": examined},
	}
}

// NewClusterSweepEvent builds the event logged after a C6 cluster-assembly pass.
func NewClusterSweepEvent(assembled int, duration time.Duration) *LogEvent {
	return &LogEvent{
		Timestamp: time.Now(), Type: EventClusterSwept, Level: LevelInfo,
		Message: "cluster sweep completed", Duration: duration,
		Metadata: map[string]any{"assembled": assembled},
	}
}

// NewBackpressureEvent builds the event logged when the load-shedding
// rules raise min_braid_size or force the LLM path off.
func NewBackpressureEvent(reason string, errorRate float64) *LogEvent {
	return &LogEvent{
		Timestamp: time.Now(), Type: EventBackpressure, Level: LevelWarning,
		Message: reason, Metadata: map[string]any{"error_rate": errorRate},
	}
}

// NewBoundExceededEvent builds the event logged when a resonance clamp
// actually fires.
func NewBoundExceededEvent(s *domain.Strand, field string) *LogEvent {
	event := fromStrand(EventBoundExceeded, LevelWarning, "resonance bound exceeded: "+field, s)
	return event
}

// NewErrorEvent builds a general-purpose error event not tied to a strand.
func NewErrorEvent(message string, err error) *LogEvent {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return &LogEvent{
		Timestamp: time.Now(), Type: EventError, Level: LevelError,
		Message: message, Error: err, ErrorMessage: errMsg,
	}
}
