package cil

import "github.com/smilemakc/cil/internal/infrastructure/monitoring"

// EventType and LogEvent describe a single structured strand-lifecycle or
// subsystem event as logged by a StrandEventLogger.
type (
	EventType = monitoring.EventType
	LogEvent = monitoring.LogEvent
)

// LogLevel is the severity of a LogEvent.
type LogLevel = monitoring.LogLevel

// Log level constants.
const (
	LevelDebug = monitoring.LevelDebug
	LevelInfo = monitoring.LevelInfo
	LevelWarning = monitoring.LevelWarning
	LevelError = monitoring.LevelError
)

// Event type constants.
const (
	EventStrandAppended = monitoring.EventStrandAppended
	EventStrandUpdated = monitoring.EventStrandUpdated
	EventResonanceSwept = monitoring.EventResonanceSwept
	EventClusterSwept = monitoring.EventClusterSwept
	EventBackpressure = monitoring.EventBackpressure
	EventLLMDegraded = monitoring.EventLLMDegraded
	EventBoundExceeded = monitoring.EventBoundExceeded
	EventInfo = monitoring.EventInfo
	EventError = monitoring.EventError
)

// ConsoleLogger renders LogEvents as structured zerolog lines.
type ConsoleLogger = monitoring.ConsoleLogger

// ConsoleLoggerConfig configures a ConsoleLogger.
type ConsoleLoggerConfig = monitoring.ConsoleLoggerConfig

// NewConsoleLogger builds a ConsoleLogger from cfg.
func NewConsoleLogger(cfg ConsoleLoggerConfig) *ConsoleLogger {
	return monitoring.NewConsoleLogger(cfg)
}

// NewDefaultConsoleLogger builds a ConsoleLogger with sensible defaults.
func NewDefaultConsoleLogger() *ConsoleLogger {
	return monitoring.NewDefaultConsoleLogger()
}

// ClickHouseLogger ships LogEvents to a ClickHouse table for long-term,
// queryable storage.
type ClickHouseLogger = monitoring.ClickHouseLogger

// ClickHouseLoggerConfig configures a ClickHouseLogger.
type ClickHouseLoggerConfig = monitoring.ClickHouseLoggerConfig

// NewClickHouseLogger builds a ClickHouseLogger from cfg.
func NewClickHouseLogger(cfg ClickHouseLoggerConfig) (*ClickHouseLogger, error) {
	return monitoring.NewClickHouseLogger(cfg)
}
