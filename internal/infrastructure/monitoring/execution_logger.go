package monitoring

// StrandEventLogger logs a single structured LogEvent. Implementations log to
// console, ClickHouse, or an HTTP callback.
type StrandEventLogger interface {
	Log(event *LogEvent)
}
