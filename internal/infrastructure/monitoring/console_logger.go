package monitoring

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// ConsoleLogger formats LogEvents as zerolog structured lines, for local
// operation and development.
type ConsoleLogger struct {
	verbose bool
	logger zerolog.Logger
	mu sync.Mutex
}

// ConsoleLoggerConfig configures the console logger.
type ConsoleLoggerConfig struct {
	// Verbose enables logging of LevelDebug events.
	Verbose bool
	// Writer is the destination for log output (defaults to os.Stdout).
	Writer io.Writer
}

// NewConsoleLogger creates a ConsoleLogger from config.
func NewConsoleLogger(config ConsoleLoggerConfig) *ConsoleLogger {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	return &ConsoleLogger{
		verbose: config.Verbose,
		logger: zerolog.New(writer).With().Timestamp().Logger(),
	}
}

// NewDefaultConsoleLogger creates a ConsoleLogger writing to stdout, non-verbose.
func NewDefaultConsoleLogger() *ConsoleLogger {
	return NewConsoleLogger(ConsoleLoggerConfig{Writer: os.Stdout})
}

// Log implements StrandEventLogger.
func (l *ConsoleLogger) Log(event *LogEvent) {
	if event == nil {
		return
	}
	if event.Level == LevelDebug && !l.verbose {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var zl *zerolog.Event
	switch event.Level {
		case LevelError:
			zl = l.logger.Error()
		case LevelWarning:
			zl = l.logger.Warn()
		case LevelDebug:
			zl = l.logger.Debug()
		default:
			zl = l.logger.Info()
	}

	zl = zl.Str("type", string(event.Type))
	if event.StrandID != "" {
		zl = zl.Str("strand_id", event.StrandID).
		Str("kind", string(event.Kind)).
		Int("braid_level", event.BraidLevel).
		Str("symbol", event.Symbol).
		Str("timeframe", event.Timeframe).
		Strs("tags", event.Tags).
		Float64("phi", event.Phi).
		Float64("rho", event.Rho).
		Float64("selection", event.Selection)
	}
	if event.Duration > 0 {
		zl = zl.Dur("duration", event.Duration)
	}
	if event.ErrorMessage != "" {
		zl = zl.Str("error", event.ErrorMessage)
	}
	for k, v := range event.Metadata {
		zl = zl.Interface(k, v)
	}
	zl.Msg(event.Message)
}

// SetVerbose enables or disables debug-level logging.
func (l *ConsoleLogger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

var _ StrandEventLogger = (*ConsoleLogger)(nil)
