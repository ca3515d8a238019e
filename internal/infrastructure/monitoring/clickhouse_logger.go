package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ClickHouseLogger batches LogEvents and writes them asynchronously to
// ClickHouse, for durable strand-lifecycle history independent of the
// append-only strand store itself.
type ClickHouseLogger struct {
	db *sql.DB
	tableName string
	batchSize int
	flushInterval time.Duration
	verbose bool
	buffer []*LogEvent
	mu sync.Mutex
	ctx context.Context
	cancel context.CancelFunc
	wg sync.WaitGroup
	closed bool
}

// ClickHouseLoggerConfig configures the ClickHouse logger.
type ClickHouseLoggerConfig struct {
	DB *sql.DB
	TableName string // defaults to "strand_events"
	BatchSize int // defaults to 100
	FlushInterval time.Duration
	Verbose bool
	CreateTable bool
}

// NewClickHouseLogger creates a ClickHouseLogger and starts its background flusher.
func NewClickHouseLogger(config ClickHouseLoggerConfig) (*ClickHouseLogger, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	tableName := config.TableName
	if tableName == "" {
		tableName = "strand_events"
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := config.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := &ClickHouseLogger{
		db: config.DB, tableName: tableName, batchSize: batchSize,
		flushInterval: flushInterval, verbose: config.Verbose,
		buffer: make([]*LogEvent, 0, batchSize), ctx: ctx, cancel: cancel,
	}

	if config.CreateTable {
		if err := logger.createTable(); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	logger.wg.Add(1)
	go logger.backgroundFlusher()
	return logger, nil
}

func (l *ClickHouseLogger) createTable() error {
	query := fmt.Sprintf(`
 CREATE TABLE IF NOT EXISTS %s (
 timestamp DateTime64(3),
 strand_id String,
 kind String,
 braid_level Int32,
 symbol String,
 timeframe String,
 event_type String,
 level String,
 message String,
 phi Float64,
 rho Float64,
 theta_contribution Float64,
 selection Float64,
 duration_ms Int64,
 error_message String,
 metadata String
 ) ENGINE = MergeTree()
 ORDER BY (kind, symbol, timestamp)
 PARTITION BY toYYYYMM(timestamp)
	`, l.tableName)

		_, err := l.db.ExecContext(l.ctx, query)
		return err
	}

	func (l *ClickHouseLogger) backgroundFlusher() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.flushInterval)
		defer ticker.Stop()

		for {
			select {
				case <-l.ctx.Done():
					l.flush()
					return
				case <-ticker.C:
					l.flush()
			}
		}
	}

	// Log implements StrandEventLogger, buffering event for the next flush.
	func (l *ClickHouseLogger) Log(event *LogEvent) {
		if event == nil {
			return
		}
		if event.Level == LevelDebug && !l.verbose {
			return
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			return
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		l.buffer = append(l.buffer, event)
		if len(l.buffer) >= l.batchSize {
			go l.flush()
		}
	}

	func (l *ClickHouseLogger) flush() {
		l.mu.Lock()
		if len(l.buffer) == 0 {
			l.mu.Unlock()
			return
		}
		events := l.buffer
		l.buffer = make([]*LogEvent, 0, l.batchSize)
		l.mu.Unlock()

		if err := l.writeEvents(events); err != nil {
			fmt.Printf("ClickHouseLogger: failed to write events: %v\n", err)
		}
	}

	func (l *ClickHouseLogger) writeEvents(events []*LogEvent) error {
		if len(events) == 0 {
			return nil
		}

		tx, err := l.db.BeginTx(l.ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(l.ctx, fmt.Sprintf(`
 INSERT INTO %s (
 timestamp, strand_id, kind, braid_level, symbol, timeframe,
 event_type, level, message, phi, rho, theta_contribution, selection,
 duration_ms, error_message, metadata
 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.tableName))
				if err != nil {
					return fmt.Errorf("failed to prepare statement: %w", err)
				}
				defer stmt.Close()

				for _, event := range events {
					metadataJSON := "{}"
					if len(event.Metadata) > 0 {
						if metadataBytes, err := json.Marshal(event.Metadata); err == nil {
							metadataJSON = string(metadataBytes)
						}
					}

					_, err := stmt.ExecContext(l.ctx,
						event.Timestamp, event.StrandID, string(event.Kind), event.BraidLevel,
						event.Symbol, event.Timeframe, string(event.Type), string(event.Level),
						event.Message, event.Phi, event.Rho, event.ThetaContribution, event.Selection,
						event.Duration.Milliseconds(), event.ErrorMessage, metadataJSON,
					)
					if err != nil {
						return fmt.Errorf("failed to insert event: %w", err)
					}
				}

				return tx.Commit()
			}

			// Close flushes any remaining events and stops the background flusher.
			func (l *ClickHouseLogger) Close() error {
				l.mu.Lock()
				if l.closed {
					l.mu.Unlock()
					return nil
				}
				l.closed = true
				l.mu.Unlock()

				l.cancel()
				l.wg.Wait()
				return nil
			}

			var _ StrandEventLogger = (*ClickHouseLogger)(nil)
