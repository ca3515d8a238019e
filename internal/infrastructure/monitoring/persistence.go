package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SaveMetricsToFile saves a metrics snapshot to a JSON file, creating the
// parent directory if it doesn't exist.
func SaveMetricsToFile(snapshot *MetricsSnapshot, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", " ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// LoadMetricsFromFile loads a metrics snapshot from a JSON file.
func LoadMetricsFromFile(filePath string) (*MetricsSnapshot, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var snapshot MetricsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	return &snapshot, nil
}

// SaveMetricsToFileWithTimestamp saves metrics to a file with a timestamp in
// the filename. Returns the actual filepath used.
func SaveMetricsToFileWithTimestamp(snapshot *MetricsSnapshot, directory, prefix string) (string, error) {
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("%s-%s.json", prefix, timestamp)
	filePath := filepath.Join(directory, filename)

	if err := SaveMetricsToFile(snapshot, filePath); err != nil {
		return "", err
	}
	return filePath, nil
}

// SaveLineageTraceToFile saves a lineage trace to a JSON file.
func SaveLineageTraceToFile(trace *LineageTrace, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(trace, "", " ")
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// LoadLineageTraceFromFile loads a lineage trace from a JSON file.
func LoadLineageTraceFromFile(filePath string) (*LineageTrace, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var trace LineageTrace
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}
	return &trace, nil
}

// SaveLineageTraceToFileWithTimestamp saves a lineage trace with a timestamp
// in the filename. Returns the actual filepath used.
func SaveLineageTraceToFileWithTimestamp(trace *LineageTrace, directory string) (string, error) {
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("lineage-%s-%s.json", trace.RootID, timestamp)
	filePath := filepath.Join(directory, filename)

	if err := SaveLineageTraceToFile(trace, filePath); err != nil {
		return "", err
	}
	return filePath, nil
}

// MetricsPersistence periodically snapshots a MetricsCollector to disk.
type MetricsPersistence struct {
	collector *MetricsCollector
	directory string
	saveInterval time.Duration
	stopChan chan struct{}
	filePrefix string
}

// NewMetricsPersistence creates a metrics persistence manager.
func NewMetricsPersistence(collector *MetricsCollector, directory string, saveInterval time.Duration) *MetricsPersistence {
	return &MetricsPersistence{
		collector: collector,
		directory: directory,
		saveInterval: saveInterval,
		stopChan: make(chan struct{}),
		filePrefix: "metrics",
	}
}

// SetFilePrefix sets the prefix for saved metric files.
func (mp *MetricsPersistence) SetFilePrefix(prefix string) {
	mp.filePrefix = prefix
}

// Start begins periodic saving of metrics until Stop is called.
func (mp *MetricsPersistence) Start() {
	ticker := time.NewTicker(mp.saveInterval)
	go func() {
		for {
			select {
				case <-ticker.C:
					snapshot := mp.collector.Snapshot()
					_, _ = SaveMetricsToFileWithTimestamp(snapshot, mp.directory, mp.filePrefix)
				case <-mp.stopChan:
					ticker.Stop()
					return
			}
		}
	}()
}

// Stop stops the periodic saving.
func (mp *MetricsPersistence) Stop() {
	close(mp.stopChan)
}

// SaveNow immediately saves the current metrics.
func (mp *MetricsPersistence) SaveNow() (string, error) {
	snapshot := mp.collector.Snapshot()
	return SaveMetricsToFileWithTimestamp(snapshot, mp.directory, mp.filePrefix)
}
