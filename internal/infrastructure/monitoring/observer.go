package monitoring

import (
	"sync"

	"github.com/smilemakc/cil/internal/domain"
	"github.com/smilemakc/cil/internal/infrastructure/websocket"
)

// StrandObserverManager fans out strand-lifecycle notifications to any
// number of websocket.StrandObserver implementations (loggers, the
// websocket feed's SocketObserver, metrics collectors). It implements
// websocket.StrandObserver itself so it can be composed with
// websocket.NewObservingStore the same way any single observer would be.
type StrandObserverManager struct {
	observers []websocket.StrandObserver
	mu sync.RWMutex
}

// NewStrandObserverManager creates a manager with no observers attached.
func NewStrandObserverManager() *StrandObserverManager {
	return &StrandObserverManager{}
}

// AddObserver registers an observer to receive future notifications.
func (m *StrandObserverManager) AddObserver(observer websocket.StrandObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, observer)
}

// RemoveObserver unregisters an observer.
func (m *StrandObserverManager) RemoveObserver(observer websocket.StrandObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.observers {
		if o == observer {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

// OnStrandAppended notifies every registered observer.
func (m *StrandObserverManager) OnStrandAppended(s *domain.Strand) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.observers {
		o.OnStrandAppended(s)
	}
}

// OnStrandUpdated notifies every registered observer.
func (m *StrandObserverManager) OnStrandUpdated(s *domain.Strand) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.observers {
		o.OnStrandUpdated(s)
	}
}

// LoggingObserver adapts any StrandEventLogger (console, ClickHouse, HTTP
// callback) into a websocket.StrandObserver, and additionally records
// appended/updated strands into a MetricsCollector when one is attached.
type LoggingObserver struct {
	logger StrandEventLogger
	metrics *MetricsCollector
}

// NewLoggingObserver builds a LoggingObserver. metrics may be nil to skip
// metrics recording.
func NewLoggingObserver(logger StrandEventLogger, metrics *MetricsCollector) *LoggingObserver {
	return &LoggingObserver{logger: logger, metrics: metrics}
}

// OnStrandAppended implements websocket.StrandObserver.
func (lo *LoggingObserver) OnStrandAppended(s *domain.Strand) {
	if lo.logger != nil {
		lo.logger.Log(NewStrandAppendedEvent(s))
	}
	if lo.metrics != nil {
		lo.metrics.RecordStrand(s)
	}
}

// OnStrandUpdated implements websocket.StrandObserver.
func (lo *LoggingObserver) OnStrandUpdated(s *domain.Strand) {
	if lo.logger != nil {
		lo.logger.Log(NewStrandUpdatedEvent(s))
	}
	if lo.metrics != nil {
		lo.metrics.RecordStrand(s)
	}
}
