package cil

import "github.com/smilemakc/cil/internal/infrastructure/monitoring"

// HTTPCallbackObserver posts strand-lifecycle events to an HTTP callback
// URL as they happen, one POST per event.
type HTTPCallbackObserver = monitoring.HTTPCallbackObserver

// HTTPCallbackObserverConfig holds configuration for HTTPCallbackObserver.
type HTTPCallbackObserverConfig = monitoring.HTTPCallbackObserverConfig

// NewHTTPCallbackObserver builds an HTTPCallbackObserver from config.
func NewHTTPCallbackObserver(config HTTPCallbackObserverConfig) (*HTTPCallbackObserver, error) {
	return monitoring.NewHTTPCallbackObserver(config)
}
