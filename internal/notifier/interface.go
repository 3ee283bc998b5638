// Package notifier delivers the status transitions of a run to external
// channels.
package notifier

import (
	"context"

	"github.com/newthinker/perftrack/internal/core"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Event is one signal record a run moved to a new status
type Event struct {
	RunID  string
	From   core.TradeStatus
	Signal core.Signal // record as written back

	// Set for CLOSED transitions only.
	PerfPct float64
	R       float64
}

// Closed reports whether the event froze a trade.
func (e Event) Closed() bool {
	return e.Signal.IsClosed()
}

// Notifier defines the interface for transition notification
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Notify delivers the events of one run in a single message
	Notify(ctx context.Context, events []Event) error
}

// StringParam reads a string parameter.
func (c Config) StringParam(key string) string {
	s, _ := c.Params[key].(string)
	return s
}

// StringMapParam reads a map parameter. Decoded config yields map[string]any
// while code callers pass map[string]string; both are accepted.
func (c Config) StringMapParam(key string) map[string]string {
	switch m := c.Params[key].(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}
