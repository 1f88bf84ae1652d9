package rules

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Event describes a single field the engine filled or corrected.
type Event struct {
	Level Level
	Tag   tag.Tag
	Name  string
	// Value is the value the engine settled on.
	Value string
	// Reason is empty when the field was simply missing, or explains
	// why a supplied value was replaced.
	Reason string
}

// Observer receives notifications as the engine heals records. Field
// healing is routine during synthesis, so implementations should be
// cheap; they are called from the generation path.
type Observer interface {
	FieldHealed(ev Event)
	UnknownField(key, suggestion string)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) FieldHealed(Event)          {}
func (NopObserver) UnknownField(string, string) {}

// LogObserver writes healing events to a zerolog logger at warn level.
type LogObserver struct {
	log zerolog.Logger
}

// NewLogObserver returns an observer logging through log.
func NewLogObserver(log zerolog.Logger) LogObserver {
	return LogObserver{log: log}
}

func (o LogObserver) FieldHealed(ev Event) {
	e := o.log.Warn().
		Str("level", ev.Level.String()).
		Str("tag", fmt.Sprintf("%04X,%04X", ev.Tag.Group, ev.Tag.Element)).
		Str("field", ev.Name).
		Str("value", ev.Value)
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	e.Msg("generated field value")
}

func (o LogObserver) UnknownField(key, suggestion string) {
	e := o.log.Warn().Str("field", key)
	if suggestion != "" {
		e = e.Str("suggestion", suggestion)
	}
	e.Msg("ignoring unknown field")
}

// Collector records events in memory. Safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	events  []Event
	unknown []UnknownKey
}

// UnknownKey is a user field key the engine could not resolve.
type UnknownKey struct {
	Key        string
	Suggestion string
}

func (c *Collector) FieldHealed(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *Collector) UnknownField(key, suggestion string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unknown = append(c.unknown, UnknownKey{Key: key, Suggestion: suggestion})
}

// Events returns a copy of the healing events recorded so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}

// Unknown returns a copy of the unresolved keys recorded so far.
func (c *Collector) Unknown() []UnknownKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.unknown)
}
