// Package rules validates and self-heals DICOM field values. Records
// never fail validation: user values that violate a field rule are
// replaced with synthesized defaults, and mandatory fields that are
// missing are filled in, with every substitution reported to an
// Observer.
package rules

import (
	"maps"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/pacslab/dicomsynth/internal/util"
)

// Engine fills and repairs records for one synthesis run. The zero
// value is not usable; construct with NewEngine.
type Engine struct {
	rng *rand.Rand
	obs Observer
	now func() time.Time
}

// NewEngine returns an engine drawing defaults from rng and reporting
// substitutions to obs. A nil rng is seeded from system entropy; a nil
// obs discards events.
func NewEngine(rng *rand.Rand, obs Observer) *Engine {
	if rng == nil {
		rng = util.NewRNG(0)
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &Engine{rng: rng, obs: obs, now: time.Now}
}

// ValidateAndFill applies the user fields that belong to level onto
// rec, then sweeps the level's mandatory fields, replacing anything
// missing or invalid. rec is modified in place.
func (e *Engine) ValidateAndFill(rec Record, level Level, userFields map[string]string) {
	e.applyUserFields(rec, level, userFields)
	e.fillMandatory(rec, level)
}

// applyUserFields copies recognized user fields for level into rec.
// Keys are walked in sorted order so repeated runs behave identically.
func (e *Engine) applyUserFields(rec Record, level Level, userFields map[string]string) {
	for _, key := range slices.Sorted(maps.Keys(userFields)) {
		if IsConvenienceKey(key) {
			continue
		}
		info, err := FieldByKeyword(key)
		if err != nil {
			// Unknown keys are reported once, ahead of record
			// assembly, by the generator.
			continue
		}
		if info.Level != level {
			continue
		}

		value := userFields[key]
		rule, ok := RuleFor(info.Tag)
		if !ok {
			rec[info.Tag] = value
			continue
		}
		if err := rule.Validate(value); err != nil {
			repaired := e.defaultFor(info.Tag, rec)
			rec[info.Tag] = repaired
			e.obs.FieldHealed(Event{
				Level:  level,
				Tag:    info.Tag,
				Name:   info.Name,
				Value:  repaired,
				Reason: "invalid user value",
			})
			continue
		}
		rec[info.Tag] = value
	}
}

// fillMandatory guarantees every mandatory field for level carries a
// valid value after the call.
func (e *Engine) fillMandatory(rec Record, level Level) {
	for _, t := range MandatoryTags(level) {
		rule, _ := RuleFor(t)
		current, present := rec[t]

		if !present || current == "" {
			value := e.defaultFor(t, rec)
			rec[t] = value
			e.obs.FieldHealed(Event{
				Level: level,
				Tag:   t,
				Name:  rule.Name,
				Value: value,
			})
			continue
		}

		if err := rule.Validate(current); err != nil {
			value := e.defaultFor(t, rec)
			rec[t] = value
			e.obs.FieldHealed(Event{
				Level:  level,
				Tag:    t,
				Name:   rule.Name,
				Value:  value,
				Reason: "invalid user value",
			})
		}
	}
}

// ReportUnknownFields resolves every key in userFields and notifies the
// observer about the ones no registry entry matches. Convenience keys
// are exempt. Intended to run once per study, before the per-level
// passes.
func (e *Engine) ReportUnknownFields(userFields map[string]string) {
	for _, key := range slices.Sorted(maps.Keys(userFields)) {
		if IsConvenienceKey(key) {
			continue
		}
		if _, err := FieldByKeyword(key); err != nil {
			e.obs.UnknownField(key, closestKeyword(normalizeKeyword(key)))
		}
	}
}
