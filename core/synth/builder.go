package synth

import (
	"errors"

	"github.com/kilianp07/evsim/core/logger"
	"github.com/kilianp07/evsim/core/model"
)

// Skip records a session left out of the queue.
type Skip struct {
	SessionID string
	Err       error
}

// Report summarizes one Build call.
type Report struct {
	Converted int
	// Filtered counts sessions dropped by RequireIntent.
	Filtered int
	Skipped  []Skip
	// Fallbacks counts sessions that received the ideal battery because the
	// two-stage derivation failed.
	Fallbacks int
}

// SkippedBy counts skips caused by target.
func (r Report) SkippedBy(target error) int {
	n := 0
	for _, s := range r.Skipped {
		if errors.Is(s.Err, target) {
			n++
		}
	}
	return n
}

// Builder converts batches of raw sessions into event queues.
type Builder struct {
	opts Options
	log  logger.Logger
}

// NewBuilder validates opts and returns a Builder. Defaults are applied to
// zero fields first.
func NewBuilder(opts Options, log logger.Logger) (*Builder, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Builder{opts: opts, log: log}, nil
}

// Options returns the validated options.
func (b *Builder) Options() Options { return b.opts }

// Build converts every record of the window. Records that fail conversion are
// logged and skipped; they never abort the batch. The output only depends on
// records, window and options.
func (b *Builder) Build(records []model.RawSession, window model.Window) (*model.EventQueue, Report) {
	var rep Report
	offset := WindowOffset(window.Start, b.opts.PeriodMinutes)
	params := b.opts.Params()
	sessions := make([]model.ChargingSession, 0, len(records))
	for _, rec := range records {
		if b.opts.RequireIntent {
			if _, ok := rec.Intent(); !ok {
				rep.Filtered++
				continue
			}
		}
		conv, err := Convert(rec, b.opts.Mode, offset, params)
		if err != nil {
			b.log.Warnw("skipping session", map[string]any{
				"session_id": rec.SessionID,
				"window":     window.Label(),
				"error":      err.Error(),
			})
			rep.Skipped = append(rep.Skipped, Skip{SessionID: rec.SessionID, Err: err})
			continue
		}
		if conv.BatteryFallback != nil {
			fields := map[string]any{"session_id": rec.SessionID, "window": window.Label()}
			var de interface{ Fields() map[string]any }
			if errors.As(conv.BatteryFallback, &de) {
				for k, v := range de.Fields() {
					fields[k] = v
				}
			}
			b.log.Warnw("capacity derivation failed, using ideal battery", fields)
			rep.Fallbacks++
		}
		sessions = append(sessions, conv.Session)
	}
	rep.Converted = len(sessions)
	b.log.Debugw("event queue built", map[string]any{
		"window":    window.Label(),
		"converted": rep.Converted,
		"skipped":   len(rep.Skipped),
		"filtered":  rep.Filtered,
		"fallbacks": rep.Fallbacks,
	})
	return model.NewEventQueue(sessions), rep
}
