// Package eventcache persists synthesized event queues under a key derived
// from every parameter that shapes them.
package eventcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/kilianp07/evsim/core/model"
	"github.com/kilianp07/evsim/core/synth"
)

const keyVersion = "v1"

// Key identifies a synthesized queue. Two builds with equal keys are
// interchangeable.
type Key struct {
	Site    string
	Start   string
	End     string
	Demand  string
	Options synth.Options
}

// NewKey derives the key for a window and demand scenario. opts should be the
// validated builder options.
func NewKey(site string, w model.Window, demand string, opts synth.Options) Key {
	return Key{Site: site, Start: w.StartDate(), End: w.EndDate(), Demand: demand, Options: opts}
}

// Canonical returns the unambiguous encoding that is hashed into Name and
// stored with the entry.
func (k Key) Canonical() string {
	o := k.Options
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	parts := []string{
		keyVersion,
		"site=" + strconv.Quote(k.Site),
		"start=" + k.Start,
		"end=" + k.End,
		"demand=" + strconv.Quote(k.Demand),
		"mode=" + string(o.Mode),
		"period=" + strconv.Itoa(o.PeriodMinutes),
		"voltage=" + f(o.Voltage),
		"max_power=" + f(o.MaxBatteryPower),
		"ideal=" + strconv.FormatBool(o.IdealBattery),
		"feasible=" + strconv.FormatBool(o.ForceFeasible),
		"max_len=" + strconv.FormatInt(o.MaxLen, 10),
		"require_intent=" + strconv.FormatBool(o.RequireIntent),
	}
	return strings.Join(parts, "|")
}

// Hash returns the first 16 hex digits of the canonical form's SHA-256.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(k.Canonical()))
	return hex.EncodeToString(sum[:])[:16]
}

// Name is the storage name: readable prefix plus hash.
func (k Key) Name() string {
	return k.Start + "_" + k.End + "_" + sanitize(k.Demand) + "_" + k.Hash()
}

func (k Key) String() string { return k.Name() }

func sanitize(s string) string {
	if s == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
