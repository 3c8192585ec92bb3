package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a point in time decoded from the formats used by session dumps:
// RFC3339 strings, RFC1123 strings as served by the data API, or epoch
// milliseconds as produced by dataframe exports.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses s using the supported layouts.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unsupported timestamp %q", s)
}

// UnmarshalJSON accepts a string or a number of epoch milliseconds. null
// leaves the timestamp zero.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		ts, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*t = ts
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return fmt.Errorf("invalid epoch milliseconds %s", data)
	}
	*t = Timestamp{Time: time.UnixMilli(int64(ms)).UTC()}
	return nil
}

// MarshalJSON writes the timestamp as RFC3339, or null when zero.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UserInput is one entry of the userInputs list: what the driver declared
// when plugging in.
type UserInput struct {
	MinutesAvailable *float64 `json:"minutesAvailable,omitempty"`
	KWhRequested     *float64 `json:"kWhRequested,omitempty"`
	UserID           string   `json:"userID,omitempty"`
	ModifiedAt       string   `json:"modifiedAt,omitempty"`
}

// Intent is the user-declared part of a session used by the user-declared
// estimation mode.
type Intent struct {
	MinutesAvailable float64
	KWhRequested     float64
}

// RawSession is one observed charging session as fetched from the data
// client. It is never modified once decoded.
type RawSession struct {
	ID               string      `json:"_id,omitempty"`
	SessionID        string      `json:"sessionID"`
	SpaceID          string      `json:"spaceID"`
	StationID        string      `json:"stationID,omitempty"`
	SiteID           string      `json:"siteID,omitempty"`
	ClusterID        string      `json:"clusterID,omitempty"`
	UserID           string      `json:"userID,omitempty"`
	ConnectionTime   Timestamp   `json:"connectionTime"`
	DisconnectTime   Timestamp   `json:"disconnectTime"`
	DoneChargingTime Timestamp   `json:"doneChargingTime"`
	KWhDelivered     *float64    `json:"kWhDelivered"`
	Timezone         string      `json:"timezone,omitempty"`
	UserInputs       []UserInput `json:"userInputs"`
}

// Intent returns the first user input when it carries both a duration and an
// energy request.
func (r RawSession) Intent() (Intent, bool) {
	if len(r.UserInputs) == 0 {
		return Intent{}, false
	}
	in := r.UserInputs[0]
	if in.MinutesAvailable == nil || in.KWhRequested == nil {
		return Intent{}, false
	}
	return Intent{MinutesAvailable: *in.MinutesAvailable, KWhRequested: *in.KWhRequested}, true
}

// Window is a named query window. Start and End are calendar dates in the
// site timezone; End is exclusive.
type Window struct {
	Name  string
	Start time.Time
	End   time.Time
}

// NewWindow localizes the dates in loc. Only the calendar date of start and
// end is kept.
func NewWindow(name string, start, end time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
	return Window{Name: name, Start: day(start), End: day(end)}
}

// StartDate returns the start date as YYYY-MM-DD.
func (w Window) StartDate() string { return w.Start.Format(time.DateOnly) }

// EndDate returns the end date as YYYY-MM-DD.
func (w Window) EndDate() string { return w.End.Format(time.DateOnly) }

// Label identifies the window in paths and cache names.
func (w Window) Label() string { return w.StartDate() + "_" + w.EndDate() }

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Validate checks the window bounds.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window %s: start and end are required", w.Name)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("window %s: end %s is not after start %s", w.Name, w.EndDate(), w.StartDate())
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("window %s: name is required", w.Label())
	}
	return nil
}
