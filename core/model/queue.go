package model

import "sort"

// EventPlugin is the only event type produced by the synthesis pipeline.
const EventPlugin = "plugin"

// PluginEvent announces the arrival of one vehicle.
type PluginEvent struct {
	Timestamp int64           `json:"timestamp"`
	Type      string          `json:"type"`
	Session   ChargingSession `json:"session"`
}

// EventQueue is an ordered list of plugin events handed to the simulator.
type EventQueue struct {
	Events []PluginEvent `json:"events"`
}

// NewEventQueue creates one plugin event per session at its arrival and
// orders them by arrival. Sessions with the same arrival keep their input
// order.
func NewEventQueue(sessions []ChargingSession) *EventQueue {
	events := make([]PluginEvent, len(sessions))
	for i, s := range sessions {
		events[i] = PluginEvent{Timestamp: s.Arrival, Type: EventPlugin, Session: s}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
	return &EventQueue{Events: events}
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Events)
}

// Sessions returns a copy of the queued sessions in queue order.
func (q *EventQueue) Sessions() []ChargingSession {
	if q == nil {
		return nil
	}
	out := make([]ChargingSession, len(q.Events))
	for i, e := range q.Events {
		out[i] = e.Session
	}
	return out
}
