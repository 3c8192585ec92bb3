package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	coremetrics "github.com/kilianp07/evsim/core/metrics"
)

// Publisher sends a payload to an MQTT topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// runMessage is the JSON body published for each run transition.
type runMessage struct {
	RunID     string             `json:"run_id"`
	Algorithm string             `json:"algorithm"`
	Scenario  string             `json:"scenario"`
	Window    string             `json:"window"`
	Tariff    string             `json:"tariff,omitempty"`
	Revenue   float64            `json:"revenue"`
	Status    string             `json:"status"`
	Duration  float64            `json:"duration_s"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// MQTTSink publishes run transitions to <prefix>/<algorithm>/<status>.
type MQTTSink struct {
	pub    Publisher
	prefix string
}

// NewMQTTSink wraps pub. Trailing slashes in prefix are ignored.
func NewMQTTSink(pub Publisher, prefix string) *MQTTSink {
	return &MQTTSink{pub: pub, prefix: strings.TrimRight(prefix, "/")}
}

// Topic returns the topic a run event is published to.
func (s *MQTTSink) Topic(ev coremetrics.RunEvent) string {
	return fmt.Sprintf("%s/%s/%s", s.prefix, ev.Algorithm, ev.Status)
}

// RecordRun publishes ev as JSON. Non-finite metrics are left out since
// JSON cannot carry them.
func (s *MQTTSink) RecordRun(ev coremetrics.RunEvent) error {
	msg := runMessage{
		RunID:     ev.RunID,
		Algorithm: ev.Algorithm,
		Scenario:  ev.Scenario,
		Window:    ev.Window,
		Tariff:    ev.Tariff,
		Revenue:   ev.Revenue,
		Status:    string(ev.Status),
		Duration:  round3(ev.Duration.Seconds()),
		Error:     ev.Error,
		Timestamp: ev.Time.UTC(),
	}
	if len(ev.Metrics) > 0 {
		msg.Metrics = make(map[string]float64, len(ev.Metrics))
		for k, v := range ev.Metrics {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			msg.Metrics[k] = v
		}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	return s.pub.Publish(s.Topic(ev), payload)
}

// Close disconnects the publisher when it supports it.
func (s *MQTTSink) Close() error {
	if d, ok := s.pub.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	return nil
}
