package metrics

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/evsim/core/metrics"
	"github.com/kilianp07/evsim/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving sweep points.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes sweep events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one evsim_run point per transition. Metric fields are
// written in name order; non-finite values are dropped.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("evsim_run").
		AddTag("algorithm", ev.Algorithm).
		AddTag("scenario", ev.Scenario).
		AddTag("window", ev.Window).
		AddTag("status", string(ev.Status))
	if ev.Tariff != "" {
		p = p.AddTag("tariff", ev.Tariff)
	}
	p = p.AddField("run_id", ev.RunID).
		AddField("revenue_rate", ev.Revenue).
		AddField("duration_s", round3(ev.Duration.Seconds()))
	names := make([]string, 0, len(ev.Metrics))
	for k := range ev.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v := ev.Metrics[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		p = p.AddField(k, round3(v))
	}
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.Time))
}

// RecordCacheLookup writes an event cache lookup.
func (s *InfluxSink) RecordCacheLookup(ev coremetrics.CacheEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("evsim_event_cache").
		AddTag("result", string(ev.Result)).
		AddField("key", ev.Key).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBuild writes the counts of one queue build.
func (s *InfluxSink) RecordBuild(ev coremetrics.BuildEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("evsim_queue_build").
		AddTag("window", ev.Window).
		AddTag("scenario", ev.Scenario).
		AddField("converted", ev.Converted).
		AddField("skipped", ev.Skipped).
		AddField("filtered", ev.Filtered).
		AddField("fallbacks", ev.Fallbacks).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
