package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingMonitor struct {
	errs    []error
	tags    []map[string]string
	panics  []any
	flushes int
}

func (m *recordingMonitor) CaptureException(err error, tags map[string]string) {
	m.errs = append(m.errs, err)
	m.tags = append(m.tags, tags)
}
func (m *recordingMonitor) CapturePanic(v any)  { m.panics = append(m.panics, v) }
func (m *recordingMonitor) Flush(time.Duration) { m.flushes++ }

func withMonitor(t *testing.T, m Monitor) {
	prev := Current()
	Init(m)
	t.Cleanup(func() { Init(prev) })
}

func TestCaptureException(t *testing.T) {
	m := &recordingMonitor{}
	withMonitor(t, m)

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"algorithm": "llf"})

	assert.Len(t, m.errs, 1)
	assert.Equal(t, "llf", m.tags[0]["algorithm"])
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	m := &recordingMonitor{}
	withMonitor(t, m)

	assert.PanicsWithValue(t, "kaboom", func() {
		defer Recover()
		panic("kaboom")
	})
	assert.Equal(t, []any{"kaboom"}, m.panics)
	assert.Equal(t, 1, m.flushes)
}

func TestInitIgnoresNil(t *testing.T) {
	m := &recordingMonitor{}
	withMonitor(t, m)
	Init(nil)
	assert.Same(t, m, Current())
}
