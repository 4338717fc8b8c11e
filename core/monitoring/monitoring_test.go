package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordMonitor struct {
	errs   []error
	tags   map[string]string
	panics []any
	flush  int
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(v any)  { r.panics = append(r.panics, v) }
func (r *recordMonitor) Flush(time.Duration) { r.flush++ }

func install(t *testing.T) *recordMonitor {
	t.Helper()
	m := &recordMonitor{}
	Init(m)
	t.Cleanup(func() { Init(NopMonitor{}) })
	return m
}

func TestCaptureException(t *testing.T) {
	m := install(t)
	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"module": "city"})
	require.Len(t, m.errs, 1)
	assert.Equal(t, "city", m.tags["module"])
}

func TestRecoverRepanics(t *testing.T) {
	m := install(t)
	assert.PanicsWithValue(t, "bad step", func() {
		defer Recover()
		panic("bad step")
	})
	assert.Equal(t, []any{"bad step"}, m.panics)
	assert.Equal(t, 1, m.flush)
}

func TestRecoverError(t *testing.T) {
	m := install(t)
	run := func() (err error) {
		defer RecoverError(&err)
		panic("job")
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job")
	assert.Len(t, m.panics, 1)
}

func TestInitIgnoresNil(t *testing.T) {
	m := install(t)
	Init(nil)
	CaptureException(errors.New("x"), nil)
	assert.Len(t, m.errs, 1)
}
