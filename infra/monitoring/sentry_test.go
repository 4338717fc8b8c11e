package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evgrid/config"
	coremon "github.com/kilianp07/evgrid/core/monitoring"
)

func TestNewSentryMonitor_NoDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestSentryMonitor_CapturesWithTags(t *testing.T) {
	var mu sync.Mutex
	var got []*sentry.Event
	m, err := newSentryMonitor(config.SentryConfig{DSN: "https://public@example.com/1", Environment: "test"},
		func(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
			return nil
		})
	require.NoError(t, err)

	m.CaptureException(errors.New("step failed"), map[string]string{"module": "city"})
	m.CaptureException(nil, nil)
	m.CapturePanic("boom")
	m.Flush(time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "city", got[0].Tags["module"])
	assert.Equal(t, "test", got[0].Environment)
	assert.Equal(t, "evgrid", got[1].Tags["service"])
	assert.Empty(t, got[1].Tags["module"])
}
