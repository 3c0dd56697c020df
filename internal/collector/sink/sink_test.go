package sink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
	"github.com/mcronce/hass-event-collector/internal/collector/model"
)

func testPoint() *model.Point {
	return model.NewPoint("sensor", 21.5, time.Unix(1703690906, 287133000)).
		AddTag(model.TagEntityID, "sensor.temp").
		AddTag(model.TagDeviceName, "Living Room Sensor").
		AddTag(model.TagDeviceArea, "Living Room")
}

type fakeInflux struct {
	mu     sync.Mutex
	status int
	bodies []string
	query  []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.URL.Path == "/api/v2/write" {
		f.bodies = append(f.bodies, string(body))
		f.query = append(f.query, r.URL.RawQuery)
	}
	if f.status >= 300 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"code":"internal error","message":"storage unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func TestInfluxSink_Write(t *testing.T) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewInfluxSink(configuration.InfluxDBConfig{URL: srv.URL, Token: "token", Org: "home", Bucket: "hass"})
	defer s.Close()

	require.NoError(t, s.Write(context.Background(), testPoint()))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.bodies, 1)
	line := fake.bodies[0]
	assert.Contains(t, line, "hass:sensor,")
	assert.Contains(t, line, `device.area=Living\ Room`)
	assert.Contains(t, line, "entity.id=sensor.temp")
	assert.Contains(t, line, " value=21.5 1703690906287133000")
	assert.Contains(t, fake.query[0], "bucket=hass")
	assert.Contains(t, fake.query[0], "org=home")
}

func TestInfluxSink_WriteError(t *testing.T) {
	srv := httptest.NewServer(&fakeInflux{status: http.StatusInternalServerError})
	defer srv.Close()

	s := NewInfluxSink(configuration.InfluxDBConfig{URL: srv.URL, Token: "token", Org: "home", Bucket: "hass"})
	defer s.Close()

	assert.Error(t, s.Write(context.Background(), testPoint()))
}

func TestRequestTimeoutSeconds(t *testing.T) {
	tests := map[string]struct {
		timeout  time.Duration
		expected uint
	}{
		"unset":       {timeout: 0, expected: 10},
		"negative":    {timeout: -time.Second, expected: 10},
		"sub-second":  {timeout: 250 * time.Millisecond, expected: 1},
		"whole":       {timeout: 5 * time.Second, expected: 5},
		"fractional":  {timeout: 5*time.Second + time.Millisecond, expected: 6},
		"one nanosec": {timeout: time.Nanosecond, expected: 1},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, requestTimeoutSeconds(tc.timeout))
		})
	}
}

func TestLogSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewLogSink(logger)

	require.NoError(t, s.Write(context.Background(), testPoint()))
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, log.InfoLevel, entry.Level)
	assert.Equal(t, testPoint().String(), entry.Data["point"])
	assert.NoError(t, s.Close())
}
