package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byuccl/coast/internal/model"
	"github.com/byuccl/coast/internal/telemetry"
)

type fakeProvider struct{ snap Snapshot }

func (f fakeProvider) Snapshot() Snapshot { return f.snap }

func TestHandleStatusReturnsProviderSnapshot(t *testing.T) {
	provider := fakeProvider{snap: Snapshot{State: "GetOutput", InjectionsDone: 3, MaxInjections: 10}}
	srv := NewServer(provider, nil, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "GetOutput", got.State)
	assert.Equal(t, 3, got.InjectionsDone)
}

func TestHandleMetricsServesPrometheusExposition(t *testing.T) {
	metrics := telemetry.NewMetrics()
	metrics.RecordInjection("memory", 0.01, 100)
	srv := NewServer(fakeProvider{}, metrics, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFeedBroadcastsInjectionLog(t *testing.T) {
	srv := NewServer(fakeProvider{}, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/feed"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.hub.Count() > 0 }, time.Second, time.Millisecond)

	log := model.InjectionLog{
		Number:  7,
		Section: "memory",
		Result:  model.NewTimeoutOutcome("12:00:00.000", "Timeout detected", false, 0),
	}
	srv.Broadcast(log)

	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got model.InjectionLog
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, 7, got.Number)
}
