package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"kvstress/internal/corpus"
	"kvstress/internal/events"
	"kvstress/internal/logger"
	"kvstress/internal/scenario"
	"kvstress/internal/store"
)

func newTestServer(t *testing.T, total time.Duration) (*Server, *httptest.Server) {
	t.Helper()

	c, err := corpus.Synthetic(10, 40, 1)
	require.NoError(t, err)

	base := scenario.DefaultConfig()
	base.Name = "api-test"
	base.KeyCount = 50
	base.HitPercent = 50
	base.Readers = 1
	base.Writers = 1
	base.TotalDuration = total
	base.HeartbeatInterval = 50 * time.Millisecond

	s := NewServer("127.0.0.1:0", Options{
		Base:   base,
		Store:  store.DefaultConfig(),
		Corpus: c,
		Logger: logger.New(io.Discard, logger.LevelInfo),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func post(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func waitIdle(t *testing.T, ts *httptest.Server) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var st StatusResponse
		if getJSON(t, ts.URL+"/api/status", &st) == http.StatusOK && !st.Running {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("run did not finish")
}

func TestStatusIdle(t *testing.T) {
	_, ts := newTestServer(t, 0)

	var st StatusResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/status", &st))
	assert.False(t, st.Running)
	assert.Equal(t, store.BackendMemory, st.Backend)
	assert.Empty(t, st.Phase)
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, 0)

	assert.Equal(t, http.StatusMethodNotAllowed, post(t, ts.URL+"/api/status", "{}"))
	assert.Equal(t, http.StatusMethodNotAllowed, getJSON(t, ts.URL+"/api/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, getJSON(t, ts.URL+"/api/run/stop", nil))
}

func TestPresets(t *testing.T) {
	_, ts := newTestServer(t, 0)

	var presets []PresetInfo
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/presets", &presets))
	require.Len(t, presets, len(scenario.ListPresets()))
	assert.Equal(t, "quick", presets[0].Name)
	assert.NotEmpty(t, presets[0].Description)
}

func TestRunBadRequests(t *testing.T) {
	_, ts := newTestServer(t, 0)

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/run", "not json"))
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/run", `{"preset":"nope"}`))
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/run", `{"duration":"soon"}`))
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/run/stop", ""))
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/result", nil))
}

func TestRunStreamsEvents(t *testing.T) {
	s, ts := newTestServer(t, 0)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, err := websocket.Dial(wsURL, "", ts.URL)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/run", `{"readers":2,"writers":2}`))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(10*time.Second)))
	seenPhase, complete := false, false
	for !seenPhase || !complete {
		var msg string
		require.NoError(t, websocket.Message.Receive(ws, &msg))

		var envelope struct {
			Type   string          `json:"type"`
			Event  json.RawMessage `json:"event"`
			Result ResultResponse  `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg), &envelope))

		switch envelope.Type {
		case "event":
			if strings.Contains(string(envelope.Event), `"phase_start"`) {
				seenPhase = true
			}
		case "run_complete":
			assert.True(t, envelope.Result.OK, envelope.Result.Error)
			complete = true
		}
	}

	waitIdle(t, ts)

	var result ResultResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/result", &result))
	assert.True(t, result.OK)
	assert.Equal(t, "api-test", result.ScenarioName)
	assert.Len(t, result.Phases, 5)
	require.Len(t, result.Validations, 3)
	assert.Equal(t, 50, result.Validations[0].Checked)
	assert.Contains(t, result.Report, "RUN REPORT")

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "kvstress_validated_keys_total 150")
}

func TestRunConflictAndStop(t *testing.T) {
	_, ts := newTestServer(t, 30*time.Second)

	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/run", `{}`))
	assert.Equal(t, http.StatusConflict, post(t, ts.URL+"/api/run", `{}`))

	var st StatusResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/status", &st))
	assert.True(t, st.Running)
	assert.Equal(t, "api-test", st.ScenarioName)
	assert.Equal(t, 25, st.HitKeyCount)

	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/run/stop", ""))
	waitIdle(t, ts)

	var result ResultResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/result", &result))
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "context canceled")
	assert.NotEmpty(t, result.FailedPhase)
}

func TestWebSocketTypeFilter(t *testing.T) {
	s, ts := newTestServer(t, 0)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?types=phase_complete"
	ws, err := websocket.Dial(wsURL, "", ts.URL)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/run", `{"readers":1,"writers":1}`))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(10*time.Second)))
	completed, done := 0, false
	for completed == 0 || !done {
		var envelope struct {
			Type  string `json:"type"`
			Event struct {
				Type string `json:"type"`
			} `json:"event"`
		}
		require.NoError(t, websocket.JSON.Receive(ws, &envelope))

		switch envelope.Type {
		case "event":
			assert.Equal(t, "phase_complete", envelope.Event.Type)
			completed++
		case "run_complete":
			done = true
		}
	}

	waitIdle(t, ts)
}

func TestParseEventTypes(t *testing.T) {
	assert.Nil(t, parseEventTypes(""))
	assert.Equal(t,
		[]events.EventType{events.EventPhaseStart, events.EventMismatch},
		parseEventTypes(" phase_start, ,mismatch"))
}
