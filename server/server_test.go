package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meetmesh/agent"
	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/engine"
	"github.com/hupe1980/meetmesh/protocol"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	e := engine.New(func(o *engine.Options) {
		o.AgentOptions = []func(o *agent.ModelAgentOptions){func(o *agent.ModelAgentOptions) { o.Retry = agent.RetryPolicy{} }}
	})
	s := New(e, func(o *Options) { o.GinMode = gin.TestMode })
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, e
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func streamBody(participants ...map[string]any) map[string]any {
	return map[string]any{
		"topic":        "办公室搬迁",
		"mode":         "swot",
		"participants": participants,
	}
}

func TestStream_FullMeeting(t *testing.T) {
	ts, e := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/meetings/stream", streamBody(
		map[string]any{"name": "a", "role": "行政"},
		map[string]any{"name": "b", "role": "财务"},
	))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	id := resp.Header.Get("X-Meeting-ID")
	require.NotEmpty(t, id)

	chunks, done, err := protocol.ReadChunks(resp.Body)
	require.NoError(t, err)
	require.True(t, done)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	assert.Equal(t, "meetmesh-swot", chunks[0].Model)
	assert.Equal(t, "stop", chunks[len(chunks)-1].FinishReason())
	assert.Contains(t, protocol.Content(chunks), "## 第 4 轮讨论")

	snap, err := e.Get(id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusEnded, snap.Status)
	assert.Len(t, core.Turns(snap.History), 8)

	res, err := http.Get(ts.URL + "/v1/transcripts?q=搬迁")
	require.NoError(t, err)
	defer res.Body.Close()
	var found struct {
		Transcripts []core.Transcript `json:"transcripts"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&found))
	require.Len(t, found.Transcripts, 1)
	assert.Equal(t, id, found.Transcripts[0].ID)

	res2, err := http.Get(ts.URL + "/v1/transcripts/" + id)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusOK, res2.StatusCode)
}

func TestStream_HumanRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	body := streamBody(map[string]any{"name": "a"}, map[string]any{"name": "王五", "human": true})
	body["mode"] = "discussion"
	body["max_rounds"] = 1
	body["meeting_id"] = "m-human"

	resp := postJSON(t, ts.URL+"/v1/meetings/stream", body)
	chunks, done, err := protocol.ReadChunks(resp.Body)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, core.FinishReasonWaitingHuman, chunks[len(chunks)-1].FinishReason())
	assert.NotContains(t, protocol.Content(chunks), "\x00")

	res := postJSON(t, ts.URL+"/v1/meetings/m-human/human-input", map[string]any{"participant": "王五", "message": "同意"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var sub engine.SubmitResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&sub))
	assert.True(t, sub.Success)
	assert.Equal(t, "m-human", sub.MeetingID)

	resp = postJSON(t, ts.URL+"/v1/meetings/stream", map[string]any{"meeting_id": "m-human"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chunks, _, err = protocol.ReadChunks(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "stop", chunks[len(chunks)-1].FinishReason())

	snap, err := http.Get(ts.URL + "/v1/meetings/m-human")
	require.NoError(t, err)
	defer snap.Body.Close()
	var got core.MeetingSnapshot
	require.NoError(t, json.NewDecoder(snap.Body).Decode(&got))
	assert.Equal(t, core.StatusEnded, got.Status)
	assert.Equal(t, "同意", core.Turns(got.History)[1].Content)

	res = postJSON(t, ts.URL+"/v1/meetings/m-human/human-input", map[string]any{"participant": "王五", "message": "再说一句"})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	ts, e := newTestServer(t)
	m, err := e.Create(t.Context(), engine.MeetingSpec{
		Topic: "t", Mode: "debate",
		Participants: []engine.ParticipantSpec{{Name: "a"}, {Name: "h", Human: true}},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		do     func() *http.Response
		status int
	}{
		{"unknown meeting snapshot", func() *http.Response {
			r, err := http.Get(ts.URL + "/v1/meetings/nope")
			require.NoError(t, err)
			return r
		}, http.StatusNotFound},
		{"unknown meeting input", func() *http.Response {
			return postJSON(t, ts.URL+"/v1/meetings/nope/human-input", map[string]any{"participant": "h", "message": "x"})
		}, http.StatusNotFound},
		{"unknown participant", func() *http.Response {
			return postJSON(t, ts.URL+"/v1/meetings/"+m.ID()+"/human-input", map[string]any{"participant": "zz", "message": "x"})
		}, http.StatusNotFound},
		{"missing message", func() *http.Response {
			return postJSON(t, ts.URL+"/v1/meetings/"+m.ID()+"/human-input", map[string]any{"participant": "h"})
		}, http.StatusBadRequest},
		{"unknown mode", func() *http.Response {
			return postJSON(t, ts.URL+"/v1/meetings/stream", map[string]any{"topic": "t", "mode": "chess", "participants": []map[string]any{{"name": "a"}}})
		}, http.StatusBadRequest},
		{"malformed body", func() *http.Response {
			r, err := http.Post(ts.URL+"/v1/meetings/stream", "application/json", strings.NewReader("{"))
			require.NoError(t, err)
			return r
		}, http.StatusBadRequest},
		{"unknown transcript", func() *http.Response {
			r, err := http.Get(ts.URL + "/v1/transcripts/nope")
			require.NoError(t, err)
			return r
		}, http.StatusNotFound},
		{"bad limit", func() *http.Response {
			r, err := http.Get(ts.URL + "/v1/transcripts?limit=x")
			require.NoError(t, err)
			return r
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.do()
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestCatalogueAndHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/modes")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Modes []struct {
			Name      string `json:"name"`
			MaxRounds int    `json:"max_rounds"`
		} `json:"modes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Modes, 6)
	assert.Equal(t, "discussion", body.Modes[0].Name)

	resp, err = http.Get(ts.URL + "/v1/meetings")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
