package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	taleHttp "github.com/aretw0/tale/pkg/adapters/http"
	"github.com/aretw0/tale/pkg/adapters/memory"
	"github.com/aretw0/tale/pkg/clock"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
	"github.com/aretw0/tale/pkg/registry"
	"github.com/aretw0/tale/pkg/session"
	"github.com/aretw0/tale/pkg/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionBody struct {
	Snapshot domain.Snapshot `json:"snapshot"`
	View     domain.NodeView `json:"view"`
}

func newTestServer(t *testing.T) (*taleHttp.Server, http.Handler) {
	t.Helper()
	graph := story.MustCave()
	journal := memory.NewStore(0)
	clk := clock.NewManual(time.Unix(0, 0))

	reg := registry.New(func(id string, p ports.Presenter) (*session.Controller, error) {
		return session.New(graph, p,
			session.WithID(id),
			session.WithClock(clk),
			session.WithTransitioner(session.Delay(0)),
			session.WithEventSink(journal),
		)
	})
	t.Cleanup(reg.Close)

	srv, err := taleHttp.NewServer(reg, graph,
		taleHttp.WithJournal(journal),
		taleHttp.WithVersion("1.2.3\n"),
	)
	require.NoError(t, err)
	return srv, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, h http.Handler) sessionBody {
	t.Helper()
	w := do(t, h, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body sessionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/sessions/"+body.Snapshot.SessionID, w.Header().Get("Location"))
	return body
}

func TestHealthAndInfo(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", "")
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	w = do(t, h, http.MethodGet, "/openapi.yaml", "")
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	w = do(t, h, http.MethodOptions, "/sessions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetGraph(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/graph", "")
	require.Equal(t, http.StatusOK, w.Code)

	var nodes []struct {
		ID       string `json:"id"`
		Terminal bool   `json:"terminal"`
		Choices  []struct {
			Label  string `json:"label"`
			Target string `json:"target"`
		} `json:"choices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nodes))
	require.Len(t, nodes, 11)
	assert.Equal(t, story.CaveEntrance, nodes[0].ID)
	assert.Equal(t, story.CaveInterior, nodes[0].Choices[0].Target)

	created := createSession(t, h)
	w = do(t, h, http.MethodGet, "/graph?format=mermaid&session_id="+created.Snapshot.SessionID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph TD")
	assert.Contains(t, w.Body.String(), "class entrance current;")

	w = do(t, h, http.MethodGet, "/graph?format=mermaid&session_id=missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	_, h := newTestServer(t)

	created := createSession(t, h)
	id := created.Snapshot.SessionID
	assert.Equal(t, story.CaveEntrance, created.Snapshot.NodeID)
	assert.Equal(t, domain.StatusIdle, created.Snapshot.Status)
	assert.Equal(t, domain.DefaultCountdown, created.View.Remaining)
	assert.Equal(t, []string{"Enter the cave", "Walk away"}, created.View.Choices)

	w := do(t, h, http.MethodGet, "/sessions", "")
	var list []domain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = do(t, h, http.MethodPost, "/sessions/"+id+"/choices", `{"choice": 1}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		w := do(t, h, http.MethodGet, "/sessions/"+id, "")
		var body sessionBody
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return body.Snapshot.Status == domain.StatusEnded && body.Snapshot.NodeID == story.ReturnHome
	}, 2*time.Second, 10*time.Millisecond)

	w = do(t, h, http.MethodPost, "/sessions/"+id+"/choices", `{"choice": 0}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, "/sessions/"+id+"/journal", "")
	require.Equal(t, http.StatusOK, w.Code)
	var events []domain.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventNodeEnter, events[0].Type)
	assert.Equal(t, domain.EventEnded, events[len(events)-1].Type)

	w = do(t, h, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitChoice_Errors(t *testing.T) {
	_, h := newTestServer(t)
	id := createSession(t, h).Snapshot.SessionID

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"Bad Body", "/sessions/" + id + "/choices", `not json`, http.StatusBadRequest},
		{"Missing Choice", "/sessions/" + id + "/choices", `{}`, http.StatusBadRequest},
		{"Unknown Session", "/sessions/nope/choices", `{"choice": 0}`, http.StatusNotFound},
		{"Out Of Range", "/sessions/" + id + "/choices", `{"choice": 9}`, http.StatusUnprocessableEntity},
		{"Negative", "/sessions/" + id + "/choices", `{"choice": -1}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	// Rejections leave the session where it was.
	w := do(t, h, http.MethodGet, "/sessions/"+id, "")
	var body sessionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, story.CaveEntrance, body.Snapshot.NodeID)
	assert.Equal(t, domain.StatusIdle, body.Snapshot.Status)
}

func TestGetJournal_Missing(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/sessions/ghost/journal", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscribeEvents_StreamsUntilEnd(t *testing.T) {
	_, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	id := createSession(t, h).Snapshot.SessionID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sessions/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return name, data
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return name, data
			}
		}
	}

	name, data := readEvent()
	require.Equal(t, "ping", name)
	assert.Equal(t, "connected", data)

	name, data = readEvent()
	require.Equal(t, "node", name)
	assert.Contains(t, data, `"node_id":"entrance"`)

	post, err := http.Post(ts.URL+"/sessions/"+id+"/choices", "application/json", bytes.NewBufferString(`{"choice": 1}`))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusAccepted, post.StatusCode)

	var names []string
	for {
		name, data := readEvent()
		if name == "" {
			break
		}
		names = append(names, name)
		if name == "diff" {
			assert.Contains(t, data, fmt.Sprintf(`"session_id":%q`, id))
		}
	}

	assert.Contains(t, names, "node")
	assert.Contains(t, names, "ended")
	assert.Contains(t, names, "diff")
}

func TestSubscribeEvents_WatchFilter(t *testing.T) {
	srv, h := newTestServer(t)
	id := createSession(t, h).Snapshot.SessionID

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/events?watch=error", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(w, req)
	}()

	require.Eventually(t, func() bool { return srv.Streams.Subscribers(id) == 1 }, time.Second, 5*time.Millisecond)
	srv.Streams.Broadcast(id, taleHttp.Message{Event: "tick", Data: []byte(`{"remaining":9}`)})
	srv.Streams.Broadcast(id, taleHttp.Message{Event: "error", Data: []byte(`{"error":"boom"}`)})

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event: error\ndata: {\"error\":\"boom\"}")
	assert.NotContains(t, body, "event: tick")
	assert.NotContains(t, body, "event: node", "initial node is filtered too")
}

func TestStreamManager_DropsWhenFull(t *testing.T) {
	sm := taleHttp.NewStreamManager(1, nil)
	ch, unsubscribe := sm.Subscribe("s")

	sm.Broadcast("s", taleHttp.Message{Event: "a"})
	sm.Broadcast("s", taleHttp.Message{Event: "b"}) // dropped

	msg := <-ch
	assert.Equal(t, "a", msg.Event)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, sm.Subscribers("s"))
}
