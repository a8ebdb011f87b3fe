package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"missionctl/internal/broadcast"
	"missionctl/internal/builder"
	"missionctl/internal/cache"
	"missionctl/internal/pipeline"
	"missionctl/internal/workspace"
)

func newTestServer(t *testing.T) (*Server, *pipeline.Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	tasks := "## In Progress\n- [ ] **Serve data**\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, workspace.DefaultTasksFile), []byte(tasks), 0644))

	hub := broadcast.NewHub(8, nil)
	t.Cleanup(hub.Close)
	pipe := pipeline.New(builder.New(workspace.NewReader(root), nil, nil), cache.NewStore(), hub, "", nil)
	return New("127.0.0.1:0", pipe, nil), pipe, root
}

func TestHandleData_EmptyCache(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "no data available")
}

func TestHandleData_ServesCachedDocument(t *testing.T) {
	srv, pipe, _ := newTestServer(t)
	_, err := pipe.Rebuild(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Data-Version"))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var doc struct {
		Tasks []struct{ Title string } `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Tasks, 1)
	require.Equal(t, "Serve data", doc.Tasks[0].Title)
}

func TestHandleRebuild(t *testing.T) {
	srv, _, root := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rebuild", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"version":1`)

	// Method enforcement.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rebuild", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// A fatal build error surfaces as a 500 with the reason.
	require.NoError(t, os.Rename(root, root+".moved"))
	t.Cleanup(func() { _ = os.Rename(root+".moved", root) })
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rebuild", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHandleHealth(t *testing.T) {
	srv, pipe, _ := newTestServer(t)
	_, err := pipe.Rebuild(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health["status"])
	require.Equal(t, float64(1), health["version"])
	require.Contains(t, health, "lastModified")
}

func TestHandleEvents_StreamsRebuilds(t *testing.T) {
	srv, pipe, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() map[string]any {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev map[string]any
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
			return ev
		}
	}

	// Greeting first.
	ev := readEvent()
	require.Equal(t, "connected", ev["type"])
	require.Equal(t, float64(0), ev["version"])

	// Wait until the subscription is registered, then publish.
	deadline := time.Now().Add(2 * time.Second)
	for pipe.Hub().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_, err = pipe.Rebuild(context.Background())
	require.NoError(t, err)

	ev = readEvent()
	require.Equal(t, broadcast.TypeRebuilt, ev["type"])
	require.Equal(t, float64(1), ev["version"])
}
