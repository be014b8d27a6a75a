package actions

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/engine"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
)

func newTestSession(t *testing.T, log logger.Logger) *engine.Session {
	t.Helper()
	sess, err := engine.NewSession(log, c.AppName, engine.WithStats(stats.NewPipelineStats(log, stats.SetStatsDumpFrequency(0))))
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

func serve(t *testing.T, h http.Handler, method string, url string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, url, nil))
	body := make(map[string]interface{})
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad JSON from %v: %v", url, err)
		}
	}
	return w.Code, body
}

func TestStatusRoutes(t *testing.T) {
	log := logger.NewLogger("actions test", "error", false)
	sess := newTestSession(t, log)
	sess.StepWatcher("ProcessSongData.song data list")
	sess.Status.Set("ProcessSongData", engine.StatusComplete, nil)
	sess.Status.Set("ProcessLogData", engine.StatusCompleteWithError, errors.New("bad input"))
	r := newStatusRouter(log, sess)

	log.Info("Test 1 health")
	code, body := serve(t, r, http.MethodGet, "/health")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %v %v", code, body)
	}

	log.Info("Test 2 status list in start order")
	code, body = serve(t, r, http.MethodGet, "/status")
	if code != http.StatusOK || body["runId"] != sess.RunID {
		t.Fatalf("unexpected status response %v %v", code, body)
	}
	list := body["transforms"].([]interface{})
	if len(list) != 2 {
		t.Fatalf("expected 2 transforms; got %v", len(list))
	}
	second := list[1].(map[string]interface{})
	if second["name"] != "ProcessLogData" || second["status"] != "complete with error" || second["error"] != "bad input" {
		t.Fatalf("unexpected transform status %v", second)
	}

	log.Info("Test 3 status of one transform")
	code, body = serve(t, r, http.MethodGet, "/status/ProcessSongData")
	if code != http.StatusOK || body["transformStatus"].(map[string]interface{})["status"] != "complete" {
		t.Fatalf("unexpected status response %v %v", code, body)
	}
	code, body = serve(t, r, http.MethodGet, "/status/nope")
	if code != http.StatusNotFound || body["status"] != "error" {
		t.Fatalf("expected not found; got %v %v", code, body)
	}

	log.Info("Test 4 stats")
	code, body = serve(t, r, http.MethodGet, "/stats")
	if code != http.StatusOK {
		t.Fatalf("unexpected stats response code %v", code)
	}
	steps := body["stepStats"].([]interface{})
	if len(steps) != 1 || steps[0].(map[string]interface{})["stepName"] != "ProcessSongData.song data list" {
		t.Fatalf("unexpected stats %v", steps)
	}

	log.Info("Test 5 stop needs POST")
	if code, _ = serve(t, r, http.MethodGet, "/stop"); code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed; got %v", code)
	}
	if code, _ = serve(t, r, http.MethodPost, "/stop"); code != http.StatusOK {
		t.Fatalf("unexpected stop response code %v", code)
	}
	select {
	case <-sess.Done():
	default:
		t.Fatal("expected the session to be shut down")
	}
}

func TestStatusServerAddress(t *testing.T) {
	if a := (&StatusServerConfig{Port: 8080}).address(); a != ":8080" {
		t.Fatalf("unexpected address %v", a)
	}
}
