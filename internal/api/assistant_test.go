package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// assistantTestServer эмулирует Assistants API: тред, сообщение, run со
// статусом in_progress на первых опросах, затем completed
type assistantTestServer struct {
	polls       atomic.Int32
	pollsToDone int32
	reply       string
	failRun     bool
}

func (s *assistantTestServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "thread_1"})
	})
	mux.HandleFunc("POST /threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "msg_1"})
	})
	mux.HandleFunc("POST /threads/thread_1/runs", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["assistant_id"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "run_1", "status": "queued"})
	})
	mux.HandleFunc("GET /threads/thread_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		status := "in_progress"
		if s.polls.Add(1) >= s.pollsToDone {
			status = "completed"
			if s.failRun {
				status = "failed"
			}
		}
		resp := map[string]interface{}{"id": "run_1", "status": status}
		if status == "failed" {
			resp["last_error"] = map[string]string{"message": "rate limit exceeded"}
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data": [
			{"role": "assistant", "content": [{"type": "text", "text": {"value": %q}}]},
			{"role": "user", "content": [{"type": "text", "text": {"value": "вопросы"}}]}
		]}`, s.reply)
	})

	return mux
}

func TestAssistantAnalyze(t *testing.T) {
	backend := &assistantTestServer{pollsToDone: 3, reply: "```json\n{\"profile\": \"המתכנן\"}\n```"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := NewAssistantClient("test-key", "asst_123")
	client.SetBaseURL(srv.URL)
	client.SetPolling(time.Millisecond, 10)

	got, err := client.Analyze(context.Background(), "стенограмма")
	require.NoError(t, err)
	require.Equal(t, `{"profile": "המתכנן"}`, got)
	require.GreaterOrEqual(t, backend.polls.Load(), int32(3))
}

func TestAssistantAnalyzeRunFailed(t *testing.T) {
	backend := &assistantTestServer{pollsToDone: 1, failRun: true}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := NewAssistantClient("test-key", "asst_123")
	client.SetBaseURL(srv.URL)
	client.SetPolling(time.Millisecond, 10)

	_, err := client.Analyze(context.Background(), "стенограмма")
	require.ErrorContains(t, err, "rate limit exceeded")
}

func TestAssistantAnalyzePollingExhausted(t *testing.T) {
	backend := &assistantTestServer{pollsToDone: 100}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := NewAssistantClient("test-key", "asst_123")
	client.SetBaseURL(srv.URL)
	client.SetPolling(time.Millisecond, 3)

	_, err := client.Analyze(context.Background(), "стенограмма")
	require.ErrorContains(t, err, "did not complete")
}

func TestAssistantAnalyzeContextCancelled(t *testing.T) {
	backend := &assistantTestServer{pollsToDone: 100}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := NewAssistantClient("test-key", "asst_123")
	client.SetBaseURL(srv.URL)
	client.SetPolling(50*time.Millisecond, 60)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Analyze(ctx, "стенограмма")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
