package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	honeypot "github.com/decoynet/honeypot-agent-go"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProcessor struct {
	result *honeypot.TurnResult
	err    error

	lastID      string
	lastMessage string
}

func (s *stubProcessor) ProcessTurn(ctx context.Context, conversationID, message string) (*honeypot.TurnResult, error) {
	s.lastID = conversationID
	s.lastMessage = message
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestRouter(proc *stubProcessor, apiKeys []string) *gin.Engine {
	logger := zap.NewNop()
	h := NewHandler(proc, func(ctx context.Context) (string, string) {
		return "healthy", "primary"
	}, logger)
	return NewRouter(h, apiKeys, logger)
}

func postMessage(router *gin.Engine, apiKey string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/honeypot/message", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ══════════════════════════════════════════════
// POST /honeypot/message
// ══════════════════════════════════════════════

func TestMessage_Success(t *testing.T) {
	proc := &stubProcessor{result: &honeypot.TurnResult{
		ScamDetected:      true,
		EngagementMetrics: honeypot.EngagementMetrics{Turns: 3, DurationSeconds: 42},
		Intelligence: honeypot.Intelligence{
			UPIIDs:       []string{"fraud@upi"},
			BankAccounts: []string{},
			URLs:         []string{},
			Phones:       []string{},
		},
		Reply: "which link should I open?",
	}}
	router := newTestRouter(proc, nil)

	w := postMessage(router, "", `{"conversation_id":"conv-1","message":"click this link"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if proc.lastID != "conv-1" || proc.lastMessage != "click this link" {
		t.Fatalf("request not forwarded: id=%q message=%q", proc.lastID, proc.lastMessage)
	}

	var resp honeypot.MessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.ScamDetected || resp.Reply != "which link should I open?" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.EngagementMetrics.Turns != 3 {
		t.Fatalf("metrics lost: %+v", resp.EngagementMetrics)
	}
	if len(resp.Intelligence.UPIIDs) != 1 {
		t.Fatalf("intelligence lost: %+v", resp.Intelligence)
	}
}

func TestMessage_ValidationRejected(t *testing.T) {
	router := newTestRouter(&stubProcessor{result: &honeypot.TurnResult{}}, nil)

	for _, body := range []string{
		`{}`,
		`{"conversation_id":"conv-1"}`,
		`{"message":"hi"}`,
		`{"conversation_id":"","message":"hi"}`,
		`not json`,
	} {
		if w := postMessage(router, "", body); w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestMessage_StoreUnavailable(t *testing.T) {
	proc := &stubProcessor{err: honeypot.ErrStoreUnavailable}
	router := newTestRouter(proc, nil)

	w := postMessage(router, "", `{"conversation_id":"conv-1","message":"hi"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestMessage_InternalError(t *testing.T) {
	proc := &stubProcessor{err: context.DeadlineExceeded}
	router := newTestRouter(proc, nil)

	w := postMessage(router, "", `{"conversation_id":"conv-1","message":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

// ══════════════════════════════════════════════
// Auth middleware
// ══════════════════════════════════════════════

func TestAuth_ValidKey(t *testing.T) {
	router := newTestRouter(&stubProcessor{result: &honeypot.TurnResult{}}, []string{"secret-1", "secret-2"})

	w := postMessage(router, "secret-2", `{"conversation_id":"conv-1","message":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid key, got %d", w.Code)
	}
}

func TestAuth_MissingKey(t *testing.T) {
	router := newTestRouter(&stubProcessor{result: &honeypot.TurnResult{}}, []string{"secret-1"})

	w := postMessage(router, "", `{"conversation_id":"conv-1","message":"hi"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a key, got %d", w.Code)
	}
}

func TestAuth_WrongKey(t *testing.T) {
	router := newTestRouter(&stubProcessor{result: &honeypot.TurnResult{}}, []string{"secret-1"})

	w := postMessage(router, "wrong", `{"conversation_id":"conv-1","message":"hi"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a wrong key, got %d", w.Code)
	}
}

func TestAuth_DisabledWithoutKeys(t *testing.T) {
	router := newTestRouter(&stubProcessor{result: &honeypot.TurnResult{}}, nil)

	w := postMessage(router, "", `{"conversation_id":"conv-1","message":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected auth disabled with no keys, got %d", w.Code)
	}
}

// ══════════════════════════════════════════════
// GET /health
// ══════════════════════════════════════════════

func TestHealth(t *testing.T) {
	router := newTestRouter(&stubProcessor{result: &honeypot.TurnResult{}}, []string{"secret"})

	// Health is reachable without a key.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["status"] != "healthy" || payload["session_store"] != "primary" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}
