package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondError(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, http.StatusNotFound, "session not found")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if !strings.Contains(rr.Body.String(), `"error":"session not found"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestSendSSEChunk(t *testing.T) {
	rr := httptest.NewRecorder()
	SetupSSEHeaders(rr)

	if err := SendSSEChunk(rr, rr, map[string]string{"event": "delta"}); err != nil {
		t.Fatalf("SendSSEChunk err: %v", err)
	}

	if rr.Body.String() != "data: {\"event\":\"delta\"}\n\n" {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
	if !rr.Flushed {
		t.Fatal("expected flush")
	}
	if rr.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatal("expected event-stream content type")
	}
}
