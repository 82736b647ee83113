package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusNotFound, "KEY_PAIR_NOT_FOUND", "key pair not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("want 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("want application/json, got %s", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Code != "KEY_PAIR_NOT_FOUND" {
		t.Errorf("want KEY_PAIR_NOT_FOUND, got %s", resp.Code)
	}
}

func TestJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusNoContent, nil)

	if rec.Code != http.StatusNoContent {
		t.Errorf("want 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("want empty body, got %q", rec.Body.String())
	}
}

func TestText(t *testing.T) {
	rec := httptest.NewRecorder()
	Text(rec, http.StatusOK, func(w io.Writer) error {
		_, err := io.WriteString(w, "[\n[1 0 3 3]\n]")
		return err
	})

	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("want text/plain, got %s", ct)
	}
	if rec.Body.String() != "[\n[1 0 3 3]\n]" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}
