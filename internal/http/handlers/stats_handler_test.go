package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/omniguard/go-moderation-backend/internal/repo"
	"github.com/omniguard/go-moderation-backend/internal/services"
)

func TestGetStats_OK(t *testing.T) {
	stats := stubStatsSvc{
		overview: func(_ context.Context) (*repo.DatasetStats, error) {
			return &repo.DatasetStats{
				Total:         5,
				Compliant:     3,
				NonCompliant:  2,
				PendingReview: 1,
				AutoVerified:  3,
				HumanVerified: 1,
			}, nil
		},
	}
	r := newTestRouter(t, stubModSvc{}, stats, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got repo.DatasetStats
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 5 || got.Compliant != 3 || got.PendingReview != 1 {
		t.Fatalf("stats unexpected: %+v", got)
	}
}

func TestGetStats_StoreUnavailable(t *testing.T) {
	stats := stubStatsSvc{
		overview: func(_ context.Context) (*repo.DatasetStats, error) {
			return nil, services.ErrStoreUnavailable
		},
	}
	r := newTestRouter(t, stubModSvc{}, stats, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestExportDataset_StreamsNDJSON(t *testing.T) {
	stats := stubStatsSvc{
		export: func(_ context.Context, w io.Writer) error {
			enc := json.NewEncoder(w)
			_ = enc.Encode(map[string]any{"id": "a", "compliant": true})
			_ = enc.Encode(map[string]any{"id": "b", "compliant": false})
			return nil
		},
	}
	r := newTestRouter(t, stubModSvc{}, stats, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "interactions.jsonl") {
		t.Fatalf("content disposition = %q", cd)
	}

	// every line is standalone JSON
	sc := bufio.NewScanner(strings.NewReader(w.Body.String()))
	lines := 0
	for sc.Scan() {
		var obj map[string]any
		if err := json.Unmarshal(sc.Bytes(), &obj); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines+1, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestExportDataset_MidStreamFailureKeepsBodyNDJSON(t *testing.T) {
	stats := stubStatsSvc{
		export: func(_ context.Context, w io.Writer) error {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "a", "compliant": true})
			return services.ErrStoreUnavailable
		},
	}
	r := newTestRouter(t, stubModSvc{}, stats, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	r.ServeHTTP(w, req)

	// The status was committed before the failure.
	if w.Code != http.StatusOK {
		t.Fatalf("expected committed 200, got %d", w.Code)
	}

	// The body stays pure NDJSON: the lines written before the failure, and
	// no JSON error envelope appended after them.
	body := w.Body.String()
	if strings.Contains(body, `"code"`) || strings.Contains(body, `"request_id"`) {
		t.Fatalf("error envelope leaked into NDJSON stream: %q", body)
	}
	sc := bufio.NewScanner(strings.NewReader(body))
	lines := 0
	for sc.Scan() {
		var obj map[string]any
		if err := json.Unmarshal(sc.Bytes(), &obj); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines+1, err)
		}
		lines++
	}
	if lines != 1 {
		t.Fatalf("expected the 1 pre-failure line, got %d", lines)
	}
}
