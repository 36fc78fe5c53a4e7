package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/regdocs/internal/chunker"
	"github.com/dgallion1/regdocs/internal/config"
	"github.com/dgallion1/regdocs/internal/embed"
	"github.com/dgallion1/regdocs/internal/pipeline"
	"github.com/dgallion1/regdocs/internal/retrieval"
	"github.com/dgallion1/regdocs/internal/vectorstore"
)

const testKey = "secret"

const sampleDoc = "BAB I\nPENDAHULUAN\nPedoman ini mengatur tata kelola pegawai.\f" +
	"BAB II KETENTUAN UMUM\nPegawai wajib hadir tepat waktu.\f" +
	"Pegawai yang terlambat mendapat teguran tertulis."

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := vectorstore.NewMemory()
	stats := embed.NewStats(time.Hour)
	emb := embed.WithStats(embed.NewHash(32), stats)

	runner := &pipeline.Runner{
		DataDir:   t.TempDir(),
		Chunk:     chunker.DefaultConfig(),
		Tokenizer: chunker.NewWords(),
		Embedder:  emb,
		Store:     store,
		Log:       log,
	}
	orch := pipeline.NewOrchestrator(runner, pipeline.Options{Workers: 1, MaxQueue: 4}, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	cfg := config.Default()
	cfg.Server.APIKey = testKey
	return NewServer(orch, retrieval.NewService(store, emb, log), stats, log, cfg)
}

func do(t *testing.T, srv http.Handler, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, srv, method, path, "application/json", strings.NewReader(body))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func upload(t *testing.T, srv http.Handler, filename, content string, force bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte(content))
	if force {
		mw.WriteField("force", "true")
	}
	mw.Close()
	return do(t, srv, http.MethodPost, "/api/ingest", mw.FormDataContentType(), &buf)
}

func waitForJob(t *testing.T, srv http.Handler, id string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		rec := do(t, srv, http.MethodGet, "/api/ingest/"+id+"/status", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", rec.Code)
		}
		snap := decode[pipeline.JobSnapshot](t, rec)
		switch snap.Status {
		case pipeline.StatusCompleted, pipeline.StatusFailed, pipeline.StatusDupSkipped:
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s still %s", id, snap.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealth_NoAuth(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[map[string]any](t, rec)["status"]; got != "ok" {
		t.Errorf("expected ok, got %v", got)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic " + testKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/stats/embed", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", tc.name, rec.Code)
		}
	}
}

func TestIngestThenSearchAndQuery(t *testing.T) {
	srv := newTestServer(t)

	rec := upload(t, srv, "pedoman.txt", sampleDoc, false)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	queued := decode[map[string]any](t, rec)
	id, _ := queued["job_id"].(string)
	if id == "" || queued["poll_url"] != "/api/ingest/"+id+"/status" {
		t.Fatalf("unexpected ingest response %v", queued)
	}

	snap := waitForJob(t, srv, id)
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Inserted != 3 {
		t.Errorf("expected 3 rows inserted, got %d", snap.Progress.Inserted)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/search", `{"query":"pegawai wajib hadir","filter":{"file_name":"pedoman.txt"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[retrieval.SearchResult](t, rec)
	if len(res.Hits) != 3 {
		t.Errorf("expected 3 hits, got %d", len(res.Hits))
	}
	if res.Threshold != 0.80 {
		t.Errorf("expected configured threshold, got %f", res.Threshold)
	}
	if len(res.Relevant) == 0 && res.Best == nil {
		t.Error("expected a best hit when nothing is relevant")
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/query", `{"filter":{"file_name":"pedoman.txt","bookmark":"BAB II"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("query: expected 200, got %d", rec.Code)
	}
	q := decode[struct {
		Rows  []vectorstore.Row `json:"rows"`
		Count int               `json:"count"`
	}](t, rec)
	if q.Count != 2 {
		t.Errorf("expected 2 BAB II rows, got %d", q.Count)
	}

	rec = do(t, srv, http.MethodGet, "/api/stats/embed", "", nil)
	stats := decode[struct {
		Model string              `json:"model"`
		Stats embed.StatsSnapshot `json:"stats"`
	}](t, rec)
	if stats.Model != "hash" || stats.Stats.Count < 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestIngest_DuplicateSkippedUnlessForced(t *testing.T) {
	srv := newTestServer(t)

	first := decode[map[string]any](t, upload(t, srv, "pedoman.txt", sampleDoc, false))
	waitForJob(t, srv, first["job_id"].(string))

	dup := decode[map[string]any](t, upload(t, srv, "pedoman.txt", sampleDoc, false))
	if s := waitForJob(t, srv, dup["job_id"].(string)).Status; s != pipeline.StatusDupSkipped {
		t.Errorf("expected duplicate_skipped, got %s", s)
	}

	forced := decode[map[string]any](t, upload(t, srv, "pedoman.txt", sampleDoc, true))
	if s := waitForJob(t, srv, forced["job_id"].(string)).Status; s != pipeline.StatusCompleted {
		t.Errorf("expected forced upload to complete, got %s", s)
	}
}

func TestIngest_Rejects(t *testing.T) {
	srv := newTestServer(t)

	if rec := upload(t, srv, "virus.exe", "x", false); rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported type: expected 400, got %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodPost, "/api/ingest", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("not multipart: expected 400, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/ingest/unknown/status", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: expected 404, got %d", rec.Code)
	}
}

func TestSearchAndQuery_BadRequests(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		path string
		body string
	}{
		{"/api/search", `{"query":"  "}`},
		{"/api/search", `not json`},
		{"/api/query", `{}`},
	}
	for _, tc := range cases {
		if rec := doJSON(t, srv, http.MethodPost, tc.path, tc.body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: expected 400, got %d", tc.path, tc.body, rec.Code)
		}
	}
}

func TestPageMaintenance(t *testing.T) {
	srv := newTestServer(t)
	const path = "/api/documents/baru.pdf/pages/2"

	rec := doJSON(t, srv, http.MethodPut, path, `{"bookmark":"LAMPIRAN A"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upsert: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if res := decode[retrieval.UpsertResult](t, rec); !res.Inserted || res.Rows != 1 {
		t.Errorf("unexpected upsert result %+v", res)
	}

	rec = doJSON(t, srv, http.MethodPut, path, `{"chapter_title":"Istilah"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("second upsert: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPatch, path, `{"text":"isi halaman baru"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]any](t, rec)["updated"]; got != float64(1) {
		t.Errorf("expected 1 row updated, got %v", got)
	}

	if rec := doJSON(t, srv, http.MethodPatch, path, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty update: expected 400, got %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodPatch, "/api/documents/baru.pdf/pages/9", `{"text":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing page: expected 404, got %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodPatch, "/api/documents/baru.pdf/pages/x", `{"text":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad page: expected 400, got %d", rec.Code)
	}

	if rec := do(t, srv, http.MethodDelete, path, "", nil); rec.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, path, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"pedoman.pdf":          "pedoman.pdf",
		"../../etc/passwd.txt": "passwd.txt",
		`C:\docs\sop.docx`:     "sop.docx",
		"a..b.md":              "a_b.md",
		"":                     "unnamed",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
