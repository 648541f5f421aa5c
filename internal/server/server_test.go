package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"docverify/constants"
	"docverify/internal/convert"
	"docverify/internal/entity"
	"docverify/internal/export"
	"docverify/internal/persist"
	"docverify/internal/pipeline"
	"docverify/internal/recognize"
	"docverify/internal/rules"
	"docverify/internal/store"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

type stubConverter struct{}

func (stubConverter) Convert(_ context.Context, jobID string, _ []byte) ([]convert.Page, error) {
	return []convert.Page{{Index: 1, Path: "/fake/" + jobID + "/page-1.png"}}, nil
}

type stubRecognizer struct{}

func (stubRecognizer) Recognize(context.Context, string) (recognize.Result, error) {
	return recognize.Result{Text: "name: jane"}, nil
}

type stubGateway struct{}

func (stubGateway) Persist(context.Context, *entity.DocumentJob) error { return nil }

var _ persist.Gateway = stubGateway{}

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()

	reg := rules.NewRegistry()
	pat, err := rules.NewPattern(`name: (\w+)`, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	rule, err := rules.NewRule("name", []rules.Pattern{pat}, "title_case", true, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	reg.Add(&rules.Set{ID: "basic", Version: 1, ReviewThreshold: 0.5, Rules: []rules.Rule{rule}})

	js := store.NewMemoryStore()
	orc := pipeline.New(pipeline.Config{
		Workers:          2,
		BackoffBase:      time.Millisecond,
		ArtifactCacheDir: t.TempDir(),
	}, reg, js, pipeline.Adapters{
		Fetcher:    stubFetcher{},
		Converter:  stubConverter{},
		Recognizer: stubRecognizer{},
		Gateway:    stubGateway{},
	}, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		orc.Shutdown(ctx)
	})

	ts := httptest.NewServer(routes(newHandlers(orc, export.NewService(js, nil), nil)))
	t.Cleanup(ts.Close)
	return ts, js
}

func submitOK(t *testing.T, ts *httptest.Server, body string) submitResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/jobs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestSubmitAndPoll(t *testing.T) {
	ts, _ := newTestServer(t)

	out := submitOK(t, ts, `{"source_ref": "docs/cert.pdf", "rule_set_id": "basic"}`)
	if out.JobID == "" || out.Status != "PENDING" {
		t.Fatalf("submit response = %+v", out)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/v1/jobs/" + out.JobID)
		if err != nil {
			t.Fatal(err)
		}
		var job jobResponse
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		if job.Status == "COMPLETE" {
			if job.Fields["name"].Normalized != "Jane" {
				t.Errorf("fields = %+v", job.Fields)
			}
			if job.CompletedAt == nil {
				t.Error("completed_at missing")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck at %s", job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitValidationErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []struct {
		body string
		want int
	}{
		{`{"rule_set_id": "basic"}`, http.StatusBadRequest},
		{`{"source_ref": "a.pdf"}`, http.StatusBadRequest},
		{`{"source_ref": "a.pdf", "rule_set_id": "nope"}`, http.StatusBadRequest},
		{`{"job_id": "not-a-uuid", "source_ref": "a.pdf", "rule_set_id": "basic"}`, http.StatusBadRequest},
		{`{broken json`, http.StatusBadRequest},
	}
	for _, c := range cases {
		resp, err := http.Post(ts.URL+"/v1/jobs", "application/json", strings.NewReader(c.body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != c.want {
			t.Errorf("body %q: status = %d, want %d", c.body, resp.StatusCode, c.want)
		}
	}
}

func TestSubmitConflictStatus(t *testing.T) {
	ts, _ := newTestServer(t)
	id := uuid.New().String()

	submitOK(t, ts, fmt.Sprintf(`{"job_id": %q, "source_ref": "a.pdf", "rule_set_id": "basic"}`, id))

	resp, err := http.Post(ts.URL+"/v1/jobs", "application/json",
		strings.NewReader(fmt.Sprintf(`{"job_id": %q, "source_ref": "OTHER.pdf", "rule_set_id": "basic"}`, id)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestGetJobNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/jobs/" + uuid.New().String())
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/v1/jobs/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", resp.StatusCode)
	}
}

func TestCancelEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/jobs/"+uuid.New().String()+"/cancel", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cancel unknown: status = %d, want 404", resp.StatusCode)
	}
}

func TestReviewExport(t *testing.T) {
	ts, js := newTestServer(t)

	job := entity.NewDocumentJob(uuid.New(), "docs/cert.pdf", "basic")
	job.Status = constants.JobStatusNeedsReview
	job.Fields = map[string]entity.Field{
		"name": {Value: "jane", Normalized: "Jane", Confidence: 0.4},
	}
	if err := js.Save(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/v1/review/export")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content type = %q", ct)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("response is not a workbook")
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestMetricsExposed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "docverify_jobs_submitted_total") {
		t.Error("pipeline metrics not exposed")
	}
}
