package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/MetroCheck/internal/config"
	"github.com/dharsanguruparan/MetroCheck/internal/engine"
	"github.com/dharsanguruparan/MetroCheck/internal/queue"
	"github.com/dharsanguruparan/MetroCheck/internal/repository"
	"github.com/dharsanguruparan/MetroCheck/internal/rules"
	"github.com/dharsanguruparan/MetroCheck/internal/scoring"
)

type memReports struct {
	all          []scoring.Report
	byExtraction map[string][]scoring.Report
}

func (m *memReports) Insert(_ context.Context, _ string, report scoring.Report) error {
	m.all = append(m.all, report)
	return nil
}

func (m *memReports) ByExtraction(_ context.Context, extractionID, productID string) (scoring.Report, error) {
	for _, r := range m.byExtraction[extractionID] {
		if productID == "" || r.ProductID == productID {
			return r, nil
		}
	}
	return scoring.Report{}, repository.ErrNotFound
}

func (m *memReports) ListByProduct(_ context.Context, productID string, _ int) ([]scoring.Report, error) {
	out := []scoring.Report{}
	for _, r := range m.all {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReports) Latest(context.Context) ([]scoring.Report, error) { return m.all, nil }

type memExtractions struct{ rows map[string]*repository.Extraction }

func (m *memExtractions) Create(_ context.Context, ex *repository.Extraction) error {
	ex.Status = repository.StatusQueued
	m.rows[ex.ID] = ex
	return nil
}

func (m *memExtractions) Get(_ context.Context, id string) (*repository.Extraction, error) {
	ex, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("extraction %s: %w", id, repository.ErrNotFound)
	}
	return ex, nil
}

type memObjects struct{ keys []string }

func (m *memObjects) UploadRaw(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	m.keys = append(m.keys, key)
	_, err := io.Copy(io.Discard, r)
	return err
}

func (m *memObjects) PresignReportURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key + "?sig=1", nil
}

type memQueue struct{ tasks []*asynq.Task }

func (m *memQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type fixture struct {
	srv         *httptest.Server
	registry    *rules.Registry
	reports     *memReports
	extractions *memExtractions
	queue       *memQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := rules.NewRegistry(nil)
	require.NoError(t, registry.Restore(rules.DefaultRules()[:3], nil))
	f := &fixture{
		registry:    registry,
		reports:     &memReports{},
		extractions: &memExtractions{rows: map[string]*repository.Extraction{}},
		queue:       &memQueue{},
	}
	cfg := &config.Config{MaxUploadBytes: 1 << 20, SignedURLTTL: time.Minute}
	s := New(Deps{
		Config:      cfg,
		Registry:    registry,
		Engine:      engine.New(registry, nil, 2),
		Extractions: f.extractions,
		Reports:     f.reports,
		Objects:     &memObjects{},
		Queue:       f.queue,
	})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestEvaluateFaceCream(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/rules", `{"id":"consumer-care","name":"Consumer Care Details","priority":"Medium","weight":0,"active":false,"check":"presence","field":"consumer_care"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/evaluate", `{
		"name": "Face Cream",
		"mrp": "₹299",
		"netQuantity": "50 g",
		"manufacturer": {"name": "", "address": ""},
		"countryOfOrigin": "India",
		"consumerCare": "",
		"manufactureDate": "2024-01-10"
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	report := decode[scoring.Report](t, resp)
	assert.Equal(t, 67, report.Score)
	assert.Equal(t, scoring.BadgeLow, report.Badge)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "mfg", report.Violations[0].RuleID)
	assert.Len(t, f.reports.all, 1, "direct evaluations are stored")
}

func TestEvaluateRejectsNonObject(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/evaluate", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvaluateBatch(t *testing.T) {
	f := newFixture(t)
	body := `[
		{"id":"a","mrp":"299","country_of_origin":"India","manufacturer":"Acme Foods, Plot 4, MIDC Andheri, Mumbai 400093"},
		{"id":"b"}
	]`
	resp := f.do(t, http.MethodPost, "/evaluate/batch", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[batchResponse](t, resp)
	require.Len(t, out.Reports, 2)
	assert.Equal(t, "a", out.Reports[0].ProductID)
	assert.Equal(t, 100, out.Reports[0].Score)
	assert.Equal(t, 0, out.Reports[1].Score)
	assert.Equal(t, 2, out.Summary.Products)
	assert.Equal(t, 1, out.Summary.Compliant)
}

func TestRuleLifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/rules", `{"id":"care","name":"Consumer Care","priority":"low","check":"presence","field":"consumer_care","active":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decode[rules.Rule](t, resp)
	assert.Equal(t, rules.PriorityLow, added.Priority)
	assert.Equal(t, 1.0, added.Weight)

	resp = f.do(t, http.MethodPost, "/rules", `{"id":"care","name":"Again","priority":"High","check":"presence","field":"mrp"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_rule_id", decode[errorBody](t, resp).Error)

	resp = f.do(t, http.MethodPatch, "/rules/care", `{"priority":"Medium"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decode[rules.Rule](t, resp)
	assert.Equal(t, 2, patched.Version)
	assert.Equal(t, 2.0, patched.Weight)

	resp = f.do(t, http.MethodPut, "/rules/care/active", `{"active":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[rules.Rule](t, resp).Active)

	resp = f.do(t, http.MethodDelete, "/rules/care", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/rules/care", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "rule_not_found", decode[errorBody](t, resp).Error)

	resp = f.do(t, http.MethodPost, "/rules", `{"id":"care","name":"Reuse","priority":"Low","check":"presence","field":"mrp"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "removed ids stay retired")
}

func TestAddRuleValidation(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/rules", `{"id":"x","name":"X","priority":"urgent","check":"presence","field":"mrp"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_rule", decode[errorBody](t, resp).Error)

	resp = f.do(t, http.MethodPost, "/rules", `{"id":"x","name":"X","priority":"High","check":"barcode"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, f.registry.List(), 3)
}

func TestUploadExtraction(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "listing.json")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(`{"name":"Face Cream"}`))
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.srv.URL+"/extractions", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	out := decode[map[string]string](t, resp)
	require.NotEmpty(t, out["id"])
	require.Len(t, f.queue.tasks, 1)
	payload, err := queue.ParseEvaluatePayload(f.queue.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, out["id"], payload.ExtractionID)
	assert.Equal(t, engine.ContentTypeJSON, payload.ContentType)

	resp2 := f.do(t, http.MethodGet, "/extractions/"+out["id"]+"/report", "")
	assert.Equal(t, http.StatusAccepted, resp2.StatusCode, "report is pending until the worker finishes")

	resp3 := f.do(t, http.MethodGet, "/extractions/missing", "")
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestExtractionReportFollowsLinkedProduct(t *testing.T) {
	f := newFixture(t)
	linked := "serum"
	f.extractions.rows["ex-1"] = &repository.Extraction{ID: "ex-1", ProductID: &linked, Status: repository.StatusCompleted}
	f.reports.byExtraction = map[string][]scoring.Report{
		"ex-1": {{ProductID: "cream", Score: 40}, {ProductID: "serum", Score: 90}},
	}

	resp := f.do(t, http.MethodGet, "/extractions/ex-1/report", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[scoring.Report](t, resp)
	assert.Equal(t, "serum", report.ProductID)
	assert.Equal(t, 90, report.Score)
}

func TestStatsAndProductReports(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/evaluate", `{"id":"p1"}`)
	f.do(t, http.MethodPost, "/evaluate", `{"id":"p2","mrp":"10","country_of_origin":"Japan","manufacturer":"Sony Corp, 1-7-1 Konan Minato-ku Tokyo"}`)

	resp := f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := decode[scoring.Summary](t, resp)
	assert.Equal(t, 2, sum.Products)
	assert.Equal(t, 50.0, sum.AverageScore)

	resp = f.do(t, http.MethodGet, "/products/p1/reports", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Reports []scoring.Report `json:"reports"`
	}](t, resp)
	require.Len(t, body.Reports, 1)
	assert.Equal(t, 0, body.Reports[0].Score)
}
