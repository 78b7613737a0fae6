package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/MetroCheck/internal/queue"
	"github.com/dharsanguruparan/MetroCheck/internal/rules"
	"github.com/dharsanguruparan/MetroCheck/internal/scoring"
)

type fakeExtractions struct {
	status    map[string]string
	productID string
	reportKey string
	failure   string
}

func (f *fakeExtractions) MarkProcessing(_ context.Context, id string) error {
	f.status[id] = "processing"
	return nil
}

func (f *fakeExtractions) MarkFailed(_ context.Context, id, msg string) error {
	f.status[id] = "failed"
	f.failure = msg
	return nil
}

func (f *fakeExtractions) MarkCompleted(_ context.Context, id, productID, reportKey string) error {
	f.status[id] = "completed"
	f.productID = productID
	f.reportKey = reportKey
	return nil
}

type fakeReports struct {
	inserted []scoring.Report
	writes   int
}

func (f *fakeReports) ReplaceForExtraction(_ context.Context, _ string, reports []scoring.Report) error {
	f.inserted = append([]scoring.Report(nil), reports...)
	f.writes++
	return nil
}

type fakeRules struct {
	rules   []rules.Rule
	version uint64
}

func (f fakeRules) LoadSnapshot(context.Context) (*rules.Snapshot, error) {
	snap, err := rules.NewSnapshot(f.rules)
	if err != nil {
		return nil, err
	}
	return snap.WithVersion(f.version), nil
}

type fakeObjects struct {
	raw         map[string][]byte
	uploads     map[string][]byte
	failUploads int
}

func (f *fakeObjects) DownloadRaw(_ context.Context, key string) ([]byte, error) {
	data, ok := f.raw[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (f *fakeObjects) UploadReport(_ context.Context, key string, data []byte) error {
	if f.failUploads > 0 {
		f.failUploads--
		return errors.New("report bucket unavailable")
	}
	f.uploads[key] = data
	return nil
}

func newTestProcessor(raw map[string][]byte) (*Processor, *fakeExtractions, *fakeReports, *fakeObjects) {
	ex := &fakeExtractions{status: map[string]string{}}
	rep := &fakeReports{}
	obj := &fakeObjects{raw: raw, uploads: map[string][]byte{}}
	p := NewProcessor(ex, rep, fakeRules{rules: rules.DefaultRules()[:3], version: 7}, obj, nil)
	return p, ex, rep, obj
}

func evaluateTask(t *testing.T, key, contentType string) *asynq.Task {
	t.Helper()
	task, err := queue.NewEvaluateTask(queue.EvaluatePayload{ExtractionID: "ex-1", ObjectKey: key, ContentType: contentType})
	require.NoError(t, err)
	return task
}

func TestHandleEvaluateListingJSON(t *testing.T) {
	listing := []byte(`{
		"id": "face-cream",
		"name": "Face Cream",
		"mrp": "₹299",
		"country_of_origin": "India"
	}`)
	p, ex, rep, obj := newTestProcessor(map[string][]byte{"raw/ex-1.json": listing})

	err := p.HandleEvaluate(context.Background(), evaluateTask(t, "raw/ex-1.json", "application/json"))
	require.NoError(t, err)

	assert.Equal(t, "completed", ex.status["ex-1"])
	assert.Equal(t, "face-cream", ex.productID)
	assert.Equal(t, "reports/ex-1.json", ex.reportKey)
	require.Len(t, rep.inserted, 1)
	assert.Equal(t, 67, rep.inserted[0].Score)
	require.Len(t, rep.inserted[0].Violations, 1)
	assert.Equal(t, "mfg", rep.inserted[0].Violations[0].RuleID)

	var doc reportDocument
	require.NoError(t, json.Unmarshal(obj.uploads["reports/ex-1.json"], &doc))
	assert.Equal(t, "ex-1", doc.ExtractionID)
	assert.Equal(t, uint64(7), doc.RulesVersion)
	require.Len(t, doc.Reports, 1)
}

func TestHandleEvaluateRetryReplacesReports(t *testing.T) {
	listings := []byte(`[{"id":"cream","mrp":"99"},{"id":"serum","mrp":"149","country_of_origin":"India"}]`)
	p, ex, rep, obj := newTestProcessor(map[string][]byte{"raw/ex-1.json": listings})
	obj.failUploads = 1
	task := evaluateTask(t, "raw/ex-1.json", "application/json")

	err := p.HandleEvaluate(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, "failed", ex.status["ex-1"])

	require.NoError(t, p.HandleEvaluate(context.Background(), task))
	assert.Equal(t, 2, rep.writes)
	require.Len(t, rep.inserted, 2, "a retry leaves one report per product")
	assert.Equal(t, "cream", rep.inserted[0].ProductID)
	assert.Equal(t, "serum", rep.inserted[1].ProductID)
	assert.Equal(t, "cream", ex.productID)
	assert.Equal(t, "completed", ex.status["ex-1"])
}

func TestHandleEvaluateLabelText(t *testing.T) {
	label := []byte("MRP Rs. 120.00 (incl. of all taxes)\nCountry of Origin: India\n")
	p, ex, rep, _ := newTestProcessor(map[string][]byte{"raw/ex-1.txt": label})

	require.NoError(t, p.HandleEvaluate(context.Background(), evaluateTask(t, "raw/ex-1.txt", "")))
	assert.Equal(t, "completed", ex.status["ex-1"])
	require.Len(t, rep.inserted, 1)
	for _, o := range rep.inserted[0].Outcomes {
		if o.RuleID == "mrp" {
			assert.True(t, o.Passed)
			assert.True(t, o.LowConfidence, "values read from label text are flagged")
		}
	}
}

func TestHandleEvaluateMarksFailure(t *testing.T) {
	p, ex, rep, _ := newTestProcessor(map[string][]byte{"raw/ex-1.bin": []byte("\x00\x01garbage")})

	err := p.HandleEvaluate(context.Background(), evaluateTask(t, "raw/ex-1.bin", "application/octet-stream"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, "failed", ex.status["ex-1"])
	assert.NotEmpty(t, ex.failure)
	assert.Empty(t, rep.inserted)

	err = p.HandleEvaluate(context.Background(), evaluateTask(t, "raw/missing.json", "application/json"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "storage errors are retried")
}
