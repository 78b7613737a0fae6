package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/MetroCheck/internal/rules"
	"github.com/dharsanguruparan/MetroCheck/internal/scoring"
)

func coreRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	r := rules.NewRegistry(nil)
	require.NoError(t, r.Restore(rules.DefaultRules()[:3], nil))
	return r
}

func TestCheckFaceCream(t *testing.T) {
	eng := New(coreRegistry(t), nil, 2)
	report := eng.Check(map[string]any{
		"name":              "Face Cream",
		"mrp":               "₹299",
		"country_of_origin": "India",
	})

	assert.Equal(t, 67, report.Score)
	assert.Equal(t, scoring.BadgeLow, report.Badge)
	assert.Equal(t, 3, report.RulesEvaluated)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "mfg", report.Violations[0].RuleID)
	assert.Equal(t, "high", report.Violations[0].Severity)
	assert.NotEmpty(t, report.ProductID)
}

func TestCheckFaceCreamEndToEnd(t *testing.T) {
	care := rules.DefaultRules()[4]
	require.Equal(t, "consumer-care", care.ID)
	care.Active = false
	care.Weight = 0
	reg := rules.NewRegistry(nil)
	require.NoError(t, reg.Restore(append(rules.DefaultRules()[:3], care), nil))

	report := New(reg, nil, 1).Check(map[string]any{
		"name":            "Face Cream",
		"mrp":             "₹299",
		"netQuantity":     "50 g",
		"manufacturer":    map[string]any{"name": "", "address": ""},
		"countryOfOrigin": "India",
		"consumerCare":    "",
		"manufactureDate": "2024-01-10",
	})

	assert.Equal(t, 67, report.Score)
	assert.Equal(t, scoring.BadgeLow, report.Badge)
	assert.Equal(t, 3, report.RulesEvaluated, "the inactive consumer-care rule is not evaluated")
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "mfg", report.Violations[0].RuleID)
	assert.Equal(t, "Manufacturer name and address are missing", report.Violations[0].Message)
	for _, o := range report.Outcomes {
		assert.NotEqual(t, "consumer-care", o.RuleID)
	}
}

func TestDeactivatingFailingRulesNeverLowersScore(t *testing.T) {
	raws := []map[string]any{
		{"mrp": "299"},
		{"country_of_origin": "Mars", "consumer_care": "care@example.com"},
		{"mrp": "N/A!!", "net_quantity": "50 g", "manufacture_date": "03/2024"},
		{},
	}
	for _, raw := range raws {
		reg := rules.NewRegistry(nil)
		require.NoError(t, reg.Restore(rules.DefaultRules(), nil))
		eng := New(reg, nil, 1)
		before := eng.Check(raw)
		for _, v := range before.Violations {
			_, err := reg.SetActive(context.Background(), v.RuleID, false)
			require.NoError(t, err)
			after := eng.Check(raw)
			assert.GreaterOrEqual(t, after.Score, before.Score, "deactivating %s", v.RuleID)
			before = after
		}
		assert.Equal(t, 100, before.Score)
	}
}

func TestCheckEmptyRuleSet(t *testing.T) {
	eng := New(rules.NewRegistry(nil), nil, 1)
	report := eng.Check(map[string]any{"name": "anything"})
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, 0, report.RulesEvaluated)
	assert.Empty(t, report.Violations)
}

func TestCheckFollowsRegistryChanges(t *testing.T) {
	reg := coreRegistry(t)
	eng := New(reg, nil, 1)
	raw := map[string]any{"mrp": "299", "country_of_origin": "India"}

	assert.Equal(t, 67, eng.Check(raw).Score)
	_, err := reg.SetActive(context.Background(), "mfg", false)
	require.NoError(t, err)
	assert.Equal(t, 100, eng.Check(raw).Score)
}

func TestCheckBatchKeepsOrder(t *testing.T) {
	eng := New(coreRegistry(t), nil, 4)
	raws := make([]map[string]any, 50)
	for i := range raws {
		raws[i] = map[string]any{"id": fmt.Sprintf("p-%02d", i)}
		if i%2 == 0 {
			raws[i]["mrp"] = "10"
		}
	}
	reports, err := eng.CheckBatch(context.Background(), raws)
	require.NoError(t, err)
	require.Len(t, reports, len(raws))
	for i, r := range reports {
		assert.Equal(t, fmt.Sprintf("p-%02d", i), r.ProductID)
		if i%2 == 0 {
			assert.Equal(t, 33, r.Score)
		} else {
			assert.Equal(t, 0, r.Score)
		}
	}

	same, err := eng.CheckBatch(context.Background(), raws)
	require.NoError(t, err)
	for i := range same {
		same[i].ScoredAt = reports[i].ScoredAt
	}
	assert.Equal(t, reports, same, "checks are deterministic")
}

func TestCheckBatchCancelled(t *testing.T) {
	eng := New(coreRegistry(t), nil, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := eng.CheckBatch(ctx, []map[string]any{{"id": "a"}, {"id": "b"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(reports), 3)

	empty, err := eng.CheckBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecodeArtifact(t *testing.T) {
	recs, err := DecodeArtifact([]byte(`[{"id":"a"},{"id":"b"}]`), ContentTypeJSON)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = DecodeArtifact([]byte("MRP Rs. 40\n\nMade in India\n"), ContentTypeText)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"MRP Rs. 40", "Made in India"}, recs[0]["raw_ocr_lines"])

	_, err = DecodeArtifact([]byte(`[1]`), ContentTypeJSON)
	assert.Error(t, err)
	_, err = DecodeArtifact([]byte("x"), "image/png")
	assert.ErrorIs(t, err, ErrUnsupportedArtifact)
	_, err = DecodeArtifact([]byte("not a pdf"), ContentTypePDF)
	assert.Error(t, err)
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, ContentTypeJSON, DetectContentType("application/json; charset=utf-8", "", nil))
	assert.Equal(t, ContentTypePDF, DetectContentType("application/octet-stream", "label.PDF", nil))
	assert.Equal(t, ContentTypePDF, DetectContentType("", "blob", []byte("%PDF-1.7\n")))
	assert.Equal(t, ContentTypeJSON, DetectContentType("", "blob", []byte("  {\"a\":1}")))
	assert.Equal(t, ContentTypeText, DetectContentType("", "label.txt", []byte("MRP 10")))
	assert.Equal(t, "", DetectContentType("", "photo.png", []byte{0x89, 'P', 'N', 'G'}))
}
