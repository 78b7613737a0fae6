package rules

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCatalog(t *testing.T) {
	rules, err := DecodeCatalog(strings.NewReader(`
rules:
  - id: mrp
    name: MRP Mandatory Check
    priority: high
    check: presence
    field: mrp
    active: true
  - id: origin
    name: Country of Origin
    priority: Medium
    weight: 4
    check: country
    active: false
`))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, PriorityHigh, rules[0].Priority)
	assert.Equal(t, 3.0, rules[0].Weight)
	assert.Equal(t, 4.0, rules[1].Weight)
	assert.False(t, rules[1].Active)
}

func TestDecodeCatalogRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"unknown field": "rules:\n  - {id: a, name: A, priority: High, check: country, colour: red}\n",
		"bad priority":  "rules:\n  - {id: a, name: A, priority: Urgent, check: country}\n",
		"duplicate ids": "rules:\n  - {id: a, name: A, priority: High, check: country}\n  - {id: a, name: B, priority: Low, check: country}\n",
		"missing field": "rules:\n  - {id: a, name: A, priority: High, check: presence}\n",
		"not yaml":      "rules: [",
	}
	for name, doc := range cases {
		_, err := DecodeCatalog(strings.NewReader(doc))
		assert.Error(t, err, name)
	}
	_, err := DecodeCatalog(strings.NewReader(cases["duplicate ids"]))
	assert.True(t, errors.Is(err, ErrDuplicateRuleID))
}

func TestCatalogRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCatalog(&buf, DefaultRules()))

	decoded, err := DecodeCatalog(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, len(DefaultRules()))
	for i, rule := range DefaultRules() {
		assert.Equal(t, rule.ID, decoded[i].ID)
		assert.Equal(t, rule.Check, decoded[i].Check)
		assert.Equal(t, rule.Priority.DefaultWeight(), decoded[i].Weight)
	}
}

func TestEmptyCatalog(t *testing.T) {
	rules, err := DecodeCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestLoadShippedCatalog(t *testing.T) {
	rules, err := LoadCatalog("../../rules.yaml")
	require.NoError(t, err)
	require.Len(t, rules, 7)
	for i, rule := range DefaultRules() {
		assert.Equal(t, rule.ID, rules[i].ID)
		assert.Equal(t, rule.Priority, rules[i].Priority)
	}
	assert.False(t, rules[6].Active)
	assert.Equal(t, FieldImportDate, rules[6].Field)

	_, err = LoadCatalog("does-not-exist.yaml")
	assert.Error(t, err)
}
