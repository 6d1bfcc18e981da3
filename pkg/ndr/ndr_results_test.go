package ndr

import (
	"encoding/json"
	"strings"
	"testing"

	"gotest.tools/assert"
)

func finishedResults(t *testing.T) *BenchResults {
	t.Helper()

	config := benchConfig()
	config.NdrResults = 3

	bench := NewBench(newFakeDriver(100), config)
	assert.Assert(t, bench.Find() == nil)

	return bench.Results
}

func TestResultsToJSON(t *testing.T) {
	results := finishedResults(t)

	doc, err := results.ToJSON()
	assert.Assert(t, err == nil)

	var decoded map[string]interface{}
	assert.Assert(t, json.Unmarshal(doc, &decoded) == nil)

	assert.Equal(t, decoded["setup_name"], "ut")
	assert.Equal(t, decoded["ndr_percent"], 100.0)
	assert.Equal(t, decoded["converged"], true)
	assert.Equal(t, len(decoded["ndr_points"].([]interface{})), 3)

	// latency was off, the key must not appear
	_, ok := decoded["latency"]
	assert.Assert(t, !ok)
}

func TestResultsToYAML(t *testing.T) {
	results := finishedResults(t)

	doc, err := results.ToYAML()
	assert.Assert(t, err == nil)

	text := string(doc)
	assert.Assert(t, strings.Contains(text, "ndr_percent: 100"))
	assert.Assert(t, strings.Contains(text, "setup_name: ut"))
}

func TestResultPointNaming(t *testing.T) {
	results := finishedResults(t)

	assert.Equal(t, results.NdrPoints[0].Name, "NDR")
	assert.Equal(t, results.NdrPoints[1].Name, "NDR/2")
	assert.Equal(t, results.NdrPoints[2].Name, "NDR/3")
	assert.Equal(t, results.NdrPoints[2].RateBPS, results.NdrBPS/3)
}
