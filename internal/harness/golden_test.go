package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotJSON_Canonical(t *testing.T) {
	result := NewResult()
	result.Records = append(result.Records, *newRecordResult(t))

	data, err := SnapshotJSON("hand_built", result)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `"scenario_name":"hand_built"`)
	assert.Contains(t, text, `"errors":[{"code":"E403","field":"edition","message":"not an integer"}]`)
	assert.NotContains(t, text, `"id"`, "store ids stay out of snapshots")
	assert.NotContains(t, text, "\n")
}

// TestRunWithGolden writes the golden file of a scenario into a temporary
// fixture dir, then checks that a second run matches it.
func TestRunWithGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/book_marcxml.yaml")
	require.NoError(t, err)

	dir := t.TempDir()
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	data, err := SnapshotJSON(scenario.Name, result)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
	require.NoError(t, g.Update(t, scenario.Name, data))

	golden, err := os.ReadFile(filepath.Join(dir, scenario.Name+".golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"personal_name":"Ellis"`)
	assert.Contains(t, string(golden), `"timestamp":"2024-01-01T00:00:00Z"`)

	again, err := RunWithGolden(t, scenario, goldie.WithFixtureDir(dir))
	require.NoError(t, err)
	assert.True(t, again.Pass, again.Errors)
}

func TestAssertGolden_SearchScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/search.yaml")
	require.NoError(t, err)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	dir := t.TempDir()
	data, err := SnapshotJSON(scenario.Name, result)
	require.NoError(t, err)
	g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
	require.NoError(t, g.Update(t, scenario.Name, data))

	require.NoError(t, AssertGolden(t, scenario.Name, result, goldie.WithFixtureDir(dir)))
}
