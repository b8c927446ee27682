package scenario_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/regiontree/internal/scenario"
	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
)

func TestSchemaIsValidJSON(t *testing.T) {
	t.Parallel()

	var schema map[string]any

	require.NoError(t, json.Unmarshal(scenario.Schema(), &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestLoadLifecycle(t *testing.T) {
	t.Parallel()

	sc, err := scenario.Load("testdata/lifecycle.yaml")
	require.NoError(t, err)

	assert.Equal(t, "lifecycle", sc.Name)
	assert.Equal(t, 16, sc.Capacity)
	require.Len(t, sc.Steps, 20)

	first := sc.Steps[0]
	require.NotNil(t, first.Insert)
	assert.Equal(t, regions.Region{Start: 0, Size: 4096, Kind: regions.KindAllocated}, first.Insert.Region())

	after := sc.Steps[4].InsertAfter
	require.NotNil(t, after)
	assert.Equal(t, uint64(0x3000), after.Anchor)
	assert.Equal(t, uint64(0x5000), after.Start)

	assert.Equal(t, "overlap", sc.Steps[5].Error)
	assert.Nil(t, sc.Steps[8].Lookup.Start)
	assert.True(t, sc.Steps[14].Hibernate)
	assert.Equal(t, "boot", sc.Steps[15].Op())
}

func TestReplayLifecycle(t *testing.T) {
	t.Parallel()

	sc, err := scenario.Load("testdata/lifecycle.yaml")
	require.NoError(t, err)

	set := sc.NewSet()
	report := scenario.Replay(context.Background(), set, sc)

	assert.Empty(t, report.Failed())
	assert.True(t, report.Passed())
	assert.Len(t, report.Steps, 20)
	assert.Equal(t, 2, set.Len())
}

func TestReplayReportsFailures(t *testing.T) {
	t.Parallel()

	sc, err := scenario.Parse([]byte(`
name: failures
hibernation_threshold: 100
steps:
  - insert: {start: 0, size: 4KiB}
  - insert: {start: 0x1000, size: 4KiB}
    error: overlap
  - lookup: {addr: 0x10, start: 0x1000}
  - remove: {start: 0x8000}
  - coalesce: {merged: 5}
  - hibernate: true
  - expect: {regions: 1}
`))
	require.NoError(t, err)

	set := sc.NewSet()
	report := scenario.Replay(context.Background(), set, sc)

	failed := report.Failed()
	require.Len(t, failed, 4)

	assert.Equal(t, 1, failed[0].Index)
	assert.Contains(t, failed[0].Detail, "operation succeeded")
	assert.Equal(t, "lookup", failed[1].Op)
	assert.Equal(t, "remove", failed[2].Op)
	assert.Equal(t, "coalesce", failed[3].Op)

	// Below the threshold the set stays awake, so the final step runs.
	assert.False(t, set.Hibernated())
	assert.True(t, report.Steps[6].Passed)
}

func TestReplayRefusesHibernatedSet(t *testing.T) {
	t.Parallel()

	sc, err := scenario.Parse([]byte(`
name: sleepy
steps:
  - insert: {start: 0, size: 4KiB}
  - insert: {start: 0x2000, size: 4KiB}
  - hibernate: true
  - lookup: {addr: 0}
  - boot: true
  - lookup: {addr: 0, start: 0}
`))
	require.NoError(t, err)

	report := scenario.Replay(context.Background(), sc.NewSet(), sc)

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].Index)
	assert.Contains(t, failed[0].Detail, "hibernated")
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"missing steps", "name: x\n"},
		{"no steps", "name: x\nsteps: []\n"},
		{"unknown op", "name: x\nsteps:\n  - grow: {start: 0}\n"},
		{"two ops", "name: x\nsteps:\n  - verify: true\n    boot: true\n"},
		{"bad kind", "name: x\nsteps:\n  - insert: {start: 0, size: 1, kind: mapped}\n"},
		{"bad size", "name: x\nsteps:\n  - insert: {start: 0, size: lots}\n"},
		{"bad error", "name: x\nsteps:\n  - remove: {start: 0}\n    error: boom\n"},
		{"update without change", "name: x\nsteps:\n  - update: {start: 0}\n"},
		{"not yaml", "name: [\n"},
	}

	for _, tt := range tests {
		_, err := scenario.Parse([]byte(tt.doc))
		require.ErrorIs(t, err, scenario.ErrInvalidScenario, tt.name)
	}
}

func TestBytesDecoding(t *testing.T) {
	t.Parallel()

	sc, err := scenario.Parse([]byte(`
name: sizes
steps:
  - insert: {start: 0, size: 1536}
  - insert: {start: 0x10000, size: "2 MiB"}
  - insert: {start: 0x1000000, size: 1.5KiB}
`))
	require.NoError(t, err)

	assert.Equal(t, scenario.Bytes(1536), sc.Steps[0].Insert.Size)
	assert.Equal(t, scenario.Bytes(2<<20), sc.Steps[1].Insert.Size)
	assert.Equal(t, scenario.Bytes(1536), sc.Steps[2].Insert.Size)
}
