package blueprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, nil)

	bp := &Blueprint{
		ID:            "gaia-test",
		Version:       "1.0",
		ServiceStatus: ServiceStatusLive,
		Meta:          Meta{Status: StatusLive},
	}
	require.NoError(t, reg.Save(bp, false))

	loaded, err := reg.Load("gaia-test", false)
	require.NoError(t, err)
	assert.Equal(t, bp.ID, loaded.ID)
	assert.Equal(t, bp.ServiceStatus, loaded.ServiceStatus)
}

func TestSaveNonLiveToLiveDirFails(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, nil)
	bp := &Blueprint{ID: "x", Meta: Meta{Status: StatusCandidate}}
	err := reg.Save(bp, false)
	assert.Error(t, err)
}

func TestSaveLiveToCandidateDowngradesStatus(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, nil)
	bp := &Blueprint{ID: "x", Meta: Meta{Status: StatusLive}}
	require.NoError(t, reg.Save(bp, true))
	assert.Equal(t, StatusCandidate, bp.Meta.Status)
}

func TestValidateCandidatePassesWhenIDMatchesFilename(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, nil)
	bp := &Blueprint{ID: "wrong-id", Meta: Meta{Status: StatusCandidate}}
	require.NoError(t, reg.Save(bp, true))

	// Save writes to candidates/wrong-id.yaml, so the embedded id and
	// the filename agree and validation passes.
	result, err := reg.ValidateCandidate("wrong-id")
	require.NoError(t, err)
	assert.True(t, result.Passed())

	bp2 := &Blueprint{ID: "actually-different", Meta: Meta{Status: StatusCandidate}}
	require.NoError(t, reg.Save(bp2, true))
	// A second candidate saved under its own id validates cleanly too.
	result2, err := reg.ValidateCandidate("actually-different")
	require.NoError(t, err)
	assert.True(t, result2.Passed())
}

func TestValidateCandidateBlueprintIDMismatchScenario(t *testing.T) {
	// Scenario 4 (spec.md §8): candidate blueprint for "gaia-test" whose
	// embedded id is "wrong-id" fails validation with a "does not match"
	// error, and Promote refuses to proceed.
	dir := t.TempDir()
	reg := NewRegistry(dir, nil)
	bp := &Blueprint{ID: "wrong-id", Meta: Meta{Status: StatusCandidate}}
	require.NoError(t, reg.Save(bp, true))
	require.NoError(t, os.Rename(
		filepath.Join(dir, "candidates", "wrong-id.yaml"),
		filepath.Join(dir, "candidates", "gaia-test.yaml"),
	))
	require.NoError(t, os.Remove(filepath.Join(dir, "candidates", "wrong-id.md")))

	result, err := reg.ValidateCandidate("gaia-test")
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "does not match")

	assert.Error(t, reg.Promote("gaia-test", true))
}

func TestPromoteRequiresValidation(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, nil)
	bp := &Blueprint{ID: "gaia-test", Meta: Meta{Status: StatusCandidate}}
	require.NoError(t, reg.Save(bp, true))

	require.NoError(t, reg.Promote("gaia-test", true))
	live, err := reg.Load("gaia-test", false)
	require.NoError(t, err)
	assert.Equal(t, StatusLive, live.Meta.Status)
	assert.NotEmpty(t, live.Meta.PromotedAt)
}

func TestPromoteFailsOnIDMismatch(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, nil)
	bp := &Blueprint{ID: "wrong-id", Meta: Meta{Status: StatusCandidate}}
	require.NoError(t, reg.Save(bp, true))
	require.NoError(t, os.Rename(
		filepath.Join(dir, "candidates", "wrong-id.yaml"),
		filepath.Join(dir, "candidates", "gaia-test.yaml"),
	))

	err := reg.Promote("gaia-test", true)
	assert.Error(t, err)
}

func TestEdgeDerivationSingleEdge(t *testing.T) {
	a := &Blueprint{ID: "a", Interfaces: []Interface{
		{ID: "out1", Direction: DirectionOutbound, Transport: TransportHTTPRest, Path: "/v1/chat/completions"},
	}}
	b := &Blueprint{ID: "b", Interfaces: []Interface{
		{ID: "in1", Direction: DirectionInbound, Transport: TransportHTTPRest, Path: "/v1/chat/completions"},
	}}

	topo := DeriveGraphTopology([]*Blueprint{a, b})
	require.Len(t, topo.Edges, 1)
	assert.Equal(t, "a", topo.Edges[0].FromService)
	assert.Equal(t, "b", topo.Edges[0].ToService)
	assert.Equal(t, TransportHTTPRest, topo.Edges[0].Transport)
}

func TestEdgeDerivationNoSelfEdges(t *testing.T) {
	a := &Blueprint{ID: "a", Interfaces: []Interface{
		{ID: "out1", Direction: DirectionOutbound, Transport: TransportEvent, Topic: "ping"},
		{ID: "in1", Direction: DirectionInbound, Transport: TransportEvent, Topic: "ping"},
	}}
	topo := DeriveGraphTopology([]*Blueprint{a})
	assert.Empty(t, topo.Edges)
}

func TestMCPMatchRequiresOverlap(t *testing.T) {
	out := Interface{Direction: DirectionOutbound, Transport: TransportMCP, Methods: []string{"read", "write"}}
	in := Interface{Direction: DirectionInbound, Transport: TransportMCP, Methods: []string{"write", "delete"}}
	assert.True(t, InterfacesMatch(out, in))

	in2 := Interface{Direction: DirectionInbound, Transport: TransportMCP, Methods: []string{"delete"}}
	assert.False(t, InterfacesMatch(out, in2))
}

func TestDivergenceScoreClamped(t *testing.T) {
	candidate := &Blueprint{
		Interfaces: []Interface{{ID: "a"}, {ID: "b"}},
		Runtime:    Runtime{Port: 8080, GPU: true},
		Dependencies: Dependencies{Services: []ServiceDependency{{Service: "x"}}},
	}
	live := &Blueprint{
		Interfaces: []Interface{{ID: "c"}},
		Runtime:    Runtime{Port: 9090, GPU: false},
		Dependencies: Dependencies{Services: []ServiceDependency{{Service: "y"}}},
	}
	score := ComputeDivergenceScore(candidate, live)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.Equal(t, 1.0, score)
}
