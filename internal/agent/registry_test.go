package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jury/internal/types"
)

func registerStub(t *testing.T, r *Registry, id types.AgentID) {
	t.Helper()
	err := r.Register(id, func() (Agent, error) {
		return New(id, stubAnalyzer(50, 0.5), nil)
	})
	require.NoError(t, err)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	registerStub(t, r, types.AgentSecurity)

	err := r.Register(types.AgentSecurity, func() (Agent, error) {
		return New(types.AgentSecurity, stubAnalyzer(50, 0.5), nil)
	})
	assert.Error(t, err)

	assert.Error(t, r.Register("", func() (Agent, error) { return nil, nil }))
	assert.Error(t, r.Register(types.AgentQuality, nil))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryIDsSorted(t *testing.T) {
	r := NewRegistry()
	registerStub(t, r, types.AgentSecurity)
	registerStub(t, r, types.AgentDocumentation)
	registerStub(t, r, types.AgentQuality)

	assert.Equal(t, []types.AgentID{
		types.AgentDocumentation,
		types.AgentQuality,
		types.AgentSecurity,
	}, r.IDs())
}

func TestRegistryBuildFreshInstances(t *testing.T) {
	r := NewRegistry()
	registerStub(t, r, types.AgentSecurity)
	registerStub(t, r, types.AgentQuality)

	first, err := r.Build()
	require.NoError(t, err)
	second, err := r.Build()
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, types.AgentQuality, first[0].ID())
	assert.Equal(t, types.AgentSecurity, first[1].ID())
	for i := range first {
		assert.NotSame(t, first[i], second[i])
	}
}

func TestRegistryBuildErrors(t *testing.T) {
	r := NewRegistry()
	err := r.Register(types.AgentSecurity, func() (Agent, error) {
		return nil, fmt.Errorf("no analyzer configured")
	})
	require.NoError(t, err)
	_, err = r.Build()
	assert.ErrorContains(t, err, "building agent security")

	mismatched := NewRegistry()
	err = mismatched.Register(types.AgentSecurity, func() (Agent, error) {
		return New(types.AgentQuality, stubAnalyzer(50, 0.5), nil)
	})
	require.NoError(t, err)
	_, err = mismatched.Build()
	assert.ErrorContains(t, err, "builder returned agent quality")
}

func TestGraphDefaultEdges(t *testing.T) {
	g := DefaultGraph()
	assert.Equal(t, []Edge{
		{From: types.AgentSecurity, To: types.AgentQuality},
		{From: types.AgentSecurity, To: types.AgentDocumentation},
		{From: types.AgentQuality, To: types.AgentDocumentation},
	}, g.Edges())

	assert.Equal(t, []types.AgentID{types.AgentQuality, types.AgentDocumentation},
		g.PeersOf(types.AgentSecurity))
	assert.Nil(t, g.PeersOf(types.AgentDocumentation))
	assert.True(t, g.HasEdge(types.AgentQuality, types.AgentDocumentation))
	assert.False(t, g.HasEdge(types.AgentDocumentation, types.AgentQuality))
}

func TestGraphAddEdgeDeduplicates(t *testing.T) {
	g := NewGraph()
	g.AddEdge(types.AgentSecurity, types.AgentQuality)
	g.AddEdge(types.AgentSecurity, types.AgentQuality)
	assert.Len(t, g.Edges(), 1)
}
