package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/steveyegge/jury/internal/types"
)

// Builder constructs a fresh agent instance. Agents carry per-run
// state (their result and adjustment bookkeeping), so every run builds
// its own instances rather than reusing them across runs.
type Builder func() (Agent, error)

// Registry holds the agent builders participating in evaluations.
type Registry struct {
	mu       sync.Mutex
	builders map[types.AgentID]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[types.AgentID]Builder)}
}

// Register adds a builder under the given identity. Registering the
// same identity twice is an error.
func (r *Registry) Register(id types.AgentID, build Builder) error {
	if id == "" {
		return fmt.Errorf("agent id is required")
	}
	if build == nil {
		return fmt.Errorf("builder is required for agent %s", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[id]; exists {
		return fmt.Errorf("agent %s is already registered", id)
	}
	r.builders[id] = build
	return nil
}

// IDs returns the registered identities in alphabetical order.
func (r *Registry) IDs() []types.AgentID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]types.AgentID, 0, len(r.builders))
	for id := range r.builders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.builders)
}

// Build constructs one fresh agent per registered identity, in
// alphabetical order. A builder returning a different identity than it
// was registered under is an error.
func (r *Registry) Build() ([]Agent, error) {
	ids := r.IDs()

	agents := make([]Agent, 0, len(ids))
	for _, id := range ids {
		r.mu.Lock()
		build := r.builders[id]
		r.mu.Unlock()

		ag, err := build()
		if err != nil {
			return nil, fmt.Errorf("building agent %s: %w", id, err)
		}
		if ag == nil {
			return nil, fmt.Errorf("building agent %s: builder returned nil", id)
		}
		if ag.ID() != id {
			return nil, fmt.Errorf("building agent %s: builder returned agent %s", id, ag.ID())
		}
		agents = append(agents, ag)
	}
	return agents, nil
}
