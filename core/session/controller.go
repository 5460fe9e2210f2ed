package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/forgehq/forge/core/budget"
	"github.com/forgehq/forge/core/memory"
	"github.com/forgehq/forge/core/resolver"
)

// =============================================================================
// Controller
// =============================================================================

// Config holds the collaborators and declarations for one session.
type Config struct {
	// Resolver produces the session's load plan.
	Resolver *resolver.Resolver

	// Store is the shared memory store.
	Store *memory.Store

	// Budget is the session-owned budget tracker.
	Budget *budget.Tracker

	// Scopes are the memory scopes the task declares: the agent's own plus
	// any skill it delegates to.
	Scopes []memory.Scope
}

// Bundle is the opaque data handed to the external collaborator: the memory
// read at session start plus the frozen load plan. The engine does not
// interpret either.
type Bundle struct {
	SessionID string
	Memory    map[memory.Scope][]memory.Entry
	Plan      *resolver.LoadPlan
}

// Controller sequences one task through the fixed lifecycle
// Init → MemoryLoaded → ContextResolved → Executing → MemoryCommitted →
// Closed. It is single-use; concurrent sessions each get their own
// Controller and budget tracker.
type Controller struct {
	mu sync.Mutex

	id       string
	config   Config
	state    State
	entries  map[memory.Scope][]memory.Entry
	degraded map[memory.Scope]error
	plan     *resolver.LoadPlan
	batch    *memory.Batch
}

// NewController creates a session in StateInit.
func NewController(config Config) (*Controller, error) {
	if len(config.Scopes) == 0 {
		return nil, ErrNoScopes
	}
	for _, scope := range config.Scopes {
		if !scope.Valid() {
			return nil, fmt.Errorf("%w: %s", memory.ErrInvalidScope, scope)
		}
	}

	return &Controller{
		id:       uuid.New().String(),
		config:   config,
		state:    StateInit,
		entries:  make(map[memory.Scope][]memory.Entry),
		degraded: make(map[memory.Scope]error),
		batch:    config.Store.NewBatch(),
	}, nil
}

// ID returns the session's unique identifier.
func (c *Controller) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// advance moves to the target state or reports the contract violation.
func (c *Controller) advance(target State) error {
	if c.state == StateClosed {
		return ErrClosed
	}
	if !c.state.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, target)
	}
	c.state = target
	return nil
}

// LoadMemory reads every declared scope. A read failure in one scope
// degrades that scope to an empty result rather than failing the session;
// degraded scopes are reported via DegradedScopes. Init → MemoryLoaded.
func (c *Controller) LoadMemory(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.advance(StateMemoryLoaded); err != nil {
		return err
	}

	for _, scope := range c.config.Scopes {
		entries, err := c.config.Store.Read(ctx, scope)
		if err != nil {
			c.degraded[scope] = err
			c.entries[scope] = nil
			continue
		}
		c.entries[scope] = entries
	}
	return nil
}

// ResolveContext runs the resolver exactly once; the resulting plan is
// frozen for the rest of the session. MemoryLoaded → ContextResolved.
// A resolver configuration defect fails the session without a partial plan.
func (c *Controller) ResolveContext(signal resolver.TaskSignal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.advance(StateContextResolved); err != nil {
		return err
	}

	plan, err := c.config.Resolver.Resolve(signal, c.config.Budget)
	if err != nil {
		c.state = StateClosed
		c.config.Budget.Release()
		return err
	}
	c.plan = plan
	return nil
}

// Begin hands the frozen bundle to the external collaborator.
// ContextResolved → Executing.
func (c *Controller) Begin() (*Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.advance(StateExecuting); err != nil {
		return nil, err
	}

	bundle := &Bundle{
		SessionID: c.id,
		Memory:    make(map[memory.Scope][]memory.Entry, len(c.entries)),
		Plan:      c.plan,
	}
	for scope, entries := range c.entries {
		bundle.Memory[scope] = entries
	}
	return bundle, nil
}

// CommitMemory stages deltas for one scope. Callable any number of times
// while Executing (once per collaborator scope, typically). Deltas without
// an origin are stamped with the session ID.
func (c *Controller) CommitMemory(scope memory.Scope, deltas []memory.Delta) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrClosed
	}
	if c.state != StateExecuting {
		return fmt.Errorf("%w: commit memory in %s", ErrInvalidTransition, c.state)
	}

	for _, delta := range deltas {
		if delta.Origin == "" {
			delta.Origin = c.id
		}
		if err := c.batch.Merge(scope, delta); err != nil {
			return err
		}
	}
	return nil
}

// Finish flushes all staged deltas through the store, one transaction per
// scope. Executing → MemoryCommitted. A *memory.CommitError reports exactly
// the scopes that failed; the session still reaches MemoryCommitted so the
// caller can inspect, retry via the store, and close.
func (c *Controller) Finish(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.advance(StateMemoryCommitted); err != nil {
		return err
	}
	return c.batch.Commit(ctx)
}

// Close releases the budget tracker. MemoryCommitted → Closed; terminal and
// non-reusable.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.advance(StateClosed); err != nil {
		return err
	}
	c.config.Budget.Release()
	return nil
}

// Plan returns the frozen load plan, nil before ContextResolved.
func (c *Controller) Plan() *resolver.LoadPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// DegradedScopes returns the scopes whose memory read failed and was
// degraded to an empty result, with the causing errors.
func (c *Controller) DegradedScopes() map[memory.Scope]error {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[memory.Scope]error, len(c.degraded))
	for scope, err := range c.degraded {
		out[scope] = err
	}
	return out
}
