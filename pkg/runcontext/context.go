// Package runcontext defines the per-run mutable workspace a command
// builds once and threads through every step: the observed/desired
// topology, the provider clients steps share, and the observability
// callbacks a step fires on every state transition. A Context owns
// its topology and clients exclusively for its lifetime; callbacks are
// borrowed references the command invokes synchronously, never
// copied or retained past the call that owns the Context.
package runcontext

import (
	"context"

	"github.com/google/uuid"

	"github.com/deployctl/deployctl/pkg/clouds/cloudflare"
	"github.com/deployctl/deployctl/pkg/clouds/compute"
	"github.com/deployctl/deployctl/pkg/observability/logger"
	"github.com/deployctl/deployctl/pkg/topology"
)

// StepPhase is the lifecycle phase a step's on_step event reports.
type StepPhase string

const (
	PhaseInProgress StepPhase = "in_progress"
	PhaseDone       StepPhase = "done"
	PhaseError      StepPhase = "error"
)

// RolloutProgress is one on_rollout_progress sample: how many of a
// workload's desired replicas are ready right now.
type RolloutProgress struct {
	Workload string
	Ready    int
	Desired  int
}

// OnStepFunc, OnStateChangeFunc, OnRolloutProgressFunc and OnLogFunc
// are the four observability callbacks a Context invokes. Any of them
// may be nil, in which case the event is simply dropped.
type OnStepFunc func(label string, phase StepPhase, detail string)
type OnStateChangeFunc func(state topology.State)
type OnRolloutProgressFunc func(progress RolloutProgress)
type OnLogFunc func(category, line string)

// Context is the per-run mutable workspace every step receives. It is
// built once per command invocation and never shared across runs.
type Context struct {
	RunID         string
	HTTPUserAgent string
	Logger        logger.Logger

	Topology   *topology.Topology
	Compute    compute.Provider
	Cloudflare *cloudflare.Client

	OnStep            OnStepFunc
	OnStateChange     OnStateChangeFunc
	OnRolloutProgress OnRolloutProgressFunc
	OnLog             OnLogFunc
}

// Options configures the callbacks and clients a New Context carries;
// every field is optional except Topology.
type Options struct {
	Topology   *topology.Topology
	Compute    compute.Provider
	Cloudflare *cloudflare.Client

	OnStep            OnStepFunc
	OnStateChange     OnStateChangeFunc
	OnRolloutProgress OnRolloutProgressFunc
	OnLog             OnLogFunc
}

// New builds a Context for one run: RunID is freshly generated,
// HTTPUserAgent identifies this tool's version to provider APIs, and
// every callback defaults to a no-op so steps never need a nil check.
func New(opts Options) *Context {
	c := &Context{
		RunID:             uuid.NewString(),
		HTTPUserAgent:     "deployctl/1.0",
		Logger:            logger.New(),
		Topology:          opts.Topology,
		Compute:           opts.Compute,
		Cloudflare:        opts.Cloudflare,
		OnStep:            opts.OnStep,
		OnStateChange:     opts.OnStateChange,
		OnRolloutProgress: opts.OnRolloutProgress,
		OnLog:             opts.OnLog,
	}
	if c.OnStep == nil {
		c.OnStep = func(string, StepPhase, string) {}
	}
	if c.OnStateChange == nil {
		c.OnStateChange = func(topology.State) {}
	}
	if c.OnRolloutProgress == nil {
		c.OnRolloutProgress = func(RolloutProgress) {}
	}
	if c.OnLog == nil {
		c.OnLog = func(string, string) {}
	}
	return c
}

// SetState advances the topology's state and fires on_state_change.
// Callers are responsible for only ever moving it forward.
func (c *Context) SetState(state topology.State) {
	c.Topology.SetState(state)
	c.OnStateChange(state)
}

// Step fires a matching in_progress/done (or error) pair around fn,
// the pattern every remote-mutating step in the run follows.
func (c *Context) Step(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	c.OnStep(label, PhaseInProgress, "")
	if err := fn(ctx); err != nil {
		c.OnStep(label, PhaseError, err.Error())
		return err
	}
	c.OnStep(label, PhaseDone, "")
	return nil
}
