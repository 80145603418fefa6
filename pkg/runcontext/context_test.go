package runcontext

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/topology"
)

func Test_New_DefaultsCallbacksToNoOps(t *testing.T) {
	RegisterTestingT(t)

	c := New(Options{Topology: topology.New("myapp")})
	Expect(c.RunID).NotTo(BeEmpty())

	Expect(func() {
		c.OnStep("x", PhaseDone, "")
		c.OnStateChange(topology.StateDeployed)
		c.OnRolloutProgress(RolloutProgress{})
		c.OnLog("cat", "line")
	}).NotTo(Panic())
}

func Test_Step_EmitsInProgressThenDoneOnSuccess(t *testing.T) {
	RegisterTestingT(t)

	var events []StepPhase
	c := New(Options{
		Topology: topology.New("myapp"),
		OnStep:   func(label string, phase StepPhase, detail string) { events = append(events, phase) },
	})

	err := c.Step(context.Background(), "SetupCluster", func(ctx context.Context) error { return nil })
	Expect(err).NotTo(HaveOccurred())
	Expect(events).To(Equal([]StepPhase{PhaseInProgress, PhaseDone}))
}

func Test_Step_EmitsErrorPhaseAndPropagatesOnFailure(t *testing.T) {
	RegisterTestingT(t)

	var events []StepPhase
	var details []string
	c := New(Options{
		Topology: topology.New("myapp"),
		OnStep: func(label string, phase StepPhase, detail string) {
			events = append(events, phase)
			details = append(details, detail)
		},
	})

	boom := errors.New("boom")
	err := c.Step(context.Background(), "SetupCluster", func(ctx context.Context) error { return boom })
	Expect(err).To(Equal(boom))
	Expect(events).To(Equal([]StepPhase{PhaseInProgress, PhaseError}))
	Expect(details[1]).To(Equal("boom"))
}

func Test_SetState_FiresOnStateChange(t *testing.T) {
	RegisterTestingT(t)

	var seen topology.State
	c := New(Options{
		Topology:      topology.New("myapp"),
		OnStateChange: func(state topology.State) { seen = state },
	})

	c.SetState(topology.StateProvisioning)
	Expect(seen).To(Equal(topology.StateProvisioning))
	Expect(c.Topology.State).To(Equal(topology.StateProvisioning))
}
