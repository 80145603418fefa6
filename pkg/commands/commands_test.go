package commands

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/config"
	"github.com/deployctl/deployctl/pkg/runcontext"
	"github.com/deployctl/deployctl/pkg/topology"
)

func recordingContext() (*runcontext.Context, *[]topology.State, *[]string) {
	states := &[]topology.State{}
	labels := &[]string{}
	rc := runcontext.New(runcontext.Options{
		Topology: topology.New("myapp"),
		OnStateChange: func(state topology.State) {
			*states = append(*states, state)
		},
		OnStep: func(label string, phase runcontext.StepPhase, detail string) {
			if phase == runcontext.PhaseInProgress {
				*labels = append(*labels, label)
			}
		},
	})
	return rc, states, labels
}

func Test_Run_SuccessTransitionsProvisioningToDeployed(t *testing.T) {
	RegisterTestingT(t)

	rc, states, _ := recordingContext()
	cmd := &Command{
		rc:      rc,
		start:   topology.StateProvisioning,
		success: topology.StateDeployed,
		steps: []step{
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) error { return nil },
		},
	}

	Expect(cmd.Run(context.Background())).To(Succeed())
	Expect(*states).To(Equal([]topology.State{topology.StateProvisioning, topology.StateDeployed}))
}

func Test_Run_StepErrorFlipsToFailedAndPropagates(t *testing.T) {
	RegisterTestingT(t)

	rc, states, _ := recordingContext()
	boom := errors.New("provider unavailable")
	ran := 0
	cmd := &Command{
		rc:      rc,
		start:   topology.StateProvisioning,
		success: topology.StateDeployed,
		steps: []step{
			func(ctx context.Context) error { ran++; return nil },
			func(ctx context.Context) error { ran++; return boom },
			func(ctx context.Context) error { ran++; return nil },
		},
	}

	err := cmd.Run(context.Background())
	Expect(err).To(MatchError(boom))
	Expect(ran).To(Equal(2))
	Expect((*states)[len(*states)-1]).To(Equal(topology.StateFailed))
}

func Test_Run_AbortBetweenStepsStopsThePipeline(t *testing.T) {
	RegisterTestingT(t)

	rc, states, _ := recordingContext()
	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	cmd := &Command{
		rc:      rc,
		start:   topology.StateProvisioning,
		success: topology.StateDeployed,
		steps: []step{
			func(context.Context) error { ran++; cancel(); return nil },
			func(context.Context) error { ran++; return nil },
		},
	}

	err := cmd.Run(ctx)
	Expect(err).To(HaveOccurred())
	Expect(ran).To(Equal(1))
	Expect((*states)[len(*states)-1]).To(Equal(topology.StateFailed))
}

func Test_NewDeploy_SkipsOptionalStagesForMinimalConfig(t *testing.T) {
	RegisterTestingT(t)

	minimal := &config.Configuration{
		Name:    "myapp",
		Compute: config.ComputeConfig{Master: config.ServerGroupSpec{InstanceType: "cpx21"}},
	}
	full := &config.Configuration{
		Name:       "myapp",
		Compute:    config.ComputeConfig{Master: config.ServerGroupSpec{InstanceType: "cpx21"}},
		Cloudflare: &config.CloudflareConfig{Domain: "example.com"},
		Databases:  map[string]config.DatabaseSpec{"postgres": {Username: "app", Database: "app", Password: "pwd"}},
		App:        &config.AppConfig{Processes: map[string]config.ProcessSpec{"web": {Command: "bin/server"}}},
	}

	rc, _, _ := recordingContext()
	Expect(NewDeploy(minimal, rc, nil).steps).To(HaveLen(4))
	Expect(NewDeploy(full, rc, nil).steps).To(HaveLen(9))
}

func Test_NewDestroy_StateMachineEndsDestroyed(t *testing.T) {
	RegisterTestingT(t)

	rc, states, _ := recordingContext()
	cmd := NewDestroy(&config.Configuration{Name: "myapp"}, rc, nil)
	cmd.steps = []step{func(context.Context) error { return nil }}

	Expect(cmd.Run(context.Background())).To(Succeed())
	Expect(*states).To(Equal([]topology.State{topology.StateDestroying, topology.StateDestroyed}))
}

func Test_NeedsVolumes(t *testing.T) {
	RegisterTestingT(t)

	Expect(needsVolumes(&config.Configuration{})).To(BeFalse())
	Expect(needsVolumes(&config.Configuration{
		Databases: map[string]config.DatabaseSpec{"postgres": {}},
	})).To(BeTrue())
	Expect(needsVolumes(&config.Configuration{
		Services: map[string]config.ServiceSpec{"minio": {MountPath: "/data"}},
	})).To(BeTrue())
}
