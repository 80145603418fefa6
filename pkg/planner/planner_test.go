package planner

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/deployctl/deployctl/pkg/config"
	"github.com/deployctl/deployctl/pkg/topology"
)

func Test_Reconcile_FirstDeploy_CreatesMasterOnly(t *testing.T) {
	RegisterTestingT(t)

	cfg := &config.Configuration{
		Compute: config.ComputeConfig{Master: config.ServerGroupSpec{InstanceType: "cpx21"}},
	}

	plan, err := Reconcile(cfg, "myapp", map[string]topology.Server{})
	Expect(err).NotTo(HaveOccurred())
	Expect(plan.ToCreate).To(Equal([]string{"myapp-master-1"}))
	Expect(plan.ToRemove).To(BeEmpty())
}

func Test_Reconcile_ScaleDown_RemovesExcessReversed(t *testing.T) {
	RegisterTestingT(t)

	cfg := &config.Configuration{
		Compute: config.ComputeConfig{Master: config.ServerGroupSpec{InstanceType: "cpx21"}},
	}

	observed := map[string]topology.Server{
		"myapp-master-1": {InstanceType: "cpx21"},
		"myapp-web-1":    {InstanceType: "cpx21"},
		"myapp-web-2":    {InstanceType: "cpx21"},
	}

	plan, err := Reconcile(cfg, "myapp", observed)
	Expect(err).NotTo(HaveOccurred())
	Expect(plan.ToCreate).To(BeEmpty())
	Expect(plan.ToRemove).To(Equal([]string{"myapp-web-2", "myapp-web-1"}))
}

func Test_Reconcile_MasterTypeChange_RaisesConfigurationError(t *testing.T) {
	RegisterTestingT(t)

	cfg := &config.Configuration{
		Compute: config.ComputeConfig{Master: config.ServerGroupSpec{InstanceType: "cpx31"}},
	}

	observed := map[string]topology.Server{
		"myapp-master-1": {InstanceType: "cpx21"},
	}

	_, err := Reconcile(cfg, "myapp", observed)
	Expect(err).To(HaveOccurred())
	Expect(err).To(BeAssignableToTypeOf(&config.ConfigurationError{}))
}

func Test_Reconcile_MasterNeverInToRemove(t *testing.T) {
	RegisterTestingT(t)

	cfg := &config.Configuration{
		Compute: config.ComputeConfig{Master: config.ServerGroupSpec{InstanceType: "cpx21"}},
	}

	observed := map[string]topology.Server{"myapp-master-1": {InstanceType: "cpx21"}}
	plan, err := Reconcile(cfg, "myapp", observed)
	Expect(err).NotTo(HaveOccurred())
	Expect(plan.ToRemove).NotTo(ContainElement("myapp-master-1"))
}

func Test_Desired_AdditionalGroupsSortedByName(t *testing.T) {
	RegisterTestingT(t)

	cfg := &config.Configuration{
		Compute: config.ComputeConfig{
			Master: config.ServerGroupSpec{InstanceType: "cpx21"},
			Servers: map[string]config.ServerGroupSpec{
				"web":    {InstanceType: "cpx21", Count: 2},
				"worker": {InstanceType: "cpx11", Count: 1},
			},
		},
	}

	groups := Desired(cfg)
	Expect(groups).To(HaveLen(3))
	Expect(groups[0].Group).To(Equal("master"))
	Expect(groups[1].Group).To(Equal("web"))
	Expect(groups[2].Group).To(Equal("worker"))
}
