// Package progress renders a run's observability callbacks to a
// plain writer: one line per step transition, one line per rollout
// sample. It has no notion of the steps themselves — it only ever
// sees the events a Context fires.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/deployctl/deployctl/pkg/observability/logger/color"
	"github.com/deployctl/deployctl/pkg/runcontext"
	"github.com/deployctl/deployctl/pkg/topology"
)

// ConsoleReporter prints step and rollout events to a writer as they
// happen, colorizing phase and state the way the rest of the tool's
// output does.
type ConsoleReporter struct {
	writer    io.Writer
	startTime time.Time
}

// NewConsoleReporter wraps writer (typically os.Stdout) in a reporter
// whose OnStep/OnStateChange/OnRolloutProgress/OnLog methods are ready
// to pass straight into runcontext.Options.
func NewConsoleReporter(writer io.Writer) *ConsoleReporter {
	return &ConsoleReporter{writer: writer, startTime: time.Now()}
}

func (r *ConsoleReporter) elapsed() string {
	return fmt.Sprintf("%.1fs", time.Since(r.startTime).Seconds())
}

func (r *ConsoleReporter) OnStep(label string, phase runcontext.StepPhase, detail string) {
	switch phase {
	case runcontext.PhaseInProgress:
		fmt.Fprintf(r.writer, "[%s] %s...\n", r.elapsed(), label)
	case runcontext.PhaseDone:
		fmt.Fprintf(r.writer, "[%s] %s\n", r.elapsed(), color.Green(label+" done"))
	case runcontext.PhaseError:
		fmt.Fprintf(r.writer, "[%s] %s: %s\n", r.elapsed(), color.Red(label+" failed"), detail)
	}
}

func (r *ConsoleReporter) OnStateChange(state topology.State) {
	fmt.Fprintf(r.writer, "[%s] state -> %s\n", r.elapsed(), color.Yellow(string(state)))
}

func (r *ConsoleReporter) OnRolloutProgress(p runcontext.RolloutProgress) {
	fmt.Fprintf(r.writer, "[%s] %s: %d/%d ready\n", r.elapsed(), p.Workload, p.Ready, p.Desired)
}

func (r *ConsoleReporter) OnLog(category, line string) {
	fmt.Fprintf(r.writer, "[%s] %s: %s\n", r.elapsed(), category, line)
}
