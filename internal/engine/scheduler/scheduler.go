// Package scheduler decides, per build phase, whether and how much to
// parallelize.
package scheduler

import "github.com/lbliii/bengal/internal/core/domain"

// Phase names the workload shapes the scheduler knows about.
type Phase string

const (
	// PhaseDiscovery is the I/O-bound source walk and fingerprinting pass.
	PhaseDiscovery Phase = "discovery"
	// PhaseRender is the CPU-bound parse-and-render pass.
	PhaseRender Phase = "render"
	// PhasePostProcess covers aggregate recomputation passes.
	PhasePostProcess Phase = "postprocess"
)

// Decision is the scheduler's answer for one phase invocation.
type Decision struct {
	Workers  int
	Parallel bool
}

// Profile is a calibrated phase profile. Calibration happens offline per
// phase shape and ships as defaults; live per-build calibration would cost
// more than it saves on small sites.
type Profile struct {
	// BreakEven is the minimum task count above which parallel execution
	// outperforms sequential. At or below it, worker setup dominates.
	BreakEven int

	// SmallOptimal and LargeOptimal are the measured best worker counts
	// for workloads below and at-or-above LargeWorkload. They differ:
	// small workloads drown in coordination before they saturate cores.
	SmallOptimal  int
	LargeOptimal  int
	LargeWorkload int

	// ContentionPoint is the worker count beyond which measured slowdown
	// exceeds 10%. The decision never exceeds it.
	ContentionPoint int
}

// Scheduler holds the per-phase profiles and the global sequential override.
type Scheduler struct {
	profiles        map[Phase]Profile
	forceSequential bool
}

// New creates a Scheduler from the shipped defaults, applying any per-phase
// tuning from configuration. forceSequential pins every phase to one worker
// regardless of workload, used as a benchmarking baseline and for
// deterministic-order debugging.
func New(tuning map[string]domain.PhaseTuning, forceSequential bool) *Scheduler {
	profiles := make(map[Phase]Profile, len(defaultProfiles))
	for phase, p := range defaultProfiles {
		if t, ok := tuning[string(phase)]; ok {
			p = p.override(t)
		}
		profiles[phase] = p
	}
	return &Scheduler{profiles: profiles, forceSequential: forceSequential}
}

func (p Profile) override(t domain.PhaseTuning) Profile {
	if t.BreakEven > 0 {
		p.BreakEven = t.BreakEven
	}
	if t.SmallOptimal > 0 {
		p.SmallOptimal = t.SmallOptimal
	}
	if t.LargeOptimal > 0 {
		p.LargeOptimal = t.LargeOptimal
	}
	if t.LargeWorkload > 0 {
		p.LargeWorkload = t.LargeWorkload
	}
	if t.ContentionPoint > 0 {
		p.ContentionPoint = t.ContentionPoint
	}
	return p
}

// Choose returns the execution decision for a phase and task count.
func (s *Scheduler) Choose(phase Phase, taskCount int) Decision {
	if s.forceSequential || taskCount <= 0 {
		return Decision{Workers: 1, Parallel: false}
	}

	profile, ok := s.profiles[phase]
	if !ok {
		profile = defaultProfiles[PhaseRender]
	}

	if taskCount <= profile.BreakEven {
		return Decision{Workers: 1, Parallel: false}
	}

	optimal := profile.SmallOptimal
	if taskCount >= profile.LargeWorkload {
		optimal = profile.LargeOptimal
	}

	workers := min(optimal, profile.ContentionPoint, taskCount)
	if workers <= 1 {
		return Decision{Workers: 1, Parallel: false}
	}
	return Decision{Workers: workers, Parallel: true}
}
