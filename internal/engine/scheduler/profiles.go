package scheduler

import "runtime"

// defaultProfiles are the shipped calibration results, one per phase shape.
// Discovery is I/O bound and tolerates more workers than cores; rendering is
// CPU bound and tops out near the core count; post-processing batches are
// small and rarely worth spreading wide.
var defaultProfiles = map[Phase]Profile{
	PhaseDiscovery: {
		BreakEven:       16,
		SmallOptimal:    4,
		LargeOptimal:    2 * runtime.NumCPU(),
		LargeWorkload:   256,
		ContentionPoint: 32,
	},
	PhaseRender: {
		BreakEven:       4,
		SmallOptimal:    2,
		LargeOptimal:    runtime.NumCPU(),
		LargeWorkload:   64,
		ContentionPoint: runtime.NumCPU() + 2,
	},
	PhasePostProcess: {
		BreakEven:       8,
		SmallOptimal:    2,
		LargeOptimal:    max(2, runtime.NumCPU()/2),
		LargeWorkload:   128,
		ContentionPoint: max(2, runtime.NumCPU()),
	},
}
