package domain

// PhaseTuning overrides one calibrated scheduler profile from configuration.
// Zero fields keep the shipped default.
type PhaseTuning struct {
	BreakEven       int `yaml:"break_even"`
	SmallOptimal    int `yaml:"small_optimal"`
	LargeOptimal    int `yaml:"large_optimal"`
	LargeWorkload   int `yaml:"large_workload"`
	ContentionPoint int `yaml:"contention_point"`
}

// CacheConfig controls the persistent cache store.
type CacheConfig struct {
	// File is the cache file path relative to the build root.
	File string `yaml:"file"`

	// Compress wraps committed snapshots in a zstd envelope. The envelope
	// self-describes, so reading never depends on this setting.
	Compress bool `yaml:"compress"`
}

// Config is the engine configuration loaded from bengal.yaml.
type Config struct {
	Root string `yaml:"-"`

	ContentDir   string `yaml:"content_dir"`
	TemplatesDir string `yaml:"templates_dir"`
	DataDir      string `yaml:"data_dir"`
	AssetsDir    string `yaml:"assets_dir"`
	OutputDir    string `yaml:"output_dir"`

	// Parallel, when false, forces sequential execution in every phase.
	// A benchmarking baseline and a deterministic-order debugging aid.
	Parallel *bool `yaml:"parallel"`

	// Fast disables non-essential diagnostics (per-page telemetry,
	// fragment-cache counters) without changing build correctness.
	Fast bool `yaml:"fast"`

	// MemoryOptimized streams output writes from the workers instead of
	// buffering rendered bodies through the collect phase, trading peak
	// memory for wall time.
	MemoryOptimized bool `yaml:"memory_optimized"`

	Cache     CacheConfig            `yaml:"cache"`
	Scheduler map[string]PhaseTuning `yaml:"scheduler"`

	// BaseURL is passed through to renderers for absolute links.
	BaseURL string `yaml:"base_url"`

	// Title is passed through to renderers.
	Title string `yaml:"title"`
}

// ParallelEnabled reports the effective parallel setting; nil means on.
func (c *Config) ParallelEnabled() bool {
	return c.Parallel == nil || *c.Parallel
}
