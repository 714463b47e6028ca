package pipeline

// Config groups the tunable knobs of the LLM-backed collaborators so callers
// can build reproducible pipelines from a single struct.
type Config struct {
	TopK              int     // How many chunks each retrieval pulls from the knowledge base
	MinScore          float32 // Drop retrieval hits scoring below this similarity
	MMRLambda         float32 // Relevance/diversity balance for retrieval, 1 = relevance only
	ApproveThreshold  float64 // Minimum reviewer score for a draft to ship
	MaxRefinedQueries int     // Upper bound on queries the refiner may emit

	ClassifierTemperature float64
	DrafterTemperature    float64
	ReviewerTemperature   float64
	RefinerTemperature    float64

	wiring pipelineConfig // Controller and client wiring, set via options
}

// Option customises the pipeline configuration.
type Option func(*Config)

// WithTopK overrides how many chunks each retrieval pulls from the knowledge base.
func WithTopK(k int) Option {
	return func(cfg *Config) {
		if k > 0 {
			cfg.TopK = k
		}
	}
}

// WithMinScore filters retrieval results below the provided similarity score.
func WithMinScore(score float32) Option {
	return func(cfg *Config) {
		if score >= 0 {
			cfg.MinScore = score
		}
	}
}

// WithMMRLambda tunes the relevance/diversity balance of retrieval.
func WithMMRLambda(lambda float32) Option {
	return func(cfg *Config) {
		if lambda > 0 && lambda <= 1 {
			cfg.MMRLambda = lambda
		}
	}
}

// WithApproveThreshold sets the minimum reviewer score for approval.
func WithApproveThreshold(threshold float64) Option {
	return func(cfg *Config) {
		if threshold > 0 && threshold <= 1 {
			cfg.ApproveThreshold = threshold
		}
	}
}

// WithMaxRefinedQueries caps how many queries the refiner may emit per rejection.
func WithMaxRefinedQueries(max int) Option {
	return func(cfg *Config) {
		if max > 0 {
			cfg.MaxRefinedQueries = max
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		TopK:              5,
		MinScore:          0,
		MMRLambda:         0.7,
		ApproveThreshold:  0.7,
		MaxRefinedQueries: 5,

		ClassifierTemperature: 0.1,
		DrafterTemperature:    0.7,
		ReviewerTemperature:   0.2,
		RefinerTemperature:    0.5,
	}
}

func applyOptions(cfg *Config, opts []Option) *Config {
	if cfg == nil {
		cfg = defaultConfig()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}
