package search

// FusionStrategy selects how vector and lexical rankings are combined.
type FusionStrategy int

const (
	// StrategyRRF blends by rank position with reciprocal rank fusion.
	StrategyRRF FusionStrategy = iota
	// StrategyWeighted blends raw scores with explicit weights.
	StrategyWeighted
)

// String returns a string representation of the strategy.
func (s FusionStrategy) String() string {
	switch s {
	case StrategyRRF:
		return "rrf"
	case StrategyWeighted:
		return "weighted"
	default:
		return "unknown"
	}
}

const (
	// DefaultTopK is the default result count.
	DefaultTopK = 10

	// DefaultMinSimilarity is the default cosine similarity floor for
	// vector candidates.
	DefaultMinSimilarity = 0.7

	// DefaultRRFK is the standard RRF smoothing constant, empirically
	// validated across domains.
	DefaultRRFK = 60

	// DefaultFusionOversample is how many times topK candidates each
	// granularity fetches before merging.
	DefaultFusionOversample = 3
)

// SearchOptions holds per-call search parameters. The zero value is usable:
// missing fields fall back to the defaults above.
type SearchOptions struct {
	// TopK is the maximum number of results. Default: DefaultTopK.
	TopK int

	// MinSimilarity is the similarity floor for vector candidates.
	// Default: DefaultMinSimilarity.
	MinSimilarity float32

	// Owner restricts results to documents with this owner when non-empty.
	Owner string

	// Strategy selects the fusion algorithm. Default: StrategyRRF.
	Strategy FusionStrategy

	// VectorWeight and TextWeight control weighted fusion. They are
	// normalized to sum to 1; both zero means 0.5/0.5.
	VectorWeight float32
	TextWeight   float32
}

// normalized returns a copy with defaults applied.
func (o *SearchOptions) normalized() SearchOptions {
	opts := SearchOptions{}
	if o != nil {
		opts = *o
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = DefaultMinSimilarity
	}
	if opts.VectorWeight <= 0 && opts.TextWeight <= 0 {
		opts.VectorWeight = 0.5
		opts.TextWeight = 0.5
	}
	total := opts.VectorWeight + opts.TextWeight
	if total > 0 {
		opts.VectorWeight /= total
		opts.TextWeight /= total
	}
	return opts
}
