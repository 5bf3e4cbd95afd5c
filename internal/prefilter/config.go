package prefilter

// Config tunes the filter pipeline. It is an explicit value passed on every
// call so different callers (and tests) can run the same pipeline with
// different thresholds. Zero values are replaced by defaults in Filter.
type Config struct {
	// MinLen is the minimum accepted length in grapheme clusters.
	MinLen int `yaml:"min_len" json:"min_len"`

	// MaxLen is the maximum accepted length in grapheme clusters. Longer
	// input is truncated at a grapheme boundary, not rejected.
	MaxLen int `yaml:"max_len" json:"max_len"`

	// ReduceRepeatThreshold collapses runs of this many (or more) identical
	// characters down to 2 copies.
	ReduceRepeatThreshold int `yaml:"reduce_repeat_threshold" json:"reduce_repeat_threshold"`

	// MaxSameTokenRepeat collapses runs of a short (1-3 character) token
	// repeated this many (or more) times down to 3 repetitions.
	MaxSameTokenRepeat int `yaml:"max_same_token_repeat" json:"max_same_token_repeat"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinLen:                1,
		MaxLen:                500,
		ReduceRepeatThreshold: 5,
		MaxSameTokenRepeat:    10,
	}
}

// withDefaults fills unset fields so a partially-populated Config (e.g. from
// a YAML file that only overrides max_len) still runs the full pipeline.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinLen <= 0 {
		c.MinLen = d.MinLen
	}
	if c.MaxLen <= 0 {
		c.MaxLen = d.MaxLen
	}
	if c.ReduceRepeatThreshold <= 0 {
		c.ReduceRepeatThreshold = d.ReduceRepeatThreshold
	}
	if c.MaxSameTokenRepeat <= 0 {
		c.MaxSameTokenRepeat = d.MaxSameTokenRepeat
	}
	return c
}
