package risk

import "fmt"

// The calculation pipeline distinguishes four failure kinds. Each aborts
// only the current calculation and carries enough context for a
// human-readable, field-identifying message. Reference-data load failures
// are a separate, process-fatal kind (refdata.LoadError).

// InputError marks a required numeric form field whose raw value could not
// be parsed. Field is the user-friendly name.
type InputError struct {
	Field string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("please enter a valid number for %s", e.Field)
}

// LookupError marks an unresolved percentile lookup. Rank is empty when the
// whole (disease, score) table is missing, set when only the rank key is
// absent. No silent defaulting is permitted in either case.
type LookupError struct {
	Disease string
	Score   string
	Rank    string
}

func (e *LookupError) Error() string {
	if e.Rank == "" {
		return fmt.Sprintf("no percentile table for score %s (outcome %s)", e.Score, e.Disease)
	}
	return fmt.Sprintf("percentile %s is not available for score %s (outcome %s)", e.Rank, e.Score, e.Disease)
}

// ConfigError marks a feature with no scaler parameters.
type ConfigError struct {
	Feature string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("no scaler parameters configured for feature %s", e.Feature)
}

// DegenerateScaleError marks a feature whose configured variance is exactly
// zero. It is raised before any arithmetic uses the parameters.
type DegenerateScaleError struct {
	Feature string
}

func (e *DegenerateScaleError) Error() string {
	return fmt.Sprintf("scaler variance for feature %s is zero", e.Feature)
}
