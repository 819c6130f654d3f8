package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SafetyConfig governs how a mutation run executes.
// The zero value is not usable; start from DefaultSafetyConfig.
type SafetyConfig struct {
	DryRun               bool          `json:"dry_run"`
	BatchSize            int           `json:"batch_size"`
	DelayBetweenBatches  time.Duration `json:"-"`
	BackupBefore         bool          `json:"backup_before"`
	RollbackOnError      bool          `json:"rollback_on_error"`
	MaxFailures          int           `json:"max_failures"`
	ConfirmationRequired bool          `json:"confirmation_required"`
}

// DefaultSafetyConfig returns the conservative defaults: dry-run on,
// backup on, rollback on, confirmation required.
func DefaultSafetyConfig() SafetyConfig {
	return SafetyConfig{
		DryRun:               true,
		BatchSize:            50,
		DelayBetweenBatches:  time.Second,
		BackupBefore:         true,
		RollbackOnError:      true,
		MaxFailures:          5,
		ConfirmationRequired: true,
	}
}

// safetyConfigJSON is the wire shape. Delay is carried in seconds to match
// the operator-facing configuration format.
type safetyConfigJSON struct {
	DryRun               *bool    `json:"dry_run"`
	BatchSize            *int     `json:"batch_size"`
	DelayBetweenBatches  *float64 `json:"delay_between_batches"`
	BackupBefore         *bool    `json:"backup_before"`
	RollbackOnError      *bool    `json:"rollback_on_error"`
	MaxFailures          *int     `json:"max_failures"`
	ConfirmationRequired *bool    `json:"confirmation_required"`
}

// ParseSafetyConfig decodes a safety config from JSON, starting from the
// defaults and overriding only the fields present. Unknown keys are
// rejected rather than silently ignored.
func ParseSafetyConfig(raw []byte) (SafetyConfig, error) {
	cfg := DefaultSafetyConfig()
	if len(raw) == 0 {
		return cfg, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var wire safetyConfigJSON
	if err := dec.Decode(&wire); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if wire.DryRun != nil {
		cfg.DryRun = *wire.DryRun
	}
	if wire.BatchSize != nil {
		cfg.BatchSize = *wire.BatchSize
	}
	if wire.DelayBetweenBatches != nil {
		cfg.DelayBetweenBatches = time.Duration(*wire.DelayBetweenBatches * float64(time.Second))
	}
	if wire.BackupBefore != nil {
		cfg.BackupBefore = *wire.BackupBefore
	}
	if wire.RollbackOnError != nil {
		cfg.RollbackOnError = *wire.RollbackOnError
	}
	if wire.MaxFailures != nil {
		cfg.MaxFailures = *wire.MaxFailures
	}
	if wire.ConfirmationRequired != nil {
		cfg.ConfirmationRequired = *wire.ConfirmationRequired
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the config invariants.
func (c SafetyConfig) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be >= 1", ErrInvalidInput)
	}
	if c.DelayBetweenBatches < 0 {
		return fmt.Errorf("%w: delay_between_batches must not be negative", ErrInvalidInput)
	}
	if c.MaxFailures < 0 {
		return fmt.Errorf("%w: max_failures must not be negative", ErrInvalidInput)
	}
	return nil
}
