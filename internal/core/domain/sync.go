package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncStatus represents the lifecycle state of a sync job
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusPartial   SyncStatus = "partial"
	SyncStatusFailed    SyncStatus = "failed"
	SyncStatusCancelled SyncStatus = "cancelled"
)

// SyncDirection declares which way content flows between stores
type SyncDirection string

const (
	SyncDirectionOneWay        SyncDirection = "one-way"
	SyncDirectionBiDirectional SyncDirection = "bi-directional"
)

// ConflictResolution declares how a colliding target-side item is handled
type ConflictResolution string

const (
	// ResolutionSourceWins overwrites the target item unconditionally
	ResolutionSourceWins ConflictResolution = "source-wins"
	// ResolutionManual records a conflict and performs no write
	ResolutionManual ConflictResolution = "manual"
	// ResolutionMerge is accepted in configuration but has no defined
	// field-level semantics; colliding items are recorded as unresolved.
	ResolutionMerge ConflictResolution = "merge"
)

// SyncConfig declares what to sync and how to reconcile collisions.
type SyncConfig struct {
	Products           bool                         `json:"products"`
	Categories         bool                         `json:"categories"`
	Translations       bool                         `json:"translations"`
	Currencies         bool                         `json:"currencies"`
	Direction          SyncDirection                `json:"direction"`
	ConflictResolution ConflictResolution           `json:"conflict_resolution"`
	CurrencyConversion map[string]float64           `json:"currency_conversion,omitempty"`
	TranslationRules   map[string]map[string]string `json:"translation_rules,omitempty"`
}

// DefaultSyncConfig mirrors the defaults operators expect: products,
// categories, translations and currencies on, one-way, source wins.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Products:           true,
		Categories:         true,
		Translations:       true,
		Currencies:         true,
		Direction:          SyncDirectionOneWay,
		ConflictResolution: ResolutionSourceWins,
	}
}

// Validate checks the sync configuration. Bi-directional sync is declared
// in the configuration format but its semantics are unspecified, so it is
// rejected until defined.
func (c SyncConfig) Validate() error {
	switch c.Direction {
	case SyncDirectionOneWay:
	case SyncDirectionBiDirectional:
		return fmt.Errorf("%w: bi-directional sync is not supported", ErrInvalidInput)
	default:
		return fmt.Errorf("%w: unknown sync direction %q", ErrInvalidInput, c.Direction)
	}

	switch c.ConflictResolution {
	case ResolutionSourceWins, ResolutionManual, ResolutionMerge:
	default:
		return fmt.Errorf("%w: unknown conflict resolution %q", ErrInvalidInput, c.ConflictResolution)
	}

	for currency, rate := range c.CurrencyConversion {
		if rate <= 0 {
			return fmt.Errorf("%w: conversion rate for %s must be positive", ErrInvalidInput, currency)
		}
	}
	return nil
}

// Classes returns the enabled content classes in sync order.
func (c SyncConfig) Classes() []ContentClass {
	var classes []ContentClass
	if c.Products {
		classes = append(classes, ContentClassProducts)
	}
	if c.Categories {
		classes = append(classes, ContentClassCategories)
	}
	if c.Translations {
		classes = append(classes, ContentClassTranslations)
	}
	if c.Currencies {
		classes = append(classes, ContentClassCurrencies)
	}
	return classes
}

// Conflict records a collision between an incoming source item and an
// existing target item under manual (or merge) resolution.
type Conflict struct {
	Type       ContentClass `json:"type"`
	Key        string       `json:"key"`
	Resolution string       `json:"resolution,omitempty"`
	Source     *Item        `json:"source"`
	Target     *Item        `json:"target"`
}

// ClassResult aggregates the outcome of syncing one content class to one target.
type ClassResult struct {
	Synced    int        `json:"synced"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped,omitempty"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	Errors    []string   `json:"errors,omitempty"`
}

// TargetResult aggregates per-class results for one target store.
type TargetResult struct {
	StoreID string                        `json:"store_id"`
	Classes map[ContentClass]*ClassResult `json:"classes"`
	Error   string                        `json:"error,omitempty"`
}

// Synced returns the total synced count across classes.
func (r *TargetResult) Synced() int {
	var n int
	for _, c := range r.Classes {
		n += c.Synced
	}
	return n
}

// Failed returns the total failed count across classes.
func (r *TargetResult) Failed() int {
	var n int
	for _, c := range r.Classes {
		n += c.Failed
	}
	return n
}

// Conflicts returns all conflicts recorded across classes.
func (r *TargetResult) Conflicts() []Conflict {
	var out []Conflict
	for _, c := range r.Classes {
		out = append(out, c.Conflicts...)
	}
	return out
}

// SyncJob is one requested synchronization run from a source store to a
// set of target stores.
type SyncJob struct {
	ID             string                   `json:"id"`
	SourceStoreID  string                   `json:"source"`
	TargetStoreIDs []string                 `json:"targets"`
	Config         SyncConfig               `json:"config"`
	Status         SyncStatus               `json:"status"`
	Started        *time.Time               `json:"started,omitempty"`
	Completed      *time.Time               `json:"completed,omitempty"`
	Results        map[string]*TargetResult `json:"results,omitempty"`
	Error          string                   `json:"error,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// NewSyncJob creates a sync job in running state.
func NewSyncJob(sourceID string, targetIDs []string, cfg SyncConfig) *SyncJob {
	now := time.Now()
	return &SyncJob{
		ID:             uuid.NewString(),
		SourceStoreID:  sourceID,
		TargetStoreIDs: targetIDs,
		Config:         cfg,
		Status:         SyncStatusRunning,
		Started:        &now,
		Results:        make(map[string]*TargetResult),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Finish moves the job to its terminal status based on per-target outcomes.
func (j *SyncJob) Finish() {
	now := time.Now()
	j.Completed = &now
	j.UpdatedAt = now

	var failed int
	for _, r := range j.Results {
		if r.Error != "" {
			failed++
		}
	}
	switch {
	case failed == 0:
		j.Status = SyncStatusCompleted
	case failed == len(j.TargetStoreIDs):
		j.Status = SyncStatusFailed
	default:
		j.Status = SyncStatusPartial
	}
}
