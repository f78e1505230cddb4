package integration

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults for SyncOptions
const (
	DefaultLocale                 = "en"
	DefaultRetentionWindow        = 24 * time.Hour
	DefaultFullSyncInterval       = 5 * time.Minute
	DefaultCategorizeDebounce     = 3 * time.Second
	DefaultEmptySnapshotThreshold = 3
	DefaultMaxPendingMisses       = 3
	DefaultMaxCreateTries         = 2
	DefaultEchoWindow             = 10 * time.Second
	DefaultConfidenceThreshold    = 0.6
	DefaultClassifierBatchSize    = 20
)

// SyncOptions is the resolved configuration of one sync engine
type SyncOptions struct {
	// Locale selects the parser lexicon
	Locale string `validate:"required"`
	// RetentionWindow is how long checked items are kept. Zero disables the sweeper.
	RetentionWindow time.Duration `validate:"gte=0"`
	// FullSyncInterval is the period of the full reconciliation timer
	FullSyncInterval time.Duration `validate:"gt=0"`
	// CategorizeDebounce coalesces bursts of edits before categorizing
	CategorizeDebounce time.Duration `validate:"gte=0"`
	// EmptySnapshotThreshold is how many consecutive empty snapshots may delete mapped items
	EmptySnapshotThreshold int `validate:"gte=1"`
	// MaxPendingMisses is how many snapshots a pending create may miss before it is retried
	MaxPendingMisses int `validate:"gte=1"`
	// MaxCreateTries bounds the create commands issued per pending create
	MaxCreateTries int `validate:"gte=1"`
	// EchoWindow ignores external completed flips right after we wrote them
	EchoWindow time.Duration `validate:"gte=0"`
	// Categories are the configured category labels; the last one is the fallback
	Categories []string `validate:"dive,required"`
	// ConfidenceThreshold is the minimum classifier confidence to accept a category
	ConfidenceThreshold float64 `validate:"gte=0,lte=1"`
	// ClassifierBatchSize bounds the names sent per classifier call
	ClassifierBatchSize int `validate:"gte=1"`
}

// DefaultSyncOptions returns options with every default applied
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		Locale:                 DefaultLocale,
		RetentionWindow:        DefaultRetentionWindow,
		FullSyncInterval:       DefaultFullSyncInterval,
		CategorizeDebounce:     DefaultCategorizeDebounce,
		EmptySnapshotThreshold: DefaultEmptySnapshotThreshold,
		MaxPendingMisses:       DefaultMaxPendingMisses,
		MaxCreateTries:         DefaultMaxCreateTries,
		EchoWindow:             DefaultEchoWindow,
		ConfidenceThreshold:    DefaultConfidenceThreshold,
		ClassifierBatchSize:    DefaultClassifierBatchSize,
	}
}

// WithDefaults fills zero counters and intervals from the defaults.
// RetentionWindow, EchoWindow and CategorizeDebounce keep an explicit zero.
func (o SyncOptions) WithDefaults() SyncOptions {
	d := DefaultSyncOptions()
	if o.Locale == "" {
		o.Locale = d.Locale
	}
	if o.FullSyncInterval == 0 {
		o.FullSyncInterval = d.FullSyncInterval
	}
	if o.EmptySnapshotThreshold == 0 {
		o.EmptySnapshotThreshold = d.EmptySnapshotThreshold
	}
	if o.MaxPendingMisses == 0 {
		o.MaxPendingMisses = d.MaxPendingMisses
	}
	if o.MaxCreateTries == 0 {
		o.MaxCreateTries = d.MaxCreateTries
	}
	if o.ConfidenceThreshold == 0 {
		o.ConfidenceThreshold = d.ConfidenceThreshold
	}
	if o.ClassifierBatchSize == 0 {
		o.ClassifierBatchSize = d.ClassifierBatchSize
	}
	return o
}

var optionsValidator = validator.New()

// Validate checks option ranges
func (o SyncOptions) Validate() error {
	return optionsValidator.Struct(o)
}

// FallbackCategory returns the category used for low-confidence answers
func (o SyncOptions) FallbackCategory() string {
	if len(o.Categories) == 0 {
		return ""
	}
	return o.Categories[len(o.Categories)-1]
}
