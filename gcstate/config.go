// Package gcstate holds the state, configuration, and error types shared
// across the hierarchical-heap collector: the pieces that would otherwise
// force every other package to import every other package.
package gcstate

// HHCollectionLevel mirrors the collector's top-level on/off/scope switch.
type HHCollectionLevel int

const (
	// CollectionNone disables local collection entirely.
	CollectionNone HHCollectionLevel = iota
	// CollectionSuperlocal forces every collection's minLevel down to the
	// current depth, i.e. only the leaf of the hierarchy is ever collected.
	CollectionSuperlocal
	// CollectionAll allows a collection to widen its scope as far up the
	// hierarchy as MinLocalLevel and successful scope claims permit.
	CollectionAll
)

func (l HHCollectionLevel) String() string {
	switch l {
	case CollectionNone:
		return "none"
	case CollectionSuperlocal:
		return "superlocal"
	case CollectionAll:
		return "all"
	default:
		return "unknown"
	}
}

// Config collects the runtime's enumerated tunables.
type Config struct {
	HHCollectionLevel HHCollectionLevel

	// MinLocalLevel bounds how far up the hierarchy a scope claim may reach.
	MinLocalLevel uint32

	// DeferredPromotion is always on in this runtime; kept as a field so
	// tests can assert the invariant rather than hard-coding it.
	DeferredPromotion bool

	// DetailedGCTime sets the driver's logger to debug level, so every
	// collection logs its window and copy/move counts. No per-phase
	// timings are measured.
	DetailedGCTime bool

	// Assert enables the debug-only step of collection that poisons
	// discarded from-space chunks. The InvariantViolated checks run
	// whether or not it is set.
	Assert bool

	// LogLevel gates Logger output; see logger.go.
	LogLevel LogLevel
}

// DefaultConfig returns the configuration a freshly started runtime uses.
func DefaultConfig() Config {
	return Config{
		HHCollectionLevel: CollectionAll,
		MinLocalLevel:     1,
		DeferredPromotion: true,
		DetailedGCTime:    false,
		Assert:            true,
		LogLevel:          LogWarn,
	}
}
