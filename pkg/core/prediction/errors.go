package prediction

import "errors"

// Typed failure modes of the resolution core. Callers match with errors.Is;
// wrapped messages carry the combination-specific detail.
var (
	// ErrModelUnavailable: the model artifact failed to load or was never
	// configured. Fatal for generation capability for the process lifetime;
	// store lookups still function.
	ErrModelUnavailable = errors.New("forecast model unavailable")

	// ErrGeneration: model inference failed or timed out for a specific
	// combination. Local to that combination, other combinations proceed.
	ErrGeneration = errors.New("prediction generation failed")

	// ErrPersistence: the store flush failed. The in-memory append stands
	// for the remainder of the process; durability is not guaranteed.
	ErrPersistence = errors.New("prediction store flush failed")

	// ErrStoreLoad: the persisted store was unreadable or corrupt at
	// startup. The core starts with an empty store instead of failing.
	ErrStoreLoad = errors.New("prediction store load failed")
)
