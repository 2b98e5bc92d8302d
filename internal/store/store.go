package store

import (
	"errors"

	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// ErrCorrupt marks a catalog document that exists but cannot be read.
// Callers treat it as a persistence failure, same as an I/O error.
var ErrCorrupt = errors.New("store: catalog document corrupt")

// Store is the persistence interface for the catalog document. Load and
// Save operate on the whole document; Save is all-or-nothing, so a failed
// write never leaves a partially written document behind for the next Load.
type Store interface {
	// Load reads the catalog. Missing state is not an error: an empty
	// catalog is returned and created on the first Save.
	Load() (protocol.Catalog, error)
	// Save overwrites the catalog atomically.
	Save(protocol.Catalog) error
	// Close releases the underlying resources.
	Close() error
}
