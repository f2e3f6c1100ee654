package repository

import (
	"os"

	"github.com/syndtr/goleveldb/leveldb"
)

// Backend selects which repository implementation family to construct.
type Backend string

const (
	BackendMemory  Backend = "memory"
	BackendDurable Backend = "durable"
)

// Set bundles one construction of all three repositories plus a Close
// method that releases any durable backend's resources.
type Set struct {
	Files     FileRepository
	Transfers TransferRepository
	Peers     PeerRepository

	db *leveldb.DB
}

// Close releases the durable backend's handle, if any. A no-op for the
// in-memory backend.
func (s *Set) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return wrapErr(ErrBackend, "close goleveldb store", err)
	}
	return nil
}

// NewSet constructs the repository Set for backend, opening dbPath when
// backend is durable.
func NewSet(backend Backend, dbPath string) (*Set, error) {
	switch backend {
	case BackendDurable:
		db, err := OpenDurableDB(dbPath)
		if err != nil {
			return nil, err
		}
		return &Set{
			Files:     NewDurableFileRepository(db),
			Transfers: NewDurableTransferRepository(db),
			Peers:     NewDurablePeerRepository(db),
			db:        db,
		}, nil
	case BackendMemory, "":
		return &Set{
			Files:     NewMemoryFileRepository(),
			Transfers: NewMemoryTransferRepository(),
			Peers:     NewMemoryPeerRepository(),
		}, nil
	default:
		return nil, wrapErr(ErrBackend, "unknown REPO_BACKEND value: "+string(backend), nil)
	}
}

// NewSetFromEnv resolves the backend from the REPO_BACKEND environment
// variable (defaulting to memory) and DB_PATH for the durable store's
// location, matching spec.md §6's environment inputs.
func NewSetFromEnv() (*Set, error) {
	backend := Backend(os.Getenv("REPO_BACKEND"))
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "cipherstream.db"
	}
	return NewSet(backend, dbPath)
}
