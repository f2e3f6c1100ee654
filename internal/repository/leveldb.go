package repository

import (
	"encoding/json"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/taisirhassan/cipherstream/internal/domain"
)

// Durable key prefixes namespace the three entity kinds within one
// goleveldb store, the same per-entity-prefix layout the teacher's
// internal/storage/local.go uses over a single on-disk root.
const (
	filePrefix     = "file:"
	transferPrefix = "transfer:"
	peerPrefix     = "peer:"
)

// OpenDurableDB opens (creating if absent) a goleveldb store at path,
// shared by all three durable repository implementations.
func OpenDurableDB(path string) (*leveldb.DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, wrapErr(ErrBackend, "open goleveldb store at "+path, err)
	}
	return db, nil
}

// DurableFileRepository persists File records as JSON values in a shared
// goleveldb store.
type DurableFileRepository struct {
	db *leveldb.DB
}

// NewDurableFileRepository wraps an already-open goleveldb handle.
func NewDurableFileRepository(db *leveldb.DB) *DurableFileRepository {
	return &DurableFileRepository{db: db}
}

func (r *DurableFileRepository) Save(f domain.File) error {
	return putJSON(r.db, filePrefix+f.ID, f)
}

func (r *DurableFileRepository) FindByID(id string) (domain.File, bool, error) {
	var f domain.File
	ok, err := getJSON(r.db, filePrefix+id, &f)
	return f, ok, err
}

func (r *DurableFileRepository) FindByNameSubstring(substr string) ([]domain.File, error) {
	var out []domain.File
	err := iteratePrefix(r.db, filePrefix, func(value []byte) error {
		var f domain.File
		if err := json.Unmarshal(value, &f); err != nil {
			return err
		}
		if strings.Contains(f.Name, substr) {
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

func (r *DurableFileRepository) ListAll() ([]domain.File, error) {
	var out []domain.File
	err := iteratePrefix(r.db, filePrefix, func(value []byte) error {
		var f domain.File
		if err := json.Unmarshal(value, &f); err != nil {
			return err
		}
		out = append(out, f)
		return nil
	})
	return out, err
}

func (r *DurableFileRepository) Delete(id string) error {
	if err := r.db.Delete([]byte(filePrefix+id), nil); err != nil {
		return wrapErr(ErrBackend, "delete file record", err)
	}
	return nil
}

// DurableTransferRepository persists Transfer records as JSON values.
type DurableTransferRepository struct {
	db *leveldb.DB
}

// NewDurableTransferRepository wraps an already-open goleveldb handle.
func NewDurableTransferRepository(db *leveldb.DB) *DurableTransferRepository {
	return &DurableTransferRepository{db: db}
}

func (r *DurableTransferRepository) Save(t domain.Transfer) error {
	return putJSON(r.db, transferPrefix+t.ID, t)
}

func (r *DurableTransferRepository) FindByID(id string) (domain.Transfer, bool, error) {
	var t domain.Transfer
	ok, err := getJSON(r.db, transferPrefix+id, &t)
	return t, ok, err
}

func (r *DurableTransferRepository) forEach(match func(domain.Transfer) bool) ([]domain.Transfer, error) {
	var out []domain.Transfer
	err := iteratePrefix(r.db, transferPrefix, func(value []byte) error {
		var t domain.Transfer
		if err := json.Unmarshal(value, &t); err != nil {
			return err
		}
		if match(t) {
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

func (r *DurableTransferRepository) FindBySender(peerID string) ([]domain.Transfer, error) {
	return r.forEach(func(t domain.Transfer) bool { return t.SenderID == peerID })
}

func (r *DurableTransferRepository) FindByReceiver(peerID string) ([]domain.Transfer, error) {
	return r.forEach(func(t domain.Transfer) bool { return t.ReceiverID == peerID })
}

func (r *DurableTransferRepository) ListActive() ([]domain.Transfer, error) {
	return r.forEach(func(t domain.Transfer) bool { return t.Active() })
}

func (r *DurableTransferRepository) UpdateStatus(id string, status domain.TransferStatus) error {
	var t domain.Transfer
	ok, err := getJSON(r.db, transferPrefix+id, &t)
	if err != nil || !ok {
		return err
	}
	t.Status = status
	return putJSON(r.db, transferPrefix+id, t)
}

func (r *DurableTransferRepository) UpdateProgress(id string, progress domain.TransferProgress) error {
	var t domain.Transfer
	ok, err := getJSON(r.db, transferPrefix+id, &t)
	if err != nil || !ok {
		return err
	}
	t.Progress = progress
	return putJSON(r.db, transferPrefix+id, t)
}

// DurablePeerRepository persists Peer records as JSON values.
type DurablePeerRepository struct {
	db *leveldb.DB
}

// NewDurablePeerRepository wraps an already-open goleveldb handle.
func NewDurablePeerRepository(db *leveldb.DB) *DurablePeerRepository {
	return &DurablePeerRepository{db: db}
}

func (r *DurablePeerRepository) Save(p domain.Peer) error {
	return putJSON(r.db, peerPrefix+p.ID, p)
}

func (r *DurablePeerRepository) FindByID(id string) (domain.Peer, bool, error) {
	var p domain.Peer
	ok, err := getJSON(r.db, peerPrefix+id, &p)
	return p, ok, err
}

func (r *DurablePeerRepository) ListConnected() ([]domain.Peer, error) {
	var out []domain.Peer
	err := iteratePrefix(r.db, peerPrefix, func(value []byte) error {
		var p domain.Peer
		if err := json.Unmarshal(value, &p); err != nil {
			return err
		}
		if p.Connected {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func (r *DurablePeerRepository) ListAll() ([]domain.Peer, error) {
	var out []domain.Peer
	err := iteratePrefix(r.db, peerPrefix, func(value []byte) error {
		var p domain.Peer
		if err := json.Unmarshal(value, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (r *DurablePeerRepository) UpdateConnectionStatus(id string, connected bool) error {
	var p domain.Peer
	ok, err := getJSON(r.db, peerPrefix+id, &p)
	if err != nil || !ok {
		return err
	}
	p.Connected = connected
	return putJSON(r.db, peerPrefix+id, p)
}

func putJSON(db *leveldb.DB, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return wrapErr(ErrSerialization, "marshal record", err)
	}
	if err := db.Put([]byte(key), data, nil); err != nil {
		return wrapErr(ErrBackend, "put record", err)
	}
	return nil
}

func getJSON(db *leveldb.DB, key string, out interface{}) (bool, error) {
	data, err := db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, wrapErr(ErrBackend, "get record", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, wrapErr(ErrSerialization, "unmarshal record", err)
	}
	return true, nil
}

func iteratePrefix(db *leveldb.DB, prefix string, fn func(value []byte) error) error {
	iter := db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return wrapErr(ErrSerialization, "decode record", err)
		}
	}
	if err := iter.Error(); err != nil {
		return wrapErr(ErrBackend, "iterate records", err)
	}
	return nil
}
