package repository

import (
	"strings"
	"sync"

	"github.com/taisirhassan/cipherstream/internal/domain"
)

// MemoryFileRepository is the volatile, map-backed reference implementation
// of FileRepository. Safe for concurrent callers.
type MemoryFileRepository struct {
	mu    sync.RWMutex
	files map[string]domain.File
}

// NewMemoryFileRepository constructs an empty in-memory file repository.
func NewMemoryFileRepository() *MemoryFileRepository {
	return &MemoryFileRepository{files: make(map[string]domain.File)}
}

func (r *MemoryFileRepository) Save(f domain.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[f.ID] = f
	return nil
}

func (r *MemoryFileRepository) FindByID(id string) (domain.File, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	return f, ok, nil
}

func (r *MemoryFileRepository) FindByNameSubstring(substr string) ([]domain.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.File
	for _, f := range r.files {
		if strings.Contains(f.Name, substr) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *MemoryFileRepository) ListAll() ([]domain.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.File, 0, len(r.files))
	for _, f := range r.files {
		out = append(out, f)
	}
	return out, nil
}

func (r *MemoryFileRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
	return nil
}

// MemoryTransferRepository is the volatile reference implementation of
// TransferRepository.
type MemoryTransferRepository struct {
	mu        sync.RWMutex
	transfers map[string]domain.Transfer
}

// NewMemoryTransferRepository constructs an empty in-memory transfer repository.
func NewMemoryTransferRepository() *MemoryTransferRepository {
	return &MemoryTransferRepository{transfers: make(map[string]domain.Transfer)}
}

func (r *MemoryTransferRepository) Save(t domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[t.ID] = t
	return nil
}

func (r *MemoryTransferRepository) FindByID(id string) (domain.Transfer, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transfers[id]
	return t, ok, nil
}

func (r *MemoryTransferRepository) FindBySender(peerID string) ([]domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transfer
	for _, t := range r.transfers {
		if t.SenderID == peerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemoryTransferRepository) FindByReceiver(peerID string) ([]domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transfer
	for _, t := range r.transfers {
		if t.ReceiverID == peerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemoryTransferRepository) ListActive() ([]domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transfer
	for _, t := range r.transfers {
		if t.Active() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemoryTransferRepository) UpdateStatus(id string, status domain.TransferStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[id]
	if !ok {
		return nil
	}
	t.Status = status
	r.transfers[id] = t
	return nil
}

func (r *MemoryTransferRepository) UpdateProgress(id string, progress domain.TransferProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[id]
	if !ok {
		return nil
	}
	t.Progress = progress
	r.transfers[id] = t
	return nil
}

// MemoryPeerRepository is the volatile reference implementation of
// PeerRepository.
type MemoryPeerRepository struct {
	mu    sync.RWMutex
	peers map[string]domain.Peer
}

// NewMemoryPeerRepository constructs an empty in-memory peer repository.
func NewMemoryPeerRepository() *MemoryPeerRepository {
	return &MemoryPeerRepository{peers: make(map[string]domain.Peer)}
}

func (r *MemoryPeerRepository) Save(p domain.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID] = p
	return nil
}

func (r *MemoryPeerRepository) FindByID(id string) (domain.Peer, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok, nil
}

func (r *MemoryPeerRepository) ListConnected() ([]domain.Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Peer
	for _, p := range r.peers {
		if p.Connected {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryPeerRepository) ListAll() ([]domain.Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out, nil
}

func (r *MemoryPeerRepository) UpdateConnectionStatus(id string, connected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	if !ok {
		return nil
	}
	p.Connected = connected
	r.peers[id] = p
	return nil
}
