package repository

import "github.com/taisirhassan/cipherstream/internal/domain"

// FileRepository owns records of locally registered or received files.
type FileRepository interface {
	Save(f domain.File) error
	FindByID(id string) (domain.File, bool, error)
	FindByNameSubstring(substr string) ([]domain.File, error)
	ListAll() ([]domain.File, error)
	Delete(id string) error
}

// TransferRepository owns records of in-flight and historical transfers.
type TransferRepository interface {
	Save(t domain.Transfer) error
	FindByID(id string) (domain.Transfer, bool, error)
	FindBySender(peerID string) ([]domain.Transfer, error)
	FindByReceiver(peerID string) ([]domain.Transfer, error)
	// ListActive returns transfers whose status is Pending or InProgress.
	ListActive() ([]domain.Transfer, error)
	UpdateStatus(id string, status domain.TransferStatus) error
	UpdateProgress(id string, progress domain.TransferProgress) error
}

// PeerRepository owns records of peers learned through discovery.
type PeerRepository interface {
	Save(p domain.Peer) error
	FindByID(id string) (domain.Peer, bool, error)
	ListConnected() ([]domain.Peer, error)
	ListAll() ([]domain.Peer, error)
	UpdateConnectionStatus(id string, connected bool) error
}
