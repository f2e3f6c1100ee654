package network

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taisirhassan/cipherstream/internal/codec"
	"github.com/taisirhassan/cipherstream/internal/config"
	"github.com/taisirhassan/cipherstream/internal/crypto"
	"github.com/taisirhassan/cipherstream/internal/domain"
	"github.com/taisirhassan/cipherstream/internal/eventbus"
	"github.com/taisirhassan/cipherstream/internal/protocol"
	"github.com/taisirhassan/cipherstream/internal/repository"
)

// Options tunes the deadlines and worker pool size the Engine applies on
// top of the resolved config.Config, matching spec.md §5's "configurable,
// default 60 seconds" handshake/chunk deadlines (these are not part of
// config.Config because spec.md §6's field list never names them — they
// are engine-internal, not externally persisted configuration).
type Options struct {
	HandshakeTimeout time.Duration
	ChunkTimeout     time.Duration
	IdleSweepEvery   time.Duration
	Workers          int
}

// DefaultOptions matches the defaults spec.md §5 names.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 60 * time.Second,
		ChunkTimeout:     60 * time.Second,
		IdleSweepEvery:   5 * time.Second,
		Workers:          4,
	}
}

// senderSlot bundles a sender FSM with the local resources the engine
// must release when the transfer goes terminal.
type senderSlot struct {
	fsm    *protocol.SenderFSM
	source *protocol.FileChunkSource
	timer  *time.Timer
	phase  string

	// proposedID is the transfer id generated at SendFileRequest time and
	// returned to the caller. It never changes even if the receiver later
	// assigns a different id in its HandshakeResponse and the slot gets
	// rekeyed in e.senders, so external callers (CancelTransfer) can always
	// address the transfer by the id they were originally given.
	proposedID string
}

// receiverSlot is the inbound counterpart. proposedID is the transfer id
// the sender originally offered in its HandshakeRequest. It is used to
// detect a resubmitted duplicate handshake for the same logical transfer
// and to resolve a Cancel that names the sender's id (the receiver's own
// key is always a freshly assigned id).
type receiverSlot struct {
	fsm        *protocol.ReceiverFSM
	sink       *protocol.FileChunkSink
	proposedID string
}

// deliveryReport is posted back to the loop by sendOutbound's goroutine
// when the underlying transport request fails outright (vs. a normal
// protocol-level rejection, which arrives as a decoded inbound message).
type deliveryReport struct {
	transferID string
	err        error
}

// Engine is the single-owner task described in spec.md §4.6: it owns the
// transport handle, the transferID→FSM tables, and the peer discovery
// table, and is the only goroutine that ever mutates any of them. It is
// grounded in the teacher's pkg/p2p/node.go P2PNode (one struct owning a
// host, event handler table, bounded goroutine pool, lifecycle context)
// with the teacher's resource/content/consensus subsystems replaced by
// the protocol package's transfer FSMs.
type Engine struct {
	transport Transport
	repos     *repository.Set
	bus       eventbus.Publisher
	metrics   *Metrics
	cfg       *config.Config
	opts      Options
	admission protocol.AdmissionPolicy
	log       zerolog.Logger

	commands chan Command
	delivery chan deliveryReport
	timeouts chan timeoutEvent

	senders   map[string]*senderSlot
	receivers map[string]*receiverSlot

	peerAddresses map[string][]string
	peerLastSeen  map[string]time.Time
	transferPeer  map[string]string // transferID -> remote peer, both roles

	routingBootstrapped bool
	listenAddr          string

	workSem chan struct{}

	mu sync.Mutex // not taken by any Engine method; the tables above are owned by Run's goroutine
}

type timeoutEvent struct {
	transferID string
	phase      string
}

// NewEngine wires the core services together. The transport is expected
// to already be constructed (e.g. via NewLibP2PTransport) and not yet
// listening.
func NewEngine(transport Transport, repos *repository.Set, bus eventbus.Publisher, metrics *Metrics, cfg *config.Config, opts Options, log zerolog.Logger) *Engine {
	maxExt := cfg.MaxFileSizeBytes()
	return &Engine{
		transport:     transport,
		repos:         repos,
		bus:           bus,
		metrics:       metrics,
		cfg:           cfg,
		opts:          opts,
		admission:     protocol.AdmissionPolicy{MaxFileSize: maxExt, AllowedExtensions: cfg.AllowedFileExtensions},
		log:           log,
		commands:      make(chan Command, 64),
		delivery:      make(chan deliveryReport, 64),
		timeouts:      make(chan timeoutEvent, 64),
		senders:       make(map[string]*senderSlot),
		receivers:     make(map[string]*receiverSlot),
		peerAddresses: make(map[string][]string),
		peerLastSeen:  make(map[string]time.Time),
		transferPeer:  make(map[string]string),
		workSem:       make(chan struct{}, opts.Workers),
	}
}

// Run drives the event loop until ctx is cancelled. It is the only
// goroutine that reads e.commands, e.delivery, e.timeouts and the
// transport's event channel, satisfying spec.md §5's single-threaded
// cooperative scheduling model.
func (e *Engine) Run(ctx context.Context) error {
	events := e.transport.Events()
	sweep := time.NewTicker(e.opts.IdleSweepEvery)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd, ok := <-e.commands:
			if !ok {
				return nil
			}
			e.handleCommand(ctx, cmd)

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.handleTransportEvent(ctx, ev)

		case dr := <-e.delivery:
			e.handleDeliveryFailure(dr)

		case to := <-e.timeouts:
			e.handleTimeout(to)

		case <-sweep.C:
			e.sweepIdlePeers()
		}
	}
}

// submit enqueues cmd and, if it carries a Result channel, blocks for the
// outcome. Safe to call from any goroutine; only Run's loop ever reads
// e.commands.
func (e *Engine) submit(ctx context.Context, cmd Command) (CommandResult, error) {
	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
	if cmd.Result == nil {
		return CommandResult{}, nil
	}
	select {
	case res := <-cmd.Result:
		return res, res.Err
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

// StartListening begins accepting inbound connections on port.
func (e *Engine) StartListening(ctx context.Context, port int) (string, error) {
	res, err := e.submit(ctx, Command{Kind: CmdStartListening, Port: port, Result: make(chan CommandResult, 1)})
	return res.ListenAddr, err
}

// ConnectToPeer dials address out-of-band of any transfer.
func (e *Engine) ConnectToPeer(ctx context.Context, address string) error {
	_, err := e.submit(ctx, Command{Kind: CmdConnectToPeer, Address: address, Result: make(chan CommandResult, 1)})
	return err
}

// SendFileRequest opens filePath and initiates a transfer to peerID,
// returning the sender-proposed transfer id. It does not add the file to
// the FileRepository; RegisterFile does that.
func (e *Engine) SendFileRequest(ctx context.Context, peerID, filePath string) (string, error) {
	res, err := e.submit(ctx, Command{Kind: CmdSendFileRequest, PeerID: peerID, FilePath: filePath, Result: make(chan CommandResult, 1)})
	return res.TransferID, err
}

// BootstrapRouting seeds the routing table once, typically right after
// StartListening succeeds.
func (e *Engine) BootstrapRouting(ctx context.Context, addresses []string) error {
	_, err := e.submit(ctx, Command{Kind: CmdBootstrapRouting, Addresses: addresses, Result: make(chan CommandResult, 1)})
	return err
}

// FindClosestPeers queries the routing layer for peers nearest peerID.
func (e *Engine) FindClosestPeers(ctx context.Context, peerID string) ([]string, error) {
	res, err := e.submit(ctx, Command{Kind: CmdFindClosestPeers, PeerID: peerID, Result: make(chan CommandResult, 1)})
	return res.Peers, err
}

// AddRoutingAddress records a learned address without dialing it.
func (e *Engine) AddRoutingAddress(ctx context.Context, peerID, address string) error {
	_, err := e.submit(ctx, Command{Kind: CmdAddRoutingAddress, PeerID: peerID, Address: address, Result: make(chan CommandResult, 1)})
	return err
}

// SubscribeTopic joins a gossip topic.
func (e *Engine) SubscribeTopic(ctx context.Context, topic string) error {
	_, err := e.submit(ctx, Command{Kind: CmdSubscribeTopic, Topic: topic, Result: make(chan CommandResult, 1)})
	return err
}

// PublishMessage broadcasts data on topic.
func (e *Engine) PublishMessage(ctx context.Context, topic string, data []byte) error {
	_, err := e.submit(ctx, Command{Kind: CmdPublishMessage, Topic: topic, Data: data, Result: make(chan CommandResult, 1)})
	return err
}

// CancelTransfer requests local cancellation of an in-flight sender-side
// transfer. Cancelling a receiver-side or already-terminal transfer is a
// no-op, per spec.md §5.
func (e *Engine) CancelTransfer(ctx context.Context, transferID string) error {
	_, err := e.submit(ctx, Command{Kind: CmdCancelTransfer, TransferID: transferID, Result: make(chan CommandResult, 1)})
	return err
}

// RegisterFile computes a file's identity (name, size, SHA-256 hash) and
// saves it to the FileRepository. The hash computation is offloaded to
// the engine's bounded worker pool so disk scanning of a large file never
// blocks the event loop, matching spec.md §5's "blocking I/O ... is
// offloaded to a worker pool" rule and §3's "File.hash is computed once
// at registration" invariant.
func (e *Engine) RegisterFile(ctx context.Context, path string) (domain.File, error) {
	type result struct {
		file domain.File
		err  error
	}
	done := make(chan result, 1)

	select {
	case e.workSem <- struct{}{}:
	case <-ctx.Done():
		return domain.File{}, ctx.Err()
	}
	go func() {
		defer func() { <-e.workSem }()
		info, err := os.Stat(path)
		if err != nil {
			done <- result{err: fmt.Errorf("stat %s: %w", path, err)}
			return
		}
		f, err := os.Open(path)
		if err != nil {
			done <- result{err: fmt.Errorf("open %s: %w", path, err)}
			return
		}
		hash, err := crypto.HashFile(f)
		f.Close()
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{file: domain.File{
			ID:        domain.NewFileID(),
			Name:      filepath.Base(path),
			Size:      info.Size(),
			Hash:      hash,
			LocalPath: path,
			CreatedAt: time.Now(),
		}}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return domain.File{}, r.err
		}
		if err := e.repos.Files.Save(r.file); err != nil {
			return domain.File{}, err
		}
		return r.file, nil
	case <-ctx.Done():
		return domain.File{}, ctx.Err()
	}
}

// Metrics exposes the engine's counters for an external scraper/CLI.
func (e *Engine) Metrics() *Metrics { return e.metrics }
