package network

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/taisirhassan/cipherstream/internal/codec"
	"github.com/taisirhassan/cipherstream/internal/domain"
	"github.com/taisirhassan/cipherstream/internal/protocol"
)

// handleInboundRequest dispatches a decoded request-schema message to the
// receiver-side FSM table, creating a ReceiverFSM on HandshakeRequest per
// spec.md §4.6 ("On every inbound request, route to the receiver FSM for
// its transfer-id (creating it on handshake)").
func (e *Engine) handleInboundRequest(ctx context.Context, ev Event) {
	ev.Respond(nil) // transport-level ack; protocol replies travel as their own outbound messages.

	switch msg := ev.Msg.(type) {
	case codec.HandshakeRequest:
		e.handleHandshake(ctx, ev.PeerID, msg)
	case codec.FileChunk:
		e.handleFileChunk(ctx, ev.PeerID, msg)
	case codec.CancelTransfer:
		e.handleCancelMessage(ctx, ev.PeerID, msg)
	}
}

// handleInboundResponse dispatches a decoded response-schema message to
// the sender-side FSM table.
func (e *Engine) handleInboundResponse(ctx context.Context, ev Event) {
	ev.Respond(nil)

	switch msg := ev.Msg.(type) {
	case codec.HandshakeResponse:
		e.handleHandshakeResponse(ctx, msg)
	case codec.ChunkResponse:
		e.handleChunkResponse(ctx, msg)
	case codec.TransferComplete:
		e.handleTransferComplete(ctx, msg)
	}
}

func (e *Engine) handleHandshake(ctx context.Context, peerID string, req codec.HandshakeRequest) {
	for _, slot := range e.receivers {
		if slot.proposedID == req.TransferID {
			e.rejectHandshake(ctx, peerID, "duplicate transfer id")
			return
		}
	}
	if len(e.senders)+len(e.receivers) >= e.cfg.MaxConcurrentTransfers {
		e.metrics.handshakeRejected("too_many_transfers")
		e.rejectHandshake(ctx, peerID, "too many active transfers")
		return
	}
	if err := e.admission.Evaluate(req.Filename, req.FileSize); err != nil {
		reason := reasonOf(err)
		e.metrics.handshakeRejected(reason)
		e.rejectHandshake(ctx, peerID, reason)
		return
	}

	if err := os.MkdirAll(e.cfg.DownloadDirectory, 0o755); err != nil {
		e.rejectHandshake(ctx, peerID, "destination unavailable")
		return
	}
	destPath := filepath.Join(e.cfg.DownloadDirectory, req.Filename)
	sink, err := protocol.NewFileChunkSink(destPath)
	if err != nil {
		e.rejectHandshake(ctx, peerID, "destination unavailable")
		return
	}

	transferID := domain.NewTransferID()
	fsm, complete, startedEvent := protocol.NewReceiverFSM(transferID, peerID, req.Filename, req.FileSize, e.cfg.ChunkSize, sink)
	e.receivers[transferID] = &receiverSlot{fsm: fsm, sink: sink, proposedID: req.TransferID}
	e.transferPeer[transferID] = peerID
	e.bus.Publish(startedEvent)

	transfer := domain.Transfer{
		ID:         transferID,
		FileName:   req.Filename,
		FileSize:   int64(req.FileSize),
		SenderID:   peerID,
		ReceiverID: e.transport.LocalPeerID(),
		Status:     domain.InProgress(),
		StartedAt:  time.Now(),
	}
	if err := e.repos.Transfers.Save(transfer); err != nil {
		e.log.Warn().Err(err).Msg("save inbound transfer record")
	}
	e.metrics.transferStarted(transferID)

	id := transferID
	e.sendOutbound(ctx, peerID, codec.HandshakeResponse{Accepted: true, TransferID: &id}, transferID)

	if complete != nil {
		e.finishReceiver(transferID, "completed")
		e.sendOutbound(ctx, peerID, *complete, transferID)
	}
}

// hasReceiverForPeer reports whether peerID has any receiver-side transfer
// on record, handshake-accepted or not yet finalized. Used to distinguish
// a chunk arriving with no prior handshake at all from one naming an
// unrecognized transfer id for a peer we do have a handshake with.
func (e *Engine) hasReceiverForPeer(peerID string) bool {
	for _, slot := range e.receivers {
		if slot.fsm.PeerID() == peerID {
			return true
		}
	}
	return false
}

func (e *Engine) rejectHandshake(ctx context.Context, peerID, reason string) {
	r := reason
	e.sendOutbound(ctx, peerID, codec.HandshakeResponse{Accepted: false, Reason: &r}, "")
}

func reasonOf(err error) string {
	if pe, ok := err.(*protocol.Error); ok {
		return pe.Msg
	}
	return err.Error()
}

func (e *Engine) handleFileChunk(ctx context.Context, peerID string, msg codec.FileChunk) {
	slot, ok := e.receivers[msg.TransferID]
	if !ok {
		// spec.md §4.2: a FileChunk arriving before this peer has any
		// handshake on record gets the distinct "no handshake" reason; a
		// chunk that names a transfer id we simply don't recognize (stale,
		// mistyped, or already-terminal) gets "unknown transfer".
		errMsg := "unknown transfer"
		if !e.hasReceiverForPeer(peerID) {
			errMsg = "no handshake"
		}
		e.sendOutbound(ctx, peerID, codec.ChunkResponse{TransferID: msg.TransferID, ChunkIndex: msg.ChunkIndex, Success: false, Error: &errMsg}, msg.TransferID)
		return
	}
	ack, complete, ev, err := slot.fsm.HandleFileChunk(msg)
	if err != nil {
		e.log.Warn().Err(err).Str("transfer", msg.TransferID).Msg("receiver chunk handling failed")
		return
	}
	if ev != nil {
		e.bus.Publish(*ev)
	}
	e.sendOutbound(ctx, peerID, ack, msg.TransferID)
	if complete != nil {
		outcome := "completed"
		if !complete.Success {
			outcome = "failed"
		}
		e.finishReceiver(msg.TransferID, outcome)
		e.sendOutbound(ctx, peerID, *complete, msg.TransferID)
	}
}

// handleCancelMessage resolves the receiver slot either by its own
// assigned transfer id or, if the sender cancelled before its handshake
// was acknowledged, by the sender-proposed id the slot was created under
// (see receiverSlot.proposedID).
func (e *Engine) handleCancelMessage(ctx context.Context, peerID string, msg codec.CancelTransfer) {
	transferID := msg.TransferID
	slot, ok := e.receivers[transferID]
	if !ok {
		for id, s := range e.receivers {
			if s.proposedID == msg.TransferID {
				slot, transferID = s, id
				ok = true
				break
			}
		}
	}
	if !ok {
		return
	}
	complete, ev, err := slot.fsm.HandleCancel(codec.CancelTransfer{TransferID: transferID})
	if err != nil {
		e.log.Warn().Err(err).Str("transfer", transferID).Msg("receiver cancel handling failed")
		return
	}
	if ev == nil {
		return // already terminal: idempotent no-op per spec.md §8
	}
	e.bus.Publish(*ev)
	e.finishReceiver(transferID, "cancelled")
	if complete != nil {
		e.sendOutbound(ctx, peerID, *complete, transferID)
	}
}

func (e *Engine) handleHandshakeResponse(ctx context.Context, resp codec.HandshakeResponse) {
	transferID := e.senderTransferForHandshake(resp)
	slot, ok := e.senders[transferID]
	if !ok {
		return
	}
	e.disarmTimeout(slot)

	chunk, ev, err := slot.fsm.HandleHandshakeResponse(resp)
	if err != nil {
		e.log.Warn().Err(err).Str("transfer", transferID).Msg("sender handshake response handling failed")
		return
	}
	if ev != nil {
		e.bus.Publish(*ev)
		e.finishSender(transferID, "failed")
		return
	}
	if adopted := slot.fsm.TransferID(); adopted != transferID {
		e.adoptSenderID(transferID, adopted)
		transferID = adopted
		slot = e.senders[transferID]
	}
	if chunk != nil {
		e.metrics.chunkSent(len(chunk.Data))
		e.armTimeout(slot, transferID, "chunk")
		e.sendOutbound(ctx, slot.fsm.PeerID(), *chunk, transferID)
		return
	}
	// Zero-byte file: no chunk exchange, wait for TransferComplete.
	e.armTimeout(slot, transferID, "chunk")
}

// senderTransferForHandshake resolves which outstanding sender this
// response belongs to. The response itself carries no guaranteed
// transfer id (rejection omits it), so we fall back to the lone sender
// still AwaitingHandshakeAck when one is present.
func (e *Engine) senderTransferForHandshake(resp codec.HandshakeResponse) string {
	if resp.TransferID != nil {
		if _, ok := e.senders[*resp.TransferID]; ok {
			return *resp.TransferID
		}
	}
	for id, slot := range e.senders {
		if slot.fsm.State() == protocol.SenderAwaitingHandshakeAck {
			return id
		}
	}
	if resp.TransferID != nil {
		return *resp.TransferID
	}
	return ""
}

func (e *Engine) adoptSenderID(oldID, newID string) {
	slot := e.senders[oldID]
	delete(e.senders, oldID)
	e.senders[newID] = slot
	peerID := e.transferPeer[oldID]
	delete(e.transferPeer, oldID)
	e.transferPeer[newID] = peerID
}

func (e *Engine) handleChunkResponse(ctx context.Context, resp codec.ChunkResponse) {
	slot, ok := e.senders[resp.TransferID]
	if !ok {
		return // late response for an already-terminal transfer: ignored silently, per spec.md §4.2
	}
	e.disarmTimeout(slot)

	chunk, ev, err := slot.fsm.HandleChunkResponse(resp)
	if err != nil {
		e.log.Warn().Err(err).Str("transfer", resp.TransferID).Msg("sender chunk response handling failed")
		return
	}
	if ev != nil {
		e.bus.Publish(*ev)
	}
	if slot.fsm.State() == protocol.SenderTerminal {
		e.finishSender(resp.TransferID, "failed")
		return
	}
	if chunk != nil {
		e.metrics.chunkSent(len(chunk.Data))
		e.armTimeout(slot, resp.TransferID, "chunk")
		e.sendOutbound(ctx, slot.fsm.PeerID(), *chunk, resp.TransferID)
		return
	}
	// Advanced to AwaitingFinalAck: wait for TransferComplete.
	e.armTimeout(slot, resp.TransferID, "chunk")
}

func (e *Engine) handleTransferComplete(ctx context.Context, msg codec.TransferComplete) {
	slot, ok := e.senders[msg.TransferID]
	if !ok {
		return
	}
	e.disarmTimeout(slot)
	ev, err := slot.fsm.HandleTransferComplete(msg)
	if err != nil {
		e.log.Warn().Err(err).Str("transfer", msg.TransferID).Msg("sender transfer-complete handling failed")
		return
	}
	outcome := "completed"
	if !msg.Success {
		outcome = "failed"
	}
	e.bus.Publish(ev)
	e.finishSender(msg.TransferID, outcome)
}
