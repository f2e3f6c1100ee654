package network

import (
	"context"
	"path/filepath"
	"time"

	"github.com/taisirhassan/cipherstream/internal/codec"
	"github.com/taisirhassan/cipherstream/internal/domain"
	"github.com/taisirhassan/cipherstream/internal/protocol"
)

func (e *Engine) touch(peerID string) {
	e.peerLastSeen[peerID] = time.Now()
}

// --- command handling -------------------------------------------------

func (e *Engine) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdStartListening:
		e.doStartListening(ctx, cmd)
	case CmdConnectToPeer:
		e.doConnect(ctx, cmd)
	case CmdSendFileRequest:
		e.doSendFileRequest(ctx, cmd)
	case CmdBootstrapRouting:
		e.doBootstrap(ctx, cmd)
	case CmdFindClosestPeers:
		e.doFindClosestPeers(ctx, cmd)
	case CmdAddRoutingAddress:
		e.doAddRoutingAddress(cmd)
	case CmdSubscribeTopic:
		e.reply(cmd, CommandResult{Err: e.transport.SubscribeTopic(cmd.Topic)})
	case CmdPublishMessage:
		e.reply(cmd, CommandResult{Err: e.transport.PublishMessage(cmd.Topic, cmd.Data)})
	case CmdCancelTransfer:
		e.doCancel(cmd)
	}
}

func (e *Engine) reply(cmd Command, res CommandResult) {
	if cmd.Result == nil {
		return
	}
	select {
	case cmd.Result <- res:
	default:
	}
}

func (e *Engine) doStartListening(ctx context.Context, cmd Command) {
	addr, err := e.transport.Listen(ctx, cmd.Port)
	if err != nil {
		e.reply(cmd, CommandResult{Err: err})
		return
	}
	e.listenAddr = addr
	e.reply(cmd, CommandResult{ListenAddr: addr})

	// spec.md §4.6: "Trigger a routing bootstrap once, the first time a
	// listen address becomes available."
	if !e.routingBootstrapped {
		e.routingBootstrapped = true
		go func() {
			if err := e.transport.Bootstrap(ctx, nil); err != nil {
				e.log.Warn().Err(err).Msg("initial routing bootstrap failed")
			}
		}()
	}
}

func (e *Engine) doConnect(ctx context.Context, cmd Command) {
	err := e.transport.Connect(ctx, cmd.Address)
	e.reply(cmd, CommandResult{Err: err})
}

func (e *Engine) doBootstrap(ctx context.Context, cmd Command) {
	err := e.transport.Bootstrap(ctx, cmd.Addresses)
	e.reply(cmd, CommandResult{Err: err})
}

func (e *Engine) doFindClosestPeers(ctx context.Context, cmd Command) {
	peers, err := e.transport.FindClosestPeers(ctx, cmd.PeerID)
	e.reply(cmd, CommandResult{Peers: peers, Err: err})
}

func (e *Engine) doAddRoutingAddress(cmd Command) {
	err := e.transport.AddRoutingAddress(cmd.PeerID, cmd.Address)
	if err == nil {
		e.peerAddresses[cmd.PeerID] = appendUnique(e.peerAddresses[cmd.PeerID], cmd.Address)
		e.bus.Publish(domain.NewPeerDiscovered(cmd.PeerID, e.peerAddresses[cmd.PeerID]))
	}
	e.reply(cmd, CommandResult{Err: err})
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func (e *Engine) doSendFileRequest(ctx context.Context, cmd Command) {
	if len(e.senders)+len(e.receivers) >= e.cfg.MaxConcurrentTransfers {
		e.reply(cmd, CommandResult{Err: newErr(ErrTooManyXfers, "admission cap reached")})
		return
	}

	source, err := protocol.NewFileChunkSource(cmd.FilePath)
	if err != nil {
		e.reply(cmd, CommandResult{Err: err})
		return
	}

	transferID := domain.NewTransferID()
	filename := filepath.Base(cmd.FilePath)
	fsm := protocol.NewSenderFSM(transferID, cmd.PeerID, filename, e.cfg.ChunkSize, source)

	req, err := fsm.Start()
	if err != nil {
		source.Close()
		e.reply(cmd, CommandResult{Err: err})
		return
	}

	e.senders[transferID] = &senderSlot{fsm: fsm, source: source, phase: "handshake", proposedID: transferID}
	e.transferPeer[transferID] = cmd.PeerID
	e.armTimeout(e.senders[transferID], transferID, "handshake")

	transfer := domain.Transfer{
		ID:         transferID,
		FileName:   filename,
		FileSize:   int64(source.Size()),
		SenderID:   e.transport.LocalPeerID(),
		ReceiverID: cmd.PeerID,
		Status:     domain.Pending(),
		StartedAt:  time.Now(),
	}
	if err := e.repos.Transfers.Save(transfer); err != nil {
		e.log.Warn().Err(err).Msg("save outbound transfer record")
	}
	e.metrics.transferStarted(transferID)

	e.sendOutbound(ctx, cmd.PeerID, req, transferID)
	e.reply(cmd, CommandResult{TransferID: transferID})
}

func (e *Engine) doCancel(cmd Command) {
	slot, transferID, ok := e.findSenderByExternalID(cmd.TransferID)
	if !ok {
		e.reply(cmd, CommandResult{})
		return
	}
	msg, ev, err := slot.fsm.Cancel()
	if err != nil {
		e.reply(cmd, CommandResult{Err: err})
		return
	}
	if ev != nil {
		e.bus.Publish(*ev)
		e.finishSender(transferID, "cancelled")
	}
	if msg != nil {
		e.sendOutbound(context.Background(), e.transferPeer[transferID], *msg, transferID)
	}
	e.reply(cmd, CommandResult{})
}

// findSenderByExternalID resolves id (as returned from SendFileRequest) to
// its current senders map key, which may differ after the receiver
// assigned a new transfer id in its HandshakeResponse.
func (e *Engine) findSenderByExternalID(id string) (*senderSlot, string, bool) {
	if slot, ok := e.senders[id]; ok {
		return slot, id, true
	}
	for key, slot := range e.senders {
		if slot.proposedID == id {
			return slot, key, true
		}
	}
	return nil, "", false
}

// --- outbound delivery --------------------------------------------------

// sendOutbound fires payload at peerID on a bounded worker, reporting
// only network-level delivery failure back to the loop; protocol-level
// acknowledgement arrives independently through the transport's event
// channel (see eventKindFor), matching spec.md §4.6's separate inbound
// request/response event kinds.
func (e *Engine) sendOutbound(ctx context.Context, peerID string, msg codec.Message, transferID string) {
	payload, err := codec.Encode(msg)
	if err != nil {
		e.reportDelivery(transferID, err)
		return
	}
	select {
	case e.workSem <- struct{}{}:
	default:
		// Pool saturated: still send, just not throttled. Outbound sends
		// are bounded by stop-and-wait pacing already (one per transfer).
	}
	go func() {
		defer func() {
			select {
			case <-e.workSem:
			default:
			}
		}()
		_, err := e.transport.SendRequest(ctx, peerID, payload)
		if err != nil {
			e.reportDeliveryAsync(transferID, err)
		}
	}()
}

func (e *Engine) reportDelivery(transferID string, err error) {
	select {
	case e.delivery <- deliveryReport{transferID: transferID, err: err}:
	default:
	}
}

func (e *Engine) reportDeliveryAsync(transferID string, err error) {
	e.delivery <- deliveryReport{transferID: transferID, err: err}
}

func (e *Engine) handleDeliveryFailure(dr deliveryReport) {
	if slot, ok := e.senders[dr.transferID]; ok {
		ev, _ := slot.fsm.HandleDisconnect()
		e.bus.Publish(ev)
		e.finishSender(dr.transferID, "disconnected")
		return
	}
	if _, ok := e.receivers[dr.transferID]; ok {
		e.log.Warn().Str("transfer", dr.transferID).Err(dr.err).Msg("failed to deliver receiver-side reply")
	}
}

// --- timeouts -------------------------------------------------------------

func (e *Engine) armTimeout(slot *senderSlot, transferID, phase string) {
	d := e.opts.HandshakeTimeout
	if phase == "chunk" {
		d = e.opts.ChunkTimeout
	}
	slot.phase = phase
	slot.timer = time.AfterFunc(d, func() {
		select {
		case e.timeouts <- timeoutEvent{transferID: transferID, phase: phase}:
		default:
		}
	})
}

func (e *Engine) disarmTimeout(slot *senderSlot) {
	if slot.timer != nil {
		slot.timer.Stop()
		slot.timer = nil
	}
}

func (e *Engine) handleTimeout(to timeoutEvent) {
	slot, ok := e.senders[to.transferID]
	if !ok {
		return
	}
	// Stale timer firing after the wait it guarded already cleared: the
	// phase recorded on the slot no longer matches.
	if slot.phase != to.phase {
		return
	}
	ev, _ := slot.fsm.HandleTimeout(to.phase)
	e.bus.Publish(ev)
	e.finishSender(to.transferID, "failed")
}

func (e *Engine) sweepIdlePeers() {
	idle := time.Duration(e.cfg.ConnectionTimeoutSeconds) * time.Second
	if idle <= 0 {
		return
	}
	now := time.Now()
	for peerID, last := range e.peerLastSeen {
		if now.Sub(last) < idle {
			continue
		}
		delete(e.peerLastSeen, peerID)
		e.disconnectPeer(peerID)
	}
}

func (e *Engine) disconnectPeer(peerID string) {
	for id, slot := range e.senders {
		if e.transferPeer[id] != peerID {
			continue
		}
		ev, _ := slot.fsm.HandleDisconnect()
		e.bus.Publish(ev)
		e.finishSender(id, "disconnected")
	}
	for id, slot := range e.receivers {
		if slot.fsm.PeerID() != peerID {
			continue
		}
		ev, _ := slot.fsm.HandleDisconnect()
		e.bus.Publish(ev)
		e.finishReceiver(id, "disconnected")
	}
	e.bus.Publish(domain.NewPeerDisconnected(peerID))
	if err := e.repos.Peers.UpdateConnectionStatus(peerID, false); err != nil {
		e.log.Warn().Err(err).Str("peer", peerID).Msg("update peer connection status")
	}
	e.metrics.peerDisconnected()
}

// finishSender tears down the sender slot keyed by transferID (its
// current, possibly receiver-reassigned id) but persists and reports
// using proposedID, the stable id the caller of SendFileRequest was
// originally given and the id the saved Transfer record lives under.
func (e *Engine) finishSender(transferID, outcome string) {
	externalID := transferID
	if slot, ok := e.senders[transferID]; ok {
		externalID = slot.proposedID
		e.disarmTimeout(slot)
		if slot.source != nil {
			_ = slot.source.Close()
		}
		delete(e.senders, transferID)
	}
	delete(e.transferPeer, transferID)
	e.metrics.transferTerminal(externalID, outcome)
	e.persistTerminal(externalID, outcome)
}

func (e *Engine) finishReceiver(transferID, outcome string) {
	delete(e.receivers, transferID)
	delete(e.transferPeer, transferID)
	e.metrics.transferTerminal(transferID, outcome)
	e.persistTerminal(transferID, outcome)
}

func (e *Engine) persistTerminal(transferID, outcome string) {
	var status domain.TransferStatus
	switch outcome {
	case "completed":
		status = domain.Completed()
	case "cancelled":
		status = domain.Cancelled()
	default:
		status = domain.Failed(outcome)
	}
	if err := e.repos.Transfers.UpdateStatus(transferID, status); err != nil {
		e.log.Warn().Err(err).Str("transfer", transferID).Msg("persist terminal transfer status")
	}
}

// --- transport events -----------------------------------------------------

func (e *Engine) handleTransportEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventPeerConnected:
		e.touch(ev.PeerID)
		if err := e.repos.Peers.Save(domain.Peer{ID: ev.PeerID, Connected: true, LastSeen: time.Now()}); err != nil {
			e.log.Warn().Err(err).Msg("save connected peer")
		}
		e.bus.Publish(domain.NewPeerConnected(ev.PeerID))
		e.metrics.peerConnected()

	case EventPeerDisconnected:
		delete(e.peerLastSeen, ev.PeerID)
		e.disconnectPeer(ev.PeerID)

	case EventPeerDiscovered:
		e.peerAddresses[ev.PeerID] = appendUniqueAll(e.peerAddresses[ev.PeerID], ev.Addresses...)
		e.bus.Publish(domain.NewPeerDiscovered(ev.PeerID, e.peerAddresses[ev.PeerID]))

	case EventFileTransferRequest:
		e.touch(ev.PeerID)
		e.handleInboundRequest(ctx, ev)

	case EventFileTransferResponse:
		e.touch(ev.PeerID)
		e.handleInboundResponse(ctx, ev)

	case EventGossipMessage:
		e.log.Debug().Str("topic", ev.Topic).Str("peer", ev.PeerID).Msg("gossip message received")
	}
}

func appendUniqueAll(list []string, vals ...string) []string {
	for _, v := range vals {
		list = appendUnique(list, v)
	}
	return list
}
