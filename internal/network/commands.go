package network

// CommandKind tags the variant of an external Command, matching spec.md
// §4.6's "External command surface (queued, single-producer ordering per
// caller)".
type CommandKind string

const (
	CmdStartListening    CommandKind = "start_listening"
	CmdConnectToPeer     CommandKind = "connect_to_peer"
	CmdSendFileRequest   CommandKind = "send_file_request"
	CmdBootstrapRouting  CommandKind = "bootstrap_routing"
	CmdFindClosestPeers  CommandKind = "find_closest_peers"
	CmdAddRoutingAddress CommandKind = "add_routing_address"
	CmdSubscribeTopic    CommandKind = "subscribe_topic"
	CmdPublishMessage    CommandKind = "publish_message"
	CmdCancelTransfer    CommandKind = "cancel_transfer"
)

// Command is the single variant type accepted by the engine's command
// channel. Only the fields relevant to Kind are populated. Result is
// nil for fire-and-forget commands and non-nil when the caller wants to
// observe completion/error synchronously.
type Command struct {
	Kind CommandKind

	Port      int
	Address   string
	Addresses []string
	PeerID    string
	FilePath  string
	Filename  string

	TransferID string
	Topic      string
	Data       []byte

	Result chan CommandResult
}

// CommandResult carries the outcome of a Command back to its submitter.
type CommandResult struct {
	Err        error
	ListenAddr string
	Peers      []string
	TransferID string
}
