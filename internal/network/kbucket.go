package network

import (
	kbucket "github.com/libp2p/go-libp2p-kbucket"
	"github.com/libp2p/go-libp2p/core/peer"
)

// kadID converts a peer identity into the XOR keyspace kbucket.Table
// orders its routing entries by, matching go-libp2p-kad-dht's own use of
// go-libp2p-kbucket internally.
func kadID(p peer.ID) kbucket.ID {
	return kbucket.ConvertPeerID(p)
}
