package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/Trivernis/snekcloud-go/internal/log"
	"github.com/Trivernis/snekcloud-go/internal/snerr"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
)

// eventProtocol is the single stream protocol all events ride on. The
// event name travels inside the envelope rather than as one libp2p
// protocol per name, since On() registrations are not known upfront.
const eventProtocol = protocol.ID("/snekcloud/event/1.0.0")

// envelope is the wire frame written to an event stream.
type envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LibP2PTransport is the production Transport backed by a libp2p host. One
// outbound stream is opened per Emit call; a single inbound stream handler
// dispatches to whichever HandlerFunc was registered for the envelope name.
//
// The transport's libp2p peer.ID is its own routing concern and is
// deliberately distinct from the application-level node id (a
// ^\S{1,32}$ id, armored with internal/keys) — routes is the mapping
// between the two, populated by Connect.
type LibP2PTransport struct {
	host  host.Host
	cache *AddressCache // optional; nil disables persisted re-dial hints

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	routes   map[string]peer.ID // snekcloud node id -> libp2p peer id
}

// NewLibP2PTransport creates a libp2p host whose identity is derived
// deterministically from nodeID (the same derivation resolvePeer uses for
// remote peers), so that other nodes calling Connect(nodeID, ...) compute
// the same peer.ID this host actually listens as, with no out-of-band key
// exchange. cache may be nil to disable persisted address hints.
func NewLibP2PTransport(nodeID string, cache *AddressCache) (*LibP2PTransport, error) {
	priv, err := derivePeerIdentity(nodeID)
	if err != nil {
		return nil, snerr.Wrap(snerr.Transport, fmt.Errorf("derive host identity: %w", err))
	}

	h, err := libp2p.New(libp2p.Identity(priv))
	if err != nil {
		return nil, snerr.Wrap(snerr.Transport, fmt.Errorf("create libp2p host: %w", err))
	}

	t := &LibP2PTransport{
		host:     h,
		cache:    cache,
		handlers: make(map[string]HandlerFunc),
		routes:   make(map[string]peer.ID),
	}
	h.SetStreamHandler(eventProtocol, t.handleStream)
	return t, nil
}

// Listen binds the host to addr ("host:port").
func (t *LibP2PTransport) Listen(addr string) error {
	m, err := hostAddrToMultiaddr(addr)
	if err != nil {
		return snerr.Wrap(snerr.Transport, err)
	}
	if err := t.host.Network().Listen(m); err != nil {
		return snerr.Wrap(snerr.Transport, fmt.Errorf("listen on %s: %w", addr, err))
	}
	return nil
}

// Connect registers a peer's known addresses under its snekcloud node id so
// Emit can resolve and dial it, persisting the hint if a cache is set.
// The peer's libp2p identity is derived deterministically from its node id
// so independently-started nodes agree on each other's peer.ID without an
// out-of-band identity exchange.
func (t *LibP2PTransport) Connect(nodeID string, addrs []string) error {
	pid, maddrs, err := resolvePeer(nodeID, addrs)
	if err != nil {
		return snerr.Wrap(snerr.Transport, err)
	}

	t.host.Peerstore().AddAddrs(pid, maddrs, peer.PermanentAddrTTL)

	t.mu.Lock()
	t.routes[nodeID] = pid
	t.mu.Unlock()

	if t.cache != nil {
		if err := t.cache.Save(AddressRecord{NodeID: nodeID, PeerID: pid.String(), Addresses: addrs}); err != nil {
			log.Transport.Warn().Err(err).Str("node_id", nodeID).Msg("failed to persist address hint")
		}
	}
	return nil
}

// Emit opens a stream to nodeID and writes the event envelope, returning
// once the write completes or ctx's deadline elapses.
func (t *LibP2PTransport) Emit(ctx context.Context, nodeID string, event Event) error {
	pid, err := t.lookupPeerID(nodeID)
	if err != nil {
		return snerr.Wrap(snerr.Transport, err)
	}

	stream, err := t.host.NewStream(ctx, pid, eventProtocol)
	if err != nil {
		return snerr.Wrap(snerr.Transport, fmt.Errorf("open stream to %s: %w", nodeID, err))
	}
	defer stream.Close()

	data, err := json.Marshal(envelope{Name: event.Name, Payload: event.Payload})
	if err != nil {
		return snerr.Wrap(snerr.JSON, err)
	}
	data = append(data, '\n')

	if _, err := stream.Write(data); err != nil {
		return snerr.Wrap(snerr.Transport, fmt.Errorf("write event to %s: %w", nodeID, err))
	}
	return stream.CloseWrite()
}

// On registers handler for eventName.
func (t *LibP2PTransport) On(eventName string, handler HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[eventName] = handler
}

// Nodes returns every peer this transport currently has a route for.
func (t *LibP2PTransport) Nodes() []NodeInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]NodeInfo, 0, len(t.routes))
	for nodeID, pid := range t.routes {
		addrs := t.host.Peerstore().Addrs(pid)
		strs := make([]string, len(addrs))
		for i, a := range addrs {
			strs[i] = a.String()
		}
		out = append(out, NodeInfo{ID: nodeID, Addresses: strs})
	}
	return out
}

func (t *LibP2PTransport) handleStream(stream network.Stream) {
	defer stream.Close()

	from := stream.Conn().RemotePeer().String()
	reader := bufio.NewReader(stream)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		log.Transport.Debug().Err(err).Str("peer", from).Msg("failed to read event envelope")
		return
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		log.Transport.Debug().Err(err).Str("peer", from).Msg("malformed event envelope")
		return
	}

	t.mu.RLock()
	handler := t.handlers[env.Name]
	t.mu.RUnlock()
	if handler == nil {
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Transport.Error().Interface("panic", r).Str("event", env.Name).Msg("event handler panicked")
			}
		}()
		handler(t.senderNodeID(from), Event{Name: env.Name, Payload: env.Payload})
	}()
}

// senderNodeID translates a libp2p peer id string back to the snekcloud
// node id it was connected under, falling back to the raw peer id if no
// route was registered (e.g. an as-yet-unconnected peer dialing in first).
func (t *LibP2PTransport) senderNodeID(libp2pPeerID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for nodeID, pid := range t.routes {
		if pid.String() == libp2pPeerID {
			return nodeID
		}
	}
	return libp2pPeerID
}

// lookupPeerID resolves a snekcloud node id to a libp2p peer.ID, first
// checking the live route table and falling back to the persisted cache.
func (t *LibP2PTransport) lookupPeerID(nodeID string) (peer.ID, error) {
	t.mu.RLock()
	pid, ok := t.routes[nodeID]
	t.mu.RUnlock()
	if ok {
		return pid, nil
	}

	if t.cache != nil {
		if rec, err := t.cache.Load(nodeID); err == nil {
			if err := t.Connect(rec.NodeID, rec.Addresses); err == nil {
				t.mu.RLock()
				pid, ok := t.routes[nodeID]
				t.mu.RUnlock()
				if ok {
					return pid, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no known route to node %s", nodeID)
}

// resolvePeer derives a deterministic libp2p peer.ID from a snekcloud node
// id (via an Ed25519 key seeded from the id) and converts its dial
// addresses ("host:port") to multiaddrs.
func resolvePeer(nodeID string, addrs []string) (peer.ID, []multiaddr.Multiaddr, error) {
	pub, err := derivePeerKey(nodeID)
	if err != nil {
		return "", nil, err
	}
	pid, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return "", nil, fmt.Errorf("derive peer id for %s: %w", nodeID, err)
	}

	maddrs := make([]multiaddr.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		m, err := hostAddrToMultiaddr(a)
		if err != nil {
			continue
		}
		maddrs = append(maddrs, m)
	}
	return pid, maddrs, nil
}

// derivePeerKey deterministically derives an Ed25519 public key from a node
// id so that every node that Connects to the same id computes the same
// libp2p peer.ID without an out-of-band key exchange.
func derivePeerKey(nodeID string) (crypto.PubKey, error) {
	priv, err := derivePeerIdentity(nodeID)
	if err != nil {
		return nil, err
	}
	return priv.GetPublic(), nil
}

// derivePeerIdentity derives the full Ed25519 keypair a node with this id
// would use as its own libp2p host identity. Called both by a node on its
// own nodeID at startup and by derivePeerKey when resolving a remote peer's
// id — the same seed always yields the same keypair.
func derivePeerIdentity(nodeID string) (crypto.PrivKey, error) {
	seed := make([]byte, 32)
	copy(seed, nodeID)
	priv, _, err := crypto.GenerateEd25519Key(deterministicReader{seed: seed})
	if err != nil {
		return nil, err
	}
	return priv, nil
}

// deterministicReader repeats seed forever, letting crypto.GenerateEd25519Key
// be driven deterministically from a short node id.
type deterministicReader struct {
	seed []byte
}

func (r deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.seed[i%len(r.seed)]
	}
	return len(p), nil
}

func hostAddrToMultiaddr(addr string) (multiaddr.Multiaddr, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return nil, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() != nil {
			return multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%s", host, portStr))
		}
		return multiaddr.NewMultiaddr(fmt.Sprintf("/ip6/%s/tcp/%s", host, portStr))
	}
	return multiaddr.NewMultiaddr(fmt.Sprintf("/dns4/%s/tcp/%s", host, portStr))
}
