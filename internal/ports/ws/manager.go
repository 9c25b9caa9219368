package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ychleo102615/hanahuda-server/internal/app"
	"github.com/ychleo102615/hanahuda-server/internal/metrics"
)

// Close code sent when a session fails to resolve.
const CloseSessionInvalidated = 4002

// SnapshotProvider hands a reconnecting player their restore event.
type SnapshotProvider interface {
	SnapshotFor(playerID string) *app.GatewayEvent
}

// Manager owns the live playerId <-> peer binding. Registering a player
// subscribes the peer to that player's outbound stream; a second connection
// for the same player force-closes the first.
type Manager struct {
	log       zerolog.Logger
	players   *app.PlayerBus
	snapshots SnapshotProvider

	mu     sync.Mutex
	peers  map[string]Peer
	byPeer map[Peer]string
	unsubs map[string]func()
}

// NewManager constructs an empty connection manager.
func NewManager(log zerolog.Logger, players *app.PlayerBus, snapshots SnapshotProvider) *Manager {
	return &Manager{
		log:       log.With().Str("component", "conn_manager").Logger(),
		players:   players,
		snapshots: snapshots,
		peers:     make(map[string]Peer),
		byPeer:    make(map[Peer]string),
		unsubs:    make(map[string]func()),
	}
}

// Register binds a peer to a player, replacing and closing any previous
// connection, then resynchronises the player if they have a live game.
func (m *Manager) Register(playerID string, peer Peer) {
	m.mu.Lock()
	if old, ok := m.peers[playerID]; ok {
		m.log.Info().Str("player_id", playerID).Msg("replacing existing connection")
		if unsub := m.unsubs[playerID]; unsub != nil {
			unsub()
		}
		delete(m.byPeer, old)
		go old.CloseWithReason(1000, "replaced by new connection")
	}
	m.peers[playerID] = peer
	m.byPeer[peer] = playerID
	m.unsubs[playerID] = m.players.Subscribe(playerID, func(ev app.GatewayEvent) {
		m.write(playerID, peer, ev)
	})
	total := len(m.peers)
	m.mu.Unlock()
	metrics.ConnectedPlayers.Set(float64(total))

	if m.snapshots != nil {
		if ev := m.snapshots.SnapshotFor(playerID); ev != nil {
			m.SendToPlayer(playerID, *ev)
		}
	}
}

// HandleClosed reacts to a peer's read loop ending. It reports whether the
// peer was still the player's current connection; a replaced peer is a
// no-op so the successor keeps its subscription.
func (m *Manager) HandleClosed(peer Peer) (string, bool) {
	m.mu.Lock()
	playerID, ok := m.byPeer[peer]
	if !ok {
		m.mu.Unlock()
		return "", false
	}
	delete(m.byPeer, peer)
	delete(m.peers, playerID)
	if unsub := m.unsubs[playerID]; unsub != nil {
		unsub()
		delete(m.unsubs, playerID)
	}
	total := len(m.peers)
	m.mu.Unlock()
	metrics.ConnectedPlayers.Set(float64(total))
	return playerID, true
}

// RemoveConnection unsubscribes and drops the player's peer reference.
func (m *Manager) RemoveConnection(playerID string) {
	m.mu.Lock()
	peer, ok := m.peers[playerID]
	if ok {
		delete(m.peers, playerID)
		delete(m.byPeer, peer)
	}
	if unsub := m.unsubs[playerID]; unsub != nil {
		unsub()
		delete(m.unsubs, playerID)
	}
	total := len(m.peers)
	m.mu.Unlock()
	metrics.ConnectedPlayers.Set(float64(total))
}

// SendToPlayer serializes and writes one event to the player's peer.
func (m *Manager) SendToPlayer(playerID string, ev app.GatewayEvent) {
	m.mu.Lock()
	peer, ok := m.peers[playerID]
	m.mu.Unlock()
	if !ok {
		return
	}
	m.write(playerID, peer, ev)
}

// ForceDisconnect closes the player's connection with a close frame.
func (m *Manager) ForceDisconnect(playerID string, code int, reason string) {
	m.mu.Lock()
	peer, ok := m.peers[playerID]
	m.mu.Unlock()
	if !ok {
		return
	}
	peer.CloseWithReason(code, reason)
	m.RemoveConnection(playerID)
}

// PlayerIDByPeer is the reverse lookup used on frame receipt.
func (m *Manager) PlayerIDByPeer(peer Peer) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	playerID, ok := m.byPeer[peer]
	return playerID, ok
}

// write serializes the event onto the peer. Transport-closed errors are
// expected churn, not failures.
func (m *Manager) write(playerID string, peer Peer, ev app.GatewayEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		m.log.Error().Err(err).Str("type", string(ev.Type)).Msg("event marshal failed")
		return
	}
	if err := peer.Send(data); err != nil {
		m.log.Debug().Str("player_id", playerID).Msg("send to closed peer dropped")
	}
}
