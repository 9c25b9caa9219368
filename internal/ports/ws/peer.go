package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536
	sendBuffer     = 256
)

var errPeerClosed = errors.New("peer closed")

// Peer is a live transport endpoint bound to a player. The gateway owns the
// gorilla implementation; tests substitute their own.
type Peer interface {
	Send(data []byte) error
	CloseWithReason(code int, reason string)
	RemoteAddr() string
}

// wsPeer wraps a gorilla connection with a buffered outbound queue drained
// by a single writer goroutine.
type wsPeer struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(conn *websocket.Conn) *wsPeer {
	p := &wsPeer{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go p.writePump()
	return p
}

// Send queues a frame for the writer. A full queue counts as a dead peer.
func (p *wsPeer) Send(data []byte) error {
	select {
	case <-p.done:
		return errPeerClosed
	case p.send <- data:
		return nil
	default:
		p.close()
		return errPeerClosed
	}
}

// CloseWithReason issues a close frame then tears the connection down.
func (p *wsPeer) CloseWithReason(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	p.close()
}

func (p *wsPeer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

func (p *wsPeer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

func (p *wsPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.close()
	}()
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
