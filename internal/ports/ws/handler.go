package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ychleo102615/hanahuda-server/internal/app"
)

// SessionCookie is the opaque session identifier presented at handshake.
const SessionCookie = "koikoi_session"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin checks belong to the fronting proxy in this deployment.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Gateway terminates websocket connections and feeds command frames into
// the session service.
type Gateway struct {
	log      zerolog.Logger
	sessions app.SessionStore
	handoff  *app.HandoffIssuer
	manager  *Manager
	service  *app.Service
}

// NewGateway wires the transport adapter.
func NewGateway(log zerolog.Logger, sessions app.SessionStore, handoff *app.HandoffIssuer, manager *Manager, service *app.Service) *Gateway {
	return &Gateway{
		log:      log.With().Str("component", "ws_gateway").Logger(),
		sessions: sessions,
		handoff:  handoff,
		manager:  manager,
		service:  service,
	}
}

// Router builds the HTTP surface: the websocket endpoint, health, metrics,
// and a development guest login.
func (gw *Gateway) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", gw.handleWebSocket)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/auth/guest", gw.handleGuestLogin)
	return r
}

// handleGuestLogin mints a session for an anonymous player id. The real
// identity collaborator replaces this in production deployments.
func (gw *Gateway) handleGuestLogin(c *gin.Context) {
	var body struct {
		PlayerID string `json:"player_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_id required"})
		return
	}
	sess, err := gw.sessions.Create(c.Request.Context(), body.PlayerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
		return
	}
	c.SetCookie(SessionCookie, sess.ID, int(app.SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"session_id": sess.ID, "player_id": sess.PlayerID})
}

// resolvePlayer authorizes the handshake: a handoff token when present,
// otherwise the session cookie.
func (gw *Gateway) resolvePlayer(c *gin.Context) (string, bool) {
	if token := c.Query("handoff"); token != "" && gw.handoff != nil {
		payload, err := gw.handoff.Verify(token)
		if err != nil {
			gw.log.Warn().Err(err).Msg("handoff token rejected")
			return "", false
		}
		return payload.PlayerID, true
	}
	sessionID, err := c.Cookie(SessionCookie)
	if err != nil || sessionID == "" {
		return "", false
	}
	sess, err := gw.sessions.Resolve(c.Request.Context(), sessionID)
	if err != nil {
		return "", false
	}
	return sess.PlayerID, true
}

func (gw *Gateway) handleWebSocket(c *gin.Context) {
	playerID, ok := gw.resolvePlayer(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		gw.log.Debug().Err(err).Msg("upgrade failed")
		return
	}
	peer := newPeer(conn)
	if !ok {
		peer.CloseWithReason(CloseSessionInvalidated, "Session invalidated")
		return
	}

	gw.manager.Register(playerID, peer)
	gw.log.Info().Str("player_id", playerID).Str("remote", peer.RemoteAddr()).Msg("peer connected")
	gw.readPump(playerID, peer, conn)
}

// readPump reads frames until the connection dies, dispatching each to the
// session service and answering on the same peer.
func (gw *Gateway) readPump(playerID string, peer *wsPeer, conn *websocket.Conn) {
	defer func() {
		peer.close()
		if pid, wasCurrent := gw.manager.HandleClosed(peer); wasCurrent {
			gw.log.Info().Str("player_id", pid).Msg("peer disconnected")
			gw.service.HandleDisconnect(pid)
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				gw.log.Debug().Err(err).Str("player_id", playerID).Msg("read error")
			}
			return
		}

		var frame app.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			gw.writeResponse(peer, app.CommandResponse{Code: app.CodeUnknownCommand, Message: "malformed frame"})
			continue
		}
		resp := gw.service.HandleFrame(context.Background(), playerID, frame)
		gw.writeResponse(peer, resp)
	}
}

func (gw *Gateway) writeResponse(peer Peer, resp app.CommandResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := peer.Send(data); err != nil {
		gw.log.Debug().Msg("response to closed peer dropped")
	}
}
