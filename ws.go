package main

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/openround/auth"
	"github.com/Seednode/openround/rooms"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client-to-server room control messages. Neither has a payload response;
// the REST API remains authoritative for request outcomes.
type wsMessage struct {
	Type    string `json:"type"` // "join_room" or "leave_room"
	RoundID string `json:"round_id"`
}

type wsClient struct {
	conn   *websocket.Conn
	member *rooms.Member
	hub    *rooms.Hub
}

// serveWS opens the push channel. Authentication happens exactly once,
// before the upgrade: a connection without a verifiable identity token is
// rejected before any room operation.
func serveWS(cfg *Config, hub *rooms.Hub, verifier *auth.Verifier) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, err := verifier.Verify(bearerToken(r))
		if err != nil {
			writeAuthError(w, err)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "WS: upgrade error from %s: %v", realIP(r), err)

			return
		}

		client := &wsClient{
			conn:   conn,
			member: rooms.NewMember(id.UserID, 8),
			hub:    hub,
		}

		logf(cfg, "WS: %s connected from %s", id.UserID, realIP(r))

		go client.writePump()
		client.readPump()
	}
}

// readPump consumes room control messages until the connection drops. A
// disconnect simply removes the member from its rooms; in-flight mutations
// are never cancelled by it.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Remove(c.member)
		_ = c.conn.Close()
	}()

	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join_room":
			if msg.RoundID != "" {
				c.hub.Join(c.member, msg.RoundID)
			}
		case "leave_room":
			if msg.RoundID != "" {
				c.hub.Leave(c.member, msg.RoundID)
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()

	for msg := range c.member.Events() {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
