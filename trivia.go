/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Websocket transport for the trivia game.
//
// Every websocket connection gets a random connection ID and its own buffered
// send queue. The Hub maps connection IDs to clients and implements
// trivia.Notifier, so the game manager never touches a socket directly.
//
// Routes:
//   - $prefix/ws             → websocket endpoint shared by all rooms
//   - $prefix/new            → redirects to a fresh random room
//   - $prefix/room/:token    → HTML client with the room prefilled
//   - $prefix/room/:token/qr → PNG QR code for the room URL

package main

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Seednode/triviaduel/games/trivia"
)

const (
	maxMessageSize = 4096
	sendBufferSize = 32
	writeWait      = 10 * time.Second
	roomTokenLen   = 8
)

// Inbound message types.
const (
	typeJoinRoom     = "join-room"
	typeSubmitAnswer = "submit-answer"
	typeRestartGame  = "restart-game"
)

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
)

// inboundMessage is the envelope for every client frame.
type inboundMessage struct {
	Type          string          `json:"type"`
	DisplayName   string          `json:"displayName,omitempty"`   // join-room
	RoomToken     string          `json:"roomToken,omitempty"`     // join-room
	Answer        json.RawMessage `json:"answer,omitempty"`        // submit-answer
	QuestionIndex *int            `json:"questionIndex,omitempty"` // submit-answer
}

// answerString accepts any JSON value as an answer. Strings are unquoted,
// everything else is compared by its literal text.
func answerString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(bytes.TrimSpace(raw))
}

type Client struct {
	id   trivia.ConnID
	conn *websocket.Conn
	send chan any

	mu     sync.Mutex
	closed bool
}

func newClient(id trivia.ConnID, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan any, sendBufferSize),
	}
}

// push queues msg without blocking.
func (c *Client) push(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

// Hub tracks live connections and delivers game messages to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[trivia.ConnID]*Client
	logger  *zap.Logger
}

func newHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[trivia.ConnID]*Client),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	c.close()
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Send implements trivia.Notifier. A client that cannot keep up is
// disconnected rather than allowed to stall the game.
func (h *Hub) Send(conn trivia.ConnID, msg any) {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug("dropping message for unknown connection", zap.String("conn", string(conn)))

		return
	}

	err := c.push(msg)
	switch {
	case err == nil:
	case errors.Is(err, errClientClosed):
	default:
		h.logger.Warn("dropping slow connection",
			zap.String("conn", string(conn)),
			zap.Error(err),
		)

		_ = c.conn.Close()
	}
}

// closeAll disconnects every client (used on shutdown).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, logger *zap.Logger, hub *Hub, game *trivia.Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug("websocket upgrade failed",
				zap.String("client", realIP(r)),
				zap.Error(err),
			)

			return
		}

		client := newClient(trivia.ConnID(uuid.NewString()), conn)
		hub.register(client)

		logger.Debug("client connected",
			zap.String("conn", string(client.id)),
			zap.String("client", realIP(r)),
			zap.Int("connections", hub.count()),
		)

		go client.writePump(cfg.playerTimeout * 9 / 10)
		client.readPump(cfg, logger, hub, game)

		logger.Debug("client disconnected",
			zap.String("conn", string(client.id)),
			zap.String("client", realIP(r)),
		)
	}
}

func (c *Client) readPump(cfg *Config, logger *zap.Logger, hub *Hub, game *trivia.Manager) {
	defer func() {
		game.Disconnect(c.id)
		hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.playerTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.playerTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Debug("websocket read failed",
					zap.String("conn", string(c.id)),
					zap.Error(err),
				)
			}

			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.playerTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.push(trivia.ErrorMessage{
				Type:    trivia.TypeError,
				Code:    "invalid-message",
				Message: "message is not valid JSON",
			})

			continue
		}

		switch msg.Type {
		case typeJoinRoom:
			err = game.Join(c.id, msg.DisplayName, msg.RoomToken)
		case typeSubmitAnswer:
			err = game.SubmitAnswer(c.id, answerString(msg.Answer), msg.QuestionIndex)
		case typeRestartGame:
			err = game.Restart(c.id)
		default:
			// ignore unknown types
			continue
		}

		if err != nil {
			logger.Debug("rejected client event",
				zap.String("conn", string(c.id)),
				zap.String("type", msg.Type),
				zap.Error(err),
			)

			_ = c.push(trivia.NewErrorMessage(err))
		}
	}
}

func (c *Client) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// newRoomToken generates a crypto-random room token that no live room uses.
func newRoomToken(game *trivia.Manager) (string, error) {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

	for {
		buf := make([]byte, roomTokenLen)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}

		out := make([]byte, roomTokenLen)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		token := string(out)

		if _, exists := game.Room(token); !exists {
			return token, nil
		}
	}
}

// redirectNewRoom sends the browser to a fresh room, ready to share.
func redirectNewRoom(cfg *Config, logger *zap.Logger, game *trivia.Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		token, err := newRoomToken(game)
		if err != nil {
			logger.Error("generating room token", zap.Error(err))

			http.Error(w, "unable to create room", http.StatusInternalServerError)

			return
		}

		logger.Debug("created room link",
			zap.String("room", token),
			zap.String("client", realIP(r)),
		)

		http.Redirect(w, r, cfg.prefix+"/room/"+token, http.StatusTemporaryRedirect)
	}
}

// roomURL rebuilds the public URL of a room, respecting TLS and
// X-Forwarded-Proto when present.
func roomURL(cfg *Config, r *http.Request, token string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + cfg.prefix + "/room/" + token
}

// serveQRCode renders a PNG QR code linking to the room.
func serveQRCode(cfg *Config, logger *zap.Logger, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := strings.TrimSpace(ps.ByName("token"))
		if token == "" {
			http.Error(w, "missing room token", http.StatusBadRequest)

			return
		}

		const qrSize = 320
		png, err := qrcode.Encode(roomURL(cfg, r, token), qrcode.Medium, qrSize)
		if err != nil {
			logger.Error("qr generation failed", zap.String("room", token), zap.Error(err))

			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		_, err = w.Write(png)
		if err != nil {
			errs <- err

			return
		}
	}
}

func registerTriviaGame(cfg *Config, logger *zap.Logger, hub *Hub, game *trivia.Manager, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, logger, hub, game))

	mux.GET(cfg.prefix+"/new", redirectNewRoom(cfg, logger, game))

	mux.GET(cfg.prefix+"/room/:token", serveHomePage(cfg, logger, errs))

	mux.GET(cfg.prefix+"/room/:token/qr", serveQRCode(cfg, logger, errs))
}
