package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/duetapp/duet-server/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one live connection. Inbound events are dispatched serially from
// the read loop, which is what preserves per-sender relay ordering; outbound
// messages go through a buffered send queue drained by the write loop.
type Client struct {
	sid      string
	conn     *websocket.Conn
	server   *RelayServer
	log      *log.Logger
	user     types.User
	send     chan *ServerMessage
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, rs *RelayServer, l *log.Logger) *Client {
	return &Client{
		sid:    uuid.NewString(),
		conn:   conn,
		server: rs,
		log:    l,
		user:   user,
		send:   make(chan *ServerMessage, 256),
		stop:   make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		c.dispatch(&msg)
	}
}

// dispatch routes one inbound event to the relay server. Malformed events are
// rejected whole with an error response; they are never partially processed.
func (c *Client) dispatch(msg *ClientMessage) {
	switch {
	case msg.Announce != nil:
		if msg.Announce.UserId != "" && msg.Announce.UserId != c.user.Id {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}
		c.server.Announce(c)
	case msg.Activity != nil:
		if msg.Activity.UserId != "" && msg.Activity.UserId != c.user.Id {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}
		c.server.SetActivity(c.user.Id, msg.Activity.Activity)
	case msg.Send != nil:
		if msg.Send.ReceiverId == "" || !msg.Send.Kind.Valid() {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}
		m, err := c.server.Relay(c.user.Id, msg.Send.ReceiverId, msg.Send.Kind, msg.Send.Payload)
		if err != nil {
			c.log.Printf("relay: %v", err)
			c.queueMessage(ErrInternalError(msg.Id))
			return
		}
		c.queueMessage(NoErrOK(msg.Id, map[string]any{"message_id": m.Id}))
	case msg.Call != nil:
		if msg.Call.CalleeId == "" {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}
		callId, err := c.server.InitiateCall(c.user.Id, msg.Call.CalleeId)
		if err != nil {
			c.log.Printf("initiate call: %v", err)
			c.queueMessage(ErrInternalError(msg.Id))
			return
		}
		c.queueMessage(NoErrOK(msg.Id, map[string]any{"call_id": callId}))
	case msg.Resolve != nil:
		if msg.Resolve.CallId == "" || !msg.Resolve.Outcome.Valid() {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}
		c.server.ResolveCall(msg.Resolve.CallId, msg.Resolve.Outcome)
	case msg.Signal != nil:
		if msg.Signal.CallId == "" || msg.Signal.ToId == "" {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}
		c.server.RelaySignal(c.user.Id, msg.Signal)
	case msg.End != nil:
		if msg.End.CallId == "" || msg.End.ToId == "" {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}
		c.server.EndCall(msg.End.CallId, msg.End.ToId)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.server.HandleDisconnect(c)
	c.stopClient()
}
