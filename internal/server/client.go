package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendQueueSize  = 256
)

// Conn is the part of *websocket.Conn a client uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type connState int32

const (
	stateUnauthenticated connState = iota
	stateAuthenticated
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticated:
		return "authenticated"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

type Client struct {
	id       string
	conn     Conn
	gateway  *Gateway
	log      *log.Logger
	user     types.User
	state    atomic.Int32
	rooms    *RoomIndex
	send     chan *ServerMessage
	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
}

func newClient(id string, conn Conn, g *Gateway) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:      id,
		conn:    conn,
		gateway: g,
		log:     g.log,
		rooms:   NewRoomIndex(),
		send:    make(chan *ServerMessage, sendQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
	}
}

func (c *Client) currentState() connState {
	return connState(c.state.Load())
}

func (c *Client) setState(s connState) {
	c.state.Store(int32(s))
}

// Write drains the send queue and keeps the connection alive with pings.
func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				c.close()
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				c.close()
				return
			}
		}
	}
}

// Read runs the command loop. Each frame is dispatched before the next one is
// read, so commands from one connection never overlap.
func (c *Client) Read() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage())
			continue
		}

		if !c.gateway.dispatch(c, &msg) {
			return
		}
	}
}

// queueMessage enqueues msg without blocking. A full queue or a closed client
// drops the frame.
func (c *Client) queueMessage(msg *ServerMessage) bool {
	if c.currentState() == stateClosed {
		return false
	}

	select {
	case c.send <- msg:
	default:
		c.log.Printf("send queue full for connection %q, dropping %s", c.id, msg.Event)
		return false
	}

	return true
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

// close moves the client to the closed state, cancels its context and stops
// the writer, which closes the transport and unblocks the reader.
func (c *Client) close() {
	c.stopOnce.Do(func() {
		c.setState(stateClosed)
		c.cancel()
		close(c.stop)
	})
}
