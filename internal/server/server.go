package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/npezzotti/go-messenger/internal/attachments"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/teris-io/shortid"
	"golang.org/x/sync/semaphore"
)

var ErrShuttingDown = errors.New("gateway is shutting down")

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (int, error)
}

// Gateway authenticates connections, runs their command loops and fans
// events out to the connections joined to a chat.
type Gateway struct {
	log         *log.Logger
	db          database.GoChatRepository
	verifier    TokenVerifier
	files       attachments.Store
	stats       stats.StatsProvider
	presence    *Presence
	sem         *semaphore.Weighted
	clients     map[string]*Client
	clientsLock sync.RWMutex
	wg          sync.WaitGroup
	closeLock   sync.Mutex
	closing     atomic.Bool
}

// NewGateway creates a gateway serving at most maxConnections connections at
// once. files may be nil when attachments are not stored locally.
func NewGateway(logger *log.Logger, db database.GoChatRepository, verifier TokenVerifier,
	files attachments.Store, su stats.StatsProvider, maxConnections int) *Gateway {
	su.RegisterMetric(stats.MetricActiveConnections)
	su.RegisterMetric(stats.MetricOnlineUsers)
	su.RegisterMetric(stats.MetricMessagesSent)
	su.RegisterMetric(stats.MetricMessagesDeleted)
	su.RegisterMetric(stats.MetricRejectedHandshake)

	return &Gateway{
		log:      logger,
		db:       db,
		verifier: verifier,
		files:    files,
		stats:    su,
		presence: NewPresence(),
		sem:      semaphore.NewWeighted(int64(maxConnections)),
		clients:  make(map[string]*Client),
	}
}

func (g *Gateway) Presence() *Presence {
	return g.presence
}

// Serve takes ownership of conn and authenticates it with token. It returns
// once the connection's goroutines are started; the connection is closed
// without any frame if authentication fails.
func (g *Gateway) Serve(conn Conn, token string) error {
	if g.closing.Load() {
		conn.Close()
		return ErrShuttingDown
	}

	if !g.sem.TryAcquire(1) {
		g.log.Println("connection limit reached, closing connection")
		g.stats.Incr(stats.MetricRejectedHandshake)
		conn.Close()
		return NewConflictError("too many connections")
	}

	id, err := shortid.Generate()
	if err != nil {
		g.sem.Release(1)
		conn.Close()
		return NewInternalError(err)
	}

	c := newClient(id, conn, g)
	if err := g.authenticate(c, token); err != nil {
		g.sem.Release(1)
		g.stats.Incr(stats.MetricRejectedHandshake)
		c.close()
		conn.Close()
		return err
	}

	if !g.register(c) {
		g.sem.Release(1)
		c.close()
		conn.Close()
		return ErrShuttingDown
	}
	g.connect(c)

	go func() {
		defer g.wg.Done()
		c.Write()
	}()
	go func() {
		defer g.wg.Done()
		defer g.sem.Release(1)
		c.Read()
		g.disconnect(c)
	}()

	return nil
}

func (g *Gateway) authenticate(c *Client, token string) error {
	userId, err := g.verifier.Verify(token)
	if err != nil {
		g.log.Printf("handshake rejected: %v", err)
		return NewAuthenticationError(err)
	}

	user, err := g.db.GetAccountById(c.ctx, userId)
	if err != nil {
		g.log.Printf("handshake rejected: load user %d: %v", userId, err)
		return NewAuthenticationError(err)
	}

	c.user = ToUser(user)
	c.setState(stateAuthenticated)

	return nil
}

// register adds c to the connection table and accounts for its two
// goroutines, unless Shutdown has already started.
func (g *Gateway) register(c *Client) bool {
	g.closeLock.Lock()
	defer g.closeLock.Unlock()

	if g.closing.Load() {
		return false
	}

	g.clientsLock.Lock()
	g.clients[c.id] = c
	g.clientsLock.Unlock()
	g.wg.Add(2)

	return true
}

// connect records presence, fills the room index and announces the new
// online set.
func (g *Gateway) connect(c *Client) {
	g.stats.Incr(stats.MetricActiveConnections)

	if prev, replaced := g.presence.SetOnline(c.user.Id, c.id); replaced {
		if old := g.getClient(prev); old != nil {
			g.log.Printf("user %q reconnected, closing connection %q", c.user.Username, prev)
			old.close()
		}
	}
	g.stats.Set(stats.MetricOnlineUsers, int64(g.presence.Len()))

	chatIds, err := g.db.ListChatIdsForUser(c.ctx, c.user.Id)
	if err != nil {
		g.log.Printf("list chats for user %d: %v", c.user.Id, err)
	}
	for _, id := range chatIds {
		c.rooms.Join(id)
	}

	g.log.Printf("user %q connected on %q, rooms: %v", c.user.Username, c.id, chatIds)
	g.broadcastOnlineUsers()
}

func (g *Gateway) disconnect(c *Client) {
	c.close()

	g.clientsLock.Lock()
	delete(g.clients, c.id)
	g.clientsLock.Unlock()
	g.stats.Decr(stats.MetricActiveConnections)

	c.rooms.Clear()
	if g.presence.SetOfflineIfCurrent(c.user.Id, c.id) {
		g.stats.Set(stats.MetricOnlineUsers, int64(g.presence.Len()))
	}

	g.log.Printf("user %q disconnected from %q", c.user.Username, c.id)
	g.broadcastOnlineUsers()
}

func (g *Gateway) getClient(id string) *Client {
	g.clientsLock.RLock()
	defer g.clientsLock.RUnlock()
	return g.clients[id]
}

func (g *Gateway) snapshotClients() []*Client {
	g.clientsLock.RLock()
	defer g.clientsLock.RUnlock()

	clients := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}

	return clients
}

// ConnectionCount reports the number of authenticated connections.
func (g *Gateway) ConnectionCount() int {
	g.clientsLock.RLock()
	defer g.clientsLock.RUnlock()
	return len(g.clients)
}

// Shutdown closes every connection and waits for their goroutines to exit or
// ctx to expire.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.log.Println("shutting down gateway")
	g.closeLock.Lock()
	g.closing.Store(true)
	g.closeLock.Unlock()

	for _, c := range g.snapshotClients() {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ToUser strips credentials from a stored account.
func ToUser(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		ProfileImg:   u.ProfileImg,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// ToProfile keeps the public fields of a stored account.
func ToProfile(u database.User) types.Profile {
	return types.Profile{
		Id:         u.Id,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		ProfileImg: u.ProfileImg,
	}
}
