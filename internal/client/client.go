// Package client is the connection manager: it keeps a websocket
// connection to the MOSAIC visualizer server, pulls updates and feeds the
// decoded events through the dispatcher into the registry.
//
// All connection state and the registry are owned by the goroutine
// running Run. The reader, writer and dial goroutines only send into its
// channels; other goroutines reach the registry through Do.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/visualizer/internal/config"
	"github.com/OCAP2/visualizer/internal/dispatcher"
	"github.com/OCAP2/visualizer/internal/registry"
	"github.com/OCAP2/visualizer/internal/storage"
	"github.com/OCAP2/visualizer/pkg/core"
	"github.com/OCAP2/visualizer/pkg/mosaic"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrInvalidURL is returned by New for addresses that are not ws:// or wss://.
	ErrInvalidURL = errors.New("invalid websocket URL")
	// ErrNotRunning is returned by Do and Reconnect when Run is not active.
	ErrNotRunning = errors.New("client not running")
	// ErrAlreadyRunning is returned by Run when called twice.
	ErrAlreadyRunning = errors.New("client already running")
)

// FailedNotice is published when the retry budget is exhausted.
const FailedNotice = "Stopped trying to connect to MOSAIC due to timeout."

// Dialer opens websocket connections. *websocket.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*ws.Conn, *http.Response, error)
}

// Config holds the connection settings.
type Config struct {
	URL              string
	PullInterval     time.Duration
	RetryDelay       time.Duration
	MaxRetries       int
	HandshakeTimeout time.Duration
	AutoReconnect    bool
}

// ConfigFrom converts the socket section of the configuration.
func ConfigFrom(c config.ClientConfig) Config {
	return Config{
		URL:              c.URL(),
		PullInterval:     c.PullInterval,
		RetryDelay:       c.RetryDelay,
		MaxRetries:       c.MaxRetries,
		HandshakeTimeout: c.HandshakeTimeout,
		AutoReconnect:    c.AutoReconnect,
	}
}

// handshakeTimeout bounds a dial so that it ends before the next retry.
func (c Config) handshakeTimeout() time.Duration {
	t := c.HandshakeTimeout
	if t <= 0 || (c.RetryDelay > 0 && t > c.RetryDelay) {
		t = c.RetryDelay
	}
	return t
}

// Dependencies holds what the client drives.
type Dependencies struct {
	Registry   *registry.Registry
	Dispatcher *dispatcher.Dispatcher
	Recorder   storage.Backend
	Dialer     Dialer
	Logger     *slog.Logger
	Now        func() time.Time
}

type call struct {
	fn   func(*registry.Registry)
	done chan struct{}
}

// Client is the connection manager.
type Client struct {
	cfg      Config
	registry *registry.Registry
	disp     *dispatcher.Dispatcher
	recorder storage.Backend
	dialer   Dialer
	logger   *slog.Logger
	now      func() time.Time

	dialedCh  chan dialed
	inbound   chan frame
	closedCh  chan closed
	calls     chan call
	reconnect chan struct{}
	stop      chan struct{}
	running   atomic.Bool

	// Owned by the Run goroutine.
	ctx        context.Context
	state      State
	tries      int
	dialGen    uint64
	cancelDial context.CancelFunc
	retry      *time.Timer
	connGen    uint64
	conn       *ws.Conn
	out        chan []byte
	pull       *time.Ticker
	session    *core.Session
	notice     string
	messages   uint64
	since      time.Time

	statusMu  sync.RWMutex
	status    Status
	listeners []func(Status)

	attempts metric.Int64Counter
	received metric.Int64Counter
}

// New validates the address and creates a disconnected client.
func New(cfg Config, deps Dependencies) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, cfg.URL)
	}
	if deps.Registry == nil || deps.Dispatcher == nil {
		return nil, errors.New("client: registry and dispatcher are required")
	}
	if deps.Recorder == nil {
		deps.Recorder = storage.Noop{}
	}
	if deps.Dialer == nil {
		deps.Dialer = &ws.Dialer{Proxy: http.ProxyFromEnvironment}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	c := &Client{
		cfg:       cfg,
		registry:  deps.Registry,
		disp:      deps.Dispatcher,
		recorder:  deps.Recorder,
		dialer:    deps.Dialer,
		logger:    deps.Logger.With("url", cfg.URL),
		now:       deps.Now,
		dialedCh:  make(chan dialed),
		inbound:   make(chan frame, 64),
		closedCh:  make(chan closed),
		calls:     make(chan call),
		reconnect: make(chan struct{}, 1),
		stop:      make(chan struct{}),
		state:     Disconnected,
	}
	c.since = c.now()
	c.status = c.snapshot()

	m := meter()
	c.attempts, err = m.Int64Counter("client.connection.attempts",
		metric.WithDescription("Websocket connection attempts"))
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}
	c.received, err = m.Int64Counter("client.messages.received",
		metric.WithDescription("Messages received from the simulation"))
	if err != nil {
		return nil, fmt.Errorf("creating received counter: %w", err)
	}

	return c, nil
}

// OnStatus registers a listener called on the event loop after every
// status change. Listeners must be registered before Run and must not block.
func (c *Client) OnStatus(fn func(Status)) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Status returns the latest status snapshot. Safe from any goroutine.
func (c *Client) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Do runs fn against the registry on the event loop and waits for it.
func (c *Client) Do(ctx context.Context, fn func(*registry.Registry)) error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	cl := call{fn: fn, done: make(chan struct{})}
	select {
	case c.calls <- cl:
	case <-c.stop:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cl.done:
		return nil
	case <-c.stop:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reconnect resets the attempt counter and starts connecting again. An
// established connection is dropped first.
func (c *Client) Reconnect() error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
	return nil
}

// Run connects and processes events until ctx is cancelled. It can be
// called once.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.ctx = ctx
	defer c.shutdown()

	c.connect()

	for {
		select {
		case <-ctx.Done():
			return nil

		case d := <-c.dialedCh:
			c.onDialed(d)

		case <-c.retryC():
			c.retry = nil
			c.connect()

		case f := <-c.inbound:
			if f.gen == c.connGen && c.conn != nil {
				c.onMessage(f.data)
			}

		case e := <-c.closedCh:
			if e.gen == c.connGen && c.conn != nil {
				c.logger.Info("Connection closed", "error", e.err)
				c.onClose()
			}

		case <-c.pullC():
			c.send([]byte(mosaic.Pull))

		case cl := <-c.calls:
			cl.fn(c.registry)
			close(cl.done)

		case <-c.reconnect:
			c.logger.Info("Reconnect requested", "state", c.state.String())
			if c.conn != nil {
				c.dropConn()
				c.registry.RemoveAllUnits()
				c.endSession()
			}
			c.tries = 0
			c.connect()
		}
	}
}

// connect starts a new attempt: it cancels any dial still in flight,
// dials again and arms the retry timer while the budget lasts.
func (c *Client) connect() {
	if c.conn != nil {
		return
	}
	c.tries++
	c.attempts.Add(c.ctx, 1)
	c.setState(Connecting)

	if c.cancelDial != nil {
		c.cancelDial()
	}
	c.dialGen++
	dialCtx, cancel := context.WithTimeout(c.ctx, c.cfg.handshakeTimeout())
	c.cancelDial = cancel
	go c.dial(dialCtx, c.dialGen)

	c.stopRetry()
	if c.tries <= c.cfg.MaxRetries {
		c.retry = time.NewTimer(c.cfg.RetryDelay)
	}
	c.logger.Debug("Connecting", "tries", c.tries, "maxRetries", c.cfg.MaxRetries)
}

func (c *Client) dial(ctx context.Context, gen uint64) {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	select {
	case c.dialedCh <- dialed{gen: gen, conn: conn, err: err}:
	case <-c.stop:
		if conn != nil {
			_ = conn.Close()
		}
	}
}

func (c *Client) onDialed(d dialed) {
	if d.gen != c.dialGen || c.conn != nil {
		if d.conn != nil {
			_ = d.conn.Close()
		}
		return
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	if d.err != nil {
		c.logger.Error("Connection attempt failed", "tries", c.tries, "error", d.err)
		if c.tries > c.cfg.MaxRetries {
			c.fail()
		}
		return
	}
	c.onOpen(d.conn)
}

func (c *Client) onOpen(conn *ws.Conn) {
	c.stopRetry()
	c.connGen++
	c.conn = conn
	c.out = make(chan []byte, outboundSize)
	c.notice = ""

	go c.readLoop(c.connGen, conn)
	go c.writeLoop(conn, c.out)

	if c.cfg.PullInterval > 0 {
		c.pull = time.NewTicker(c.cfg.PullInterval)
	}

	c.startSession()
	c.setState(Connected)
	c.logger.Info("Connected to MOSAIC", "tries", c.tries)
}

// onClose tears the connection down and clears the view.
func (c *Client) onClose() {
	c.dropConn()
	c.registry.RemoveAllUnits()
	c.endSession()
	c.setState(Disconnected)

	if c.cfg.AutoReconnect {
		c.tries = 0
		c.connect()
	}
}

func (c *Client) dropConn() {
	if c.pull != nil {
		c.pull.Stop()
		c.pull = nil
	}
	if c.out != nil {
		close(c.out)
		c.out = nil
	}
	if c.conn != nil {
		hangUp(c.conn)
		c.conn = nil
	}
}

func (c *Client) fail() {
	c.notice = FailedNotice
	c.setState(Failed)
	c.logger.Error(FailedNotice, "tries", c.tries, "maxRetries", c.cfg.MaxRetries)
}

func (c *Client) onMessage(data []byte) {
	c.messages++
	c.statusMu.Lock()
	c.status.Messages = c.messages
	c.statusMu.Unlock()

	env, err := mosaic.Decode(data)
	c.received.Add(c.ctx, 1, metric.WithAttributes(attribute.String("type", env.Type)))
	if errors.Is(err, mosaic.ErrNoTag) {
		return
	}
	if err != nil {
		c.logger.Debug("Dropping malformed message", "error", err, "bytes", len(data))
		return
	}

	now := c.now()
	touched, err := c.disp.Dispatch(dispatcher.Event{Type: env.Type, Payload: env.Payload, Timestamp: now})
	if err != nil {
		c.logger.Debug("Message not handled", "type", env.Type, "error", err)
	}
	c.registry.UpdateViews(touched, now)
}

// send queues data for the writer. It drops when the writer lags.
func (c *Client) send(data []byte) {
	if c.out == nil {
		return
	}
	select {
	case c.out <- data:
	default:
		c.logger.Warn("Outbound queue full, dropping message", "bytes", len(data))
	}
}

func (c *Client) startSession() {
	c.session = &core.Session{
		ID:        uuid.NewString(),
		URL:       c.cfg.URL,
		StartTime: c.now().UTC(),
		Metadata: map[string]any{
			"pullInterval": c.cfg.PullInterval.String(),
			"tries":        c.tries,
		},
	}
	if err := c.recorder.StartSession(c.session); err != nil {
		c.logger.Error("Failed to start recording session", "error", err)
	}
}

func (c *Client) endSession() {
	if c.session == nil {
		return
	}
	c.session.EndTime = c.now().UTC()
	if err := c.recorder.EndSession(); err != nil {
		c.logger.Error("Failed to end recording session", "error", err)
	}
	c.session = nil
}

func (c *Client) shutdown() {
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.stopRetry()
	if c.conn != nil {
		c.dropConn()
		c.registry.RemoveAllUnits()
		c.endSession()
	}
	c.setState(Disconnected)
	c.running.Store(false)
	close(c.stop)
}

func (c *Client) stopRetry() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

// retryC and pullC return nil channels while the timers are not armed.
func (c *Client) retryC() <-chan time.Time {
	if c.retry == nil {
		return nil
	}
	return c.retry.C
}

func (c *Client) pullC() <-chan time.Time {
	if c.pull == nil {
		return nil
	}
	return c.pull.C
}

func (c *Client) setState(s State) {
	if s != c.state {
		c.since = c.now()
	}
	c.state = s
	snap := c.snapshot()

	c.statusMu.Lock()
	c.status = snap
	listeners := c.listeners
	c.statusMu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (c *Client) snapshot() Status {
	s := Status{
		State:      c.state,
		Tries:      c.tries,
		MaxRetries: c.cfg.MaxRetries,
		URL:        c.cfg.URL,
		Notice:     c.notice,
		Messages:   c.messages,
		Since:      c.since,
	}
	if c.session != nil {
		s.Session = c.session.ID
	}
	return s
}
