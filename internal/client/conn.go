// Package client provides a connection to a trogdord instance.
//
// A Conn performs the readiness handshake in the background, then carries
// request/response exchanges over a single TCP socket. The protocol has no
// request identifiers, so responses are matched to requests by order: a
// reader goroutine hands each complete frame to the oldest queued exchange.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/d2verb/trogctl/internal/protocol"
)

// State is the lifecycle state of a Conn.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	DefaultHost           = "localhost"
	DefaultPort           = 1040
	DefaultConnectTimeout = 3 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// UseDefault passed as a Request timeout selects Options.RequestTimeout.
const UseDefault time.Duration = -1

const readBufferSize = 4096

// Dialer opens the TCP connection. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options tunes a Conn. The zero value is usable.
type Options struct {
	ConnectTimeout time.Duration // covers TCP connect and handshake
	RequestTimeout time.Duration // used when Request is given UseDefault
	MaxFrameSize   int
	Logger         *slog.Logger
	Dialer         Dialer
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Dialer == nil {
		o.Dialer = &net.Dialer{}
	}
	return o
}

const (
	exchangePending int32 = iota
	exchangeSettled
	exchangeAbandoned
)

// exchange is one request waiting for its response.
type exchange struct {
	id     string
	state  atomic.Int32
	result chan result
}

type result struct {
	resp *protocol.Response
	err  error
}

func newExchange() *exchange {
	return &exchange{
		id:     uuid.NewString(),
		result: make(chan result, 1),
	}
}

// claim reserves the right to deliver a result.
func (ex *exchange) claim() bool {
	return ex.state.CompareAndSwap(exchangePending, exchangeSettled)
}

// abandon marks the exchange as given up by its caller. It reports false if
// a result was already claimed.
func (ex *exchange) abandon() bool {
	return ex.state.CompareAndSwap(exchangePending, exchangeAbandoned)
}

// Conn is a connection to trogdord. It is safe for concurrent use; exchanges
// are issued one at a time.
type Conn struct {
	host string
	port int
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	state   State
	nc      net.Conn
	pending []*exchange
	err     error

	lastStatus atomic.Int64
	turn       chan struct{}
	// stalled is set by a timed out exchange and cleared by any delivered
	// response.
	stalled atomic.Bool

	ready       chan struct{}
	connectErr  error
	done        chan struct{}
	stopConnect context.CancelFunc
}

// New returns a Conn in the Connecting state and starts the connect and
// handshake in the background. Use Wait to learn the outcome.
func New(host string, port int, opts Options) *Conn {
	opts = opts.withDefaults()
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)

	c := &Conn{
		host:        host,
		port:        port,
		opts:        opts,
		state:       StateConnecting,
		turn:        make(chan struct{}, 1),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		stopConnect: cancel,
	}
	c.log = opts.Logger.With("addr", c.Addr())

	go c.connect(ctx)
	return c
}

// Dial connects and waits for the handshake.
func Dial(ctx context.Context, host string, port int, opts Options) (*Conn, error) {
	c := New(host, port, opts)
	if err := c.Wait(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Wait blocks until the handshake settles. It returns nil once the
// connection is Ready.
func (c *Conn) Wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.connectErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) connect(ctx context.Context) {
	defer close(c.ready)
	defer c.stopConnect()

	c.log.Debug("connecting", "timeout", c.opts.ConnectTimeout)
	nc, err := c.opts.Dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		c.abortConnect(ctx, nil, &TransportError{Op: "dial", Err: err})
		return
	}

	scanner := protocol.NewScanner()
	scanner.SetMaxFrameSize(c.opts.MaxFrameSize)

	// Expiry or Close unblocks the pending read.
	stop := context.AfterFunc(ctx, func() { nc.SetReadDeadline(time.Unix(1, 0)) })
	body, err := readHandshake(nc, scanner)
	if !stop() {
		c.abortConnect(ctx, nc, &TransportError{Op: "handshake", Err: ctx.Err()})
		return
	}
	if err != nil {
		c.abortConnect(ctx, nc, err)
		return
	}
	if !protocol.IsReady(body) {
		c.abortConnect(ctx, nc, fmt.Errorf("%w: unexpected handshake %q", ErrConnectFailed, clip(body)))
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		nc.Close()
		c.connectErr = ErrClosed
		return
	}
	c.nc = nc
	c.state = StateReady
	c.mu.Unlock()

	c.log.Info("connected")
	go c.readLoop(nc, scanner)
}

func readHandshake(nc net.Conn, scanner *protocol.Scanner) ([]byte, error) {
	buf := make([]byte, readBufferSize)
	for {
		frame, ok, err := scanner.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
		}
		if ok {
			return frame, nil
		}
		n, err := nc.Read(buf)
		scanner.Feed(buf[:n])
		if err != nil {
			if frame, ok, _ := scanner.Next(); ok {
				return frame, nil
			}
			return nil, &TransportError{Op: "handshake", Err: err}
		}
	}
}

// abortConnect reports a failed connect attempt and moves to Closed.
func (c *Conn) abortConnect(ctx context.Context, nc net.Conn, err error) {
	if IsTransport(err) {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = ErrConnectTimedOut
		case errors.Is(ctx.Err(), context.Canceled):
			err = ErrClosed
		}
	}
	if nc != nil {
		nc.Close()
	}
	c.connectErr = err

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.err = err
	c.mu.Unlock()

	close(c.done)
	c.log.Warn("connect failed", "error", err)
}

func (c *Conn) readLoop(nc net.Conn, scanner *protocol.Scanner) {
	buf := make([]byte, readBufferSize)
	for {
		if err := c.drain(scanner); err != nil {
			c.shutdown(&TransportError{Op: "read", Err: err})
			return
		}
		n, err := nc.Read(buf)
		scanner.Feed(buf[:n])
		if err != nil {
			c.drain(scanner)
			if rest := scanner.Buffered(); rest > 0 {
				c.log.Debug("discarding partial frame", "bytes", rest)
			}
			c.shutdown(&TransportError{Op: "read", Err: err})
			return
		}
	}
}

// drain dispatches every complete frame in the scanner.
func (c *Conn) drain(scanner *protocol.Scanner) error {
	for {
		frame, ok, err := scanner.Next()
		if err != nil || !ok {
			return err
		}
		c.dispatch(frame)
	}
}

func (c *Conn) dispatch(frame []byte) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		c.log.Warn("dropping unsolicited frame", "bytes", len(frame))
		return
	}
	ex := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	c.mu.Unlock()

	resp, err := protocol.DecodeResponse(frame)
	if !ex.claim() {
		c.log.Debug("discarding late response", "trace", ex.id)
		return
	}
	c.stalled.Store(false)
	if err == nil {
		c.lastStatus.Store(int64(resp.Status))
	}
	ex.result <- result{resp: resp, err: err}
}

// shutdown moves to Closed after a transport failure.
func (c *Conn) shutdown(cause error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.err = cause
	pending := c.pending
	c.pending = nil
	nc := c.nc
	c.mu.Unlock()

	if nc != nil {
		nc.Close()
	}
	failPending(pending, cause)
	close(c.done)
	c.log.Warn("connection lost", "error", cause, "pending", len(pending))
}

func failPending(pending []*exchange, err error) {
	for _, ex := range pending {
		if ex.claim() {
			ex.result <- result{err: err}
		}
	}
}

// Request sends req and waits for its response.
//
// timeout bounds the whole call, including the wait behind earlier
// exchanges; zero disables it and UseDefault selects Options.RequestTimeout.
// A non-2xx status is not an error here. On timeout the connection stays
// Ready and the late response, if any, is discarded. A second timeout with
// no response delivered in between closes the connection with
// ErrDesynchronized.
func (c *Conn) Request(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	if timeout < 0 {
		timeout = c.opts.RequestTimeout
	}
	if c.State() != StateReady {
		return nil, ErrNotConnected
	}
	frame, err := protocol.EncodeFrame(req)
	if err != nil {
		return nil, err
	}

	var (
		expired  <-chan time.Time
		deadline time.Time
	)
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case c.turn <- struct{}{}:
	case <-expired:
		c.log.Warn("request timed out before it was sent", "timeout", timeout)
		return nil, ErrRequestTimedOut
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrNotConnected
	}
	defer func() { <-c.turn }()

	ex := newExchange()
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending = append(c.pending, ex)
	nc := c.nc
	c.mu.Unlock()

	log := c.log.With("trace", ex.id)
	log.Debug("sending request", "method", req.Method, "scope", req.Scope, "action", req.Action)

	if err := writeFrame(nc, frame, deadline); err != nil {
		c.remove(ex)
		if ex.abandon() {
			return nil, &TransportError{Op: "write", Err: err}
		}
		r := <-ex.result
		return r.resp, r.err
	}

	select {
	case r := <-ex.result:
		return logResult(log, r)
	case <-expired:
		if ex.abandon() {
			if c.stalled.Swap(true) {
				log.Error("stream desynchronized", "timeout", timeout)
				c.shutdown(ErrDesynchronized)
				return nil, ErrDesynchronized
			}
			log.Warn("request timed out", "timeout", timeout)
			return nil, ErrRequestTimedOut
		}
	case <-ctx.Done():
		if ex.abandon() {
			log.Debug("request cancelled", "error", ctx.Err())
			return nil, ctx.Err()
		}
	}
	// The result was claimed just before we gave up.
	return logResult(log, <-ex.result)
}

func logResult(log *slog.Logger, r result) (*protocol.Response, error) {
	if r.err != nil {
		log.Debug("request failed", "error", r.err)
		return nil, r.err
	}
	log.Debug("received response", "status", r.resp.Status)
	return r.resp, nil
}

// writeFrame writes one frame. A zero deadline means none.
func writeFrame(nc net.Conn, frame []byte, deadline time.Time) error {
	if err := nc.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := nc.Write(frame)
	return err
}

func (c *Conn) remove(ex *exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p == ex {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Close tears down the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	pending := c.pending
	c.pending = nil
	nc := c.nc
	c.mu.Unlock()

	c.stopConnect()
	var err error
	if nc != nil {
		err = nc.Close()
	}
	failPending(pending, ErrClosed)
	close(c.done)
	c.log.Info("connection closed")
	return err
}

// Connected reports whether the connection is Ready.
func (c *Conn) Connected() bool {
	return c.State() == StateReady
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastStatus returns the status of the most recent response, or
// protocol.StatusNone before the first one.
func (c *Conn) LastStatus() int {
	return int(c.lastStatus.Load())
}

func (c *Conn) Host() string { return c.host }
func (c *Conn) Port() int    { return c.port }

// Addr returns host:port.
func (c *Conn) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Done is closed when the connection reaches Closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection closed. It is nil while open and after an
// explicit Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func clip(b []byte) string {
	const limit = 64
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
