// Package daemontest runs a scriptable stand-in for trogdord on a loopback
// TCP port. It speaks the same NUL-delimited JSON protocol and lets tests
// decide what the handshake looks like, how replies are chunked, and whether
// a request is answered at all.
package daemontest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/d2verb/trogctl/internal/protocol"
)

// Handler answers one request. The returned value is encoded as a frame;
// nil means the request goes unanswered. Returning Raw writes the bytes
// verbatim with no delimiter appended.
type Handler func(req *protocol.Request) any

// Raw is a reply written to the socket exactly as given.
type Raw []byte

// Option configures a Server.
type Option func(*Server)

// WithHandshake replaces the bytes pushed right after accept.
func WithHandshake(raw []byte) Option {
	return func(s *Server) { s.handshake = raw }
}

// WithoutHandshake makes the server accept and then say nothing.
func WithoutHandshake() Option {
	return func(s *Server) { s.handshake = nil }
}

// WithChunkSize splits every write into n-byte segments with a short pause
// between them.
func WithChunkSize(n int) Option {
	return func(s *Server) { s.chunkSize = n }
}

// WithCloseOnAccept closes every connection as soon as it is accepted.
func WithCloseOnAccept() Option {
	return func(s *Server) { s.closeOnAccept = true }
}

// Server is a fake trogdord.
type Server struct {
	listener net.Listener

	handshake     []byte
	chunkSize     int
	closeOnAccept bool

	mu       sync.Mutex
	handlers map[string]Handler
	requests []protocol.Request
	conns    map[net.Conn]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts a server on 127.0.0.1 with an ephemeral port.
func New(opts ...Option) (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		listener:  listener,
		handshake: protocol.ReadyFrame(),
		handlers:  make(map[string]Handler),
		conns:     make(map[net.Conn]struct{}),
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return s, nil
}

// Start is New for tests: it fails t on error and stops the server when the
// test ends.
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("start fake trogdord: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Handle registers h for a method/scope/action triple. An empty action
// matches requests that carry none.
func (s *Server) Handle(method, scope, action string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[routeKey(method, scope, action)] = h
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, or false if none arrived.
func (s *Server) LastRequest() (protocol.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return protocol.Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// Push writes raw bytes to every open connection.
func (s *Server) Push(raw []byte) {
	for _, conn := range s.openConns() {
		s.write(conn, raw)
	}
}

// DropConnections closes every open connection but keeps listening.
func (s *Server) DropConnections() {
	for _, conn := range s.openConns() {
		conn.Close()
	}
}

// Stop closes the listener and all connections and waits for the handlers
// to return.
func (s *Server) Stop() {
	s.cancel()
	s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) openConns() []net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		if s.closeOnAccept {
			conn.Close()
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	if len(s.handshake) > 0 {
		if err := s.write(conn, s.handshake); err != nil {
			return
		}
	}

	scanner := protocol.NewScanner()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			scanner.Feed(buf[:n])
			for {
				frame, ok, ferr := scanner.Next()
				if ferr != nil {
					return
				}
				if !ok {
					break
				}
				if werr := s.serve(conn, frame); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) serve(conn net.Conn, frame []byte) error {
	var req protocol.Request
	if err := json.Unmarshal(frame, &req); err != nil {
		return s.reply(conn, map[string]any{
			"status":  protocol.StatusBadRequest,
			"message": "request must be valid JSON",
		})
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	h, ok := s.handlers[routeKey(req.Method, req.Scope, req.Action)]
	s.mu.Unlock()

	if !ok {
		return s.reply(conn, map[string]any{
			"status":  protocol.StatusNotFound,
			"message": "unknown route " + routeKey(req.Method, req.Scope, req.Action),
		})
	}
	return s.reply(conn, h(&req))
}

func (s *Server) reply(conn net.Conn, v any) error {
	switch v := v.(type) {
	case nil:
		return nil
	case Raw:
		return s.write(conn, v)
	default:
		frame, err := protocol.EncodeFrame(v)
		if err != nil {
			return err
		}
		return s.write(conn, frame)
	}
}

func (s *Server) write(conn net.Conn, data []byte) error {
	if s.chunkSize <= 0 {
		_, err := conn.Write(data)
		return err
	}
	for len(data) > 0 {
		n := min(s.chunkSize, len(data))
		if _, err := conn.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		time.Sleep(time.Millisecond)
	}
	return nil
}

func routeKey(method, scope, action string) string {
	return method + " " + scope + " " + action
}

// OK builds a 200 reply carrying the given fields.
func OK(fields map[string]any) map[string]any {
	return Status(protocol.StatusOK, "", fields)
}

// Status builds a reply with the given status, message and extra fields.
func Status(status int, message string, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out["status"] = status
	if message != "" {
		out["message"] = message
	}
	return out
}

// Reply returns a handler that always answers with v.
func Reply(v any) Handler {
	return func(*protocol.Request) any { return v }
}

// Delayed wraps h so it sleeps for d before answering.
func Delayed(d time.Duration, h Handler) Handler {
	return func(req *protocol.Request) any {
		time.Sleep(d)
		return h(req)
	}
}
