package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d2verb/trogctl/internal/daemontest"
	"github.com/d2verb/trogctl/internal/protocol"
)

var (
	statsRequest  = protocol.NewRequest(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics, nil)
	configRequest = protocol.NewRequest(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionConfig, nil)
)

func dial(t *testing.T, srv *daemontest.Server, opts Options) *Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, srv.Host(), srv.Port(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func waitClosed(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close")
	}
}

func TestDial_Handshake(t *testing.T) {
	t.Run("ready status", func(t *testing.T) {
		srv := daemontest.Start(t)

		c := dial(t, srv, Options{})

		assert.True(t, c.Connected())
		assert.Equal(t, StateReady, c.State())
		assert.Equal(t, protocol.StatusNone, c.LastStatus())
		assert.Equal(t, srv.Addr(), c.Addr())
	})

	t.Run("handshake split into single bytes", func(t *testing.T) {
		srv := daemontest.Start(t, daemontest.WithChunkSize(1))

		c := dial(t, srv, Options{})

		assert.True(t, c.Connected())
	})

	t.Run("wrong status", func(t *testing.T) {
		srv := daemontest.Start(t, daemontest.WithHandshake([]byte(`{"status":"busy"}`+"\x00")))

		c := New(srv.Host(), srv.Port(), Options{})
		err := c.Wait(context.Background())

		require.ErrorIs(t, err, ErrConnectFailed)
		assert.Equal(t, StateClosed, c.State())
		waitClosed(t, c)
		assert.ErrorIs(t, c.Err(), ErrConnectFailed)
	})

	t.Run("garbage", func(t *testing.T) {
		srv := daemontest.Start(t, daemontest.WithHandshake([]byte("hello there\x00")))

		_, err := Dial(context.Background(), srv.Host(), srv.Port(), Options{})

		assert.ErrorIs(t, err, ErrConnectFailed)
	})

	t.Run("status is a number", func(t *testing.T) {
		srv := daemontest.Start(t, daemontest.WithHandshake([]byte(`{"status":200}`+"\x00")))

		_, err := Dial(context.Background(), srv.Host(), srv.Port(), Options{})

		assert.ErrorIs(t, err, ErrConnectFailed)
	})
}

func TestDial_ConnectTimeout(t *testing.T) {
	// Arrange
	srv := daemontest.Start(t, daemontest.WithoutHandshake())
	start := time.Now()

	// Act
	c := New(srv.Host(), srv.Port(), Options{ConnectTimeout: 100 * time.Millisecond})
	err := c.Wait(context.Background())

	// Assert
	require.ErrorIs(t, err, ErrConnectTimedOut)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StateClosed, c.State())
	waitClosed(t, c)
}

func TestDial_Refused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	_, err = Dial(context.Background(), "127.0.0.1", port, Options{})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dial", te.Op)
}

func TestDial_ServerClosesDuringHandshake(t *testing.T) {
	srv := daemontest.Start(t, daemontest.WithCloseOnAccept())

	_, err := Dial(context.Background(), srv.Host(), srv.Port(), Options{})

	assert.True(t, IsTransport(err), "error = %v", err)
}

func TestRequest_RoundTrip(t *testing.T) {
	// Arrange
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics,
		daemontest.Reply(daemontest.OK(map[string]any{"players": 3})))
	c := dial(t, srv, Options{})

	// Act
	resp, err := c.Request(context.Background(), statsRequest, UseDefault)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, protocol.StatusOK, c.LastStatus())

	var players int
	found, err := resp.Field("players", &players)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, players)

	req, ok := srv.LastRequest()
	require.True(t, ok)
	assert.Equal(t, *statsRequest, req)
}

func TestRequest_ChunkedResponse(t *testing.T) {
	srv := daemontest.Start(t, daemontest.WithChunkSize(2))
	srv.Handle(protocol.MethodGet, protocol.ScopeGame, protocol.ActionList,
		daemontest.Reply(daemontest.OK(map[string]any{
			"games": []map[string]any{{"id": 0, "name": "first"}, {"id": 1, "name": "second"}},
		})))
	c := dial(t, srv, Options{})

	resp, err := c.Request(context.Background(), protocol.NewRequest(protocol.MethodGet, protocol.ScopeGame, protocol.ActionList, nil), UseDefault)

	require.NoError(t, err)
	var games []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	_, err = resp.Field("games", &games)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "second", games[1].Name)
}

func TestRequest_ErrorStatusIsNotAnError(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGame, "",
		daemontest.Reply(daemontest.Status(protocol.StatusNotFound, "game not found", nil)))
	c := dial(t, srv, Options{})

	resp, err := c.Request(context.Background(), protocol.NewRequest(protocol.MethodGet, protocol.ScopeGame, "", map[string]any{"id": 9}), UseDefault)

	require.NoError(t, err)
	assert.Equal(t, protocol.StatusNotFound, resp.Status)
	assert.Equal(t, "game not found", resp.Message)
	assert.Equal(t, protocol.StatusNotFound, c.LastStatus())
	assert.True(t, c.Connected())
}

func TestRequest_NotConnected(t *testing.T) {
	t.Run("before handshake", func(t *testing.T) {
		srv := daemontest.Start(t, daemontest.WithoutHandshake())
		c := New(srv.Host(), srv.Port(), Options{})
		defer c.Close()

		_, err := c.Request(context.Background(), statsRequest, UseDefault)

		assert.ErrorIs(t, err, ErrNotConnected)
		assert.Empty(t, srv.Requests())
	})

	t.Run("after close", func(t *testing.T) {
		srv := daemontest.Start(t)
		c := dial(t, srv, Options{})
		require.NoError(t, c.Close())

		_, err := c.Request(context.Background(), statsRequest, UseDefault)

		assert.ErrorIs(t, err, ErrNotConnected)
		assert.False(t, c.Connected())
	})
}

func TestRequest_Timeout(t *testing.T) {
	// Arrange
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics,
		daemontest.Delayed(300*time.Millisecond, daemontest.Reply(daemontest.OK(map[string]any{"which": "late"}))))
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionConfig,
		daemontest.Reply(daemontest.OK(map[string]any{"which": "config"})))
	c := dial(t, srv, Options{})

	// Act
	_, err := c.Request(context.Background(), statsRequest, 50*time.Millisecond)

	// Assert
	require.ErrorIs(t, err, ErrRequestTimedOut)
	assert.True(t, c.Connected())

	// The late statistics reply must not be handed to the next request.
	resp, err := c.Request(context.Background(), protocol.NewRequest(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionConfig, nil), 2*time.Second)
	require.NoError(t, err)
	var which string
	_, err = resp.Field("which", &which)
	require.NoError(t, err)
	assert.Equal(t, "config", which)
}

func TestRequest_SilentServerTimesOut(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics, daemontest.Reply(nil))
	c := dial(t, srv, Options{RequestTimeout: 50 * time.Millisecond})

	_, err := c.Request(context.Background(), statsRequest, UseDefault)

	assert.ErrorIs(t, err, ErrRequestTimedOut)
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, protocol.StatusNone, c.LastStatus())
}

func TestRequest_TimeoutCoversWaitForTurn(t *testing.T) {
	// Arrange
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics, daemontest.Reply(nil))
	c := dial(t, srv, Options{})

	first := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), statsRequest, 0)
		first <- err
	}()
	require.Eventually(t, func() bool { return len(srv.Requests()) == 1 }, 2*time.Second, 5*time.Millisecond)

	// Act
	start := time.Now()
	_, err := c.Request(context.Background(), configRequest, 100*time.Millisecond)
	elapsed := time.Since(start)

	// Assert
	require.ErrorIs(t, err, ErrRequestTimedOut)
	assert.Less(t, elapsed, time.Second)
	assert.Len(t, srv.Requests(), 1, "a request that never got its turn must not be written")
	assert.True(t, c.Connected())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-first, ErrClosed)
}

func TestRequest_ConsecutiveTimeoutsCloseConnection(t *testing.T) {
	// Arrange
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics, daemontest.Reply(nil))
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionConfig, daemontest.Reply(daemontest.OK(nil)))
	c := dial(t, srv, Options{})

	_, err := c.Request(context.Background(), statsRequest, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrRequestTimedOut)
	require.True(t, c.Connected())

	// Act: the config reply is consumed by the unanswered statistics entry.
	_, err = c.Request(context.Background(), configRequest, 100*time.Millisecond)

	// Assert
	require.ErrorIs(t, err, ErrDesynchronized)
	waitClosed(t, c)
	assert.ErrorIs(t, c.Err(), ErrDesynchronized)

	_, err = c.Request(context.Background(), configRequest, UseDefault)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestRequest_DeliveredResponseResetsTimeoutStreak(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics, daemontest.Reply(nil))
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionConfig,
		daemontest.Delayed(200*time.Millisecond, daemontest.Reply(daemontest.OK(nil))))
	c := dial(t, srv, Options{})

	_, err := c.Request(context.Background(), configRequest, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrRequestTimedOut)

	// The late config reply is discarded, then this one is delivered.
	_, err = c.Request(context.Background(), configRequest, 2*time.Second)
	require.NoError(t, err)

	_, err = c.Request(context.Background(), statsRequest, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrRequestTimedOut)
	assert.True(t, c.Connected())
}

func TestRequest_ZeroTimeoutWaits(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics,
		daemontest.Delayed(100*time.Millisecond, daemontest.Reply(daemontest.OK(nil))))
	c := dial(t, srv, Options{RequestTimeout: 10 * time.Millisecond})

	resp, err := c.Request(context.Background(), statsRequest, 0)

	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)
}

func TestRequest_ContextCancelled(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics, daemontest.Reply(nil))
	c := dial(t, srv, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Request(ctx, statsRequest, 0)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, c.Connected())
}

func TestRequest_MalformedFrame(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics,
		daemontest.Reply(daemontest.Raw("this is not json\x00")))
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionConfig,
		daemontest.Reply(daemontest.OK(nil)))
	c := dial(t, srv, Options{})

	_, err := c.Request(context.Background(), statsRequest, UseDefault)
	require.ErrorIs(t, err, protocol.ErrMalformedFrame)
	assert.True(t, c.Connected())

	resp, err := c.Request(context.Background(), protocol.NewRequest(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionConfig, nil), UseDefault)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)
}

func TestRequest_ConcurrentCallersGetTheirOwnResponse(t *testing.T) {
	srv := daemontest.Start(t, daemontest.WithChunkSize(7))
	srv.Handle(protocol.MethodGet, protocol.ScopeGame, "", func(req *protocol.Request) any {
		return daemontest.OK(map[string]any{"id": req.Args["id"]})
	})
	c := dial(t, srv, Options{})

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := range callers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			resp, err := c.Request(context.Background(), protocol.NewRequest(protocol.MethodGet, protocol.ScopeGame, "", map[string]any{"id": id}), 5*time.Second)
			if err != nil {
				errs <- err
				return
			}
			var got int
			if _, err := resp.Field("id", &got); err != nil {
				errs <- err
				return
			}
			if got != id {
				errs <- errors.New("response delivered to the wrong caller")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, srv.Requests(), callers)
}

func TestRequest_ServerDropFailsPending(t *testing.T) {
	// Arrange
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics, daemontest.Reply(nil))
	c := dial(t, srv, Options{})

	// Act
	go func() {
		time.Sleep(50 * time.Millisecond)
		srv.DropConnections()
	}()
	_, err := c.Request(context.Background(), statsRequest, 5*time.Second)

	// Assert
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "read", te.Op)
	waitClosed(t, c)
	assert.Equal(t, StateClosed, c.State())
	assert.Error(t, c.Err())

	_, err = c.Request(context.Background(), statsRequest, UseDefault)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestRequest_CloseFailsPending(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics, daemontest.Reply(nil))
	c := dial(t, srv, Options{})

	go func() {
		time.Sleep(50 * time.Millisecond)
		c.Close()
	}()
	_, err := c.Request(context.Background(), statsRequest, 5*time.Second)

	assert.ErrorIs(t, err, ErrClosed)
}

func TestRequest_UnsolicitedFrameIsDropped(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics,
		daemontest.Reply(daemontest.OK(map[string]any{"players": 1})))
	c := dial(t, srv, Options{})

	srv.Push([]byte(`{"status":500}` + "\x00"))
	time.Sleep(50 * time.Millisecond)

	resp, err := c.Request(context.Background(), statsRequest, UseDefault)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)
}

func TestClose(t *testing.T) {
	srv := daemontest.Start(t)
	c := dial(t, srv, Options{})

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	waitClosed(t, c)
	assert.NoError(t, c.Err())
	assert.Equal(t, StateClosed, c.State())
}

func TestClose_WhileConnecting(t *testing.T) {
	srv := daemontest.Start(t, daemontest.WithoutHandshake())
	c := New(srv.Host(), srv.Port(), Options{ConnectTimeout: 5 * time.Second})

	require.NoError(t, c.Close())
	err := c.Wait(context.Background())

	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StateClosed, c.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
