package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-console/dgdconsole/internal/errors"
	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/mockconsole"
)

const waitTimeout = 3 * time.Second

// liveSession is a Connection talking to a mock console over loopback TCP.
type liveSession struct {
	server *mockconsole.Server
	conn   *Connection
	ready  chan struct{}
	errs   chan error

	mutex  sync.Mutex
	output []string
}

func startLive(t *testing.T, script mockconsole.Script, options mockconsole.Options, password string) *liveSession {
	t.Helper()
	script.Username = "admin"
	script.Password = "secret"

	server := mockconsole.NewServer(script, options)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Close() })

	ls := &liveSession{
		server: server,
		ready:  make(chan struct{}, 4),
		errs:   make(chan error, 8),
	}
	conn, err := NewConnection(Options{
		Address:  server.Addr(),
		Username: "admin",
		Password: password,
		Helper:   interfaces.HelperConfig{Path: testHelperPath, Version: 11, Install: true},
		Output: func(s string) {
			ls.mutex.Lock()
			ls.output = append(ls.output, s)
			ls.mutex.Unlock()
		},
		OnReady: func() { ls.ready <- struct{}{} },
		OnError: func(err error) { ls.errs <- err },
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ls.conn = conn

	require.NoError(t, conn.Connect(context.Background()))
	return ls
}

func (ls *liveSession) waitReady(t *testing.T) {
	t.Helper()
	select {
	case <-ls.ready:
	case err := <-ls.errs:
		t.Fatalf("handshake failed: %v", err)
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for ready, state %s", ls.conn.State())
	}
}

func (ls *liveSession) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-ls.errs:
		return err
	case <-ls.ready:
		t.Fatal("session became ready unexpectedly")
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for an error, state %s", ls.conn.State())
	}
	return nil
}

func (ls *liveSession) outputText() string {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()
	return strings.Join(ls.output, "\n")
}

// evaluate submits expr and waits for its reply.
func (ls *liveSession) evaluate(t *testing.T, expr string) interfaces.CodeResult {
	t.Helper()
	done := make(chan interfaces.CodeResult, 1)
	_, err := ls.conn.SubmitEvaluate(expr, func(r interfaces.CodeResult) { done <- r })
	require.NoError(t, err)

	select {
	case r := <-done:
		return r
	case <-time.After(waitTimeout):
		t.Fatalf("no reply to %q", expr)
	}
	return interfaces.CodeResult{}
}

func TestLiveHandshakeCompilesHelperOnce(t *testing.T) {
	ls := startLive(t, mockconsole.Script{CheckOutcomes: []int{-2}, FirstID: 100}, mockconsole.Options{}, "secret")
	ls.waitReady(t)

	stats := ls.server.Stats()
	assert.Equal(t, 1, stats.Compiles)
	assert.Equal(t, 2, stats.Checks)
	assert.Equal(t, 1, stats.Evaluations, "only the canary so far")
	assert.Equal(t, 101, ls.conn.queue.NextID())

	r := ls.evaluate(t, "21")
	assert.True(t, r.Success)
	assert.Equal(t, 101, r.ID)
	assert.Equal(t, 21, r.Result)
}

func TestLiveResultsAndFailures(t *testing.T) {
	ls := startLive(t, mockconsole.Script{FirstID: 1}, mockconsole.Options{Literal: true}, "secret")
	ls.waitReady(t)

	r := ls.evaluate(t, "nil")
	assert.True(t, r.Success)
	assert.Nil(t, r.Result)

	r = ls.evaluate(t, `error("no such object")`)
	assert.False(t, r.Success)
	assert.Equal(t, "no such object", r.Error)

	r = ls.evaluate(t, "broken(")
	assert.False(t, r.Success)
	require.Len(t, r.CompileErrors, 1)
	assert.Equal(t, 1, r.CompileErrors[0].Line)

	r = ls.evaluate(t, StatusExpression)
	require.True(t, r.Success)
	status, err := DecodeServerStatus(r.Result)
	require.NoError(t, err)
	assert.Equal(t, "DGD 1.7.4", status.Version)
	assert.Equal(t, []any{6047}, status.TelnetPorts)
}

func TestLiveOutOfOrderChunkedReplies(t *testing.T) {
	ls := startLive(t, mockconsole.Script{FirstID: 7}, mockconsole.Options{
		ChunkSize:  5,
		ChunkDelay: time.Millisecond,
		BatchSize:  4,
		Reverse:    true,
	}, "secret")
	ls.waitReady(t)

	const n = 8
	var (
		mutex   sync.Mutex
		got     = make(map[int]interfaces.CodeResult)
		wg      sync.WaitGroup
		wantIDs = make(map[int]int)
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		value := (i + 1) * 10
		id, err := ls.conn.SubmitEvaluate(strconv.Itoa(value), func(r interfaces.CodeResult) {
			mutex.Lock()
			got[value] = r
			mutex.Unlock()
			wg.Done()
		})
		require.NoError(t, err)
		wantIDs[value] = id
	}

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(waitTimeout):
		mutex.Lock()
		defer mutex.Unlock()
		t.Fatalf("only %d of %d replies arrived", len(got), n)
	}

	for value, id := range wantIDs {
		r := got[value]
		assert.True(t, r.Success)
		assert.Equal(t, id, r.ID)
		assert.Equal(t, value, r.Result, "callback for id %d got another command's reply", id)
	}
	assert.Zero(t, ls.conn.Statistics().Anomalies)
}

func TestLiveVersionMismatchTwiceNeverReady(t *testing.T) {
	ls := startLive(t, mockconsole.Script{CheckOutcomes: []int{-3, -3}}, mockconsole.Options{}, "secret")

	err := ls.waitError(t)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeProvisioning, kind)
	assert.False(t, ls.conn.IsReady())
	assert.Equal(t, StateProvisioningHelper, ls.conn.State())
	assert.Equal(t, 1, ls.server.Stats().Uninstalls)
	assert.Equal(t, 2, ls.server.Stats().Checks)
}

func TestLiveBadPassword(t *testing.T) {
	ls := startLive(t, mockconsole.Script{}, mockconsole.Options{}, "wrong")

	err := ls.waitError(t)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeAuthentication, kind)
	assert.Eventually(t, func() bool { return ls.conn.State() == StateClosed }, waitTimeout, 10*time.Millisecond)
	assert.Zero(t, ls.server.Stats().Logins)
}

func TestLiveReconnectAfterServerDrop(t *testing.T) {
	ls := startLive(t, mockconsole.Script{FirstID: 1}, mockconsole.Options{}, "secret")
	ls.waitReady(t)

	// A remote hang-up is an orderly close: a status line but no error.
	ls.server.DropConnections()
	assert.Eventually(t, func() bool { return ls.conn.State() == StateClosed }, waitTimeout, 10*time.Millisecond)
	assert.Contains(t, ls.outputText(), "Connection to DGD closed.")

	// The dropped submission triggers the reconnect and never calls back.
	_, err := ls.conn.SubmitEvaluate("1", func(interfaces.CodeResult) {
		t.Error("callback of a dropped submission fired")
	})
	require.ErrorIs(t, err, ErrNotConnected)

	ls.waitReady(t)
	assert.Equal(t, 2, ls.conn.Statistics().ConnectAttempts)
	assert.Equal(t, 2, ls.server.Stats().Logins)
	assert.Equal(t, 5, ls.evaluate(t, "5").Result)
}

func TestLiveConnectFailure(t *testing.T) {
	conn, err := NewConnection(Options{
		Address:        "127.0.0.1:1",
		Username:       "admin",
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)

	err = conn.Connect(context.Background())
	require.Error(t, err)
	kind, _ := errors.KindOf(err)
	assert.Equal(t, errors.ErrorTypeTransport, kind)
	assert.Equal(t, StateClosed, conn.State())
	assert.Contains(t, fmt.Sprint(conn.LastError()), "127.0.0.1:1")
}
