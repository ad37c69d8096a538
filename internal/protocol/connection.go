package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/universal-console/dgdconsole/internal/errors"
	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/logging"
)

// Options configures a Connection.
type Options struct {
	Address  string
	Username string
	Password string
	Helper   interfaces.HelperConfig

	// HelperSource, if set, places the helper source before provisioning.
	HelperSource HelperSource

	// Dial opens the transport; DialTCP when nil.
	Dial           DialFunc
	ConnectTimeout time.Duration

	// Output receives human-readable status lines.
	Output func(string)
	// OnReady fires each time a handshake completes.
	OnReady func()
	// OnError receives every error that ends a handshake or closes the connection.
	OnError func(error)
	// OnClosed fires after each close, orderly or not, following OnError.
	OnClosed func()
}

// Connection is a session with the administrative console. It owns the
// transport, the command queue, the id counter and the provisioning state.
//
// Reply callbacks run on the transport's read goroutine, one at a time, and
// may submit further commands.
type Connection struct {
	opts        Options
	logger      *logging.Logger
	handler     *errors.Handler
	provisioner *Provisioner

	// writeMutex orders writes with their queue entries; it is taken
	// before mutex and held across the transport write.
	writeMutex sync.Mutex

	mutex      sync.Mutex
	state      SessionState
	transport  Transport
	generation uint64
	queue      *CommandQueue
	framer     *Framer
	lastErr    error
	stalled    bool // the handshake stopped before Ready on an open transport
	stats      ConnectionStatistics
}

var _ interfaces.Session = (*Connection)(nil)

// NewConnection creates a disconnected session.
func NewConnection(opts Options) (*Connection, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}
	if opts.Username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	if opts.Dial == nil {
		opts.Dial = DialTCP
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	c := &Connection{
		opts:    opts,
		logger:  logging.GetProtocolLogger().WithField("address", opts.Address),
		handler: errors.NewHandler(),
		state:   StateDisconnected,
		queue:   NewCommandQueue(),
		framer:  NewFramer(),
	}
	c.provisioner = NewProvisioner(opts.Helper, opts.HelperSource, c.sendRaw, c.message)
	return c, nil
}

// Connect dials synchronously. The handshake then proceeds in the
// background; OnReady fires once the session is usable.
func (c *Connection) Connect(ctx context.Context) error {
	c.mutex.Lock()
	if c.state != StateDisconnected && c.state != StateClosed {
		state := c.state
		c.mutex.Unlock()
		return fmt.Errorf("cannot connect while %s", state)
	}
	gen := c.beginConnectLocked()
	c.mutex.Unlock()

	return c.dial(ctx, gen)
}

// Reconnect starts a new connection in the background when the previous one
// is fully closed. It returns false if a connection exists or is underway.
func (c *Connection) Reconnect() bool {
	c.mutex.Lock()
	if (c.state != StateDisconnected && c.state != StateClosed) || c.transport != nil {
		c.mutex.Unlock()
		return false
	}
	gen := c.beginConnectLocked()
	c.mutex.Unlock()

	c.message("Connection was gone, reconnecting...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.ConnectTimeout)
		defer cancel()
		_ = c.dial(ctx, gen)
	}()
	return true
}

// Restart abandons a handshake that stopped before Ready, such as after a
// helper provisioning failure, and connects again. Otherwise it behaves
// like Reconnect.
func (c *Connection) Restart() bool {
	c.mutex.Lock()
	stalled := c.stalled && c.state.InLoginPhase()
	gen := c.generation
	c.mutex.Unlock()

	if stalled {
		c.shutdown(gen, nil)
	}
	return c.Reconnect()
}

func (c *Connection) beginConnectLocked() uint64 {
	c.generation++
	c.setStateLocked(StateConnecting, "connect requested")
	c.stats.ConnectAttempts++
	c.logger.LogConnectionAttempt(c.opts.Address, c.opts.Username, c.stats.ConnectAttempts)
	return c.generation
}

func (c *Connection) dial(ctx context.Context, gen uint64) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}

	start := time.Now()
	t, err := c.opts.Dial(ctx, c.opts.Address)
	if err != nil {
		c.logger.LogConnectionFailure(c.opts.Address, err, time.Since(start))
		terr := errors.NewTransportError("protocol").
			WithLogger(c.logger).
			WithOperation("dial").
			WithMessage("could not connect to " + c.opts.Address).
			WithCause(err).
			Build()
		c.shutdown(gen, terr)
		return terr
	}

	c.mutex.Lock()
	if gen != c.generation {
		c.mutex.Unlock()
		_ = t.Close()
		return ErrClosed
	}
	c.transport = t
	c.stats.LastConnected = time.Now()
	c.mutex.Unlock()

	t.Start(&transportEvents{conn: c, generation: gen})
	return nil
}

// Close tears the connection down. Outstanding commands are abandoned
// without notification.
func (c *Connection) Close() error {
	c.mutex.Lock()
	gen := c.generation
	c.mutex.Unlock()
	c.shutdown(gen, nil)
	return nil
}

// IsReady reports whether evaluate commands can be submitted.
func (c *Connection) IsReady() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state == StateReady
}

// State returns the current session state
func (c *Connection) State() SessionState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// StateName returns the current state as text
func (c *Connection) StateName() string {
	return c.State().String()
}

// LastError returns the error that ended the last handshake or connection.
func (c *Connection) LastError() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lastErr
}

// Statistics returns a snapshot of the traffic counters
func (c *Connection) Statistics() ConnectionStatistics {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.stats
}

// Pending returns the number of queued commands awaiting a reply
func (c *Connection) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.queue.Len()
}

// Username returns the login the session authenticates as
func (c *Connection) Username() string {
	return c.opts.Username
}

// Submit sends an evaluate command once the session is Ready and returns
// its id. The callback fires once with the correlated reply, or never if
// the connection closes first.
//
// If the transport is gone, Submit starts a reconnect and drops the
// command, returning ErrNotConnected; the caller must resubmit later.
func (c *Connection) Submit(payload string, callback interfaces.ResultCallback) (int, error) {
	if c.Reconnect() {
		return 0, ErrNotConnected
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	c.mutex.Lock()
	switch {
	case c.state == StateClosed || c.state == StateDisconnected:
		c.mutex.Unlock()
		return 0, ErrNotConnected
	case c.state != StateReady:
		c.mutex.Unlock()
		return 0, ErrNotReady
	case !strings.HasPrefix(payload, EvaluatePrefix):
		c.mutex.Unlock()
		c.logger.Error("Only evaluate commands can be sent after login", "payload", payload)
		return 0, ErrNotEvaluate
	}

	cmd := &Command{
		ID:       c.queue.Allocate(),
		Phase:    PhaseEvaluate,
		Payload:  payload,
		callback: callback,
	}
	t, gen := c.enqueueLocked(cmd)
	c.mutex.Unlock()

	if err := c.write(t, gen, cmd); err != nil {
		return 0, err
	}
	c.logger.LogCommandSent(cmd.ID, cmd.Phase.String(), payload)
	return cmd.ID, nil
}

// SubmitEvaluate runs expr through the helper object.
func (c *Connection) SubmitEvaluate(expr string, callback interfaces.ResultCallback) (int, error) {
	return c.Submit(EvaluateThroughHelper(HelperObjectName(c.opts.Helper.Path), expr), callback)
}

// sendLogin queues a login-phase command. Login commands never trigger a
// reconnect; they belong to the handshake of the current transport.
func (c *Connection) sendLogin(payload string, framed bool, callback interfaces.ResultCallback) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	c.mutex.Lock()
	if c.transport == nil {
		c.mutex.Unlock()
		return ErrNotConnected
	}
	if !c.state.InLoginPhase() {
		c.mutex.Unlock()
		return ErrNotReady
	}

	cmd := &Command{
		ID:       0,
		Phase:    PhaseLogin,
		Payload:  payload,
		Framed:   framed,
		callback: callback,
	}
	t, gen := c.enqueueLocked(cmd)
	c.mutex.Unlock()

	err := c.write(t, gen, cmd)
	if err == nil {
		c.logger.LogCommandSent(0, cmd.Phase.String(), "")
	}
	return err
}

// sendRaw is the provisioner's channel to the console.
func (c *Connection) sendRaw(payload string, callback interfaces.ResultCallback) error {
	return c.sendLogin(payload, false, callback)
}

// enqueueLocked queues cmd ahead of its write so a fast reply always finds
// its command, and returns the transport to write to.
func (c *Connection) enqueueLocked(cmd *Command) (Transport, uint64) {
	c.queue.Push(cmd)
	return c.transport, c.generation
}

// write sends cmd's line. The caller holds writeMutex but not mutex, so the
// read goroutine keeps draining replies while a large write blocks.
func (c *Connection) write(t Transport, gen uint64, cmd *Command) error {
	if err := t.Write([]byte(cmd.Payload + "\n")); err != nil {
		terr := errors.NewTransportError("protocol").
			WithLogger(c.logger).
			WithOperation("write").
			WithMessage("failed to send command").
			WithCause(err).
			Build()
		go c.shutdown(gen, terr)
		return terr
	}
	c.mutex.Lock()
	c.stats.CommandsSent++
	c.mutex.Unlock()
	return nil
}

// shutdown closes the connection of generation gen. A nil err is an
// explicit or orderly close.
func (c *Connection) shutdown(gen uint64, err error) {
	c.mutex.Lock()
	if gen != c.generation || c.state == StateClosed {
		c.mutex.Unlock()
		return
	}
	t := c.transport
	c.transport = nil
	c.generation++
	abandoned := c.queue.Abandon()
	c.framer.Reset()
	c.stalled = false
	c.setStateLocked(StateClosed, closeReason(err))
	c.stats.LastClosed = time.Now()
	if err != nil {
		c.lastErr = err
	}
	c.mutex.Unlock()

	if abandoned > 0 {
		c.logger.Debug("Abandoned queued commands", "count", abandoned)
	}
	if t != nil {
		_ = t.Close()
		c.message("Connection to DGD closed.")
	}
	if err != nil {
		c.message(c.handler.StatusLine(err))
		c.reportError(err)
	}
	if c.opts.OnClosed != nil {
		c.opts.OnClosed()
	}
}

func closeReason(err error) string {
	if err == nil {
		return "closed"
	}
	return err.Error()
}

func (c *Connection) setStateLocked(to SessionState, reason string) {
	if c.state == to {
		return
	}
	c.logger.LogSessionTransition(c.state.String(), to.String(), reason)
	c.state = to
}

func (c *Connection) setState(to SessionState, reason string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.setStateLocked(to, reason)
}

func (c *Connection) message(msg string) {
	if msg == "" || c.opts.Output == nil {
		return
	}
	c.opts.Output(msg)
}

func (c *Connection) reportError(err error) {
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}

// transportEvents binds a transport's events to the connection generation
// that opened it, so a late close from a replaced transport is ignored.
type transportEvents struct {
	conn       *Connection
	generation uint64
}

func (e *transportEvents) OnData(chunk []byte) {
	e.conn.received(e.generation, chunk)
}

func (e *transportEvents) OnClose(err error) {
	var cause error
	if err != nil {
		cause = errors.NewTransportError("protocol").
			WithLogger(e.conn.logger).
			WithOperation("read").
			WithMessage("connection lost").
			WithCause(err).
			Build()
	}
	e.conn.shutdown(e.generation, cause)
}

// received routes one chunk according to the session phase. Callbacks and
// status output are collected and run after the lock is released.
func (c *Connection) received(gen uint64, chunk []byte) {
	var deliver []func()

	c.mutex.Lock()
	if gen != c.generation {
		c.mutex.Unlock()
		return
	}

	switch {
	case c.state == StateConnecting:
		// The greeting starts the handshake.
		c.setStateLocked(StateAwaitingUsername, "greeting received")
		c.provisioner.Reset()
		c.framer.Reset()
		deliver = append(deliver, c.logIn)

	case c.state.InLoginPhase():
		deliver = c.receiveLoginLocked(chunk)

	case c.state == StateReady:
		deliver = c.receiveFramesLocked(chunk)
	}
	c.mutex.Unlock()

	for _, fn := range deliver {
		fn()
	}
}

// receiveLoginLocked hands the chunk to the oldest queued command. Login
// replies are raw text, except for framed commands which wait for a
// complete frame.
func (c *Connection) receiveLoginLocked(chunk []byte) []func() {
	cmd := c.queue.Peek()
	if cmd == nil {
		text := string(chunk)
		return []func(){func() { c.unexpected("Unexpected data: " + text) }}
	}

	if !cmd.Framed {
		c.queue.Shift()
		result := RawReply(string(chunk))
		c.stats.RepliesDelivered++
		return []func(){func() { cmd.notify(result) }}
	}

	c.framer.Feed(chunk)
	body, ok := c.framer.Next()
	if !ok {
		return nil
	}
	c.queue.Shift()
	result, err := ParseCodeResult(body)
	if err != nil {
		c.logger.Warn("Malformed login-phase frame", "error", err)
	}
	c.stats.RepliesDelivered++
	return []func(){func() { cmd.notify(result) }}
}

// receiveFramesLocked extracts every complete frame and matches each to its
// command by id.
func (c *Connection) receiveFramesLocked(chunk []byte) []func() {
	c.framer.Feed(chunk)

	var deliver []func()
	for _, body := range c.framer.Drain() {
		result, err := ParseCodeResult(body)
		if err != nil && result.ID < 0 {
			c.stats.Anomalies++
			msg := fmt.Sprintf("Received unparsable data: %s", strings.TrimSpace(body))
			deliver = append(deliver, func() { c.unexpected(msg) })
			continue
		}

		cmd, found := c.queue.Take(result.ID)
		if !found {
			c.stats.Anomalies++
			msg := fmt.Sprintf("Received data for unknown command %d: %s", result.ID, abbreviate(result.Raw, 200))
			deliver = append(deliver, func() { c.unexpected(msg) })
			continue
		}

		c.stats.RepliesDelivered++
		c.logger.LogCommandReceived(result.ID, result.Success)
		deliver = append(deliver, func() { cmd.notify(result) })
	}
	return deliver
}

// unexpected reports a correlation anomaly. It never closes the connection.
func (c *Connection) unexpected(msg string) {
	_ = errors.NewCorrelationAnomaly("protocol").
		WithLogger(c.logger).
		WithSeverity(errors.SeverityLow).
		WithOperation("correlate").
		WithMessage(msg).
		Build()
	c.message(msg)
}

// closeWithError closes the current connection because of err.
func (c *Connection) closeWithError(err error) {
	c.mutex.Lock()
	gen := c.generation
	c.mutex.Unlock()
	c.shutdown(gen, err)
}

// endHandshake records a failure that leaves the connection open but not Ready.
func (c *Connection) endHandshake(err error) {
	if stderrors.Is(err, ErrNotConnected) {
		return
	}
	c.mutex.Lock()
	c.lastErr = err
	c.stalled = true
	c.mutex.Unlock()

	c.message(c.handler.StatusLine(err))
	c.reportError(err)
}
