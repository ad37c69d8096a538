// Package mockconsole is a scriptable stand-in for the DGD administrative
// console. It speaks the same line protocol over TCP: a login banner, the
// username and password prompts, raw "$<n> = <value>" replies for plain
// code and compile commands, and sentinel-framed replies for expressions
// evaluated through the helper object.
package mockconsole

import (
	"bufio"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/sjson"

	"github.com/universal-console/dgdconsole/internal/content"
	"github.com/universal-console/dgdconsole/internal/logging"
)

const (
	// Banner is written as soon as a client connects.
	Banner = "\r\nDGD administrative console\r\n\r\nlogin: "

	// Prompt ends every reply once the client is logged in.
	Prompt = "# "
)

var (
	helperEvalPattern = regexp.MustCompile(`^code \("([^"]*)"\)->code\("(.*)"\)$`)
	uninstallPattern  = regexp.MustCompile(`^code "([^"]*)"->uninstall\(\)$`)
)

// Reply is the outcome of one helper evaluation
type Reply struct {
	Value any
	// Error makes the reply unsuccessful.
	Error string
	// Diagnostics are "<path>, <line>: <message>" lines written before the payload.
	Diagnostics []string
}

// Evaluator answers expressions evaluated through the helper
type Evaluator func(expression string) Reply

// Script fixes how the console behaves
type Script struct {
	Username string
	Password string

	// CheckOutcomes are returned by successive helper checks; once exhausted
	// every check returns 1.
	CheckOutcomes []int

	// CompileFails makes compile print a diagnostic instead of the object.
	CompileFails bool

	// FirstID is the id the helper assigns to the first evaluation of a session.
	FirstID int

	// Evaluate answers helper evaluations; nil uses DefaultEvaluator.
	Evaluate Evaluator
}

// Options shape how replies are written
type Options struct {
	// Address to listen on; defaults to an ephemeral loopback port.
	Address string

	// ChunkSize splits framed replies into writes of at most this many bytes.
	ChunkSize int

	// ChunkDelay pauses between chunks so they arrive as separate reads.
	ChunkDelay time.Duration

	// BatchSize holds framed evaluation replies until this many are pending
	// and writes them together.
	BatchSize int

	// Reverse writes each batch in reverse order.
	Reverse bool

	// Literal encodes payloads in the runtime's ([ ]) / ({ }) notation instead of JSON.
	Literal bool
}

// Stats counts the commands the console received
type Stats struct {
	Connections int
	Logins      int
	Checks      int
	Compiles    int
	Uninstalls  int
	Evaluations int
	Unknown     int
}

// Server is a fake administrative console
type Server struct {
	script   Script
	options  Options
	listener net.Listener
	logger   *logging.Logger

	mutex    sync.Mutex
	conns    map[net.Conn]struct{}
	outcomes []int
	stats    Stats
	wg       sync.WaitGroup
}

// NewServer creates a server for script; call Start to listen.
func NewServer(script Script, options Options) *Server {
	if script.Evaluate == nil {
		script.Evaluate = DefaultEvaluator
	}
	if options.Address == "" {
		options.Address = "127.0.0.1:0"
	}
	return &Server{
		script:   script,
		options:  options,
		logger:   logging.GetMockLogger(),
		conns:    make(map[net.Conn]struct{}),
		outcomes: append([]int(nil), script.CheckOutcomes...),
	}
}

// Start begins accepting connections in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.options.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.options.Address, err)
	}
	s.listener = listener
	s.logger.Info("Mock console listening", "address", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the listening address
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stats returns a snapshot of the counters
func (s *Server) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// DropConnections closes every client connection without stopping the listener.
func (s *Server) DropConnections() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Close stops the listener and disconnects all clients
func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.DropConnections()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mutex.Lock()
		s.conns[conn] = struct{}{}
		s.stats.Connections++
		s.mutex.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)

			s.mutex.Lock()
			delete(s.conns, conn)
			s.mutex.Unlock()
			conn.Close()
		}()
	}
}

// session is the per-connection console state
type session struct {
	server  *Server
	conn    net.Conn
	history int
	nextID  int
	evals   int
	pending []string
}

func (s *Server) serve(conn net.Conn) {
	sess := &session{server: s, conn: conn, nextID: s.script.FirstID}

	if err := sess.write(Banner); err != nil {
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	if !scanner.Scan() {
		return
	}
	if strings.TrimSpace(scanner.Text()) != s.script.Username {
		s.logger.Debug("Rejecting username", "username", scanner.Text())
		sess.write("Unknown user.\r\n")
		return
	}
	if err := sess.write("Password:"); err != nil {
		return
	}

	if !scanner.Scan() {
		return
	}
	if scanner.Text() != s.script.Password {
		sess.write("\r\nBad password.\r\n")
		return
	}
	s.count(func(st *Stats) { st.Logins++ })
	if err := sess.write("\r\n" + Prompt); err != nil {
		return
	}

	for scanner.Scan() {
		if err := sess.handle(strings.TrimRight(scanner.Text(), "\r")); err != nil {
			s.logger.Debug("Client write failed", "error", err)
			return
		}
	}
}

func (s *Server) count(update func(*Stats)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	update(&s.stats)
}

func (s *Server) nextOutcome() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats.Checks++
	if len(s.outcomes) == 0 {
		return 1
	}
	outcome := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return outcome
}

func (sess *session) handle(line string) error {
	s := sess.server

	switch {
	case strings.HasPrefix(line, "compile "):
		s.count(func(st *Stats) { st.Compiles++ })
		path := strings.TrimSpace(strings.TrimPrefix(line, "compile "))
		if s.script.CompileFails {
			return sess.write(fmt.Sprintf("%s, 1: syntax error\r\nFailed to compile \"%s\"\r\n%s", path, path, Prompt))
		}
		return sess.rawValue("<" + strings.TrimSuffix(path, ".c") + ">")

	case uninstallPattern.MatchString(line):
		s.count(func(st *Stats) { st.Uninstalls++ })
		return sess.rawValue("1")

	case helperEvalPattern.MatchString(line):
		m := helperEvalPattern.FindStringSubmatch(line)
		s.count(func(st *Stats) { st.Evaluations++ })
		return sess.evaluate(unescape(m[2]))

	case strings.HasPrefix(line, "code ") && strings.Contains(line, "catch"):
		return sess.rawValue(strconv.Itoa(s.nextOutcome()))

	default:
		s.count(func(st *Stats) { st.Unknown++ })
		return sess.write("Unknown command.\r\n" + Prompt)
	}
}

func (sess *session) rawValue(value string) error {
	sess.history++
	return sess.write(fmt.Sprintf("$%d = %s\r\n%s", sess.history, value, Prompt))
}

func (sess *session) evaluate(expression string) error {
	s := sess.server
	reply := s.script.Evaluate(expression)

	id := sess.nextID
	sess.nextID++
	sess.history++
	sess.evals++

	frame, err := s.encode(id, reply)
	if err != nil {
		return err
	}
	for _, d := range reply.Diagnostics {
		frame = d + "\r\n" + frame
	}
	frame += fmt.Sprintf("\r\n $%d = \"##ignore##\"\r\n%s", sess.history, Prompt)

	// The first evaluation is the login canary and is never held back.
	if s.options.BatchSize <= 1 || sess.evals == 1 {
		return sess.writeChunked(frame)
	}

	sess.pending = append(sess.pending, frame)
	if len(sess.pending) < s.options.BatchSize {
		return nil
	}
	batch := sess.pending
	sess.pending = nil
	if s.options.Reverse {
		for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
			batch[i], batch[j] = batch[j], batch[i]
		}
	}
	return sess.writeChunked(strings.Join(batch, ""))
}

// encode builds the reply payload with the given id
func (s *Server) encode(id int, reply Reply) (string, error) {
	success := 1
	if reply.Error != "" {
		success = 0
	}

	if s.options.Literal {
		payload := map[string]any{"id": id, "success": success}
		if success == 1 {
			payload["result"] = reply.Value
		} else {
			payload["error"] = reply.Error
		}
		return content.FormatValue(payload, false), nil
	}

	body, err := sjson.Set("", "id", id)
	if err != nil {
		return "", fmt.Errorf("failed to encode reply: %w", err)
	}
	body, _ = sjson.Set(body, "success", success)
	if success == 1 {
		body, err = sjson.Set(body, "result", reply.Value)
	} else {
		body, err = sjson.Set(body, "error", reply.Error)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode reply: %w", err)
	}
	return body, nil
}

func (sess *session) write(text string) error {
	_, err := sess.conn.Write([]byte(text))
	return err
}

func (sess *session) writeChunked(text string) error {
	size := sess.server.options.ChunkSize
	if size <= 0 {
		return sess.write(text)
	}
	for start := 0; start < len(text); start += size {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		if err := sess.write(text[start:end]); err != nil {
			return err
		}
		if sess.server.options.ChunkDelay > 0 {
			time.Sleep(sess.server.options.ChunkDelay)
		}
	}
	return nil
}

// unescape reverses the quoting applied to expressions sent through the helper.
func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
