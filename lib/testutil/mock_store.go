// Package testutil provides testing utilities for redispool integration tests.
package testutil

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"net"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const wrongTypeMsg = "WRONGTYPE Operation against a key holding the wrong kind of value"

// MockStore is an in-process server speaking enough of the store's wire
// protocol to exercise pools and clients over real network connections.
// It implements the string, hash, list and blocking-list commands the
// client facade issues, with per-key expiry and optional AUTH.
type MockStore struct {
	listener net.Listener
	addr     string
	password string

	mu      sync.Mutex
	cond    *sync.Cond
	running bool
	data    map[string]*storeValue
	conns   map[net.Conn]struct{}

	active int
	total  int
	peak   int
}

// storeValue is one keyspace entry. kind is 's' (string), 'h' (hash)
// or 'l' (list); expireAt zero means the key never expires.
type storeValue struct {
	kind     byte
	str      string
	hash     map[string]string
	list     []string
	expireAt time.Time
}

// NewMockStore creates a mock store listening on a random local port.
func NewMockStore() (*MockStore, error) {
	return newMockStore("")
}

// NewMockStoreAuth creates a mock store that requires AUTH with the
// given password before accepting commands.
func NewMockStoreAuth(password string) (*MockStore, error) {
	return newMockStore(password)
}

func newMockStore(password string) (*MockStore, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	m := &MockStore{
		listener: ln,
		addr:     ln.Addr().String(),
		password: password,
		running:  true,
		data:     make(map[string]*storeValue),
		conns:    make(map[net.Conn]struct{}),
	}
	m.cond = sync.NewCond(&m.mu)

	go m.acceptLoop()

	return m, nil
}

// Addr returns the address of the mock store.
func (m *MockStore) Addr() string {
	return m.addr
}

// Close shuts down the mock store and every open client connection.
func (m *MockStore) Close() error {
	m.mu.Lock()
	m.running = false
	for conn := range m.conns {
		conn.Close()
	}
	m.cond.Broadcast()
	m.mu.Unlock()
	return m.listener.Close()
}

// ActiveConns returns the number of currently open client connections.
func (m *MockStore) ActiveConns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// TotalConns returns the number of connections accepted since start.
func (m *MockStore) TotalConns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// PeakConns returns the highest number of simultaneously open client
// connections observed.
func (m *MockStore) PeakConns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Seed stores a string value directly, bypassing the protocol.
func (m *MockStore) Seed(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &storeValue{kind: 's', str: value}
}

// SeedList replaces a list value directly, bypassing the protocol, and
// wakes any blocked pop waiting on it.
func (m *MockStore) SeedList(key string, values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &storeValue{kind: 'l', list: append([]string(nil), values...)}
	m.cond.Broadcast()
}

// Value returns the string value stored under key, if present.
func (m *MockStore) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(key)
	if v == nil || v.kind != 's' {
		return "", false
	}
	return v.str, true
}

func (m *MockStore) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		go m.handleConnection(conn)
	}
}

func (m *MockStore) handleConnection(conn net.Conn) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conns[conn] = struct{}{}
	m.active++
	m.total++
	if m.active > m.peak {
		m.peak = m.active
	}
	m.mu.Unlock()

	defer func() {
		conn.Close()
		m.mu.Lock()
		delete(m.conns, conn)
		m.active--
		m.mu.Unlock()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	authed := m.password == ""

	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}
		name := strings.ToUpper(args[0])

		switch {
		case name == "QUIT":
			writeSimple(w, "OK")
			w.Flush()
			return
		case name == "AUTH":
			authed = m.handleAuth(w, args[1:])
		case !authed:
			writeError(w, "NOAUTH Authentication required.")
		default:
			m.dispatch(w, name, args[1:])
		}

		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (m *MockStore) handleAuth(w *bufio.Writer, args []string) bool {
	if len(args) < 1 || len(args) > 2 {
		writeError(w, "ERR wrong number of arguments for 'auth' command")
		return false
	}
	if m.password == "" {
		writeError(w, "ERR Client sent AUTH, but no password is set")
		return false
	}
	if args[len(args)-1] != m.password {
		writeError(w, "ERR invalid password")
		return false
	}
	writeSimple(w, "OK")
	return true
}

func (m *MockStore) dispatch(w *bufio.Writer, name string, args []string) {
	switch name {
	case "PING":
		if len(args) == 1 {
			writeBulk(w, args[0])
		} else {
			writeSimple(w, "PONG")
		}
	case "ECHO":
		if len(args) != 1 {
			writeError(w, arityError(name))
			return
		}
		writeBulk(w, args[0])
	case "SELECT":
		m.handleSelect(w, args)
	case "SET":
		m.handleSet(w, args)
	case "GET":
		m.handleGet(w, args)
	case "DEL":
		m.handleDel(w, args)
	case "EXPIRE":
		m.handleExpire(w, args)
	case "TTL":
		m.handleTTL(w, args)
	case "INCR":
		m.handleIncr(w, args)
	case "KEYS":
		m.handleKeys(w, args)
	case "HSET":
		m.handleHSet(w, args)
	case "HGET":
		m.handleHGet(w, args)
	case "HGETALL":
		m.handleHGetAll(w, args)
	case "HDEL":
		m.handleHDel(w, args)
	case "LPUSH", "RPUSH":
		m.handlePush(w, name, args)
	case "BLPOP", "BRPOP":
		m.handleBlockingPop(w, name, args)
	default:
		writeError(w, fmt.Sprintf("ERR unknown command '%s'", strings.ToLower(name)))
	}
}

func (m *MockStore) handleSelect(w *bufio.Writer, args []string) {
	if len(args) != 1 {
		writeError(w, arityError("select"))
		return
	}
	db, err := strconv.Atoi(args[0])
	if err != nil {
		writeError(w, "ERR value is not an integer or out of range")
		return
	}
	if db < 0 || db > 15 {
		writeError(w, "ERR DB index is out of range")
		return
	}
	writeSimple(w, "OK")
}

func (m *MockStore) handleSet(w *bufio.Writer, args []string) {
	if len(args) < 2 {
		writeError(w, arityError("set"))
		return
	}
	v := &storeValue{kind: 's', str: args[1]}

	rest := args[2:]
	for len(rest) > 0 {
		switch strings.ToUpper(rest[0]) {
		case "EX":
			if len(rest) < 2 {
				writeError(w, "ERR syntax error")
				return
			}
			secs, err := strconv.ParseInt(rest[1], 10, 64)
			if err != nil || secs <= 0 {
				writeError(w, "ERR invalid expire time in 'set' command")
				return
			}
			v.expireAt = time.Now().Add(time.Duration(secs) * time.Second)
			rest = rest[2:]
		default:
			writeError(w, "ERR syntax error")
			return
		}
	}

	m.mu.Lock()
	m.data[args[0]] = v
	m.mu.Unlock()
	writeSimple(w, "OK")
}

func (m *MockStore) handleGet(w *bufio.Writer, args []string) {
	if len(args) != 1 {
		writeError(w, arityError("get"))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(args[0])
	if v == nil {
		writeNil(w)
		return
	}
	if v.kind != 's' {
		writeError(w, wrongTypeMsg)
		return
	}
	writeBulk(w, v.str)
}

func (m *MockStore) handleDel(w *bufio.Writer, args []string) {
	if len(args) < 1 {
		writeError(w, arityError("del"))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := int64(0)
	for _, key := range args {
		if m.lookup(key) != nil {
			delete(m.data, key)
			count++
		}
	}
	writeInt(w, count)
}

func (m *MockStore) handleExpire(w *bufio.Writer, args []string) {
	if len(args) != 2 {
		writeError(w, arityError("expire"))
		return
	}
	secs, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		writeError(w, "ERR value is not an integer or out of range")
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(args[0])
	if v == nil {
		writeInt(w, 0)
		return
	}
	if secs <= 0 {
		delete(m.data, args[0])
	} else {
		v.expireAt = time.Now().Add(time.Duration(secs) * time.Second)
	}
	writeInt(w, 1)
}

func (m *MockStore) handleTTL(w *bufio.Writer, args []string) {
	if len(args) != 1 {
		writeError(w, arityError("ttl"))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(args[0])
	if v == nil {
		writeInt(w, -2)
		return
	}
	if v.expireAt.IsZero() {
		writeInt(w, -1)
		return
	}
	secs := int64(math.Ceil(time.Until(v.expireAt).Seconds()))
	if secs < 0 {
		secs = 0
	}
	writeInt(w, secs)
}

func (m *MockStore) handleIncr(w *bufio.Writer, args []string) {
	if len(args) != 1 {
		writeError(w, arityError("incr"))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(args[0])
	if v == nil {
		v = &storeValue{kind: 's', str: "0"}
		m.data[args[0]] = v
	}
	if v.kind != 's' {
		writeError(w, wrongTypeMsg)
		return
	}
	n, err := strconv.ParseInt(v.str, 10, 64)
	if err != nil {
		writeError(w, "ERR value is not an integer or out of range")
		return
	}
	n++
	v.str = strconv.FormatInt(n, 10)
	writeInt(w, n)
}

func (m *MockStore) handleKeys(w *bufio.Writer, args []string) {
	if len(args) != 1 {
		writeError(w, arityError("keys"))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []string
	for key := range m.data {
		if m.lookup(key) == nil {
			continue
		}
		if ok, _ := path.Match(args[0], key); ok {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)
	writeArray(w, matched)
}

func (m *MockStore) handleHSet(w *bufio.Writer, args []string) {
	if len(args) < 3 || len(args)%2 != 1 {
		writeError(w, arityError("hset"))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(args[0])
	if v == nil {
		v = &storeValue{kind: 'h', hash: make(map[string]string)}
		m.data[args[0]] = v
	}
	if v.kind != 'h' {
		writeError(w, wrongTypeMsg)
		return
	}
	added := int64(0)
	for i := 1; i < len(args); i += 2 {
		if _, ok := v.hash[args[i]]; !ok {
			added++
		}
		v.hash[args[i]] = args[i+1]
	}
	writeInt(w, added)
}

func (m *MockStore) handleHGet(w *bufio.Writer, args []string) {
	if len(args) != 2 {
		writeError(w, arityError("hget"))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(args[0])
	if v == nil {
		writeNil(w)
		return
	}
	if v.kind != 'h' {
		writeError(w, wrongTypeMsg)
		return
	}
	val, ok := v.hash[args[1]]
	if !ok {
		writeNil(w)
		return
	}
	writeBulk(w, val)
}

func (m *MockStore) handleHGetAll(w *bufio.Writer, args []string) {
	if len(args) != 1 {
		writeError(w, arityError("hgetall"))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(args[0])
	if v == nil {
		writeArray(w, nil)
		return
	}
	if v.kind != 'h' {
		writeError(w, wrongTypeMsg)
		return
	}
	fields := make([]string, 0, len(v.hash))
	for f := range v.hash {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	flat := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		flat = append(flat, f, v.hash[f])
	}
	writeArray(w, flat)
}

func (m *MockStore) handleHDel(w *bufio.Writer, args []string) {
	if len(args) < 2 {
		writeError(w, arityError("hdel"))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(args[0])
	if v == nil {
		writeInt(w, 0)
		return
	}
	if v.kind != 'h' {
		writeError(w, wrongTypeMsg)
		return
	}
	removed := int64(0)
	for _, f := range args[1:] {
		if _, ok := v.hash[f]; ok {
			delete(v.hash, f)
			removed++
		}
	}
	if len(v.hash) == 0 {
		delete(m.data, args[0])
	}
	writeInt(w, removed)
}

func (m *MockStore) handlePush(w *bufio.Writer, name string, args []string) {
	if len(args) < 2 {
		writeError(w, arityError(name))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(args[0])
	if v == nil {
		v = &storeValue{kind: 'l'}
		m.data[args[0]] = v
	}
	if v.kind != 'l' {
		writeError(w, wrongTypeMsg)
		return
	}
	for _, item := range args[1:] {
		if name == "LPUSH" {
			v.list = append([]string{item}, v.list...)
		} else {
			v.list = append(v.list, item)
		}
	}
	m.cond.Broadcast()
	writeInt(w, int64(len(v.list)))
}

// handleBlockingPop implements BLPOP and BRPOP. The handler goroutine
// parks on the keyspace condition until an element arrives, the timeout
// passes, or the server shuts down.
func (m *MockStore) handleBlockingPop(w *bufio.Writer, name string, args []string) {
	if len(args) < 2 {
		writeError(w, arityError(name))
		return
	}
	timeoutSec, err := strconv.ParseFloat(args[len(args)-1], 64)
	if err != nil || timeoutSec < 0 {
		writeError(w, "ERR timeout is not a float or out of range")
		return
	}
	keys := args[:len(args)-1]

	var deadline time.Time
	if timeoutSec > 0 {
		deadline = time.Now().Add(time.Duration(timeoutSec * float64(time.Second)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if !m.running {
			writeNilArray(w)
			return
		}
		for _, key := range keys {
			v := m.lookup(key)
			if v == nil {
				continue
			}
			if v.kind != 'l' {
				writeError(w, wrongTypeMsg)
				return
			}
			if len(v.list) == 0 {
				continue
			}
			var item string
			if name == "BLPOP" {
				item = v.list[0]
				v.list = v.list[1:]
			} else {
				item = v.list[len(v.list)-1]
				v.list = v.list[:len(v.list)-1]
			}
			if len(v.list) == 0 {
				delete(m.data, key)
			}
			writeArray(w, []string{key, item})
			return
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			writeNilArray(w)
			return
		}
		m.waitLocked(deadline)
	}
}

// waitLocked parks on the keyspace condition. With a deadline set, a
// timer wakes the waiter so the loop can observe the timeout.
func (m *MockStore) waitLocked(deadline time.Time) {
	if deadline.IsZero() {
		m.cond.Wait()
		return
	}
	t := time.AfterFunc(time.Until(deadline), func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	m.cond.Wait()
	t.Stop()
}

// lookup returns the live value for key, purging it first if expired.
// Caller must hold mu.
func (m *MockStore) lookup(key string) *storeValue {
	v, ok := m.data[key]
	if !ok {
		return nil
	}
	if !v.expireAt.IsZero() && time.Now().After(v.expireAt) {
		delete(m.data, key)
		return nil
	}
	return v
}

func arityError(name string) string {
	return fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 || line[0] != '*' {
		return nil, fmt.Errorf("expected array, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("bad array length %q", line)
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 || line[0] != '$' {
			return nil, fmt.Errorf("expected bulk string, got %q", line)
		}
		size, err := strconv.Atoi(line[1:])
		if err != nil || size < 0 {
			return nil, fmt.Errorf("bad bulk length %q", line)
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func readLine(r *bufio.Reader) (string, error) {
	s, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func writeSimple(w *bufio.Writer, s string) {
	fmt.Fprintf(w, "+%s\r\n", s)
}

func writeError(w *bufio.Writer, s string) {
	fmt.Fprintf(w, "-%s\r\n", s)
}

func writeInt(w *bufio.Writer, n int64) {
	fmt.Fprintf(w, ":%d\r\n", n)
}

func writeBulk(w *bufio.Writer, s string) {
	fmt.Fprintf(w, "$%d\r\n%s\r\n", len(s), s)
}

func writeNil(w *bufio.Writer) {
	w.WriteString("$-1\r\n")
}

func writeNilArray(w *bufio.Writer) {
	w.WriteString("*-1\r\n")
}

func writeArray(w *bufio.Writer, items []string) {
	fmt.Fprintf(w, "*%d\r\n", len(items))
	for _, item := range items {
		writeBulk(w, item)
	}
}
