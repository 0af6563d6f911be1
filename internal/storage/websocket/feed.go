package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/racecontrol/racesim/pkg/streaming"
)

const (
	queueSize    = 10_000
	maxRedials   = 10
	firstBackoff = 500 * time.Millisecond
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// feed is the socket to a live viewer. A single writer goroutine owns writes. Leaderboard frames
// skip the queue: only the newest unsent one is kept, so a slow viewer drops frames instead of
// falling behind the race.
type feed struct {
	mu   sync.Mutex
	conn *ws.Conn
	gen  int // bumped on every redial so loops of a dead socket stand down

	queue chan []byte
	frame []byte        // newest snapshot not yet written
	wake  chan struct{} // nudges the writer when frame is set
	acks  map[string][]chan struct{}

	done   chan struct{}
	closed bool

	endpoint string
	backoff  time.Duration
	resume   resume
	logger   *slog.Logger
}

// resume is what a viewer needs to pick the race up again after a reconnect.
type resume struct {
	start []byte
	cars  map[int][]byte
	frame []byte // last snapshot handed to the writer
}

func newFeed(logger *slog.Logger) *feed {
	return &feed{
		queue:   make(chan []byte, queueSize),
		wake:    make(chan struct{}, 1),
		acks:    make(map[string][]chan struct{}),
		done:    make(chan struct{}),
		backoff: firstBackoff,
		logger:  logger,
	}
}

// dial connects to the viewer and starts the read and write loops.
func (f *feed) dial(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	f.endpoint = u.String()

	conn, _, err := ws.DefaultDialer.Dial(f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	f.attach(conn)
	return nil
}

// attach makes conn the live socket and starts its loops. It reports false when the feed was
// closed in the meantime.
func (f *feed) attach(conn *ws.Conn) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = conn.Close()
		return false
	}
	f.conn = conn
	gen := f.gen
	f.mu.Unlock()

	go f.writeLoop(conn, gen)
	go f.readLoop(conn, gen)
	return true
}

func (f *feed) writeLoop(conn *ws.Conn, gen int) {
	for {
		select {
		case <-f.done:
			return
		case data := <-f.queue:
			// a pending frame was published before this message was dequeued
			if !f.flushFrame(conn, gen) || !f.write(conn, gen, data) {
				return
			}
		case <-f.wake:
			if !f.flushFrame(conn, gen) {
				return
			}
		}
	}
}

func (f *feed) flushFrame(conn *ws.Conn, gen int) bool {
	f.mu.Lock()
	data := f.frame
	f.frame = nil
	if data != nil {
		f.resume.frame = data
	}
	f.mu.Unlock()
	if data == nil {
		return true
	}
	return f.write(conn, gen, data)
}

// write sends one message and starts a redial when the socket fails.
func (f *feed) write(conn *ws.Conn, gen int, data []byte) bool {
	err := writeText(conn, data)
	if err == nil {
		return true
	}
	f.logger.Warn("Live feed write error", "error", err)
	go f.redial(gen)
	return false
}

func writeText(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop hands server acks to whoever is waiting for them.
func (f *feed) readLoop(conn *ws.Conn, gen int) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				return
			default:
			}
			f.logger.Warn("Live feed read error", "error", err)
			go f.redial(gen)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			f.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}
		f.release(ack.For)
	}
}

func (f *feed) release(kind string) {
	f.mu.Lock()
	waiting := f.acks[kind]
	delete(f.acks, kind)
	f.mu.Unlock()
	for _, ch := range waiting {
		close(ch)
	}
}

// redial replaces the socket of generation gen with exponential backoff. Only the first caller for
// a generation does the work. A new socket first gets the race start, the roster and the last
// leaderboard frame so the viewer can carry on mid-race.
func (f *feed) redial(gen int) {
	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.gen++
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
	backoff := f.backoff
	f.mu.Unlock()

	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-f.done:
			return
		case <-time.After(backoff):
		}
		f.logger.Info("Reconnecting live feed", "attempt", attempt, "backoff", backoff)

		conn, _, err := ws.DefaultDialer.Dial(f.endpoint, nil)
		if err != nil {
			f.logger.Warn("Live feed redial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		if err := f.replay(conn); err != nil {
			f.logger.Warn("Live feed replay failed", "attempt", attempt, "error", err)
			_ = conn.Close()
			continue
		}
		if f.attach(conn) {
			f.logger.Info("Live feed reconnected", "attempt", attempt)
		}
		return
	}
	f.logger.Error("Live feed gave up reconnecting", "maxAttempts", maxRedials)
}

func (f *feed) replay(conn *ws.Conn) error {
	for _, data := range f.resumeMessages() {
		if err := writeText(conn, data); err != nil {
			return err
		}
	}
	return nil
}

// resumeMessages lists the replay in order: start, cars by id, then the last frame.
func (f *feed) resumeMessages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resume.start == nil {
		return nil
	}
	out := [][]byte{f.resume.start}
	ids := make([]int, 0, len(f.resume.cars))
	for id := range f.resume.cars {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		out = append(out, f.resume.cars[id])
	}
	if f.resume.frame != nil {
		out = append(out, f.resume.frame)
	}
	return out
}

// startRace begins a fresh resume set.
func (f *feed) startRace(data []byte) {
	f.mu.Lock()
	f.resume = resume{start: data, cars: make(map[int][]byte)}
	f.mu.Unlock()
}

func (f *feed) rememberCar(id int, data []byte) {
	f.mu.Lock()
	if f.resume.cars != nil {
		f.resume.cars[id] = data
	}
	f.mu.Unlock()
}

func (f *feed) forget() {
	f.mu.Lock()
	f.resume = resume{}
	f.mu.Unlock()
}

// send queues a message. It never blocks; a full queue drops the message.
func (f *feed) send(data []byte) {
	select {
	case f.queue <- data:
	default:
		f.logger.Warn("Live feed queue full, dropping message")
	}
}

// publishFrame replaces any unsent leaderboard frame with data.
func (f *feed) publishFrame(data []byte) {
	f.mu.Lock()
	f.frame = data
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// request sends data and blocks until the server acks kind or the timeout expires.
func (f *feed) request(data []byte, kind string, timeout time.Duration) error {
	ch := make(chan struct{})
	f.mu.Lock()
	f.acks[kind] = append(f.acks[kind], ch)
	f.mu.Unlock()

	f.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		f.drop(kind, ch)
		return fmt.Errorf("timeout waiting for ack of %q", kind)
	case <-f.done:
		return fmt.Errorf("connection closed while waiting for ack of %q", kind)
	}
}

func (f *feed) drop(kind string, ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	waiting := f.acks[kind]
	for i, c := range waiting {
		if c == ch {
			f.acks[kind] = append(waiting[:i], waiting[i+1:]...)
			break
		}
	}
	if len(f.acks[kind]) == 0 {
		delete(f.acks, kind)
	}
}

// close sends a close frame and stops every loop.
func (f *feed) close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.done)
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	return conn.Close()
}
