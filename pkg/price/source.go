package price

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Phase is a source's connection state (spec §4.1 state machine:
// DISCONNECTED -> CONNECTING -> SUBSCRIBED -> DISCONNECTED -> CONNECTING,
// with STOPPED reachable as a terminal transition from any phase).
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Subscribed
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Subscribed:
		return "SUBSCRIBED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

const reconnectDelay = 5 * time.Second

// TickSink receives ticks emitted by a Source. *bus.Bus satisfies this
// via its PublishSourceTick method.
type TickSink interface {
	PublishSourceTick(source string, tickPrice float64, timestampMs int64)
}

// Source is a single exchange feed (spec §4.1, C1).
type Source interface {
	Name() string
	Start()
	Stop()
	IsStale(maxAge time.Duration) bool
	LastPrice() (price float64, timestampMs int64)
	Phase() Phase
}

// dialer opens a websocket connection; overridable in tests so the
// reconnect/parse machinery can be exercised without a live socket.
type dialer func(url string) (wsConn, error)

// wsConn is the subset of *websocket.Conn the source loop needs.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

func defaultDialer(url string) (wsConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// protocol captures what differs between exchanges: the endpoint, the
// subscribe frame, and how to pull a price out of an inbound message.
type protocol interface {
	url() string
	subscribeFrame() []byte
	// parse returns (price, ok). ok is false for messages that do not
	// carry a ticker/trade price (heartbeats, acks, unrelated channels)
	// -- spec §4.1's "parse failure policy": these are silently dropped.
	parse(msg []byte) (float64, bool)
}

// baseSource implements the reconnect/staleness machinery shared by all
// three exchange sources; each exchange supplies a protocol.
type baseSource struct {
	name   string
	proto  protocol
	sink   TickSink
	dial   dialer

	mu              sync.Mutex
	phase           Phase
	lastPrice       float64
	lastTimestampMs int64
	conn            wsConn

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newBaseSource(name string, proto protocol, sink TickSink) *baseSource {
	return &baseSource{
		name:  name,
		proto: proto,
		sink:  sink,
		dial:  defaultDialer,
		phase: Disconnected,
	}
}

func (s *baseSource) Name() string { return s.name }

func (s *baseSource) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *baseSource) LastPrice() (float64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrice, s.lastTimestampMs
}

// IsStale reports whether the source's last tick is older than maxAge.
// A source that has never ticked is always stale.
func (s *baseSource) IsStale(maxAge time.Duration) bool {
	s.mu.Lock()
	ts := s.lastTimestampMs
	s.mu.Unlock()
	if ts == 0 {
		return true
	}
	return time.Since(time.UnixMilli(ts)) > maxAge
}

// Start begins the connect/subscribe/read/reconnect loop. Safe to call
// once per source instance.
func (s *baseSource) Start() {
	s.mu.Lock()
	if s.phase == Stopped {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
}

// Stop cancels any pending reconnect wait and closes the live transport
// so a goroutine blocked in conn.ReadMessage() unblocks promptly,
// rather than waiting for the remote to send another frame. Terminal
// from any phase.
func (s *baseSource) Stop() {
	s.mu.Lock()
	s.phase = Stopped
	ch := s.stopCh
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		if ch != nil {
			close(ch)
		}
	})
	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
}

func (s *baseSource) setPhase(p Phase) {
	s.mu.Lock()
	if s.phase != Stopped {
		s.phase = p
	}
	s.mu.Unlock()
}

func (s *baseSource) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == Stopped
}

// setConn records conn as the live transport. If Stop already ran
// while the dial was in flight, close conn immediately instead of
// leaking it.
func (s *baseSource) setConn(conn wsConn) {
	s.mu.Lock()
	if s.phase == Stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
}

// clearConn closes conn and clears it from the struct, unless Stop
// already claimed and closed it.
func (s *baseSource) clearConn(conn wsConn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

func (s *baseSource) run() {
	defer s.wg.Done()

	for {
		if s.stopped() {
			return
		}

		s.setPhase(Connecting)
		conn, err := s.dial(s.proto.url())
		if err != nil {
			log.Printf("[price] %s: connect failed: %v", s.name, err)
			if !s.waitReconnect() {
				return
			}
			continue
		}
		s.setConn(conn)

		if err := conn.WriteMessage(websocket.TextMessage, s.proto.subscribeFrame()); err != nil {
			log.Printf("[price] %s: subscribe failed: %v", s.name, err)
			s.clearConn(conn)
			if !s.waitReconnect() {
				return
			}
			continue
		}

		s.setPhase(Subscribed)
		log.Printf("[price] %s: subscribed", s.name)
		s.readLoop(conn)
		s.clearConn(conn)

		if s.stopped() {
			return
		}
		s.setPhase(Disconnected)
		if !s.waitReconnect() {
			return
		}
	}
}

func (s *baseSource) readLoop(conn wsConn) {
	for {
		if s.stopped() {
			return
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(msg)
	}
}

func (s *baseSource) handleMessage(msg []byte) {
	p, ok := s.proto.parse(msg)
	if !ok {
		return
	}
	if p <= 0 {
		return
	}
	now := time.Now().UnixMilli()

	s.mu.Lock()
	if s.phase == Stopped {
		s.mu.Unlock()
		return
	}
	s.lastPrice = p
	s.lastTimestampMs = now
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.PublishSourceTick(s.name, p, now)
	}
}

// waitReconnect waits reconnectDelay, returning false if Stop is called
// first (in which case the caller should exit without reconnecting).
func (s *baseSource) waitReconnect() bool {
	s.mu.Lock()
	ch := s.stopCh
	s.mu.Unlock()

	timer := time.NewTimer(reconnectDelay)
	defer timer.Stop()

	select {
	case <-ch:
		return false
	case <-timer.C:
		return !s.stopped()
	}
}
