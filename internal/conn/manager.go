package conn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/protocol"
)

// MaxConnectTimeout is the ceiling on a single connect attempt.
const MaxConnectTimeout = 20 * time.Second

const writeTimeout = 3 * time.Second

type Handler func(env protocol.Envelope)

type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateConnected
)

type listener struct {
	id uint64
	fn Handler
}

type result struct {
	env protocol.Envelope
	err error
}

// Expect names the events that settle a request.
type Expect struct {
	Response string
	Errors   []string
}

type pendingRequest struct {
	requestID string
	expect    Expect
	reply     chan result
}

func (p *pendingRequest) matches(env protocol.Envelope) (isError, ok bool) {
	if env.RequestID != "" && env.RequestID != p.requestID {
		return false, false
	}
	if env.Event == p.expect.Response {
		return false, true
	}
	for _, e := range p.expect.Errors {
		if env.Event == e {
			return true, true
		}
	}
	return false, false
}

// Manager owns the single connection to the authority. It is constructed
// explicitly and handed to whatever needs it; there is no package-level
// instance.
type Manager struct {
	dial    DialFunc
	timeout time.Duration
	log     *zap.Logger
	newID   func() string
	onDrop  func(error)

	mu        sync.Mutex
	state     state
	attempt   uint64
	transport Transport
	cancel    context.CancelFunc
	// dialing stays set until the dial call returns, even when Disconnect
	// abandoned the attempt.
	dialing    bool
	dialCancel context.CancelFunc
	listeners map[string][]listener
	nextID    uint64
	pending   []*pendingRequest
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithConnectTimeout sets the connect bound; values above the ceiling are
// clamped to it.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 && d < MaxConnectTimeout {
			m.timeout = d
		}
	}
}

func WithRequestIDs(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// OnDisconnect registers a callback for connection loss the caller did not
// ask for. It survives reconnects.
func OnDisconnect(fn func(error)) Option {
	return func(m *Manager) { m.onDrop = fn }
}

func NewManager(dial DialFunc, opts ...Option) *Manager {
	m := &Manager{
		dial:      dial,
		timeout:   MaxConnectTimeout,
		log:       zap.NewNop(),
		newID:     uuid.NewString,
		listeners: make(map[string][]listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateConnected
}

// Connect establishes the transport within the connect bound. Only one
// attempt may be outstanding; a second concurrent call fails with
// KindInProgress, including while an attempt abandoned by Disconnect is
// still unwinding. Connect on a live connection is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == stateConnected {
		m.mu.Unlock()
		return nil
	}
	if m.dialing {
		m.mu.Unlock()
		return connErr(KindInProgress, ErrConnectInProgress, nil)
	}
	dctx, cancel := context.WithTimeout(ctx, m.timeout)
	m.state = stateConnecting
	m.attempt++
	attempt := m.attempt
	m.dialing = true
	m.dialCancel = cancel
	m.mu.Unlock()

	t, err := m.dial(dctx)

	m.mu.Lock()
	m.dialing = false
	m.dialCancel = nil
	abandoned := m.attempt != attempt || m.state != stateConnecting
	m.mu.Unlock()
	derr := dctx.Err()
	timedOut := errors.Is(derr, context.DeadlineExceeded)
	cancel()

	if err == nil && (abandoned || derr != nil) {
		_ = t.Close()
		if abandoned {
			return connErr(KindClosed, ErrCancelled, nil)
		}
		err = derr
	}
	if err != nil {
		if abandoned {
			return connErr(KindClosed, ErrCancelled, err)
		}
		m.mu.Lock()
		if m.attempt == attempt {
			m.state = stateDisconnected
		}
		m.mu.Unlock()

		if errors.Is(err, context.DeadlineExceeded) || timedOut {
			m.log.Error("connect timed out", zap.Duration("timeout", m.timeout), zap.Error(err))
			return connErr(KindTimeout, ErrTimeout, err)
		}
		m.log.Error("connect failed", zap.Error(err))
		return connErr(KindUnreachable, ErrUnreachable, err)
	}

	m.mu.Lock()
	if m.attempt != attempt || m.state != stateConnecting {
		// Disconnect landed between the dial returning and here.
		m.mu.Unlock()
		_ = t.Close()
		return connErr(KindClosed, ErrCancelled, nil)
	}
	readCtx, readCancel := context.WithCancel(context.Background())
	m.transport = t
	m.cancel = readCancel
	m.state = stateConnected
	m.mu.Unlock()

	m.log.Info("connected")
	go m.readLoop(readCtx, t, attempt)
	return nil
}

// Disconnect tears the transport down, rejects every outstanding request
// with ErrCancelled and drops every subscription. Safe to call repeatedly.
func (m *Manager) Disconnect() {
	pending, had := m.teardown(0)
	if had {
		m.log.Info("disconnected")
	}
	for _, p := range pending {
		p.reply <- result{err: connErr(KindClosed, ErrCancelled, nil)}
	}
}

// teardown resets the manager. With attempt != 0 it only acts if that
// attempt is still the live one.
func (m *Manager) teardown(attempt uint64) ([]*pendingRequest, bool) {
	m.mu.Lock()
	if attempt != 0 && (m.attempt != attempt || m.state != stateConnected) {
		m.mu.Unlock()
		return nil, false
	}
	had := m.state != stateDisconnected
	t, cancel := m.transport, m.cancel
	pending := m.pending
	if m.dialCancel != nil {
		m.dialCancel()
	}

	m.state = stateDisconnected
	m.attempt++
	m.transport = nil
	m.cancel = nil
	m.pending = nil
	m.listeners = make(map[string][]listener)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t != nil {
		_ = t.Close()
	}
	return pending, had
}

func (m *Manager) readLoop(ctx context.Context, t Transport, attempt uint64) {
	for {
		frame, err := t.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.lost(attempt, err)
			return
		}
		env, err := protocol.DecodeEnvelope(frame)
		if err != nil {
			m.log.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		m.deliver(env)
	}
}

func (m *Manager) lost(attempt uint64, cause error) {
	pending, ok := m.teardown(attempt)
	if !ok {
		return
	}
	err := connErr(KindDisconnected, ErrDisconnected, cause)
	m.log.Error("connection lost", zap.Error(cause), zap.Int("pending_requests", len(pending)))
	for _, p := range pending {
		p.reply <- result{err: err}
	}
	if m.onDrop != nil {
		m.onDrop(err)
	}
}

// deliver settles at most one pending request, then fans the event out to
// subscribers. An error event that rejected a request is consumed by it.
func (m *Manager) deliver(env protocol.Envelope) {
	m.mu.Lock()
	var settled *pendingRequest
	var settledErr bool
	for i, p := range m.pending {
		if isErr, ok := p.matches(env); ok {
			settled, settledErr = p, isErr
			m.pending = append(m.pending[:i:i], m.pending[i+1:]...)
			break
		}
	}
	var handlers []Handler
	if settled == nil || !settledErr {
		for _, l := range m.listeners[env.Event] {
			handlers = append(handlers, l.fn)
		}
	}
	m.mu.Unlock()

	if settled != nil {
		if settledErr {
			settled.reply <- result{env: env, err: requestError(env)}
		} else {
			settled.reply <- result{env: env}
		}
	}
	for _, h := range handlers {
		h(env)
	}
}

func requestError(env protocol.Envelope) error {
	ev, err := protocol.Decode(env)
	if err != nil {
		return protocol.ErrorEvent{Channel: env.Event, Message: "undecodable error payload"}
	}
	if e, ok := ev.(protocol.ErrorEvent); ok {
		return e
	}
	return protocol.ErrorEvent{Channel: env.Event, Message: "request rejected"}
}

// Subscribe registers fn for every event named event until the returned
// function is called or the connection is torn down.
func (m *Manager) Subscribe(event string, fn Handler) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[event] = append(m.listeners[event], listener{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			ls := m.listeners[event]
			for i, l := range ls {
				if l.id == id {
					m.listeners[event] = append(ls[:i:i], ls[i+1:]...)
					break
				}
			}
			if len(m.listeners[event]) == 0 {
				delete(m.listeners, event)
			}
		})
	}
}

// ListenerCount reports live subscriptions, for leak checks.
func (m *Manager) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ls := range m.listeners {
		n += len(ls)
	}
	return n
}

// Emit sends a fire-and-forget event stamped with a fresh request id, which
// it returns.
func (m *Manager) Emit(ctx context.Context, event string, payload any) (string, error) {
	id := m.newID()
	m.mu.Lock()
	t := m.transport
	live := m.state == stateConnected
	m.mu.Unlock()
	if !live {
		return id, connErr(KindClosed, ErrNotConnected, nil)
	}
	return id, m.write(ctx, t, event, id, payload)
}

// Request emits event and waits for exactly one of the expected response
// or error events. Both are deregistered as soon as either arrives.
func (m *Manager) Request(ctx context.Context, event string, payload any, expect Expect) (protocol.Envelope, error) {
	p := &pendingRequest{requestID: m.newID(), expect: expect, reply: make(chan result, 1)}

	m.mu.Lock()
	if m.state != stateConnected {
		m.mu.Unlock()
		return protocol.Envelope{}, connErr(KindClosed, ErrNotConnected, nil)
	}
	t := m.transport
	m.pending = append(m.pending, p)
	m.mu.Unlock()

	if err := m.write(ctx, t, event, p.requestID, payload); err != nil {
		m.forget(p)
		return protocol.Envelope{}, err
	}

	select {
	case r := <-p.reply:
		return r.env, r.err
	case <-ctx.Done():
		m.forget(p)
		return protocol.Envelope{}, ctx.Err()
	}
}

func (m *Manager) forget(p *pendingRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range m.pending {
		if q == p {
			m.pending = append(m.pending[:i:i], m.pending[i+1:]...)
			return
		}
	}
}

// PendingCount reports outstanding requests, for leak checks.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manager) write(ctx context.Context, t Transport, event, requestID string, payload any) error {
	frame, err := protocol.Encode(event, requestID, payload)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := t.Write(wctx, frame); err != nil {
		m.log.Warn("write failed", zap.String("event", event), zap.Error(err))
		return connErr(KindDisconnected, ErrDisconnected, err)
	}
	m.log.Debug("sent", zap.String("event", event), zap.String("request_id", requestID))
	return nil
}
