package academia

import (
	"context"
	"slices"
	"sync"
	"time"
)

// SessionStore owns the Session. Identity changes and role lookup results
// are applied one at a time by a single loop goroutine, and listeners are
// called from that goroutine in the order the changes were applied.
type SessionStore struct {
	source   IdentitySource
	resolver RoleResolver
	logger   Logger
	now      func() time.Time

	mu          sync.Mutex
	session     Session
	generation  uint64
	listeners   map[uint64]*listener
	nextID      uint64
	mailbox     []storeEvent
	closed      bool
	dispatching bool
	unsubscribe func()

	wake   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type listener struct {
	fn     func(Session)
	active bool
}

type storeEvent struct {
	identity   *Identity
	isIdentity bool

	generation uint64
	uid        string
	role       Role
	err        error
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithStoreLogger sets the logger.
func WithStoreLogger(l Logger) StoreOption {
	return func(s *SessionStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStoreClock overrides time.Now, for tests.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore creates the store in Loading status and subscribes it to
// source. Close releases the subscription and stops the loop.
func NewSessionStore(source IdentitySource, resolver RoleResolver, opts ...StoreOption) *SessionStore {
	_, logger := ResolveLogger("academia.session_store", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionStore{
		source:    source,
		resolver:  resolver,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[uint64]*listener),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.session = Session{Status: StatusLoading, UpdatedAt: s.now()}

	go s.loop()

	unsubscribe := source.Subscribe(s.identityChanged)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return s
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return s
}

// Session returns a snapshot of the current session.
func (s *SessionStore) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.clone()
}

// OnChange registers fn to be called after every session change. The
// returned function removes it; once it returns fn is not called again.
func (s *SessionStore) OnChange(fn func(Session)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	l := &listener{fn: fn, active: true}
	s.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			l.active = false
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Wait blocks until the session leaves Loading or ctx is done.
func (s *SessionStore) Wait(ctx context.Context) (Session, error) {
	return s.WaitFor(ctx, func(sess Session) bool {
		return !sess.IsLoading()
	})
}

// WaitFor blocks until match returns true for the current session.
func (s *SessionStore) WaitFor(ctx context.Context, match func(Session) bool) (Session, error) {
	matched := make(chan Session, 1)
	unsubscribe := s.OnChange(func(sess Session) {
		if match(sess) {
			select {
			case matched <- sess:
			default:
			}
		}
	})
	defer unsubscribe()

	if current := s.Session(); match(current) {
		return current, nil
	}

	select {
	case sess := <-matched:
		return sess, nil
	case <-s.done:
		return s.Session(), ErrClosed
	case <-ctx.Done():
		return s.Session(), ctx.Err()
	}
}

// Close drops the identity subscription, stops the loop and waits for any
// role lookups still running. It is safe to call more than once.
//
// Listeners may call Close. Close called while listeners are being
// notified does not wait: the remaining listeners for that change are
// skipped and the loop finishes the teardown once the running one returns.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	fromListener := s.dispatching
	if s.closed {
		s.mu.Unlock()
		if !fromListener {
			<-s.done
		}
		return nil
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	s.signal()
	if fromListener {
		return nil
	}
	<-s.done
	return nil
}

func (s *SessionStore) identityChanged(id *Identity) {
	s.post(storeEvent{identity: id.Clone(), isIdentity: true})
}

func (s *SessionStore) post(ev storeEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mailbox = append(s.mailbox, ev)
	s.mu.Unlock()
	s.signal()
}

func (s *SessionStore) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *SessionStore) loop() {
	defer func() {
		s.cancel()
		s.wg.Wait()
		close(s.done)
	}()
	for range s.wake {
		for {
			s.mu.Lock()
			if s.closed {
				s.mailbox = nil
				s.mu.Unlock()
				return
			}
			if len(s.mailbox) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.mailbox[0]
			s.mailbox[0] = storeEvent{}
			s.mailbox = s.mailbox[1:]
			s.mu.Unlock()

			if ev.isIdentity {
				s.applyIdentity(ev.identity)
			} else {
				s.applyRole(ev)
			}
		}
	}
}

func (s *SessionStore) applyIdentity(id *Identity) {
	s.mu.Lock()
	s.generation++
	gen := s.generation

	if id == nil {
		s.session = Session{Status: StatusReady, UpdatedAt: s.now()}
		s.mu.Unlock()
		s.notify()
		return
	}

	s.session = Session{Identity: id, Status: StatusLoading, UpdatedAt: s.now()}
	s.mu.Unlock()
	s.notify()

	s.wg.Add(1)
	go s.resolve(gen, id.UID)
}

func (s *SessionStore) resolve(gen uint64, uid string) {
	defer s.wg.Done()
	role, err := s.resolver.ResolveRole(s.ctx, uid)
	s.post(storeEvent{generation: gen, uid: uid, role: role, err: err})
}

func (s *SessionStore) applyRole(ev storeEvent) {
	s.mu.Lock()
	current := s.session.Identity
	if ev.generation != s.generation || current == nil || current.UID != ev.uid {
		s.mu.Unlock()
		s.logger.Debug("dropping stale role lookup", "uid", ev.uid, "generation", ev.generation)
		return
	}

	if ev.err == nil {
		s.session = Session{Identity: current, Role: ev.role, Status: StatusReady, UpdatedAt: s.now()}
		s.mu.Unlock()
		s.notify()
		return
	}

	message := ErrorMessage(ev.err)
	if IsPermissionDenied(ev.err) {
		s.logger.Debug("profile read rejected", "uid", ev.uid)
	} else {
		s.logger.Error("role lookup failed", "uid", ev.uid, "error", ev.err)
	}

	s.session = Session{Identity: current, Status: StatusError, LastError: message, UpdatedAt: s.now()}
	s.mu.Unlock()
	s.notify()

	s.mu.Lock()
	s.session.Status = StatusReady
	s.session.UpdatedAt = s.now()
	s.mu.Unlock()
	s.notify()
}

// notify runs on the loop goroutine only.
func (s *SessionStore) notify() {
	s.mu.Lock()
	snapshot := s.session.clone()
	active := make([]*listener, 0, len(s.listeners))
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		active = append(active, s.listeners[id])
	}
	s.dispatching = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.dispatching = false
		s.mu.Unlock()
	}()

	for _, l := range active {
		s.mu.Lock()
		ok := l.active && !s.closed
		s.mu.Unlock()
		if ok {
			l.fn(snapshot)
		}
	}
}
