package session

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultSessionTTL bounds how long an idle session survives the sweep.
	DefaultSessionTTL = 90 * time.Minute
	// DefaultButtonTTL bounds how long inline buttons stay actionable.
	DefaultButtonTTL = 15 * time.Minute
)

var (
	// ErrNotFound is returned when no session matches.
	ErrNotFound = errors.New("session: not found")
	// ErrRefExhausted is returned when no unique reference could be drawn.
	ErrRefExhausted = errors.New("session: could not allocate a unique ref")
)

// Options configures a Store.
type Options struct {
	Clock      clockwork.Clock
	SessionTTL time.Duration
	ButtonTTL  time.Duration
	RefStyle   RefStyle
	// NewSuffix overrides the random reference suffix.
	NewSuffix func() string
}

// Store holds one session per customer and a ref index over them. Both maps
// are mutated under the same lock so they never disagree.
type Store struct {
	clock      clockwork.Clock
	sessionTTL time.Duration
	buttonTTL  time.Duration
	refStyle   RefStyle
	newSuffix  func() string

	mu       sync.Mutex
	sessions map[int64]*Session
	refs     map[string]int64

	timerSeq atomic.Uint64
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	s := &Store{
		clock:      opts.Clock,
		sessionTTL: opts.SessionTTL,
		buttonTTL:  opts.ButtonTTL,
		refStyle:   opts.RefStyle,
		newSuffix:  opts.NewSuffix,
		sessions:   make(map[int64]*Session),
		refs:       make(map[string]int64),
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.buttonTTL <= 0 {
		s.buttonTTL = DefaultButtonTTL
	}
	if s.refStyle == "" {
		s.refStyle = RefRich
	}
	if s.newSuffix == nil {
		s.newSuffix = RandomSuffix
	}
	return s
}

// Clock returns the clock driving the store's timers.
func (s *Store) Clock() clockwork.Clock { return s.clock }

// Create starts a fresh session for customerID with a newly allocated ref.
// An existing session for the customer is replaced: its timers are stopped
// and its ref is released. The replaced session is returned when present.
func (s *Store) Create(customerID int64, init func(*Session)) (created Session, replaced *Session, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	ref, err := s.allocRefLocked(now)
	if err != nil {
		return Session{}, nil, err
	}

	if old, ok := s.sessions[customerID]; ok {
		old.StopTimers()
		delete(s.refs, old.Ref)
		prev := old.clone()
		replaced = &prev
	}

	sess := &Session{
		CustomerID: customerID,
		Ref:        ref,
		Status:     StatusAwaitingPayment,
		CreatedAt:  now,
	}
	if init != nil {
		init(sess)
		sess.CustomerID = customerID
		sess.Ref = ref
	}
	s.sessions[customerID] = sess
	s.refs[ref] = customerID
	return sess.clone(), replaced, nil
}

// Get returns a copy of the customer's session.
func (s *Store) Get(customerID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[customerID]
	if !ok {
		return Session{}, false
	}
	return sess.clone(), true
}

// GetByRef returns a copy of the session owning ref.
func (s *Store) GetByRef(ref string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byRefLocked(ref)
	if !ok {
		return Session{}, false
	}
	return sess.clone(), true
}

// Update applies fn to a copy of the customer's session and commits it when
// fn returns nil. The committed (or unchanged) session is returned. fn should
// validate before touching timers since a failed update is not rolled back
// on the clock.
func (s *Store) Update(customerID int64, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[customerID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.applyLocked(sess, fn)
}

// UpdateByRef is Update addressed by order reference.
func (s *Store) UpdateByRef(ref string, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byRefLocked(ref)
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.applyLocked(sess, fn)
}

// Arm schedules fire after d in slot t, replacing whatever the slot held.
// Call it from inside Update so the slot is committed with the session.
func (s *Store) Arm(t *Timer, d time.Duration, fire func(id uint64)) {
	t.Stop()
	id := s.timerSeq.Add(1)
	t.id = id
	t.handle = s.clock.AfterFunc(d, func() { fire(id) })
}

// Delete removes the customer's session and stops its timers.
func (s *Store) Delete(customerID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[customerID]
	if !ok {
		return Session{}, false
	}
	s.removeLocked(sess)
	return sess.clone(), true
}

// DeleteByRef removes the session owning ref.
func (s *Store) DeleteByRef(ref string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byRefLocked(ref)
	if !ok {
		return Session{}, false
	}
	s.removeLocked(sess)
	return sess.clone(), true
}

// TTLExpired reports whether the session outlived the session TTL.
func (s *Store) TTLExpired(sess Session) bool {
	return s.clock.Since(sess.CreatedAt) > s.sessionTTL
}

// ButtonExpired reports whether buttons issued with the session are stale.
func (s *Store) ButtonExpired(sess Session) bool {
	return s.clock.Since(sess.CreatedAt) > s.buttonTTL
}

// Sweep drops sessions past their TTL. Sessions with an assigned driver are
// kept so deliveries in progress are never lost.
func (s *Store) Sweep() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []Session
	for _, sess := range s.sessions {
		if sess.AssignedDriverID != 0 || !s.TTLExpired(*sess) {
			continue
		}
		s.removeLocked(sess)
		removed = append(removed, sess.clone())
	}
	return removed
}

// List returns copies of all sessions ordered by creation time.
func (s *Store) List() []Session {
	s.mu.Lock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b Session) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Counts returns the number of sessions per status.
func (s *Store) Counts() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Status]int)
	for _, sess := range s.sessions {
		out[sess.Status]++
	}
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) applyLocked(sess *Session, fn func(*Session) error) (Session, error) {
	next := sess.clone()
	if err := fn(&next); err != nil {
		return sess.clone(), err
	}
	next.CustomerID = sess.CustomerID
	next.Ref = sess.Ref
	// superseded refs are append-only
	prev := sess.SupersededRefs
	if len(next.SupersededRefs) < len(prev) || !slices.Equal(next.SupersededRefs[:len(prev)], prev) {
		next.SupersededRefs = slices.Clone(prev)
	}
	*sess = next
	return next.clone(), nil
}

func (s *Store) byRefLocked(ref string) (*Session, bool) {
	customerID, ok := s.refs[ref]
	if !ok {
		return nil, false
	}
	sess, ok := s.sessions[customerID]
	return sess, ok
}

func (s *Store) removeLocked(sess *Session) {
	sess.StopTimers()
	delete(s.refs, sess.Ref)
	delete(s.sessions, sess.CustomerID)
}

func (s *Store) allocRefLocked(now time.Time) (string, error) {
	for range maxRefTries {
		ref := FormatRef(s.refStyle, now, s.newSuffix())
		if _, taken := s.refs[ref]; !taken {
			return ref, nil
		}
	}
	return "", ErrRefExhausted
}
