package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, style RefStyle, suffixes ...string) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	opts := Options{Clock: clock, RefStyle: style}
	if len(suffixes) > 0 {
		var mu sync.Mutex
		i := 0
		opts.NewSuffix = func() string {
			mu.Lock()
			defer mu.Unlock()
			s := suffixes[i%len(suffixes)]
			i++
			return s
		}
	}
	return NewStore(opts), clock
}

func TestCreateIndexesBothWays(t *testing.T) {
	s, _ := newTestStore(t, RefRich, "AB12")

	created, replaced, err := s.Create(42, func(sess *Session) {
		sess.Summary = "summary"
		sess.Ref = "ignored"
	})
	require.NoError(t, err)
	assert.Nil(t, replaced)
	assert.Equal(t, "GG-20250101-120000-AB12", created.Ref)
	assert.Equal(t, StatusAwaitingPayment, created.Status)
	assert.Equal(t, "summary", created.Summary)

	byCustomer, ok := s.Get(42)
	require.True(t, ok)
	byRef, ok := s.GetByRef(created.Ref)
	require.True(t, ok)
	assert.Equal(t, byCustomer.CustomerID, byRef.CustomerID)
	assert.Equal(t, int64(42), byRef.CustomerID)
}

func TestCreateShortRefRetriesCollisions(t *testing.T) {
	s, _ := newTestStore(t, RefShort, "AAAA", "AAAA", "BBBB")

	first, _, err := s.Create(1, nil)
	require.NoError(t, err)
	second, _, err := s.Create(2, nil)
	require.NoError(t, err)

	assert.Equal(t, "GG_AAAA", first.Ref)
	assert.Equal(t, "GG_BBBB", second.Ref)
}

func TestCreateExhaustedRefs(t *testing.T) {
	s, _ := newTestStore(t, RefShort, "AAAA")
	_, _, err := s.Create(1, nil)
	require.NoError(t, err)

	_, _, err = s.Create(2, nil)
	assert.ErrorIs(t, err, ErrRefExhausted)
	_, ok := s.Get(2)
	assert.False(t, ok)
}

func TestCreateReplacesAndReleasesRef(t *testing.T) {
	s, _ := newTestStore(t, RefShort, "AAAA", "BBBB")
	old, _, err := s.Create(1, nil)
	require.NoError(t, err)

	fresh, replaced, err := s.Create(1, nil)
	require.NoError(t, err)
	require.NotNil(t, replaced)
	assert.Equal(t, old.Ref, replaced.Ref)

	_, ok := s.GetByRef(old.Ref)
	assert.False(t, ok)
	got, ok := s.GetByRef(fresh.Ref)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.CustomerID)
	assert.Equal(t, 1, s.Len())
}

func TestUpdateCommitsOnlyOnSuccess(t *testing.T) {
	s, _ := newTestStore(t, RefRich)
	created, _, err := s.Create(7, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.UpdateByRef(created.Ref, func(sess *Session) error {
		sess.Status = StatusCanceled
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, _ := s.Get(7)
	assert.Equal(t, StatusAwaitingPayment, got.Status)

	updated, err := s.Update(7, func(sess *Session) error {
		sess.Status = StatusAwaitingReceipt
		sess.Method = MethodBank
		sess.CustomerID = 99
		sess.Ref = "GG_HACK"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingReceipt, updated.Status)
	assert.Equal(t, int64(7), updated.CustomerID)
	assert.Equal(t, created.Ref, updated.Ref)

	_, err = s.Update(8, func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupersededRefsOnlyGrow(t *testing.T) {
	s, _ := newTestStore(t, RefRich)
	_, _, err := s.Create(7, func(sess *Session) { sess.SupersededRefs = []string{"GG_OLD1"} })
	require.NoError(t, err)

	got, err := s.Update(7, func(sess *Session) error {
		sess.SupersededRefs = nil
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"GG_OLD1"}, got.SupersededRefs)

	got, err = s.Update(7, func(sess *Session) error {
		sess.SupersededRefs = append(sess.SupersededRefs, "GG_OLD2")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"GG_OLD1", "GG_OLD2"}, got.SupersededRefs)
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	s, _ := newTestStore(t, RefRich)
	_, _, err := s.Create(7, func(sess *Session) { sess.ExcludedDrivers = []int64{1} })
	require.NoError(t, err)

	got, _ := s.Get(7)
	got.ExcludedDrivers[0] = 100
	got.Status = StatusDelivered

	again, _ := s.Get(7)
	assert.Equal(t, []int64{1}, again.ExcludedDrivers)
	assert.Equal(t, StatusAwaitingPayment, again.Status)
}

func TestArmAndSupersedeTimer(t *testing.T) {
	s, clock := newTestStore(t, RefRich)
	created, _, err := s.Create(7, nil)
	require.NoError(t, err)

	fired := make(chan uint64, 2)
	var firstID uint64
	_, err = s.Update(7, func(sess *Session) error {
		s.Arm(&sess.Approval, time.Minute, func(id uint64) { fired <- id })
		firstID = sess.Approval.id
		return nil
	})
	require.NoError(t, err)

	got, err := s.Update(7, func(sess *Session) error {
		s.Arm(&sess.Approval, 2*time.Minute, func(id uint64) { fired <- id })
		return nil
	})
	require.NoError(t, err)
	assert.False(t, got.Approval.Is(firstID))

	clock.Advance(2 * time.Minute)
	select {
	case id := <-fired:
		cur, _ := s.GetByRef(created.Ref)
		assert.True(t, cur.Approval.Is(id))
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Empty(t, fired)
}

func TestDeleteStopsTimers(t *testing.T) {
	s, clock := newTestStore(t, RefRich)
	created, _, err := s.Create(7, nil)
	require.NoError(t, err)

	fired := make(chan struct{}, 1)
	_, err = s.Update(7, func(sess *Session) error {
		s.Arm(&sess.Driver, time.Minute, func(uint64) { fired <- struct{}{} })
		return nil
	})
	require.NoError(t, err)

	_, ok := s.DeleteByRef(created.Ref)
	require.True(t, ok)
	clock.Advance(time.Hour)

	select {
	case <-fired:
		t.Fatal("timer fired after delete")
	case <-time.After(50 * time.Millisecond):
	}
	_, ok = s.Get(7)
	assert.False(t, ok)
	_, ok = s.Delete(7)
	assert.False(t, ok)
}

func TestExpiryChecks(t *testing.T) {
	s, clock := newTestStore(t, RefRich)
	created, _, err := s.Create(7, nil)
	require.NoError(t, err)

	clock.Advance(DefaultButtonTTL + time.Second)
	assert.True(t, s.ButtonExpired(created))
	assert.False(t, s.TTLExpired(created))

	clock.Advance(DefaultSessionTTL)
	assert.True(t, s.TTLExpired(created))
}

func TestSweepKeepsAssignedSessions(t *testing.T) {
	s, clock := newTestStore(t, RefRich)
	for id := int64(1); id <= 3; id++ {
		_, _, err := s.Create(id, nil)
		require.NoError(t, err)
	}
	_, err := s.Update(2, func(sess *Session) error {
		sess.Status = StatusAssigned
		sess.AssignedDriverID = 500
		return nil
	})
	require.NoError(t, err)

	clock.Advance(DefaultSessionTTL + time.Minute)
	_, _, err = s.Create(4, nil)
	require.NoError(t, err)

	removed := s.Sweep()
	ids := make([]int64, 0, len(removed))
	for _, r := range removed {
		ids = append(ids, r.CustomerID)
		_, ok := s.GetByRef(r.Ref)
		assert.False(t, ok, r.Ref)
	}
	assert.ElementsMatch(t, []int64{1, 3}, ids)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, map[Status]int{StatusAssigned: 1, StatusAwaitingPayment: 1}, s.Counts())
}

func TestListOrderedByCreation(t *testing.T) {
	s, clock := newTestStore(t, RefRich)
	for id := int64(3); id >= 1; id-- {
		_, _, err := s.Create(id, nil)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{list[0].CustomerID, list[1].CustomerID, list[2].CustomerID})
}

func TestConcurrentCreateKeepsIndexConsistent(t *testing.T) {
	s, _ := newTestStore(t, RefRich)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _, err := s.Create(id%10, nil)
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.refs, 10)
	for ref, id := range s.refs {
		assert.Equal(t, ref, s.sessions[id].Ref, fmt.Sprint(id))
	}
}

func TestScheduleSweep(t *testing.T) {
	s, clock := newTestStore(t, RefRich)
	_, _, err := s.Create(1, nil)
	require.NoError(t, err)
	clock.Advance(DefaultSessionTTL + time.Minute)

	sched, err := gocron.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })

	swept := make(chan []Session, 1)
	job, err := s.ScheduleSweep(sched, time.Hour, func(removed []Session) { swept <- removed })
	require.NoError(t, err)
	assert.Equal(t, SweepJobName, job.Name())

	sched.Start()
	require.NoError(t, job.RunNow())

	select {
	case removed := <-swept:
		require.Len(t, removed, 1)
		assert.Equal(t, int64(1), removed[0].CustomerID)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
	assert.Zero(t, s.Len())
}

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusAwaitingReview, StatusApprovedHold))
	assert.True(t, CanTransition(StatusAssigned, StatusDispatching))
	assert.False(t, CanTransition(StatusDelivered, StatusCanceled))
	assert.False(t, CanTransition(StatusDispatching, StatusDelivered))
	for from := range AllowedTransitions {
		assert.False(t, from.Terminal(), from)
		assert.True(t, CanTransition(from, StatusCanceled), from)
	}
}

func TestParseHelpers(t *testing.T) {
	m, ok := ParseMethod("TELEBIRR")
	assert.True(t, ok)
	assert.Equal(t, MethodTelebirr, m)
	_, ok = ParseMethod("cash")
	assert.False(t, ok)

	assert.Equal(t, RefShort, ParseRefStyle(" Short "))
	assert.Equal(t, RefRich, ParseRefStyle(""))
	assert.Regexp(t, `^[0-9A-Z]{4}$`, RandomSuffix())
}
