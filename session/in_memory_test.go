package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.MeetingStore = (*InMemoryStore)(nil)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func endedMeeting(t *testing.T, id string, at time.Time) *core.Meeting {
	t.Helper()
	m := testutil.NewMeetingBuilder("t").ID(id).Agent("a", "").Clock(func() time.Time { return at }).MustBuild(t)
	require.NoError(t, m.Start())
	_, err := m.Finish("done")
	require.NoError(t, err)
	return m
}

func TestInMemoryStore_CRUD(t *testing.T) {
	s := NewInMemoryStore()
	m := testutil.NewMeetingBuilder("t").ID("m1").Agent("a", "").MustBuild(t)

	require.NoError(t, s.Insert(m))
	assert.ErrorIs(t, s.Insert(m), core.ErrConfiguration)

	got, err := s.Get("m1")
	require.NoError(t, err)
	assert.Same(t, m, got)
	assert.Len(t, s.List(), 1)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get("nope")
	assert.ErrorIs(t, err, core.ErrUnknownSession)

	require.NoError(t, s.Delete("m1"))
	assert.ErrorIs(t, s.Delete("m1"), core.ErrUnknownSession)
	assert.Empty(t, s.List())
}

func TestInMemoryStore_ListOrderedByCreation(t *testing.T) {
	s := NewInMemoryStore()
	for i, id := range []string{"c", "a", "b"} {
		at := t0.Add(time.Duration(i) * time.Minute)
		m := testutil.NewMeetingBuilder("t").ID(id).Agent("x", "").Clock(func() time.Time { return at }).MustBuild(t)
		require.NoError(t, s.Insert(m))
	}

	var ids []string
	for _, m := range s.List() {
		ids = append(ids, m.ID())
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestInMemoryStore_AcquireSerialisesOneMeeting(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Insert(testutil.NewMeetingBuilder("t").ID("m1").Agent("a", "").MustBuild(t)))

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.Acquire(context.Background(), "m1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestInMemoryStore_AcquireHonoursContext(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Insert(testutil.NewMeetingBuilder("t").ID("m1").Agent("a", "").MustBuild(t)))
	require.NoError(t, s.Insert(testutil.NewMeetingBuilder("t").ID("m2").Agent("a", "").MustBuild(t)))

	release, err := s.Acquire(context.Background(), "m1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Acquire(ctx, "m1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := s.Acquire(context.Background(), "m2")
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := s.Acquire(context.Background(), "m1")
	require.NoError(t, err)
	again()

	_, err = s.Acquire(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrUnknownSession)
}

func TestInMemoryStore_EvictEnded(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Insert(endedMeeting(t, "old", t0)))
	require.NoError(t, s.Insert(endedMeeting(t, "fresh", t0.Add(50*time.Minute))))
	require.NoError(t, s.Insert(endedMeeting(t, "busy", t0)))
	require.NoError(t, s.Insert(testutil.NewMeetingBuilder("t").ID("live").Agent("a", "").MustBuild(t)))

	release, err := s.Acquire(context.Background(), "busy")
	require.NoError(t, err)

	evicted := s.EvictEnded(t0.Add(time.Hour), 30*time.Minute)
	assert.Equal(t, []string{"old"}, evicted)
	assert.Equal(t, 3, s.Len())

	release()
	evicted = s.EvictEnded(t0.Add(2*time.Hour), 30*time.Minute)
	assert.Equal(t, []string{"busy", "fresh"}, evicted)

	_, err = s.Get("live")
	assert.NoError(t, err)
}
