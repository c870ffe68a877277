package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ws-class-server/pkg/types"
)

func TestHandleLifecycle(t *testing.T) {
	var h Handle
	_, ok := h.ID()
	require.False(t, ok)
	require.Equal(t, "empty", h.String())

	// taking an empty handle is a no-op
	_, ok = h.Take()
	require.False(t, ok)
	require.False(t, h.IsClosed())

	h.Set("transport-1")
	id, ok := h.ID()
	require.True(t, ok)
	require.Equal(t, "transport-1", id)

	id, ok = h.Take()
	require.True(t, ok)
	require.Equal(t, "transport-1", id)
	require.True(t, h.IsClosed())

	_, ok = h.Take()
	require.False(t, ok)
}

func TestMediaPairTakeAll(t *testing.T) {
	pair := MediaPair{Video: ActiveHandle("v")}
	require.True(t, pair.AnyActive())
	require.Equal(t, []string{"v"}, pair.TakeAll())
	require.False(t, pair.AnyActive())
	require.Empty(t, pair.TakeAll())

	pair.Get(types.MediaKindAudio).Set("a")
	require.True(t, pair.Audio.IsActive())
}

func TestMediaPairSnapshot(t *testing.T) {
	pair := MediaPair{Video: ActiveHandle("v1"), Audio: ActiveHandle("a1")}
	snapshot := pair.Snapshot()
	require.Equal(t, map[types.MediaKind]string{types.MediaKindVideo: "v1", types.MediaKindAudio: "a1"}, snapshot)
	require.True(t, pair.Matches(snapshot))
	require.True(t, pair.Video.Holds("v1"))
	require.False(t, pair.Video.Holds("a1"))

	pair.Video.Set("v2")
	require.False(t, pair.Matches(snapshot))

	pair.Audio.Take()
	require.False(t, pair.Audio.Holds("a1"))
	require.Equal(t, map[types.MediaKind]string{types.MediaKindVideo: "v2"}, pair.Snapshot())
	require.True(t, MediaPair{}.Matches(map[types.MediaKind]string{}))
}

func TestRoomStudents(t *testing.T) {
	r := newRoom("class-1", "teacher-1")
	require.Equal(t, StateStarted, r.Teacher.State)

	s1, created := r.AddStudent("s1")
	require.True(t, created)
	s1.Connection = "c1"
	_, created = r.AddStudent("s1")
	require.False(t, created)
	s2, _ := r.AddStudent("s2")
	s3, _ := r.AddStudent("s3")
	s3.Connection = "c3"

	require.Equal(t, 3, r.StudentCount())
	require.Equal(t, []*Student{s1, s2, s3}, r.Students())
	require.Equal(t, []*Student{s3}, r.ConnectedStudents("s1"))

	found, ok := r.StudentByConnection("c3")
	require.True(t, ok)
	require.Same(t, s3, found)
	_, ok = r.StudentByConnection("")
	require.False(t, ok)

	pair := s2.PeerConsumer("s1")
	require.Same(t, pair, s2.PeerConsumer("s1"))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Get("class-1")
	require.False(t, ok)

	r1, created := reg.GetOrCreate("class-1", "teacher-1")
	require.True(t, created)
	r2, created := reg.GetOrCreate("class-1", "someone-else")
	require.False(t, created)
	require.Same(t, r1, r2)
	require.Equal(t, "teacher-1", r2.Teacher.ParticipantID)

	reg.Bind("conn-a", "class-1")
	reg.Bind("conn-a", "class-2")
	require.Equal(t, []string{"class-1", "class-2"}, reg.ClassesFor("conn-a"))

	removed, ok := reg.Remove("class-1")
	require.True(t, ok)
	require.Same(t, r1, removed)
	require.Equal(t, []string{"class-2"}, reg.ClassesFor("conn-a"))
	_, ok = reg.Remove("class-1")
	require.False(t, ok)

	require.Equal(t, []string{"class-2"}, reg.Release("conn-a"))
	require.Empty(t, reg.ClassesFor("conn-a"))
	require.Equal(t, 0, reg.Len())
}

func TestRegistryClassLockSerializes(t *testing.T) {
	reg := NewRegistry()

	unlock := reg.Lock("class-1")
	acquired := make(chan struct{})
	go func() {
		release := reg.Lock("class-1")
		close(acquired)
		release()
	}()

	// a different class is never blocked
	other := reg.Lock("class-2")
	other()

	select {
	case <-acquired:
		t.Fatal("class lock acquired twice")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	<-acquired

	reg.locksMu.Lock()
	require.Empty(t, reg.locks)
	reg.locksMu.Unlock()
}

func TestRegistryConcurrentGetOrCreate(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	rooms := make([]*Room, 20)
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i], _ = reg.GetOrCreate("class-1", "teacher-1")
		}(i)
	}
	wg.Wait()
	for _, r := range rooms {
		require.Same(t, rooms[0], r)
	}
}

func TestWaitingQueue(t *testing.T) {
	q := NewWaitingQueue()
	require.True(t, q.Join("class-1", "a"))
	require.False(t, q.Join("class-1", "a"))
	require.True(t, q.Join("class-1", "b"))
	require.True(t, q.Join("class-2", "a"))
	require.Equal(t, 3, q.Total())

	q.Remove("a")
	require.Equal(t, []types.ConnectionID{"b"}, q.Waiting("class-1"))
	require.Empty(t, q.Waiting("class-2"))

	require.Equal(t, []types.ConnectionID{"b"}, q.Drain("class-1"))
	require.Empty(t, q.Drain("class-1"))
	require.Equal(t, 0, q.Total())
}
