package room

import (
	"sort"
	"sync"

	"ws-class-server/pkg/types"
)

// Registry maps class ids to live rooms. It also hands out the per-class
// locks that serialize every mutation of one room, and keeps a reverse
// index from connection to the classes it is bound to so disconnects do
// not have to scan every room.
type Registry struct {
	lock     sync.RWMutex
	rooms    map[string]*Room
	bindings map[types.ConnectionID]map[string]struct{}

	locksMu sync.Mutex
	locks   map[string]*classLock
}

type classLock struct {
	sync.Mutex
	refs int
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		bindings: make(map[types.ConnectionID]map[string]struct{}),
		locks:    make(map[string]*classLock),
	}
}

// Lock acquires the class lock for classID and returns its release func.
// Rooms of different classes never contend.
func (r *Registry) Lock(classID string) func() {
	r.locksMu.Lock()
	l, ok := r.locks[classID]
	if !ok {
		l = &classLock{}
		r.locks[classID] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, classID)
		}
		r.locksMu.Unlock()
	}
}

func (r *Registry) Get(classID string) (*Room, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	rm, ok := r.rooms[classID]
	return rm, ok
}

// GetOrCreate returns the live room for classID, building a fresh started
// room when there is none. The bool reports whether a room was created.
func (r *Registry) GetOrCreate(classID, teacherID string) (*Room, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if rm, ok := r.rooms[classID]; ok {
		return rm, false
	}
	rm := newRoom(classID, teacherID)
	r.rooms[classID] = rm
	return rm, true
}

// Remove deletes the room and every reverse index entry pointing at it.
func (r *Registry) Remove(classID string) (*Room, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	rm, ok := r.rooms[classID]
	if !ok {
		return nil, false
	}
	delete(r.rooms, classID)
	for conn, classes := range r.bindings {
		delete(classes, classID)
		if len(classes) == 0 {
			delete(r.bindings, conn)
		}
	}
	return rm, true
}

func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.rooms)
}

// Bind records that conn participates in classID.
func (r *Registry) Bind(conn types.ConnectionID, classID string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	classes, ok := r.bindings[conn]
	if !ok {
		classes = make(map[string]struct{})
		r.bindings[conn] = classes
	}
	classes[classID] = struct{}{}
}

// Release drops conn from the reverse index and returns the classes it was
// bound to, sorted for a stable cleanup order.
func (r *Registry) Release(conn types.ConnectionID) []string {
	r.lock.Lock()
	classes := r.bindings[conn]
	delete(r.bindings, conn)
	r.lock.Unlock()

	ids := make([]string, 0, len(classes))
	for id := range classes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) ClassesFor(conn types.ConnectionID) []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ids := make([]string, 0, len(r.bindings[conn]))
	for id := range r.bindings[conn] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
