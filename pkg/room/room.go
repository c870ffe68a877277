package room

import (
	"time"

	"ws-class-server/pkg/types"
)

type LifecycleState string

const (
	StateNotStarted LifecycleState = "not-started"
	StateStarted    LifecycleState = "started"
	StatePaused     LifecycleState = "paused"
	StateEnded      LifecycleState = "ended"
)

type Teacher struct {
	ParticipantID string
	// empty while the teacher is disconnected
	Connection        types.ConnectionID
	State             LifecycleState
	ProducerTransport Handle
	ConsumerTransport Handle
	Producers         MediaPair
}

func (t *Teacher) Connected() bool {
	return t.Connection != ""
}

type Student struct {
	ID string
	// empty while the student is disconnected
	Connection        types.ConnectionID
	IsProducer        bool
	ProducerTransport Handle
	ConsumerTransport Handle
	Producers         MediaPair
	// the student's own view of the teacher
	TeacherFeed MediaPair
	// the teacher's view of this student, allocated on the teacher's consumer transport
	TeacherConsumers MediaPair
	// keyed by the id of the peer being viewed
	PeerConsumers map[string]*MediaPair
}

func (s *Student) Connected() bool {
	return s.Connection != ""
}

func (s *Student) PeerConsumer(peerID string) *MediaPair {
	pair, ok := s.PeerConsumers[peerID]
	if !ok {
		pair = &MediaPair{}
		s.PeerConsumers[peerID] = pair
	}
	return pair
}

// Room is the live state of one class. Callers must hold the class lock
// from Registry.Lock while reading or mutating it.
type Room struct {
	ID        string
	CreatedAt time.Time
	Teacher   Teacher

	studentIDs []string
	students   map[string]*Student
}

func newRoom(classID, teacherID string) *Room {
	return &Room{
		ID:        classID,
		CreatedAt: time.Now(),
		Teacher: Teacher{
			ParticipantID: teacherID,
			State:         StateStarted,
		},
		students: make(map[string]*Student),
	}
}

func (r *Room) Student(id string) (*Student, bool) {
	s, ok := r.students[id]
	return s, ok
}

// AddStudent returns the student with id, creating it when absent.
func (r *Room) AddStudent(id string) (*Student, bool) {
	if s, ok := r.students[id]; ok {
		return s, false
	}
	s := &Student{
		ID:            id,
		PeerConsumers: make(map[string]*MediaPair),
	}
	r.students[id] = s
	r.studentIDs = append(r.studentIDs, id)
	return s, true
}

// Students returns every student in join order.
func (r *Room) Students() []*Student {
	list := make([]*Student, 0, len(r.studentIDs))
	for _, id := range r.studentIDs {
		list = append(list, r.students[id])
	}
	return list
}

// ConnectedStudents returns connected students in join order, skipping exceptID.
func (r *Room) ConnectedStudents(exceptID string) []*Student {
	var list []*Student
	for _, id := range r.studentIDs {
		s := r.students[id]
		if s.Connected() && id != exceptID {
			list = append(list, s)
		}
	}
	return list
}

func (r *Room) StudentByConnection(conn types.ConnectionID) (*Student, bool) {
	if conn == "" {
		return nil, false
	}
	for _, id := range r.studentIDs {
		if s := r.students[id]; s.Connection == conn {
			return s, true
		}
	}
	return nil, false
}

func (r *Room) StudentCount() int {
	return len(r.studentIDs)
}
