package signaling

import (
	"ws-class-server/pkg/room"
	"ws-class-server/pkg/types"
)

// HandleDisconnect reconciles room state after conn is lost. The connection
// is looked up through the registry's reverse index; a connection holds at
// most one role per room, checked teacher first.
func (d *Dispatcher) HandleDisconnect(conn types.ConnectionID) {
	d.metrics.Disconnected()
	d.waiting.Remove(conn)

	for _, classID := range d.registry.Release(conn) {
		d.reconcileRoom(classID, conn)
	}
}

func (d *Dispatcher) reconcileRoom(classID string, conn types.ConnectionID) {
	unlock := d.registry.Lock(classID)
	defer unlock()

	rm, ok := d.registry.Get(classID)
	if !ok {
		return
	}

	if rm.Teacher.Connection == conn {
		d.logger.Infow("teacher disconnected", "classId", classID, "connectionId", conn)
		rm.Teacher.Connection = ""
		rm.Teacher.State = room.StatePaused
		d.closeHandle(&rm.Teacher.ProducerTransport, "transport")
		d.broadcastStudents(rm, "", EventTeacherTemporaryDisconnected, nil)
		return
	}

	s, ok := rm.StudentByConnection(conn)
	if !ok {
		return
	}
	d.logger.Infow("student disconnected", "classId", classID, "participantId", s.ID, "connectionId", conn)
	s.Connection = ""
	d.closeHandle(&s.ProducerTransport, "transport")
	d.closeHandle(&s.ConsumerTransport, "transport")

	gone := studentPayload{StudentID: s.ID}
	if rm.Teacher.Connected() {
		d.send(rm.Teacher.Connection, EventStudentDisconnected, gone)
	}
	d.broadcastStudents(rm, s.ID, EventOtherStudentDisconnected, gone)
}
