package signaling

import (
	"context"

	"ws-class-server/pkg/room"
	"ws-class-server/pkg/types"
)

func (d *Dispatcher) startClass(ctx context.Context, conn types.ConnectionID, req *request) (*reply, error) {
	details, err := d.directory.GetClass(ctx, req.ClassID)
	if err != nil {
		return nil, directoryError(req.ClassID, err)
	}
	if details.Ended() {
		return nil, invalidState("class %s has already ended", req.ClassID)
	}

	info, err := d.createProducerTransport(ctx)
	if err != nil {
		return nil, err
	}

	unlock := d.registry.Lock(req.ClassID)
	defer unlock()

	rm, created := d.registry.GetOrCreate(req.ClassID, details.Teacher.ID)
	if created {
		d.logger.Infow("class created", "classId", req.ClassID, "teacherId", details.Teacher.ID)
	}

	d.replace(&rm.Teacher.ProducerTransport, info.ID, "transport")
	rm.Teacher.State = room.StateStarted
	rm.Teacher.Connection = conn
	d.registry.Bind(conn, req.ClassID)

	d.notifyWaiting(req.ClassID)
	d.logger.Infow("class started", "classId", req.ClassID, "connectionId", conn)

	return &reply{EventClassStarted, info}, nil
}

// notifyWaiting tells every connection parked on classID that the teacher
// is live, then forgets them. Callers hold the class lock.
func (d *Dispatcher) notifyWaiting(classID string) {
	for _, waiting := range d.waiting.Drain(classID) {
		d.send(waiting, EventTeacherStartedClass, nil)
	}
}

func (d *Dispatcher) connectTeacherProducer(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	rm, unlock, err := d.lockedRoom(req.ClassID)
	if err != nil {
		return nil, err
	}
	transportID, err := handleID(&rm.Teacher.ProducerTransport, "teacher producer transport")
	unlock()
	if err != nil {
		return nil, err
	}

	if err := d.connectTransport(ctx, transportID, req.ConnectParams); err != nil {
		return nil, err
	}
	return &reply{EventTeacherProducerConnected, nil}, nil
}

func (d *Dispatcher) teacherProduce(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	rm, unlock, err := d.lockedRoom(req.ClassID)
	if err != nil {
		return nil, err
	}
	transportID, err := handleID(&rm.Teacher.ProducerTransport, "teacher producer transport")
	unlock()
	if err != nil {
		return nil, err
	}

	id, err := d.produce(ctx, transportID, req.Kind, *req.RtpParameters)
	if err != nil {
		return nil, err
	}
	if unlock, err = d.relock(rm); err != nil {
		d.closeID(id, "producer")
		return nil, err
	}
	defer unlock()
	if !rm.Teacher.ProducerTransport.Holds(transportID) {
		d.closeID(id, "producer")
		return nil, invalidState("teacher producer transport was replaced")
	}

	d.replace(rm.Teacher.Producers.Get(req.Kind), id, "producer")
	d.logger.Infow("teacher producing", "classId", req.ClassID, "kind", req.Kind, "producerId", id)

	return &reply{EventTeacherProduced, producedPayload{ID: id}}, nil
}

func (d *Dispatcher) teacherConnectWithStudents(_ context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	rm, unlock, err := d.lockedRoom(req.ClassID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d.notifyWaiting(req.ClassID)
	for _, s := range rm.ConnectedStudents("") {
		d.send(rm.Teacher.Connection, EventNewStudentJoined, studentPayload{StudentID: s.ID})
		d.send(s.Connection, EventTeacherConnectAgain, nil)
	}
	return nil, nil
}

func (d *Dispatcher) createTeacherConsumer(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	rm, unlock, err := d.lockedRoom(req.ClassID)
	if err != nil {
		return nil, err
	}
	unlock()

	info, err := d.createTransport(ctx)
	if err != nil {
		return nil, err
	}
	if unlock, err = d.relock(rm); err != nil {
		d.closeID(info.ID, "transport")
		return nil, err
	}
	defer unlock()

	d.replace(&rm.Teacher.ConsumerTransport, info.ID, "transport")
	return &reply{EventTeacherConsumerCreated, info}, nil
}

func (d *Dispatcher) connectTeacherConsumer(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	rm, unlock, err := d.lockedRoom(req.ClassID)
	if err != nil {
		return nil, err
	}
	transportID, err := handleID(&rm.Teacher.ConsumerTransport, "teacher consumer transport")
	unlock()
	if err != nil {
		return nil, err
	}

	if err := d.connectTransport(ctx, transportID, req.ConnectParams); err != nil {
		return nil, err
	}
	return &reply{EventTeacherConsumerConnected, nil}, nil
}

func (d *Dispatcher) consumeStudentVideo(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	otherID := req.other()
	rm, s, unlock, err := d.lockedStudent(req.ClassID, otherID)
	if err != nil {
		return nil, err
	}
	transportID, err := handleID(&rm.Teacher.ConsumerTransport, "teacher consumer transport")
	sources := s.Producers.Snapshot()
	unlock()
	if err != nil {
		return nil, err
	}

	legs, err := d.consume(ctx, transportID, sources, *req.RtpCapabilities)
	if err != nil {
		return nil, err
	}
	if unlock, err = d.relockStudent(rm, s); err != nil {
		d.discardConsumers(legs)
		return nil, err
	}
	defer unlock()
	if !rm.Teacher.ConsumerTransport.Holds(transportID) || !s.Producers.Matches(sources) {
		d.discardConsumers(legs)
		return nil, invalidState("student %s media changed while consuming", otherID)
	}

	d.storeConsumers(&s.TeacherConsumers, legs)
	return &reply{EventConsumedStudent, newConsumedPayload(legs, otherID)}, nil
}

func (d *Dispatcher) resumeStudentVideoForTeacher(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	_, s, unlock, err := d.lockedStudent(req.ClassID, req.other())
	if err != nil {
		return nil, err
	}
	ids, err := resumable(&s.TeacherConsumers)
	unlock()
	if err != nil {
		return nil, err
	}

	if err := d.resume(ctx, ids); err != nil {
		return nil, err
	}
	return &reply{EventStudentVideoResumedForTeacher, nil}, nil
}

// endClass closes every media object of the room and drops the room, its
// waiting queue and its whiteboard. Ending a class that is not live fails.
func (d *Dispatcher) endClass(ctx context.Context, conn types.ConnectionID, req *request) (*reply, error) {
	rm, unlock, err := d.lockedRoom(req.ClassID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := d.directory.MarkEnded(ctx, req.ClassID); err != nil {
		return nil, directoryError(req.ClassID, err)
	}

	for _, s := range rm.Students() {
		for peerID, pair := range s.PeerConsumers {
			d.closePair(pair, "consumer")
			delete(s.PeerConsumers, peerID)
		}
		d.closePair(&s.TeacherFeed, "consumer")
		d.closePair(&s.TeacherConsumers, "consumer")
		d.closePair(&s.Producers, "producer")
		d.closeHandle(&s.ConsumerTransport, "transport")
		d.closeHandle(&s.ProducerTransport, "transport")

		d.send(s.Connection, EventClassEnded, nil)
	}
	d.closePair(&rm.Teacher.Producers, "producer")
	d.closeHandle(&rm.Teacher.ConsumerTransport, "transport")
	d.closeHandle(&rm.Teacher.ProducerTransport, "transport")
	rm.Teacher.State = room.StateEnded

	d.registry.Remove(req.ClassID)
	d.waiting.Drain(req.ClassID)
	if err := d.boards.Delete(ctx, req.ClassID); err != nil {
		d.logger.Warnw("could not delete whiteboard", "classId", req.ClassID, "error", err)
	}
	d.logger.Infow("class ended", "classId", req.ClassID, "connectionId", conn, "students", rm.StudentCount())

	return &reply{EventClassEnded, nil}, nil
}
