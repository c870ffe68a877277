package signaling

import (
	"context"

	"ws-class-server/pkg/room"
	"ws-class-server/pkg/types"
)

// listeningTeacher parks conn until the teacher starts the class. When the
// class is already running the connection is told right away instead.
func (d *Dispatcher) listeningTeacher(_ context.Context, conn types.ConnectionID, req *request) (*reply, error) {
	unlock := d.registry.Lock(req.ClassID)
	defer unlock()

	if rm, ok := d.registry.Get(req.ClassID); ok && rm.Teacher.State == room.StateStarted && rm.Teacher.Connected() {
		d.send(conn, EventTeacherStartedClass, nil)
		return nil, nil
	}
	d.waiting.Join(req.ClassID, conn)
	return nil, nil
}

func (d *Dispatcher) getClassDetails(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	details, err := d.directory.GetClass(ctx, req.ClassID)
	if err != nil {
		return nil, directoryError(req.ClassID, err)
	}

	state := room.StateNotStarted
	unlock := d.registry.Lock(req.ClassID)
	if rm, ok := d.registry.Get(req.ClassID); ok {
		state = rm.Teacher.State
	}
	unlock()
	if details.Ended() {
		state = room.StateEnded
	}
	return &reply{EventTakeClassDetails, classDetailsPayload{ClassDetails: details, State: string(state)}}, nil
}

// createStudentConsumer registers the participant on first sight and always
// hands out a fresh consumer transport, closing the one it supersedes.
func (d *Dispatcher) createStudentConsumer(ctx context.Context, conn types.ConnectionID, req *request) (*reply, error) {
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

	s, created := rm.AddStudent(req.participant())
	if created {
		d.logger.Infow("student joined", "classId", req.ClassID, "participantId", s.ID)
	}
	d.replace(&s.ConsumerTransport, info.ID, "transport")
	s.Connection = conn
	d.registry.Bind(conn, req.ClassID)

	return &reply{EventStudentConsumerCreated, info}, nil
}

func (d *Dispatcher) connectStudentConsumer(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	_, s, unlock, err := d.lockedStudent(req.ClassID, req.participant())
	if err != nil {
		return nil, err
	}
	transportID, err := handleID(&s.ConsumerTransport, "student consumer transport")
	unlock()
	if err != nil {
		return nil, err
	}

	if err := d.connectTransport(ctx, transportID, req.ConnectParams); err != nil {
		return nil, err
	}
	return &reply{EventStudentConsumerConnected, nil}, nil
}

func (d *Dispatcher) consumeTeacherVideo(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	rm, s, unlock, err := d.lockedStudent(req.ClassID, req.participant())
	if err != nil {
		return nil, err
	}
	transportID, err := handleID(&s.ConsumerTransport, "student consumer transport")
	sources := rm.Teacher.Producers.Snapshot()
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
	if !s.ConsumerTransport.Holds(transportID) || !rm.Teacher.Producers.Matches(sources) {
		d.discardConsumers(legs)
		return nil, invalidState("teacher media changed while consuming")
	}

	d.storeConsumers(&s.TeacherFeed, legs)
	return &reply{EventConsumedTeacher, newConsumedPayload(legs, "")}, nil
}

func (d *Dispatcher) resumeTeacher(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	_, s, unlock, err := d.lockedStudent(req.ClassID, req.participant())
	if err != nil {
		return nil, err
	}
	ids, err := resumable(&s.TeacherFeed)
	unlock()
	if err != nil {
		return nil, err
	}

	if err := d.resume(ctx, ids); err != nil {
		return nil, err
	}
	return &reply{EventTeacherResumed, nil}, nil
}

func (d *Dispatcher) startStudentVideo(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	rm, s, unlock, err := d.lockedStudent(req.ClassID, req.participant())
	if err != nil {
		return nil, err
	}
	unlock()

	info, err := d.createProducerTransport(ctx)
	if err != nil {
		return nil, err
	}
	if unlock, err = d.relockStudent(rm, s); err != nil {
		d.closeID(info.ID, "transport")
		return nil, err
	}
	defer unlock()

	d.replace(&s.ProducerTransport, info.ID, "transport")
	return &reply{EventStartedStudentVideo, info}, nil
}

func (d *Dispatcher) connectStudentProducer(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	_, s, unlock, err := d.lockedStudent(req.ClassID, req.participant())
	if err != nil {
		return nil, err
	}
	transportID, err := handleID(&s.ProducerTransport, "student producer transport")
	unlock()
	if err != nil {
		return nil, err
	}

	if err := d.connectTransport(ctx, transportID, req.ConnectParams); err != nil {
		return nil, err
	}
	return &reply{EventStudentProducerConnected, nil}, nil
}

// studentProduce stores the producer. The audio leg is the ready signal:
// once it exists the student is announced to the teacher and to every other
// connected student.
func (d *Dispatcher) studentProduce(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	rm, s, unlock, err := d.lockedStudent(req.ClassID, req.participant())
	if err != nil {
		return nil, err
	}
	transportID, err := handleID(&s.ProducerTransport, "student producer transport")
	unlock()
	if err != nil {
		return nil, err
	}

	id, err := d.produce(ctx, transportID, req.Kind, *req.RtpParameters)
	if err != nil {
		return nil, err
	}
	if unlock, err = d.relockStudent(rm, s); err != nil {
		d.closeID(id, "producer")
		return nil, err
	}
	defer unlock()
	if !s.ProducerTransport.Holds(transportID) {
		d.closeID(id, "producer")
		return nil, invalidState("student producer transport was replaced")
	}

	d.replace(s.Producers.Get(req.Kind), id, "producer")
	s.IsProducer = true

	if req.Kind == types.MediaKindAudio {
		announce := studentPayload{StudentID: s.ID}
		if rm.Teacher.Connected() {
			d.send(rm.Teacher.Connection, EventNewStudentJoined, announce)
		}
		d.broadcastStudents(rm, s.ID, EventNewOtherStudent, announce)
		d.logger.Infow("student producing", "classId", req.ClassID, "participantId", s.ID)
	}
	return &reply{EventStudentProduced, producedPayload{ID: id}}, nil
}

func (d *Dispatcher) consumeOtherStudentVideo(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	otherID := req.other()
	rm, s, unlock, err := d.lockedStudent(req.ClassID, req.participant())
	if err != nil {
		return nil, err
	}
	peer, ok := rm.Student(otherID)
	if !ok {
		unlock()
		return nil, notFound("student %s is not in class %s", otherID, req.ClassID)
	}
	transportID, err := handleID(&s.ConsumerTransport, "student consumer transport")
	sources := peer.Producers.Snapshot()
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
	if current, ok := rm.Student(otherID); !ok || current != peer ||
		!s.ConsumerTransport.Holds(transportID) || !peer.Producers.Matches(sources) {
		d.discardConsumers(legs)
		return nil, invalidState("student %s media changed while consuming", otherID)
	}

	d.storeConsumers(s.PeerConsumer(otherID), legs)
	return &reply{EventOtherStudentConsumed, newConsumedPayload(legs, otherID)}, nil
}

func (d *Dispatcher) resumeOtherStudentVideo(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	_, s, unlock, err := d.lockedStudent(req.ClassID, req.participant())
	if err != nil {
		return nil, err
	}
	ids, err := resumable(s.PeerConsumers[req.other()])
	unlock()
	if err != nil {
		return nil, err
	}

	if err := d.resume(ctx, ids); err != nil {
		return nil, err
	}
	return &reply{EventOtherStudentResumed, nil}, nil
}

// getAlreadyJoinedStudents lists the connected peers already sending video.
func (d *Dispatcher) getAlreadyJoinedStudents(_ context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	rm, unlock, err := d.lockedRoom(req.ClassID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ids := []string{}
	for _, s := range rm.ConnectedStudents(req.participant()) {
		if s.Producers.Video.IsActive() {
			ids = append(ids, s.ID)
		}
	}
	return &reply{EventGotAlreadyJoinedStudents, ids}, nil
}
