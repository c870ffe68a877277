package signaling

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ws-class-server/pkg/metrics"
	"ws-class-server/pkg/room"
	"ws-class-server/pkg/types"
	"ws-class-server/pkg/whiteboard"
)

const defaultMediaTimeout = 10 * time.Second

type Params struct {
	Registry  *room.Registry
	Waiting   *room.WaitingQueue
	Boards    whiteboard.Store
	Engine    MediaEngine
	Directory ClassDirectory
	Sink      MessageSink
	Logger    *zap.SugaredLogger
	Metrics   *metrics.Metrics

	MediaTimeout       time.Duration
	MaxIncomingBitrate uint64
	// handed to clients with every transport they are given
	IceServers []types.IceServer
}

type handlerFunc func(ctx context.Context, conn types.ConnectionID, req *request) (*reply, error)

type route struct {
	needs  requirement
	handle handlerFunc
}

type reply struct {
	event string
	data  interface{}
}

// Dispatcher routes inbound signaling events to their handlers. Room state of
// one class is only touched under that class's lock; different classes run
// concurrently. Media engine calls run without the lock, so a handler that
// stores their result re-acquires it and validates the room first.
type Dispatcher struct {
	registry  *room.Registry
	waiting   *room.WaitingQueue
	boards    whiteboard.Store
	engine    MediaEngine
	directory ClassDirectory
	sink      MessageSink
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics

	mediaTimeout       time.Duration
	maxIncomingBitrate uint64
	iceServers         []types.IceServer

	routes map[string]route
}

func NewDispatcher(p Params) *Dispatcher {
	d := &Dispatcher{
		registry:           p.Registry,
		waiting:            p.Waiting,
		boards:             p.Boards,
		engine:             p.Engine,
		directory:          p.Directory,
		sink:               p.Sink,
		logger:             p.Logger,
		metrics:            p.Metrics,
		mediaTimeout:       p.MediaTimeout,
		maxIncomingBitrate: p.MaxIncomingBitrate,
		iceServers:         p.IceServers,
	}
	if d.registry == nil {
		d.registry = room.NewRegistry()
	}
	if d.waiting == nil {
		d.waiting = room.NewWaitingQueue()
	}
	if d.boards == nil {
		d.boards = whiteboard.NewMemoryStore()
	}
	if d.logger == nil {
		d.logger = zap.NewNop().Sugar()
	}
	d.logger = d.logger.With("component", "signaling")
	if d.mediaTimeout <= 0 {
		d.mediaTimeout = defaultMediaTimeout
	}

	d.routes = map[string]route{
		EventGetCapabilities:  {0, d.getCapabilities},
		EventGetActiveClasses: {0, d.getActiveClasses},
		EventGetClassDetails:  {needClass, d.getClassDetails},

		EventStartClass:                  {needClass, d.startClass},
		EventConnectTeacherProducer:      {needClass | needDtls, d.connectTeacherProducer},
		EventTeacherProduce:              {needClass | needKind | needRtpParameters, d.teacherProduce},
		EventTeacherConnectWithStudents:  {needClass, d.teacherConnectWithStudents},
		EventCreateTeacherConsumer:       {needClass, d.createTeacherConsumer},
		EventConnectTeacherConsumer:      {needClass | needDtls, d.connectTeacherConsumer},
		EventConsumeStudentVideo:         {needClass | needOther | needRtpCapabilities, d.consumeStudentVideo},
		EventResumeStudentVideoOfTeacher: {needClass | needOther, d.resumeStudentVideoForTeacher},
		EventEndClass:                    {needClass, d.endClass},

		EventListeningTeacher:         {needClass, d.listeningTeacher},
		EventCreateStudentConsumer:    {needClass | needParticipant, d.createStudentConsumer},
		EventConnectStudentConsumer:   {needClass | needParticipant | needDtls, d.connectStudentConsumer},
		EventConsumeTeacherVideo:      {needClass | needParticipant | needRtpCapabilities, d.consumeTeacherVideo},
		EventResumeTeacher:            {needClass | needParticipant, d.resumeTeacher},
		EventStartStudentVideo:        {needClass | needParticipant, d.startStudentVideo},
		EventConnectStudentProducer:   {needClass | needParticipant | needDtls, d.connectStudentProducer},
		EventStudentProduce:           {needClass | needParticipant | needKind | needRtpParameters, d.studentProduce},
		EventConsumeOtherStudentVideo: {needClass | needParticipant | needOther | needRtpCapabilities, d.consumeOtherStudentVideo},
		EventResumeOtherStudentVideo:  {needClass | needParticipant | needOther, d.resumeOtherStudentVideo},
		EventGetAlreadyJoinedStudents: {needClass | needParticipant, d.getAlreadyJoinedStudents},

		EventGetDrawingBoard:    {needClass, d.getDrawingBoard},
		EventSetDrawingConfig:   {needClass, d.setDrawingConfig},
		EventTeacherSendDrawing: {needClass, d.sendDrawing},
		EventClearDrawing:       {needClass, d.clearDrawing},
		EventNewTextbox:         {needClass, d.newTextbox},
	}
	return d
}

func (d *Dispatcher) Registry() *room.Registry {
	return d.registry
}

func (d *Dispatcher) Waiting() *room.WaitingQueue {
	return d.waiting
}

// Handle processes one inbound event. Failures are reported to conn as a
// signaling-error event and never returned.
func (d *Dispatcher) Handle(ctx context.Context, conn types.ConnectionID, msg types.Event) {
	name := msg.Event
	if canonical, ok := eventAliases[name]; ok {
		name = canonical
	}
	r, ok := d.routes[name]
	if !ok {
		d.metrics.EventReceived("unknown")
		d.sendError(conn, msg.Event, badRequest("unknown event %q", msg.Event))
		return
	}
	d.metrics.EventReceived(name)

	defer func() {
		if p := recover(); p != nil {
			d.logger.Errorw("handler panicked", "event", name, "connectionId", conn, "panic", p)
			d.sendError(conn, msg.Event, fmt.Errorf("internal error handling %s", name))
		}
	}()

	req, err := decodeRequest(msg.Data, r.needs)
	if err == nil {
		var res *reply
		res, err = r.handle(ctx, conn, req)
		if err == nil && res != nil {
			d.send(conn, res.event, res.data)
		}
	}
	if err != nil {
		d.logger.Infow("signaling event failed", "event", name, "connectionId", conn, "error", err)
		d.sendError(conn, msg.Event, err)
	}
}

func (d *Dispatcher) send(conn types.ConnectionID, event string, data interface{}) {
	if conn == "" {
		return
	}
	if err := d.sink.Send(conn, event, data); err != nil {
		// the reconciler deals with connections that went away
		d.logger.Debugw("could not deliver event", "event", event, "connectionId", conn, "error", err)
	}
}

func (d *Dispatcher) sendError(conn types.ConnectionID, event string, err error) {
	code := errorCode(err)
	d.metrics.ErrorSent(code)
	d.send(conn, EventSignalingError, ErrorPayload{
		Event:   event,
		Code:    code,
		Message: err.Error(),
	})
}

// broadcastStudents sends to every connected student of rm except exceptID.
func (d *Dispatcher) broadcastStudents(rm *room.Room, exceptID, event string, data interface{}) {
	for _, s := range rm.ConnectedStudents(exceptID) {
		d.send(s.Connection, event, data)
	}
}

func (d *Dispatcher) lockedRoom(classID string) (*room.Room, func(), error) {
	unlock := d.registry.Lock(classID)
	rm, ok := d.registry.Get(classID)
	if !ok {
		unlock()
		return nil, nil, notFound("class %s is not live", classID)
	}
	return rm, unlock, nil
}

func (d *Dispatcher) lockedStudent(classID, participantID string) (*room.Room, *room.Student, func(), error) {
	rm, unlock, err := d.lockedRoom(classID)
	if err != nil {
		return nil, nil, nil, err
	}
	s, ok := rm.Student(participantID)
	if !ok {
		unlock()
		return nil, nil, nil, notFound("student %s is not in class %s", participantID, classID)
	}
	return rm, s, unlock, nil
}

// relock re-acquires the class lock of rm after a media engine call. It
// fails when the class ended or was restarted in the meantime.
func (d *Dispatcher) relock(rm *room.Room) (func(), error) {
	unlock := d.registry.Lock(rm.ID)
	if current, ok := d.registry.Get(rm.ID); !ok || current != rm {
		unlock()
		return nil, notFound("class %s ended", rm.ID)
	}
	return unlock, nil
}

func (d *Dispatcher) relockStudent(rm *room.Room, s *room.Student) (func(), error) {
	unlock, err := d.relock(rm)
	if err != nil {
		return nil, err
	}
	if current, ok := rm.Student(s.ID); !ok || current != s {
		unlock()
		return nil, notFound("student %s left class %s", s.ID, rm.ID)
	}
	return unlock, nil
}
