package signaling

// inbound
const (
	EventGetCapabilities  = "get-capabilities"
	EventGetActiveClasses = "get-active-classes"
	EventGetClassDetails  = "get-class-details"

	EventStartClass                  = "start-class"
	EventConnectTeacherProducer      = "connect-producer-transport-teacher"
	EventTeacherProduce              = "teacher-produce"
	EventTeacherConnectWithStudents  = "teacher-connect-with-existing-students"
	EventCreateTeacherConsumer       = "create-teacher-consumer-transport"
	EventConnectTeacherConsumer      = "connect-consumer-transport-teacher"
	EventConsumeStudentVideo         = "consume-student-video"
	EventResumeStudentVideoOfTeacher = "resume-student-video-for-teacher"
	EventEndClass                    = "end-class"

	EventListeningTeacher         = "listening-teacher"
	EventCreateStudentConsumer    = "create-consumer-transport-student"
	EventConnectStudentConsumer   = "connect-consumer-transport-student"
	EventConsumeTeacherVideo      = "consume-teacher-video"
	EventResumeTeacher            = "resume-teacher"
	EventStartStudentVideo        = "start-student-video"
	EventConnectStudentProducer   = "connect-producer-transport-student"
	EventStudentProduce           = "student-produce"
	EventConsumeOtherStudentVideo = "consume-other-student-video"
	EventResumeOtherStudentVideo  = "resume-other-student-video"
	EventGetAlreadyJoinedStudents = "get-already-joined-students"

	EventGetDrawingBoard    = "get-drawingboard"
	EventSetDrawingConfig   = "set-drawing-config"
	EventTeacherSendDrawing = "teacher-send-drawing"
	EventClearDrawing       = "clear-drawing"
	EventNewTextbox         = "new-textbox-created"
)

// names older clients still send
var eventAliases = map[string]string{
	"listenting-teacher":                       EventListeningTeacher,
	"join-waiting-room":                        EventListeningTeacher,
	"teacher-connect-with-exisisting-students": EventTeacherConnectWithStudents,
	"send-drawing":                             EventTeacherSendDrawing,
}

// outbound
const (
	EventSignalingError = "signaling-error"

	EventReceiveCapabilities = "receive-capabilities"
	EventLiveClasses         = "live-classes"
	EventTakeClassDetails    = "take-class-details"

	EventClassStarted                  = "class-started"
	EventTeacherProducerConnected      = "teacher-producer-transport-connected"
	EventTeacherProduced               = "teacher-produced"
	EventTeacherConsumerCreated        = "teacher-consumer-transport-created"
	EventTeacherConsumerConnected      = "teacher-consumer-transport-connected"
	EventConsumedStudent               = "consumed-student"
	EventStudentVideoResumedForTeacher = "student-video-resumed-for-teacher"
	EventClassEnded                    = "class-ended"
	EventTeacherStartedClass           = "teacher-started-class"
	EventTeacherConnectAgain           = "teacher-connect-again"
	EventTeacherTemporaryDisconnected  = "teacher-temporary-disconnected"
	EventNewStudentJoined              = "new-student-joined"
	EventNewOtherStudent               = "new-other-student"
	EventStudentDisconnected           = "student-disconnected"
	EventOtherStudentDisconnected      = "other-student-disconnected"

	EventStudentConsumerCreated   = "student-consumer-transport-created"
	EventStudentConsumerConnected = "student-consumer-transport-connected"
	EventConsumedTeacher          = "consumed-teacher"
	EventTeacherResumed           = "teacher-resumed"
	EventStartedStudentVideo      = "started-student-video"
	EventStudentProducerConnected = "student-producer-transport-connected"
	EventStudentProduced          = "student-produced"
	EventOtherStudentConsumed     = "other-student-video-consumed"
	EventOtherStudentResumed      = "other-student-video-resumed"
	EventGotAlreadyJoinedStudents = "got-already-joined-students"

	EventTakeDrawingBoard = "take-drawingboard"
	EventDrawingConfig    = "drawing-config"
	EventDrawingData      = "drawing-data"
	EventTextboxCreated   = "textbox-created"
)
