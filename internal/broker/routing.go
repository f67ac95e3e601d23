package broker

// Change notifications for the messages collection. NATS is simpler than
// RabbitMQ for the projects requirements.
var (
	StreamName        = "MESSAGES"
	SubjectGlobalRoom = StreamName + "." + "room.global"
)
