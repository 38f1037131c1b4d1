package phone

// Client is the communication client the widget drives. Every method is fire
// and forget: outcomes arrive later as notifications.
type Client interface {
	Start()
	Call(destination string)
	Answer()
	DTMF(digit Digit)
	Terminate(code int, reason string)
}

// NotificationKind is the closed set of lifecycle events a client reports.
type NotificationKind int

const (
	Connecting NotificationKind = iota + 1
	Registered
	Unregistered
	Ringing
	Answered
	Ended
)

func (k NotificationKind) String() string {
	switch k {
	case Connecting:
		return "connecting"
	case Registered:
		return "registered"
	case Unregistered:
		return "unregistered"
	case Ringing:
		return "ringing"
	case Answered:
		return "answered"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Notification is one event pushed by the client.
type Notification struct {
	Kind NotificationKind
	// Detail is free text for the status line (remote party, reason).
	Detail string
}

func (n Notification) String() string {
	if n.Detail == "" {
		return n.Kind.String()
	}
	return n.Kind.String() + ": " + n.Detail
}
