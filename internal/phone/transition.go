package phone

// Input is anything that can move the widget: a user action or a client
// notification.
type Input interface {
	isInput()
}

// PressDigit is a dial pad key press.
type PressDigit struct{ Digit Digit }

// PressCall is a press of the call button.
type PressCall struct{}

// EditDestination replaces the destination buffer with text typed into the
// To field.
type EditDestination struct{ Text string }

func (PressDigit) isInput()      {}
func (PressCall) isInput()       {}
func (EditDestination) isInput() {}
func (Notification) isInput()    {}

// EffectOp names a client call requested by a transition.
type EffectOp int

const (
	OpCall EffectOp = iota + 1
	OpAnswer
	OpDTMF
	OpTerminate
)

func (o EffectOp) String() string {
	switch o {
	case OpCall:
		return "call"
	case OpAnswer:
		return "answer"
	case OpDTMF:
		return "dtmf"
	case OpTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Effect is one client call to perform after a transition.
type Effect struct {
	Op          EffectOp
	Destination string
	Digit       Digit
	Code        int
	Reason      string
}

// Options are the identity settings that influence transitions.
type Options struct {
	AutoAnswer bool
}

// Transition applies one input to s and returns the new state together with
// the client calls it requires, in the order they must be issued.
func Transition(s State, in Input, opts Options) (State, []Effect) {
	switch in := in.(type) {
	case PressDigit:
		if !in.Digit.Valid() {
			return s, nil
		}
		s.Destination += in.Digit.String()
		// a key pressed while a call is in progress is also a tone; the
		// client drops it until media is established
		if s.Phase != PhaseIdle {
			return s, []Effect{{Op: OpDTMF, Digit: in.Digit}}
		}
		return s, nil

	case EditDestination:
		s.Destination = in.Text
		return s, nil

	case PressCall:
		switch s.Phase {
		case PhaseIdle:
			if !s.Registered {
				return s, nil
			}
			s.Phase = PhaseDialing
			return s, []Effect{{Op: OpCall, Destination: s.Destination}}
		case PhaseRinging:
			return s, []Effect{{Op: OpAnswer}}
		default:
			return s, []Effect{{Op: OpTerminate, Code: TerminateCode, Reason: TerminateReason}}
		}

	case Notification:
		switch in.Kind {
		case Registered:
			s.Registered = true
		case Unregistered:
			s.Registered = false
		case Ringing:
			s.Phase = PhaseRinging
			if opts.AutoAnswer {
				return s, []Effect{{Op: OpAnswer}}
			}
		case Answered:
			s.Phase = PhaseConnected
		case Ended:
			s.Phase = PhaseIdle
		}
		return s, nil
	}
	return s, nil
}
