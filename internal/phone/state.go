package phone

import "fmt"

// Phase is the call lifecycle as seen by the widget.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDialing
	PhaseRinging
	PhaseConnected
)

const (
	LabelCall    = "Call"
	LabelDialing = "Dialing..."
	LabelAnswer  = "Answer"
	LabelHangUp  = "Hang Up"
)

// Label is the call button text for the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseDialing:
		return LabelDialing
	case PhaseRinging:
		return LabelAnswer
	case PhaseConnected:
		return LabelHangUp
	default:
		return LabelCall
	}
}

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDialing:
		return "dialing"
	case PhaseRinging:
		return "ringing"
	case PhaseConnected:
		return "connected"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Hang-up code and text sent when the user ends a call.
const (
	TerminateCode   = 480
	TerminateReason = "Finished Call"
)

// Digit is one dial pad key.
type Digit rune

// PadKeys lists the dial pad in display order, three per row.
var PadKeys = [12]Digit{'1', '2', '3', '4', '5', '6', '7', '8', '9', '*', '0', '#'}

// Valid reports whether d is a key on the dial pad.
func (d Digit) Valid() bool {
	return (d >= '0' && d <= '9') || d == '*' || d == '#'
}

func (d Digit) String() string { return string(rune(d)) }

// State is the widget's dial state.
type State struct {
	Phase       Phase
	Destination string
	// Registered enables the call button.
	Registered bool
}

// Label is the current call button text.
func (s State) Label() string { return s.Phase.Label() }

// Answered drives the button color.
func (s State) Answered() bool { return s.Phase == PhaseConnected }

// CallEnabled reports whether the call button accepts presses. Registration
// gates placing a call only; a ringing or active call can always be answered
// or ended.
func (s State) CallEnabled() bool { return s.Registered || s.Phase != PhaseIdle }
