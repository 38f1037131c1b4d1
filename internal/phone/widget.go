package phone

import (
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrAlreadyStarted is returned by a second call to Widget.Start.
var ErrAlreadyStarted = errors.New("phone: client already started")

// Widget owns one client handle and the dial state mirroring it. It is not
// safe for concurrent use; drive it from a single event loop.
type Widget struct {
	client  Client
	opts    Options
	log     *slog.Logger
	state   State
	started atomic.Bool
}

// New returns an idle widget over an already constructed client.
func New(client Client, opts Options, logger *slog.Logger) *Widget {
	if logger == nil {
		logger = slog.Default()
	}
	return &Widget{
		client: client,
		opts:   opts,
		log:    logger.With("component", "widget"),
	}
}

// Start starts the client. Only the first call has any effect.
func (w *Widget) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	w.log.Debug("starting client")
	w.client.Start()
	return nil
}

// State returns a copy of the current dial state.
func (w *Widget) State() State { return w.state }

// Handle applies in and issues the resulting client calls.
func (w *Widget) Handle(in Input) {
	prev := w.state
	next, effects := Transition(w.state, in, w.opts)
	w.state = next
	if n, ok := in.(Notification); ok {
		w.log.Info("notification", "kind", n.Kind.String(), "detail", n.Detail)
	}
	if prev.Phase != next.Phase {
		w.log.Debug("phase change", "from", prev.Phase.String(), "to", next.Phase.String())
	}
	for _, e := range effects {
		w.apply(e)
	}
}

func (w *Widget) PressDigit(d Digit)          { w.Handle(PressDigit{Digit: d}) }
func (w *Widget) PressCall()                  { w.Handle(PressCall{}) }
func (w *Widget) EditDestination(text string) { w.Handle(EditDestination{Text: text}) }
func (w *Widget) Notify(n Notification)       { w.Handle(n) }

func (w *Widget) apply(e Effect) {
	w.log.Debug("client call", "op", e.Op.String())
	switch e.Op {
	case OpCall:
		w.client.Call(e.Destination)
	case OpAnswer:
		w.client.Answer()
	case OpDTMF:
		w.client.DTMF(e.Digit)
	case OpTerminate:
		w.client.Terminate(e.Code, e.Reason)
	}
}
