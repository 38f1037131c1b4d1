// Package tui renders the call widget in the terminal: a To field, a twelve
// key pad and the call button, driven by the keyboard and by client
// notifications.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/phone/internal/phone"
)

type focusArea int

const (
	focusPad focusArea = iota
	focusDest
)

const padColumns = 3

// App is the bubbletea model around a phone.Widget.
type App struct {
	widget *phone.Widget
	notes  <-chan phone.Notification
	from   string

	keys   *KeyRegistry
	help   help.Model
	dest   textinput.Model
	focus  focusArea
	cursor int

	status     string
	statusKind phone.NotificationKind
	width      int
	closed     bool
}

// messages
type notificationMsg phone.Notification

type notificationsClosedMsg struct{}

// New builds the view. from is shown as the caller line; notes is the
// client's notification stream.
func New(w *phone.Widget, notes <-chan phone.Notification, from string) *App {
	inp := textinput.New()
	inp.Prompt = ""
	inp.Placeholder = "number or sip: address"
	inp.CharLimit = 0
	inp.Width = 28
	inp.SetValue(w.State().Destination)

	return &App{
		widget: w,
		notes:  notes,
		from:   from,
		keys:   NewKeyRegistry(),
		help:   help.New(),
		dest:   inp,
		cursor: 0,
		status: "starting",
	}
}

func (a *App) Init() tea.Cmd {
	return waitForNotification(a.notes)
}

// waitForNotification reads one notification. The app re-arms it after each
// delivery.
func waitForNotification(ch <-chan phone.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return notificationsClosedMsg{}
		}
		return notificationMsg(n)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		a.help.Width = m.Width
		return a, nil
	case notificationMsg:
		n := phone.Notification(m)
		a.widget.Notify(n)
		a.status = n.String()
		a.statusKind = n.Kind
		a.syncDest()
		return a, waitForNotification(a.notes)
	case notificationsClosedMsg:
		a.closed = true
		a.status = "disconnected"
		return a, nil
	case tea.KeyMsg:
		if a.focus == focusDest {
			return a.handleDestKey(m)
		}
		return a.handlePadKey(m)
	}
	return a, nil
}

func (a *App) handlePadKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	b := a.keys.Lookup(m.String(), scopePad)
	if b == nil {
		return a, nil
	}
	switch b.Action {
	case actionQuit:
		return a, tea.Quit
	case actionDigit:
		d := phone.Digit([]rune(m.String())[0])
		a.moveCursorTo(d)
		a.widget.PressDigit(d)
		a.syncDest()
	case actionPress:
		a.widget.PressDigit(phone.PadKeys[a.cursor])
		a.syncDest()
	case actionMove:
		a.moveCursor(m.String())
	case actionCall:
		a.widget.PressCall()
	case actionBackspace:
		dest := []rune(a.widget.State().Destination)
		if len(dest) > 0 {
			a.widget.EditDestination(string(dest[:len(dest)-1]))
			a.syncDest()
		}
	case actionFocus:
		a.focus = focusDest
		return a, a.dest.Focus()
	}
	return a, nil
}

func (a *App) handleDestKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if b := a.keys.Lookup(m.String(), scopeDest); b != nil {
		switch b.Action {
		case actionQuit:
			return a, tea.Quit
		case actionCall:
			a.widget.PressCall()
			return a, nil
		case actionBlur, actionFocus:
			a.focus = focusPad
			a.dest.Blur()
			return a, nil
		}
	}
	var cmd tea.Cmd
	a.dest, cmd = a.dest.Update(m)
	if v := a.dest.Value(); v != a.widget.State().Destination {
		a.widget.EditDestination(v)
	}
	return a, cmd
}

// syncDest copies the widget's destination into the To field.
func (a *App) syncDest() {
	if v := a.widget.State().Destination; v != a.dest.Value() {
		a.dest.SetValue(v)
		a.dest.CursorEnd()
	}
}

func (a *App) moveCursor(dir string) {
	switch dir {
	case "up", "k":
		if a.cursor-padColumns >= 0 {
			a.cursor -= padColumns
		}
	case "down", "j":
		if a.cursor+padColumns < len(phone.PadKeys) {
			a.cursor += padColumns
		}
	case "left", "h":
		if a.cursor%padColumns > 0 {
			a.cursor--
		}
	case "right", "l":
		if a.cursor%padColumns < padColumns-1 {
			a.cursor++
		}
	}
}

func (a *App) moveCursorTo(d phone.Digit) {
	for i, k := range phone.PadKeys {
		if k == d {
			a.cursor = i
			return
		}
	}
}

func (a *App) View() string {
	state := a.widget.State()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Phone"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("From ") + a.from)
	b.WriteString("\n")

	box := boxStyle
	if a.focus == focusDest {
		box = focusedBoxStyle
	}
	b.WriteString(box.Render(labelStyle.Render("To ") + a.dest.View()))
	b.WriteString("\n")

	b.WriteString(a.renderPad())
	b.WriteString("\n\n")
	b.WriteString(a.renderButton(state))
	b.WriteString("\n\n")
	b.WriteString(a.renderStatus())
	b.WriteString("\n")

	scope := scopePad
	if a.focus == focusDest {
		scope = scopeDest
	}
	b.WriteString(a.help.ShortHelpView(a.keys.HelpBindings(scope)))
	return b.String()
}

func (a *App) renderPad() string {
	rows := make([]string, 0, len(phone.PadKeys)/padColumns)
	for r := 0; r < len(phone.PadKeys); r += padColumns {
		cells := make([]string, 0, padColumns)
		for i := r; i < r+padColumns; i++ {
			style := padKeyStyle
			if i == a.cursor && a.focus == focusPad {
				style = padCursorStyle
			}
			cells = append(cells, style.Render(phone.PadKeys[i].String()))
		}
		rows = append(rows, strings.Join(cells, " "))
	}
	return strings.Join(rows, "\n")
}

func (a *App) renderButton(state phone.State) string {
	label := state.Label()
	switch {
	case !state.CallEnabled():
		return disabledButtonStyle.Render(label)
	case state.Phase == phone.PhaseConnected:
		return hangUpButtonStyle.Render(label)
	case state.Phase == phone.PhaseDialing:
		return pendingButtonStyle.Render(label)
	default:
		return callButtonStyle.Render(label)
	}
}

func (a *App) renderStatus() string {
	text := a.status
	if !a.widget.State().Registered && !a.closed {
		text = fmt.Sprintf("%s (not registered)", text)
	}
	switch {
	case a.closed:
		return statusErrorStyle.Render(text)
	case a.statusKind == phone.Ended || a.statusKind == phone.Unregistered:
		return statusWarnStyle.Render(text)
	default:
		return statusStyle.Render(text)
	}
}
