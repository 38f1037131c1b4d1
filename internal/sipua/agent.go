// Package sipua is the SIP user agent behind the call widget: it registers
// the account, runs call dialogs and reports their lifecycle as
// phone.Notifications.
package sipua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jask/phone/internal/phone"
)

const (
	requestTimeout    = 10 * time.Second
	notificationQueue = 64
	workQueue         = 32

	maxSeenCalls = 256
	seenCallTTL  = time.Minute // long enough to catch provider retries
)

// activeCall is the single dialog the agent can hold.
type activeCall struct {
	outbound     *sipgo.DialogClientSession
	inbound      *sipgo.DialogServerSession
	cancelInvite context.CancelFunc
	offer        []byte
	remote       string
	callID       string
	// established and answering are guarded by Agent.mu.
	established bool
	// answering is set once someone owns the final response to an inbound
	// INVITE.
	answering bool
	// settled is closed once an inbound INVITE got its final response.
	settled    chan struct{}
	settleOnce sync.Once
}

func (c *activeCall) settle() {
	if c.settled == nil {
		return
	}
	c.settleOnce.Do(func() { close(c.settled) })
}

// Agent implements phone.Client over sipgo.
type Agent struct {
	set        Settings
	log        *slog.Logger
	ua         *sipgo.UserAgent
	client     *sipgo.Client
	server     *sipgo.Server
	contact    sip.ContactHeader
	outDialogs *sipgo.DialogClientCache
	inDialogs  *sipgo.DialogServerCache
	mediaHost  string
	// listener receives incoming requests; nil over tls and websockets,
	// where they arrive on the registered connection.
	listener io.Closer
	// seen holds Call-IDs of recent inbound INVITEs.
	seen *expirable.LRU[string, struct{}]

	ctx    context.Context
	cancel context.CancelFunc
	work   chan func(context.Context)
	done   chan struct{}

	started  atomic.Bool
	stopOnce sync.Once

	emitMu sync.Mutex
	notes  chan phone.Notification
	closed bool

	mu         sync.Mutex
	call       *activeCall
	registered bool
	// reported is set once registration state reached the widget.
	reported bool
}

var _ phone.Client = (*Agent)(nil)

// New builds the user agent. Nothing is sent until Start.
func New(set Settings, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sipua", "aor", set.Caller+"@"+set.Realm)

	instance := uuid.New()
	hostname := contactHost(set, instance)

	ua, err := sipgo.NewUA(
		sipgo.WithUserAgent(set.UserAgent),
		sipgo.WithUserAgentHostname(hostname),
	)
	if err != nil {
		return nil, fmt.Errorf("new user agent: %w", err)
	}
	client, err := sipgo.NewClient(ua, sipgo.WithClientHostname(hostname))
	if err != nil {
		_ = ua.Close()
		return nil, fmt.Errorf("new client: %w", err)
	}
	server, err := sipgo.NewServer(ua)
	if err != nil {
		_ = ua.Close()
		return nil, fmt.Errorf("new server: %w", err)
	}
	local := mediaHost(set)
	listener, port, err := listen(set.Transport, local, set.ListenPort)
	if err != nil {
		_ = ua.Close()
		return nil, err
	}

	contact := sip.ContactHeader{
		DisplayName: set.DisplayName,
		Address: sip.Uri{
			User:      set.Caller,
			Host:      hostname,
			Port:      port,
			UriParams: sip.NewParams(),
		},
		Params: sip.NewParams(),
	}
	contact.Address.UriParams.Add("transport", set.Transport)
	contact.Params.Add("+sip.instance", fmt.Sprintf("\"<urn:uuid:%s>\"", instance))

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		set:        set,
		log:        logger,
		ua:         ua,
		client:     client,
		server:     server,
		contact:    contact,
		outDialogs: sipgo.NewDialogClientCache(client, contact),
		inDialogs:  sipgo.NewDialogServerCache(client, contact),
		mediaHost:  local,
		listener:   listener,
		seen:       expirable.NewLRU[string, struct{}](maxSeenCalls, nil, seenCallTTL),
		ctx:        ctx,
		cancel:     cancel,
		work:       make(chan func(context.Context), workQueue),
		done:       make(chan struct{}),
		notes:      make(chan phone.Notification, notificationQueue),
	}

	server.OnInvite(a.onInvite)
	server.OnAck(a.onAck)
	server.OnBye(a.onBye)
	server.OnCancel(a.onCancel)
	server.OnOptions(a.onOptions)
	server.OnInfo(a.onInfo)
	return a, nil
}

// Notifications delivers lifecycle events in the order they happened. It is
// closed by Stop.
func (a *Agent) Notifications() <-chan phone.Notification { return a.notes }

// Start registers the account and keeps the registration fresh. Only the
// first call has any effect.
func (a *Agent) Start() {
	if !a.started.CompareAndSwap(false, true) {
		a.log.Warn("start called twice")
		return
	}
	go a.run()
	go a.serve()
	a.emit(phone.Connecting, a.set.Proxy)
	a.enqueue(func(ctx context.Context) {
		a.refreshRegistration(ctx)
	})
	go a.keepRegistered()
}

// Call places an outgoing call.
func (a *Agent) Call(destination string) {
	a.enqueue(func(ctx context.Context) { a.dial(ctx, destination) })
}

// Answer accepts the ringing inbound call.
func (a *Agent) Answer() {
	a.enqueue(a.answer)
}

// DTMF sends one key as SIP INFO inside the established dialog.
func (a *Agent) DTMF(digit phone.Digit) {
	a.enqueue(func(ctx context.Context) { a.sendDTMF(ctx, digit) })
}

// Terminate ends the current call whatever its phase.
func (a *Agent) Terminate(code int, reason string) {
	a.enqueue(func(ctx context.Context) { a.terminate(ctx, code, reason) })
}

// Stop hangs up, unregisters and releases the transport. It closes the
// notification channel.
func (a *Agent) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		if a.started.Load() {
			// hang up on the worker so it cannot race a queued command
			hungUp := make(chan struct{})
			a.enqueue(func(wctx context.Context) {
				defer close(hungUp)
				if a.current() != nil {
					a.terminate(wctx, phone.TerminateCode, phone.TerminateReason)
				}
			})
			select {
			case <-hungUp:
			case <-ctx.Done():
			}
		}
		a.mu.Lock()
		wasRegistered := a.registered
		a.registered = false
		a.mu.Unlock()
		if wasRegistered {
			if rerr := a.register(ctx, 0); rerr != nil {
				err = fmt.Errorf("unregister: %w", rerr)
			}
			a.emit(phone.Unregistered, "stopped")
		}

		a.cancel()
		if a.started.Load() {
			<-a.done
		}
		a.emitMu.Lock()
		a.closed = true
		close(a.notes)
		a.emitMu.Unlock()

		if cerr := a.ua.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close user agent: %w", cerr)
		}
		if a.listener != nil {
			if cerr := a.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
				err = fmt.Errorf("close listener: %w", cerr)
			}
		}
	})
	return err
}

// listen binds the socket advertised in our Contact. Port 0 picks a free
// one. tls and websockets get no listener.
func listen(transport, host string, port int) (io.Closer, int, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	switch transport {
	case "udp":
		uaddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return nil, 0, fmt.Errorf("listen udp %s: %w", addr, err)
		}
		conn, err := net.ListenUDP("udp", uaddr)
		if err != nil {
			return nil, 0, fmt.Errorf("listen udp %s: %w", addr, err)
		}
		return conn, conn.LocalAddr().(*net.UDPAddr).Port, nil
	case "tcp":
		taddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return nil, 0, fmt.Errorf("listen tcp %s: %w", addr, err)
		}
		ln, err := net.ListenTCP("tcp", taddr)
		if err != nil {
			return nil, 0, fmt.Errorf("listen tcp %s: %w", addr, err)
		}
		return ln, ln.Addr().(*net.TCPAddr).Port, nil
	}
	return nil, 0, nil
}

func (a *Agent) serve() {
	var err error
	switch l := a.listener.(type) {
	case *net.UDPConn:
		a.log.Info("listening", "proto", "udp", "addr", l.LocalAddr().String())
		err = a.server.ServeUDP(l)
	case *net.TCPListener:
		a.log.Info("listening", "proto", "tcp", "addr", l.Addr().String())
		err = a.server.ServeTCP(l)
	default:
		return
	}
	if err != nil && !errors.Is(err, net.ErrClosed) && a.ctx.Err() == nil {
		a.log.Error("serve", "err", err)
	}
}

func (a *Agent) run() {
	defer close(a.done)
	for {
		select {
		case <-a.ctx.Done():
			return
		case fn := <-a.work:
			fn(a.ctx)
		}
	}
}

func (a *Agent) enqueue(fn func(context.Context)) {
	select {
	case a.work <- fn:
	case <-a.ctx.Done():
	}
}

func (a *Agent) emit(kind phone.NotificationKind, detail string) {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	if a.closed {
		return
	}
	a.log.Debug("emit", "kind", kind.String(), "detail", detail)
	select {
	case a.notes <- phone.Notification{Kind: kind, Detail: detail}:
	case <-a.ctx.Done():
	}
}

func (a *Agent) current() *activeCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.call
}

// endCall clears c if it is still the active call and reports Ended.
func (a *Agent) endCall(c *activeCall, detail string) {
	a.mu.Lock()
	if a.call != c || c == nil {
		a.mu.Unlock()
		return
	}
	a.call = nil
	a.mu.Unlock()

	if c.cancelInvite != nil {
		c.cancelInvite()
	}
	if c.outbound != nil {
		_ = c.outbound.Close()
	}
	if c.inbound != nil {
		_ = c.inbound.Close()
	}
	a.log.Info("call ended", "remote", c.remote, "detail", detail)
	a.emit(phone.Ended, detail)
}

// isEstablished reports whether c got its 2xx.
func (a *Agent) isEstablished(c *activeCall) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return c.established
}

// claimAnswer takes ownership of the final response to c's inbound INVITE.
// Only the first caller gets true.
func (a *Agent) claimAnswer(c *activeCall) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c.answering || c.established {
		return false
	}
	c.answering = true
	return true
}

// route pins a request to the configured signalling server.
func (a *Agent) route(req *sip.Request) {
	req.SetTransport(strings.ToUpper(a.set.Transport))
	req.SetDestination(a.set.Proxy)
}

func (a *Agent) from() *sip.FromHeader {
	from := &sip.FromHeader{
		DisplayName: a.set.DisplayName,
		Address:     a.set.aor(),
		Params:      sip.NewParams(),
	}
	from.Params.Add("tag", sip.GenerateTagN(16))
	return from
}

// contactHost is the host part of our Contact. Websocket clients have no
// reachable address, so they use a random .invalid name.
func contactHost(set Settings, instance uuid.UUID) string {
	if set.websocket() {
		return strings.ReplaceAll(instance.String(), "-", "")[:12] + ".invalid"
	}
	return mediaHost(set)
}

// mediaHost is the local address used to reach the proxy.
func mediaHost(set Settings) string {
	conn, err := net.Dial("udp", set.Proxy)
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

func isSuccess(res *sip.Response) bool {
	return res.StatusCode >= 200 && res.StatusCode < 300
}

func isChallenge(res *sip.Response) bool {
	return res.StatusCode == sip.StatusUnauthorized || res.StatusCode == sip.StatusProxyAuthRequired
}

func statusText(res *sip.Response) string {
	return fmt.Sprintf("%d %s", res.StatusCode, res.Reason)
}

var errNoCall = errors.New("no active call")
