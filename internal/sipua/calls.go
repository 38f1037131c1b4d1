package sipua

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"

	"github.com/jask/phone/internal/phone"
)

// statusLoopDetected answers a repeated initial INVITE.
const statusLoopDetected = 482

func sessionID() uint64 { return uint64(time.Now().UnixNano()) }

func (a *Agent) dial(ctx context.Context, destination string) {
	if c := a.current(); c != nil {
		a.log.Warn("call ignored, line busy", "remote", c.remote)
		return
	}
	target, err := a.set.target(destination)
	if err != nil {
		a.log.Error("dial", "err", err)
		a.emit(phone.Ended, err.Error())
		return
	}
	offer, err := buildOffer(sessionID(), a.mediaHost, a.set.RTPPort)
	if err != nil {
		a.log.Error("build offer", "err", err)
		a.emit(phone.Ended, err.Error())
		return
	}

	req := sip.NewRequest(sip.INVITE, target)
	req.AppendHeader(a.from())
	req.AppendHeader(&sip.ToHeader{Address: target, Params: sip.NewParams()})
	req.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	req.SetBody(offer)
	a.route(req)

	inviteCtx, cancel := context.WithCancel(ctx)
	sess, err := a.outDialogs.WriteInvite(inviteCtx, req)
	if err != nil {
		cancel()
		a.log.Error("invite", "target", target.String(), "err", err)
		a.emit(phone.Ended, err.Error())
		return
	}

	c := &activeCall{outbound: sess, cancelInvite: cancel, remote: target.String(), callID: callID(sess.InviteRequest)}
	a.mu.Lock()
	a.call = c
	a.mu.Unlock()
	a.log.Info("dialing", "target", c.remote)

	go a.awaitAnswer(inviteCtx, c)
}

// awaitAnswer waits for the final response to an outgoing INVITE. Cancelling
// the invite context sends CANCEL.
func (a *Agent) awaitAnswer(ctx context.Context, c *activeCall) {
	err := c.outbound.WaitAnswer(ctx, sipgo.AnswerOptions{
		OnResponse: func(res *sip.Response) error {
			a.log.Debug("provisional response", "status", statusText(res))
			return nil
		},
		Username: a.set.Caller,
		Password: a.set.Password,
	})
	if err != nil {
		detail := err.Error()
		var derr *sipgo.ErrDialogResponse
		switch {
		case errors.As(err, &derr):
			detail = statusText(derr.Res)
		case errors.Is(err, context.Canceled):
			detail = "cancelled"
		}
		a.endCall(c, detail)
		return
	}

	if err := c.outbound.Ack(a.ctx); err != nil {
		a.log.Error("ack", "err", err)
	}
	if res := c.outbound.InviteResponse; res != nil {
		if m, err := parseMedia(res.Body()); err == nil {
			a.log.Info("remote media", "host", m.host, "port", m.port, "codecs", len(m.codecs))
		}
	}

	a.mu.Lock()
	if a.call != c {
		a.mu.Unlock()
		_ = c.outbound.Bye(a.ctx)
		return
	}
	c.established = true
	a.mu.Unlock()
	a.emit(phone.Answered, c.remote)
}

func (a *Agent) answer(ctx context.Context) {
	c := a.current()
	if c == nil || c.inbound == nil || !a.claimAnswer(c) {
		a.log.Debug("answer ignored, nothing ringing")
		return
	}
	body, err := buildAnswer(sessionID(), a.mediaHost, a.set.RTPPort, c.offer)
	if err != nil {
		a.log.Error("build answer", "err", err)
		_ = c.inbound.Respond(sip.StatusNotAcceptableHere, "Not Acceptable Here", nil)
		c.settle()
		a.endCall(c, err.Error())
		return
	}
	if err := c.inbound.RespondSDP(body); err != nil {
		a.log.Error("answer", "err", err)
		c.settle()
		a.endCall(c, err.Error())
		return
	}

	a.mu.Lock()
	c.established = true
	a.mu.Unlock()
	c.settle()
	a.log.Info("answered", "remote", c.remote)
	a.emit(phone.Answered, c.remote)
}

func (a *Agent) sendDTMF(ctx context.Context, d phone.Digit) {
	c := a.current()
	if c == nil || !a.isEstablished(c) {
		a.log.Debug("dtmf ignored, no established call", "digit", d.String())
		return
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := a.inDialogRequest(c, sip.INFO)
	if err != nil {
		a.log.Error("dtmf", "err", err)
		return
	}
	req.AppendHeader(sip.NewHeader("Content-Type", dtmfContentType))
	req.SetBody(dtmfBody(d))

	res, err := a.do(ctx, c, req)
	if err != nil {
		a.log.Error("dtmf", "digit", d.String(), "err", err)
		return
	}
	a.log.Debug("dtmf sent", "digit", d.String(), "status", statusText(res))
}

func (a *Agent) terminate(ctx context.Context, code int, reason string) {
	c := a.current()
	if c == nil {
		a.log.Debug("terminate ignored, no call")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	a.log.Info("terminating", "remote", c.remote, "code", code, "reason", reason)
	established := a.isEstablished(c)
	switch {
	case c.inbound != nil && !established:
		if a.claimAnswer(c) {
			err := c.inbound.Respond(code, reason, nil, sip.NewHeader("Reason", reasonValue(code, reason)))
			if err != nil {
				a.log.Error("reject", "err", err)
			}
		}
		c.settle()
	case c.outbound != nil && !established:
		// awaitAnswer sees the cancelled context and reports Ended
		c.cancelInvite()
		return
	case c.outbound != nil:
		if err := c.outbound.Bye(ctx); err != nil {
			a.log.Error("bye", "err", err)
		}
	case c.inbound != nil:
		if err := c.inbound.Bye(ctx); err != nil {
			a.log.Error("bye", "err", err)
		}
	}
	a.endCall(c, reason)
}

// inDialogRequest builds a request addressed to the remote target of c.
func (a *Agent) inDialogRequest(c *activeCall, method sip.RequestMethod) (*sip.Request, error) {
	var contact *sip.ContactHeader
	switch {
	case c.outbound != nil && c.outbound.InviteResponse != nil:
		contact = c.outbound.InviteResponse.Contact()
	case c.inbound != nil && c.inbound.InviteRequest != nil:
		contact = c.inbound.InviteRequest.Contact()
	}
	if contact == nil {
		return nil, fmt.Errorf("%s: remote contact unknown", method)
	}
	req := sip.NewRequest(method, contact.Address)
	a.route(req)
	return req, nil
}

func (a *Agent) do(ctx context.Context, c *activeCall, req *sip.Request) (*sip.Response, error) {
	switch {
	case c.outbound != nil:
		return c.outbound.Do(ctx, req)
	case c.inbound != nil:
		return c.inbound.Do(ctx, req)
	}
	return nil, errNoCall
}

func (a *Agent) onInvite(req *sip.Request, tx sip.ServerTransaction) {
	if to := req.To(); to != nil {
		if _, ok := to.Params.Get("tag"); ok {
			a.onReinvite(req, tx)
			return
		}
	}
	if id := callID(req); id != "" {
		if a.seen.Contains(id) {
			a.log.Info("duplicate invite", "call_id", id)
			res := sip.NewResponseFromRequest(req, statusLoopDetected, "Loop Detected", nil)
			_ = tx.Respond(res)
			return
		}
		a.seen.Add(id, struct{}{})
	}

	a.mu.Lock()
	busy := a.call != nil
	a.mu.Unlock()
	if busy {
		res := sip.NewResponseFromRequest(req, sip.StatusBusyHere, "Busy Here", nil)
		if err := tx.Respond(res); err != nil {
			a.log.Error("respond busy", "err", err)
		}
		return
	}

	dlg, err := a.inDialogs.ReadInvite(req, tx)
	if err != nil {
		a.log.Error("read invite", "err", err)
		return
	}
	if err := dlg.Respond(sip.StatusRinging, "Ringing", nil); err != nil {
		a.log.Error("respond ringing", "err", err)
		_ = dlg.Close()
		return
	}

	remote := ""
	if from := req.From(); from != nil {
		remote = from.Address.String()
	}
	c := &activeCall{inbound: dlg, offer: req.Body(), remote: remote, callID: callID(req), settled: make(chan struct{})}
	a.mu.Lock()
	if a.call != nil {
		a.mu.Unlock()
		_ = dlg.Respond(sip.StatusBusyHere, "Busy Here", nil)
		_ = dlg.Close()
		return
	}
	a.call = c
	a.mu.Unlock()

	a.log.Info("incoming call", "remote", remote)
	a.emit(phone.Ringing, remote)

	// the INVITE transaction ends early only when the caller gives up
	select {
	case <-c.settled:
	case <-tx.Done():
		if a.claimAnswer(c) {
			a.endCall(c, "caller cancelled")
		}
	case <-a.ctx.Done():
	}
}

// onReinvite answers an INVITE inside the current dialog, refreshing the
// session without touching call state.
func (a *Agent) onReinvite(req *sip.Request, tx sip.ServerTransaction) {
	c := a.current()
	if c == nil || c.callID != callID(req) || !a.isEstablished(c) {
		a.log.Debug("re-invite outside dialog", "call_id", callID(req))
		res := sip.NewResponseFromRequest(req, sip.StatusCallTransactionDoesNotExists, "Call/Transaction Does Not Exist", nil)
		_ = tx.Respond(res)
		return
	}
	body, err := buildAnswer(sessionID(), a.mediaHost, a.set.RTPPort, req.Body())
	if err != nil {
		a.log.Error("re-invite answer", "err", err)
		res := sip.NewResponseFromRequest(req, sip.StatusNotAcceptableHere, "Not Acceptable Here", nil)
		_ = tx.Respond(res)
		return
	}
	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", body)
	res.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	contact := a.contact
	res.AppendHeader(&contact)
	if err := tx.Respond(res); err != nil {
		a.log.Error("respond re-invite", "err", err)
		return
	}
	a.log.Info("session refreshed", "remote", c.remote)
}

func (a *Agent) onAck(req *sip.Request, tx sip.ServerTransaction) {
	if err := a.inDialogs.ReadAck(req, tx); err != nil {
		a.log.Debug("ack outside dialog", "err", err)
	}
}

func (a *Agent) onBye(req *sip.Request, tx sip.ServerTransaction) {
	if err := a.inDialogs.ReadBye(req, tx); err != nil {
		if err := a.outDialogs.ReadBye(req, tx); err != nil {
			a.log.Debug("bye outside dialog", "err", err)
			res := sip.NewResponseFromRequest(req, sip.StatusCallTransactionDoesNotExists, "Call/Transaction Does Not Exist", nil)
			_ = tx.Respond(res)
			return
		}
	}
	a.endCall(a.current(), "remote hung up")
}

func (a *Agent) onCancel(req *sip.Request, tx sip.ServerTransaction) {
	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil)
	if err := tx.Respond(res); err != nil {
		a.log.Error("respond cancel", "err", err)
	}
	c := a.current()
	if c != nil && c.inbound != nil && a.claimAnswer(c) {
		_ = c.inbound.Respond(sip.StatusRequestTerminated, "Request Terminated", nil)
		c.settle()
		a.endCall(c, "caller cancelled")
	}
}

func (a *Agent) onOptions(req *sip.Request, tx sip.ServerTransaction) {
	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil)
	_ = tx.Respond(res)
}

func (a *Agent) onInfo(req *sip.Request, tx sip.ServerTransaction) {
	a.log.Debug("remote info", "content_type", contentType(req), "body", string(req.Body()))
	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil)
	_ = tx.Respond(res)
}

func contentType(req *sip.Request) string {
	if h := req.ContentType(); h != nil {
		return h.Value()
	}
	return ""
}

func callID(req *sip.Request) string {
	if h := req.CallID(); h != nil {
		return h.Value()
	}
	return ""
}
