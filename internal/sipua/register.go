package sipua

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"

	"github.com/jask/phone/internal/phone"
)

// minRefresh bounds the re-registration interval from below.
const minRefresh = 30 * time.Second

func (a *Agent) registerRequest(expires int) *sip.Request {
	req := sip.NewRequest(sip.REGISTER, sip.Uri{Host: a.set.Realm})
	req.AppendHeader(a.from())
	req.AppendHeader(&sip.ToHeader{Address: a.set.aor(), Params: sip.NewParams()})
	contact := a.contact
	req.AppendHeader(&contact)
	req.AppendHeader(sip.NewHeader("Expires", strconv.Itoa(expires)))
	a.route(req)
	return req
}

// register sends REGISTER, answering one digest challenge. expires 0 removes
// the binding.
func (a *Agent) register(ctx context.Context, expires int) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := a.registerRequest(expires)
	res, err := a.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if isChallenge(res) {
		res, err = a.client.DoDigestAuth(ctx, req, res, sipgo.DigestAuth{
			Username: a.set.Caller,
			Password: a.set.Password,
		})
		if err != nil {
			return fmt.Errorf("register auth: %w", err)
		}
	}
	if !isSuccess(res) {
		return fmt.Errorf("register: %s", statusText(res))
	}
	return nil
}

// refreshRegistration registers once and reports a change of registration
// state. The first outcome is always reported, so a failing account leaves
// Connecting for Unregistered.
func (a *Agent) refreshRegistration(ctx context.Context) {
	expires := int(a.set.RegisterExpires / time.Second)
	err := a.register(ctx, expires)

	a.mu.Lock()
	was := a.registered
	first := !a.reported
	a.registered = err == nil
	a.reported = true
	a.mu.Unlock()

	switch {
	case err != nil:
		a.log.Error("registration failed", "err", err)
		if was || first {
			a.emit(phone.Unregistered, err.Error())
		}
	case !was:
		a.log.Info("registered", "proxy", a.set.Proxy, "transport", a.set.Transport)
		a.emit(phone.Registered, a.set.Caller+"@"+a.set.Realm)
	default:
		a.log.Debug("registration refreshed")
	}
}

// keepRegistered re-registers before the binding expires.
func (a *Agent) keepRegistered() {
	t := time.NewTimer(refreshInterval(a.set.RegisterExpires))
	defer t.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-t.C:
			a.enqueue(a.refreshRegistration)
			t.Reset(refreshInterval(a.set.RegisterExpires))
		}
	}
}

func refreshInterval(expires time.Duration) time.Duration {
	d := expires * 8 / 10
	if d < minRefresh {
		return minRefresh
	}
	return d
}
