package sipua

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/jask/phone/internal/config"
)

// Settings is everything the agent needs to register and place calls.
type Settings struct {
	Caller      string
	Password    string
	Realm       string
	DisplayName string
	// Transport is one of udp, tcp, tls, ws, wss.
	Transport string
	// Proxy is host:port of the signalling server.
	Proxy           string
	UserAgent       string
	RegisterExpires time.Duration
	RTPPort         int
	// ListenPort is where in-dialog and incoming requests arrive over udp
	// and tcp. Zero picks a free port.
	ListenPort int
}

var defaultPorts = map[string]int{
	"udp": 5060,
	"tcp": 5060,
	"tls": 5061,
	"ws":  80,
	"wss": 443,
}

// FromConfig derives agent settings from the account configuration.
func FromConfig(cfg config.Config) (Settings, error) {
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	transport, proxy, err := parseServer(cfg.Account.ServerURL)
	if err != nil {
		return Settings{}, err
	}
	expires := cfg.Account.RegisterExpires
	if expires <= 0 {
		expires = 600
	}
	return Settings{
		Caller:          cfg.Account.Caller,
		Password:        cfg.Account.Password,
		Realm:           cfg.Account.SIPRealm,
		DisplayName:     cfg.Account.Display(),
		Transport:       transport,
		Proxy:           proxy,
		UserAgent:       cfg.SIP.UserAgent,
		RegisterExpires: time.Duration(expires) * time.Second,
		RTPPort:         cfg.SIP.RTPPort,
		ListenPort:      cfg.SIP.ListenPort,
	}, nil
}

// parseServer maps a server URL to a sipgo transport and a host:port.
func parseServer(raw string) (transport, hostport string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("server url: %w", err)
	}
	switch scheme := strings.ToLower(u.Scheme); scheme {
	case "sip":
		transport = "udp"
	case "sips":
		transport = "tls"
	case "udp", "tcp", "tls", "ws", "wss":
		transport = scheme
	default:
		return "", "", fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", "", fmt.Errorf("server url: missing host")
	}
	port := defaultPorts[transport]
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", "", fmt.Errorf("server url: bad port %q", p)
		}
	}
	return transport, net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// websocket reports whether signalling runs over a websocket.
func (s Settings) websocket() bool {
	return s.Transport == "ws" || s.Transport == "wss"
}

// aor is the account address of record, sip:caller@realm.
func (s Settings) aor() sip.Uri {
	return sip.Uri{User: s.Caller, Host: s.Realm}
}

// target turns the dialled text into a request URI. Full SIP URIs are used
// as they are; anything else is a user part at the account realm.
func (s Settings) target(dest string) (sip.Uri, error) {
	dest = strings.TrimSpace(dest)
	if strings.HasPrefix(dest, "sip:") || strings.HasPrefix(dest, "sips:") {
		var u sip.Uri
		if err := sip.ParseUri(dest, &u); err != nil {
			return sip.Uri{}, fmt.Errorf("parse destination %q: %w", dest, err)
		}
		return u, nil
	}
	if user, host, ok := strings.Cut(dest, "@"); ok {
		return sip.Uri{User: user, Host: host}, nil
	}
	return sip.Uri{User: dest, Host: s.Realm}, nil
}
