package sipua

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/phone/internal/config"
)

func TestParseServer(t *testing.T) {
	tests := []struct {
		raw       string
		transport string
		hostport  string
	}{
		{"wss://sip.example.com:8443", "wss", "sip.example.com:8443"},
		{"wss://sip.example.com", "wss", "sip.example.com:443"},
		{"ws://10.0.0.1", "ws", "10.0.0.1:80"},
		{"sip://pbx.local", "udp", "pbx.local:5060"},
		{"sips://pbx.local", "tls", "pbx.local:5061"},
		{"tcp://pbx.local:5080", "tcp", "pbx.local:5080"},
		{"UDP://pbx.local", "udp", "pbx.local:5060"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			transport, hostport, err := parseServer(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.transport, transport)
			require.Equal(t, tt.hostport, hostport)
		})
	}
}

func TestParseServerRejects(t *testing.T) {
	for _, raw := range []string{"http://sip.example.com", "wss://", "wss://host:port"} {
		_, _, err := parseServer(raw)
		require.Error(t, err, raw)
	}
}

func TestFromConfig(t *testing.T) {
	var cfg config.Config
	cfg.Account = config.AccountConfig{
		Caller:    "1001",
		Password:  "secret",
		SIPRealm:  "sip.example.com",
		ServerURL: "wss://edge.example.com:8443",
	}
	cfg.SIP = config.SIPConfig{UserAgent: "phone", RTPPort: 40000, ListenPort: 5070}

	set, err := FromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, "1001", set.Caller)
	require.Equal(t, "secret", set.Password)
	require.Equal(t, "sip.example.com", set.Realm)
	require.Equal(t, "1001", set.DisplayName)
	require.Equal(t, "wss", set.Transport)
	require.Equal(t, "edge.example.com:8443", set.Proxy)
	require.Equal(t, 600*time.Second, set.RegisterExpires)
	require.Equal(t, 40000, set.RTPPort)
	require.Equal(t, 5070, set.ListenPort)
	require.True(t, set.websocket())

	cfg.Account.Name = "Front Desk"
	cfg.Account.RegisterExpires = 120
	set, err = FromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, "Front Desk", set.DisplayName)
	require.Equal(t, 120*time.Second, set.RegisterExpires)
}

func TestFromConfigInvalid(t *testing.T) {
	var cfg config.Config
	cfg.Account.Caller = "1001"
	_, err := FromConfig(cfg)
	require.ErrorIs(t, err, config.ErrMissingField)
}

func TestTarget(t *testing.T) {
	set := Settings{Caller: "1001", Realm: "sip.example.com"}

	u, err := set.target(" 1002 ")
	require.NoError(t, err)
	require.Equal(t, "1002", u.User)
	require.Equal(t, "sip.example.com", u.Host)

	u, err = set.target("bob@other.example.org")
	require.NoError(t, err)
	require.Equal(t, "bob", u.User)
	require.Equal(t, "other.example.org", u.Host)

	u, err = set.target("sip:alice@pbx.local")
	require.NoError(t, err)
	require.Equal(t, "alice", u.User)
	require.Equal(t, "pbx.local", u.Host)

	aor := set.aor()
	require.Equal(t, "1001", aor.User)
	require.Equal(t, "sip.example.com", aor.Host)
}

func TestRefreshInterval(t *testing.T) {
	require.Equal(t, 480*time.Second, refreshInterval(600*time.Second))
	require.Equal(t, minRefresh, refreshInterval(10*time.Second))
}
