package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[account]
caller = "1001"
sip_realm = "sip.example.com"
server_url = "wss://sip.example.com:8443"
name = "Front Desk"
auto_answer = true

[log]
level = "debug"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PHONE_CONFIG", "")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, 600, cfg.Account.RegisterExpires)
	require.Equal(t, "phone", cfg.SIP.UserAgent)
	require.Equal(t, 40000, cfg.SIP.RTPPort)
	require.Zero(t, cfg.SIP.ListenPort)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.False(t, cfg.Account.AutoAnswer)
	require.ErrorIs(t, cfg.Validate(), ErrMissingField)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, sampleConfig)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "1001", cfg.Account.Caller)
	require.Equal(t, "sip.example.com", cfg.Account.SIPRealm)
	require.Equal(t, "wss://sip.example.com:8443", cfg.Account.ServerURL)
	require.True(t, cfg.Account.AutoAnswer)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "1001@sip.example.com", cfg.Account.Identity())
	require.Equal(t, "Front Desk", cfg.Account.Display())
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), nil)
	require.Error(t, err)
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, sampleConfig)
	t.Setenv("PHONE_ACCOUNT_CALLER", "2002")
	t.Setenv("PHONE_ACCOUNT_NAME", "Env Name")

	fs := pflag.NewFlagSet("phone", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--caller", "3003", "--auto-answer=false"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	require.Equal(t, "3003", cfg.Account.Caller, "flag beats env and file")
	require.Equal(t, "Env Name", cfg.Account.Name, "env beats file")
	require.False(t, cfg.Account.AutoAnswer, "flag beats file")
	require.Equal(t, "sip.example.com", cfg.Account.SIPRealm, "file beats default")
}

func TestDisplayFallsBackToCaller(t *testing.T) {
	t.Parallel()

	a := AccountConfig{Caller: "1001", Name: "  "}
	require.Equal(t, "1001", a.Display())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := Config{Account: AccountConfig{Caller: "1", SIPRealm: "r", ServerURL: "wss://r:8443"}}
	require.NoError(t, ok.Validate())

	cases := map[string]string{
		"ftp://r":   "unsupported scheme",
		"wss://":    "missing host",
		"%zz":       "server_url",
		"sip:r:506": "missing host",
	}
	for raw, want := range cases {
		c := ok
		c.Account.ServerURL = raw
		err := c.Validate()
		require.Error(t, err, raw)
		require.Contains(t, err.Error(), want, raw)
	}

	c := ok
	c.Account.Caller = ""
	require.ErrorIs(t, c.Validate(), ErrMissingField)
}

func TestSaveOmitsPassword(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "out", "config.toml")

	cfg := Config{Account: AccountConfig{Caller: "1001", Password: "s3cret", SIPRealm: "r", ServerURL: "wss://r"}}
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "s3cret")

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "1001", loaded.Account.Caller)
	require.Empty(t, loaded.Account.Password)
}
