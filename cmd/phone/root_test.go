package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/phone/internal/config"
	"github.com/jask/phone/internal/secrets"
)

type fakeSource struct {
	pw  string
	err error
	got string
}

func (f *fakeSource) FetchPassword(identity string) (string, error) {
	f.got = identity
	return f.pw, f.err
}

func accountConfig() config.Config {
	var cfg config.Config
	cfg.Account.Caller = "1001"
	cfg.Account.SIPRealm = "sip.example.com"
	cfg.Account.ServerURL = "wss://sip.example.com"
	return cfg
}

func TestResolvePasswordFromStore(t *testing.T) {
	cfg := accountConfig()
	src := &fakeSource{pw: "s3cret"}

	require.NoError(t, resolvePassword(&cfg, src))
	require.Equal(t, "s3cret", cfg.Account.Password)
	require.Equal(t, "1001@sip.example.com", src.got)
}

func TestResolvePasswordKeepsExplicit(t *testing.T) {
	cfg := accountConfig()
	cfg.Account.Password = "flag"
	src := &fakeSource{pw: "stored"}

	require.NoError(t, resolvePassword(&cfg, src))
	require.Equal(t, "flag", cfg.Account.Password)
	require.Empty(t, src.got)
}

func TestResolvePasswordMissingEntry(t *testing.T) {
	cfg := accountConfig()
	require.NoError(t, resolvePassword(&cfg, &fakeSource{err: secrets.ErrNotFound}))
	require.Empty(t, cfg.Account.Password)

	boom := errors.New("boom")
	require.ErrorIs(t, resolvePassword(&cfg, &fakeSource{err: boom}), boom)
}

func TestSetAndClearPassword(t *testing.T) {
	store := secrets.Open(t.TempDir())
	var out bytes.Buffer

	require.NoError(t, setPassword(store, "1001@sip.example.com", "pw", &out))
	require.Contains(t, out.String(), "password stored for 1001@sip.example.com")

	pw, err := store.FetchPassword("1001@sip.example.com")
	require.NoError(t, err)
	require.Equal(t, "pw", pw)

	out.Reset()
	require.NoError(t, clearPassword(store, "1001@sip.example.com", &out))
	require.Contains(t, out.String(), "password cleared")

	_, err = store.FetchPassword("1001@sip.example.com")
	require.ErrorIs(t, err, secrets.ErrNotFound)
}

func TestSetPasswordRejects(t *testing.T) {
	store := secrets.Open(t.TempDir())
	var out bytes.Buffer

	require.Error(t, setPassword(store, "@", "pw", &out))
	require.Error(t, setPassword(store, "1001@sip.example.com", "", &out))
	require.Empty(t, out.String())
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("hunter2\r\nignored\n"))
	require.NoError(t, err)
	require.Equal(t, "hunter2", got)

	got, err = readLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	require.Equal(t, "no-newline", got)
}

func TestConfigValidateCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[account]
caller = "1001"
sip_realm = "sip.example.com"
server_url = "wss://sip.example.com:8443"
`), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "validate", "--config", path})
	require.NoError(t, root.Execute())
	require.Equal(t, "VALID: 1001@sip.example.com via wss://sip.example.com:8443\n", out.String())
}

func TestConfigValidateCommandMissingAccount(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PHONE_CONFIG", "")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "validate"})
	require.ErrorIs(t, root.Execute(), config.ErrMissingField)
}

func TestConfigInitWritesFlags(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PHONE_CONFIG", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init",
		"--caller", "1001", "--realm", "sip.example.com", "--server", "wss://sip.example.com",
		"--password", "never-written"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "config written")

	raw, err := os.ReadFile(filepath.Join(home, ".config", "phone", "config.toml"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "1001")
	require.NotContains(t, string(raw), "never-written")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "sip.example.com", cfg.Account.SIPRealm)
	require.NoError(t, cfg.Validate())
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"password", "set"}, {"password", "clear"}, {"config", "init"}, {"config", "validate"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
	require.NotNil(t, root.PersistentFlags().Lookup("caller"))
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}
