package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingField is returned by Validate when a required setting is empty.
var ErrMissingField = errors.New("missing required setting")

// Config holds application configuration.
type Config struct {
	Account AccountConfig
	SIP     SIPConfig
	Log     LogConfig
}

// AccountConfig is the caller identity supplied once at start-up.
type AccountConfig struct {
	Caller          string
	Password        string
	SIPRealm        string `mapstructure:"sip_realm"`
	ServerURL       string `mapstructure:"server_url"`
	Name            string
	AutoAnswer      bool `mapstructure:"auto_answer"`
	RegisterExpires int  `mapstructure:"register_expires"`
}

// SIPConfig holds user agent settings.
type SIPConfig struct {
	UserAgent  string `mapstructure:"user_agent"`
	RTPPort    int    `mapstructure:"rtp_port"`
	ListenPort int    `mapstructure:"listen_port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
	File   FileConfig
}

// FileConfig holds rotating log file settings.
type FileConfig struct {
	Path       string
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Identity is the account address of record, caller@realm.
func (a AccountConfig) Identity() string {
	return a.Caller + "@" + a.SIPRealm
}

// Display is the display name, falling back to the caller.
func (a AccountConfig) Display() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.Caller
}

// flag name -> config key
var flagKeys = map[string]string{
	"caller":      "account.caller",
	"password":    "account.password",
	"realm":       "account.sip_realm",
	"server":      "account.server_url",
	"name":        "account.name",
	"auto-answer": "account.auto_answer",
	"log-level":   "log.level",
	"log-file":    "log.file.path",
}

// RegisterFlags adds the identity flags that Load binds over file and env.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("caller", "", "SIP user (the From number)")
	fs.String("password", "", "SIP password (prefer the secret store)")
	fs.String("realm", "", "SIP realm/domain")
	fs.String("server", "", "signalling server URL, e.g. wss://sip.example.com:8443")
	fs.String("name", "", "display name (defaults to caller)")
	fs.Bool("auto-answer", false, "answer inbound calls automatically")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-file", "", "log file path")
}

// Load reads configuration from defaults, file, env and flags. Env var
// overrides use prefix PHONE_. path overrides the file location; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("account.caller", "")
	v.SetDefault("account.password", "")
	v.SetDefault("account.sip_realm", "")
	v.SetDefault("account.server_url", "")
	v.SetDefault("account.name", "")
	v.SetDefault("account.auto_answer", false)
	v.SetDefault("account.register_expires", 600)
	v.SetDefault("sip.user_agent", "phone")
	v.SetDefault("sip.rtp_port", 40000)
	v.SetDefault("sip.listen_port", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.path", filepath.Join(os.Getenv("HOME"), ".local", "state", "phone", "phone.log"))
	v.SetDefault("log.file.max_size_mb", 10)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age_days", 28)
	v.SetDefault("log.file.compress", false)

	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv("PHONE_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "phone"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PHONE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit path that does not exist is an error, a missing default file is not
		if !errors.As(err, &notFound) && !(path == "" && os.IsNotExist(err)) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Validate checks the settings needed to build the SIP client.
func (c Config) Validate() error {
	required := []struct {
		key, val string
	}{
		{"account.caller", c.Account.Caller},
		{"account.sip_realm", c.Account.SIPRealm},
		{"account.server_url", c.Account.ServerURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, r.key)
		}
	}
	u, err := url.Parse(c.Account.ServerURL)
	if err != nil {
		return fmt.Errorf("account.server_url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss", "sip", "sips", "udp", "tcp", "tls":
	default:
		return fmt.Errorf("account.server_url: unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("account.server_url: missing host")
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// The password is never written; keep it in the secret store or the environment.
func Save(path string, cfg Config) error {
	if path == "" {
		path = os.Getenv("PHONE_CONFIG")
	}
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "phone", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("account.caller", cfg.Account.Caller)
	v.Set("account.sip_realm", cfg.Account.SIPRealm)
	v.Set("account.server_url", cfg.Account.ServerURL)
	v.Set("account.name", cfg.Account.Name)
	v.Set("account.auto_answer", cfg.Account.AutoAnswer)
	v.Set("account.register_expires", cfg.Account.RegisterExpires)
	v.Set("sip.user_agent", cfg.SIP.UserAgent)
	v.Set("sip.rtp_port", cfg.SIP.RTPPort)
	v.Set("sip.listen_port", cfg.SIP.ListenPort)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("log.file.path", cfg.Log.File.Path)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
