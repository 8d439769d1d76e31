package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// UI modes.
const (
	uiTUI      = "tui"
	uiCLI      = "cli"
	uiHeadless = "headless"
)

// Config is the merged result of defaults, config file, environment and flags.
type Config struct {
	// Exactly one of Key (hex) or KeyFile must be set.
	Key     string `mapstructure:"key"`
	KeyFile string `mapstructure:"key_file"`
	Cipher  string `mapstructure:"cipher"`

	Chat      ChatConfig      `mapstructure:"chat"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`

	// Static peers added to the peer set at startup.
	Peers []string `mapstructure:"peers"`

	UI      string        `mapstructure:"ui"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Bell    bool          `mapstructure:"bell"`
}

// ChatConfig configures the chat endpoint.
type ChatConfig struct {
	Bind string        `mapstructure:"bind"`
	Port int           `mapstructure:"port"`
	Poll time.Duration `mapstructure:"poll"`
}

// DiscoveryConfig configures the discovery endpoint and its pacing.
type DiscoveryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Bind        string        `mapstructure:"bind"`
	Port        int           `mapstructure:"port"`
	Broadcast   string        `mapstructure:"broadcast"`
	Interval    time.Duration `mapstructure:"interval"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Probe       string        `mapstructure:"probe"`
	IgnoreLocal bool          `mapstructure:"ignore_local"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Empty selects lanchat.log for interactive UIs and stderr otherwise.
	File string `mapstructure:"file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// String never includes key material.
func (c *Config) String() string {
	return fmt.Sprintf("cipher=%s chat=%s:%d discovery=%t(%s:%d) ui=%s",
		c.Cipher, c.Chat.Bind, c.Chat.Port, c.Discovery.Enabled, c.Discovery.Bind, c.Discovery.Port, c.UI)
}

// LogPath resolves the effective log destination.
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	if c.UI == uiHeadless {
		return "-"
	}
	return "lanchat.log"
}

// setConfigDefaults registers the default for every config key.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("cipher", SuiteAESGCM)

	v.SetDefault("chat.bind", "")
	v.SetDefault("chat.port", defaultChatPort)
	v.SetDefault("chat.poll", chatPollInterval.String())

	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.bind", "")
	v.SetDefault("discovery.port", defaultDiscoveryPort)
	v.SetDefault("discovery.broadcast", defaultBroadcast)
	v.SetDefault("discovery.interval", announceInterval.String())
	v.SetDefault("discovery.read_timeout", discoveryReadTimeout.String())
	v.SetDefault("discovery.probe", defaultProbe)
	v.SetDefault("discovery.ignore_local", true)

	v.SetDefault("peers", []string{})
	v.SetDefault("ui", uiTUI)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("bell", false)
}

// newFlagSet defines the command line flags.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("lanchat", pflag.ContinueOnError)
	fs.String("config", "", "path to config file")
	fs.String("key", "", "pre-shared key, 64 hex characters")
	fs.String("key-file", "", "file holding the pre-shared key (32 raw bytes or 64 hex characters)")
	fs.String("cipher", SuiteAESGCM, "cipher suite: aes-256-gcm or chacha20-poly1305")
	fs.Int("port", defaultChatPort, "chat UDP port")
	fs.Int("discovery-port", defaultDiscoveryPort, "discovery UDP port")
	fs.String("broadcast", defaultBroadcast, "discovery broadcast address")
	fs.Bool("no-discovery", false, "disable broadcast discovery")
	fs.StringArray("peer", nil, "static peer address (can be specified multiple times)")
	fs.String("ui", uiTUI, "front end: tui, cli or headless")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-file", "", "log file, - for stderr")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.Bool("bell", false, "ring on incoming messages and new peers")
	fs.Bool("gen-key", false, "print a new random key and exit")
	return fs
}

// bindFlags maps config keys to their flags.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	bindings := map[string]string{
		"key":                 "key",
		"key_file":            "key-file",
		"cipher":              "cipher",
		"chat.port":           "port",
		"discovery.port":      "discovery-port",
		"discovery.broadcast": "broadcast",
		"peers":               "peer",
		"ui":                  "ui",
		"log.level":           "log-level",
		"log.file":            "log-file",
		"metrics.addr":        "metrics-addr",
		"bell":                "bell",
	}
	for key, flag := range bindings {
		v.BindPFlag(key, fs.Lookup(flag))
	}
}

// loadConfig merges defaults, the config file, LANCHAT_* environment
// variables and flags. genKey reports whether --gen-key was given.
func loadConfig(args []string) (cfg *Config, genKey bool, err error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if genKey, _ = fs.GetBool("gen-key"); genKey {
		return nil, true, nil
	}

	v := viper.New()
	v.SetConfigName("lanchat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.lanchat")

	v.SetEnvPrefix("LANCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setConfigDefaults(v)
	bindFlags(v, fs)

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, false, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if off, _ := fs.GetBool("no-discovery"); off {
		cfg.Discovery.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Validate checks everything except the key itself, which LoadKey handles.
func (c *Config) Validate() error {
	var errs []error

	if c.Key == "" && c.KeyFile == "" {
		errs = append(errs, errors.New("a pre-shared key is required (--key, --key-file or LANCHAT_KEY)"))
	}
	if c.Key != "" && c.KeyFile != "" {
		errs = append(errs, errors.New("key and key_file are mutually exclusive"))
	}
	switch strings.ToLower(c.Cipher) {
	case SuiteAESGCM, SuiteChaCha20:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownSuite, c.Cipher))
	}
	if !validPort(c.Chat.Port) {
		errs = append(errs, fmt.Errorf("invalid chat port %d", c.Chat.Port))
	}
	if c.Chat.Poll <= 0 {
		errs = append(errs, errors.New("chat.poll must be positive"))
	}
	if c.Discovery.Enabled {
		if !validPort(c.Discovery.Port) {
			errs = append(errs, fmt.Errorf("invalid discovery port %d", c.Discovery.Port))
		}
		if c.Discovery.Port == c.Chat.Port {
			errs = append(errs, errors.New("chat and discovery ports must differ"))
		}
		if c.Discovery.Interval <= 0 || c.Discovery.ReadTimeout <= 0 {
			errs = append(errs, errors.New("discovery interval and read_timeout must be positive"))
		}
		if c.Discovery.Probe == "" {
			errs = append(errs, errors.New("discovery probe token must not be empty"))
		}
	}
	switch c.UI {
	case uiTUI, uiCLI, uiHeadless:
	default:
		errs = append(errs, fmt.Errorf("unknown ui %q", c.UI))
	}

	return errors.Join(errs...)
}

// validPort reports whether port is a usable UDP port.
func validPort(port int) bool {
	return port > 0 && port <= 65535
}

// LoadKey decodes the configured key into an enclave and drops the config's
// copy. The decoded buffer is wiped by memguard.
func (c *Config) LoadKey() (*memguard.Enclave, error) {
	var (
		raw []byte
		err error
	)
	if c.KeyFile != "" {
		raw, err = readKeyFile(c.KeyFile)
	} else {
		raw, err = decodeHexKey(c.Key)
	}
	c.Key = ""
	if err != nil {
		return nil, err
	}
	if len(raw) != KeySize {
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(raw))
	}
	return memguard.NewEnclave(raw), nil
}

// decodeHexKey decodes a hex key, ignoring surrounding whitespace.
func decodeHexKey(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("key is not valid hex: %w", err)
	}
	return raw, nil
}

// readKeyFile accepts 32 raw bytes or a hex encoded key.
func readKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(data) == KeySize {
		return data, nil
	}
	defer memguard.WipeBytes(data)
	return decodeHexKey(string(data))
}
