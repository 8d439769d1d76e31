package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHexKey = "0101010101010101010101010101010101010101010101010101010101010101"

// isolateConfig keeps a developer's own lanchat.yaml out of the test.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolateConfig(t)

	cfg, genKey, err := loadConfig([]string{"--key", testHexKey})
	require.NoError(t, err)
	assert.False(t, genKey)

	assert.Equal(t, SuiteAESGCM, cfg.Cipher)
	assert.Equal(t, defaultChatPort, cfg.Chat.Port)
	assert.Equal(t, time.Second, cfg.Chat.Poll)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, defaultDiscoveryPort, cfg.Discovery.Port)
	assert.Equal(t, "255.255.255.255", cfg.Discovery.Broadcast)
	assert.Equal(t, 5*time.Second, cfg.Discovery.Interval)
	assert.Equal(t, time.Second, cfg.Discovery.ReadTimeout)
	assert.Equal(t, "DISCOVERY_PING", cfg.Discovery.Probe)
	assert.True(t, cfg.Discovery.IgnoreLocal)
	assert.Equal(t, uiTUI, cfg.UI)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Peers)
}

func TestLoadConfig_Flags(t *testing.T) {
	isolateConfig(t)

	cfg, _, err := loadConfig([]string{
		"--key", testHexKey,
		"--cipher", SuiteChaCha20,
		"--port", "9000",
		"--discovery-port", "9001",
		"--broadcast", "192.168.1.255",
		"--peer", "10.0.0.1:9000",
		"--peer", "10.0.0.2",
		"--ui", "cli",
		"--metrics-addr", ":9100",
		"--bell",
	})
	require.NoError(t, err)

	assert.Equal(t, SuiteChaCha20, cfg.Cipher)
	assert.Equal(t, 9000, cfg.Chat.Port)
	assert.Equal(t, 9001, cfg.Discovery.Port)
	assert.Equal(t, "192.168.1.255", cfg.Discovery.Broadcast)
	assert.Equal(t, []string{"10.0.0.1:9000", "10.0.0.2"}, cfg.Peers)
	assert.Equal(t, uiCLI, cfg.UI)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.True(t, cfg.Bell)
}

func TestLoadConfig_NoDiscovery(t *testing.T) {
	isolateConfig(t)

	// Equal ports are fine once discovery is off.
	cfg, _, err := loadConfig([]string{"--key", testHexKey, "--no-discovery", "--discovery-port", "8080"})
	require.NoError(t, err)
	assert.False(t, cfg.Discovery.Enabled)
}

func TestLoadConfig_Env(t *testing.T) {
	isolateConfig(t)
	t.Setenv("LANCHAT_KEY", testHexKey)
	t.Setenv("LANCHAT_CHAT_PORT", "7000")
	t.Setenv("LANCHAT_DISCOVERY_PROBE", "HELLO")
	t.Setenv("LANCHAT_UI", "headless")

	cfg, _, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, testHexKey, cfg.Key)
	assert.Equal(t, 7000, cfg.Chat.Port)
	assert.Equal(t, "HELLO", cfg.Discovery.Probe)
	assert.Equal(t, uiHeadless, cfg.UI)

	// Flags win over the environment.
	cfg, _, err = loadConfig([]string{"--port", "7100"})
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Chat.Port)
}

func TestLoadConfig_File(t *testing.T) {
	isolateConfig(t)

	path := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"key: " + testHexKey,
		"cipher: chacha20-poly1305",
		"chat:",
		"  port: 7200",
		"  poll: 50ms",
		"discovery:",
		"  interval: 2s",
		"  ignore_local: false",
		"peers:",
		"  - 10.1.1.1:7200",
		"log:",
		"  level: debug",
		"  file: /tmp/lanchat-test.log",
	}, "\n")), 0600))

	cfg, _, err := loadConfig([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, SuiteChaCha20, cfg.Cipher)
	assert.Equal(t, 7200, cfg.Chat.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Chat.Poll)
	assert.Equal(t, 2*time.Second, cfg.Discovery.Interval)
	assert.False(t, cfg.Discovery.IgnoreLocal)
	assert.Equal(t, []string{"10.1.1.1:7200"}, cfg.Peers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/lanchat-test.log", cfg.LogPath())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	isolateConfig(t)

	_, _, err := loadConfig([]string{"--key", testHexKey, "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoadConfig_GenKey(t *testing.T) {
	isolateConfig(t)

	cfg, genKey, err := loadConfig([]string{"--gen-key"})
	require.NoError(t, err)
	assert.True(t, genKey)
	assert.Nil(t, cfg)
}

func TestLoadConfig_Invalid(t *testing.T) {
	isolateConfig(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no key", nil, "pre-shared key is required"},
		{"key and file", []string{"--key", testHexKey, "--key-file", "k"}, "mutually exclusive"},
		{"cipher", []string{"--key", testHexKey, "--cipher", "rot13"}, "unknown cipher suite"},
		{"port", []string{"--key", testHexKey, "--port", "70000"}, "invalid chat port"},
		{"same ports", []string{"--key", testHexKey, "--port", "9000", "--discovery-port", "9000"}, "must differ"},
		{"ui", []string{"--key", testHexKey, "--ui", "gui"}, "unknown ui"},
		{"flag", []string{"--bogus"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := loadConfig(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_ValidateSkipsDisabledDiscovery(t *testing.T) {
	cfg := testConfig()
	cfg.Key = testHexKey
	cfg.Chat.Port = 9000
	assert.NoError(t, cfg.Validate())

	cfg.Discovery.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid discovery port")
	assert.Contains(t, err.Error(), "must be positive")
	assert.Contains(t, err.Error(), "probe token")
}

func TestConfig_LoadKeyHex(t *testing.T) {
	cfg := &Config{Key: testHexKey}

	enclave, err := cfg.LoadKey()
	require.NoError(t, err)
	assert.Empty(t, cfg.Key)

	buf, err := enclave.Open()
	require.NoError(t, err)
	defer buf.Destroy()
	assert.Equal(t, testKey(0x01), buf.Bytes())
}

func TestConfig_LoadKeyFile(t *testing.T) {
	dir := t.TempDir()

	raw := filepath.Join(dir, "raw.key")
	require.NoError(t, os.WriteFile(raw, testKey(0x05), 0600))
	hexFile := filepath.Join(dir, "hex.key")
	require.NoError(t, os.WriteFile(hexFile, []byte(testHexKey+"\n"), 0600))

	for _, path := range []string{raw, hexFile} {
		enclave, err := (&Config{KeyFile: path}).LoadKey()
		require.NoError(t, err, path)
		buf, err := enclave.Open()
		require.NoError(t, err)
		assert.Len(t, buf.Bytes(), KeySize)
		buf.Destroy()
	}

	_, err := (&Config{KeyFile: filepath.Join(dir, "missing.key")}).LoadKey()
	assert.Error(t, err)
}

func TestConfig_LoadKeyRejects(t *testing.T) {
	_, err := (&Config{Key: "0102"}).LoadKey()
	assert.ErrorIs(t, err, ErrKeySize)

	_, err = (&Config{Key: strings.Repeat("zz", KeySize)}).LoadKey()
	assert.Error(t, err)
}

func TestConfig_StringOmitsKey(t *testing.T) {
	cfg := testConfig()
	cfg.Key = testHexKey
	assert.NotContains(t, cfg.String(), testHexKey)
}

func TestConfig_LogPath(t *testing.T) {
	assert.Equal(t, "lanchat.log", (&Config{UI: uiTUI}).LogPath())
	assert.Equal(t, "lanchat.log", (&Config{UI: uiCLI}).LogPath())
	assert.Equal(t, "-", (&Config{UI: uiHeadless}).LogPath())
	assert.Equal(t, "x.log", (&Config{UI: uiHeadless, Log: LogConfig{File: "x.log"}}).LogPath())
}
