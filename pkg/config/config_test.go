// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnv = []string{
	envAPIToken, envAPIKeyLegacy, envAPIURL, envBaseID, envTableID, envStatusView,
	envStatusMaxRecords, envConfigFile, envListenAddr, envRoutePath, envForwardQuery,
	envRequestTimeout, envInsecureSkip, envLogLevel, envLogFormat, envServerReadTimeout,
	envServerWriteTimeout, envServerIdleTimeout, envGracefulShutdown, envCORSOrigins,
	envRateLimit, envRateBurst,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnv {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)

	_, err := Load("", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingToken))
}

func TestLoadRejectsInvalidToken(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIToken, "pat\x00abc")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whitespace or control characters")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIToken, "  secrettoken  ")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "secrettoken", cfg.Airtable.APIToken)
	assert.Equal(t, "https://api.airtable.com", cfg.Airtable.APIURL.String())
	assert.Equal(t, defaultBaseID, cfg.Airtable.BaseID)
	assert.Equal(t, defaultTableID, cfg.Airtable.TableID)
	assert.Equal(t, "Grid view", cfg.Airtable.StatusView)
	assert.Equal(t, 5, cfg.Airtable.StatusMaxRecords)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "/kyc", cfg.RoutePath)
	assert.True(t, cfg.ForwardQuery)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Zero(t, cfg.RateLimit)
}

func TestLoadLegacyTokenName(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIKeyLegacy, "legacy")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Airtable.APIToken)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIToken, "secrettoken")
	t.Setenv(envBaseID, "BASE123")
	t.Setenv(envTableID, "TBL456")
	t.Setenv(envListenAddr, "0.0.0.0:9000")
	t.Setenv(envForwardQuery, "false")
	t.Setenv(envRequestTimeout, "3s")
	t.Setenv(envLogLevel, "DEBUG")
	t.Setenv(envCORSOrigins, "https://a.example, https://b.example")
	t.Setenv(envRateLimit, "2.5")
	t.Setenv(envRateBurst, "4")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "BASE123", cfg.Airtable.BaseID)
	assert.Equal(t, "TBL456", cfg.Airtable.TableID)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.False(t, cfg.ForwardQuery)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 4, cfg.RateBurst)
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIToken, "secrettoken")
	t.Setenv(envRequestTimeout, "soon")
	t.Setenv(envForwardQuery, "maybe")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), envRequestTimeout)
	assert.Contains(t, err.Error(), envForwardQuery)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIToken, "secrettoken")

	cases := map[string]func(*Config){
		"relative api url": func(c *Config) { c.Airtable.APIURL.Scheme = ""; c.Airtable.APIURL.Host = "" },
		"empty base":       func(c *Config) { c.Airtable.BaseID = "" },
		"slash in table":   func(c *Config) { c.Airtable.TableID = "tbl/../x" },
		"root route":       func(c *Config) { c.RoutePath = "/" },
		"reserved route":   func(c *Config) { c.RoutePath = "/healthz/" },
		"wildcard route":   func(c *Config) { c.RoutePath = "/kyc/{id}" },
		"bad level":        func(c *Config) { c.LogLevel = "loud" },
		"bad format":       func(c *Config) { c.LogFormat = "xml" },
		"zero timeout":     func(c *Config) { c.RequestTimeout = 0 },
		"negative rate":    func(c *Config) { c.RateLimit = -1 },
		"zero burst":       func(c *Config) { c.RateLimit = 1; c.RateBurst = 0 },
		"zero max records": func(c *Config) { c.Airtable.StatusMaxRecords = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load("", nil)
			require.NoError(t, err)
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIToken, "secrettoken")
	t.Setenv(envListenAddr, "0.0.0.0:9000")
	t.Setenv(envBaseID, "FROMENV")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--listen", "127.0.0.1:7000", "--log-format", "console"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
	assert.Equal(t, LogFormatConsole, cfg.LogFormat)
	// unset flags do not clobber env values with their defaults
	assert.Equal(t, "FROMENV", cfg.Airtable.BaseID)
}

func TestLoadFileFormats(t *testing.T) {
	files := map[string]string{
		"kyc.toml": `
listen_addr = "0.0.0.0:8443"
forward_query = false
request_timeout = "5s"

[airtable]
base_id = "BASE123"
table_id = "TBL456"
status_max_records = 3

[server]
read_timeout = "7s"

[cors]
allowed_origins = ["https://app.example"]

[rate_limit]
rps = 5.0
burst = 20
`,
		"kyc.yaml": `
listen_addr: 0.0.0.0:8443
forward_query: false
request_timeout: 5s
airtable:
  base_id: BASE123
  table_id: TBL456
  status_max_records: 3
server:
  read_timeout: 7s
cors:
  allowed_origins: ["https://app.example"]
rate_limit:
  rps: 5
  burst: 20
`,
		"kyc.jsonc": `{
  // comments are allowed
  "listen_addr": "0.0.0.0:8443",
  "forward_query": false,
  "request_timeout": "5s",
  "airtable": {"base_id": "BASE123", "table_id": "TBL456", "status_max_records": 3},
  "server": {"read_timeout": "7s"},
  "cors": {"allowed_origins": ["https://app.example"]},
  "rate_limit": {"rps": 5, "burst": 20},
}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(envAPIToken, "secrettoken")
			path := writeFile(t, name, content)

			cfg, err := Load(path, nil)
			require.NoError(t, err)

			assert.Equal(t, "0.0.0.0:8443", cfg.ListenAddr)
			assert.False(t, cfg.ForwardQuery)
			assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
			assert.Equal(t, "BASE123", cfg.Airtable.BaseID)
			assert.Equal(t, "TBL456", cfg.Airtable.TableID)
			assert.Equal(t, 3, cfg.Airtable.StatusMaxRecords)
			assert.Equal(t, 7*time.Second, cfg.ServerReadTimeout)
			assert.Equal(t, defaultServerWriteTimeout, cfg.ServerWriteTimeout)
			assert.Equal(t, []string{"https://app.example"}, cfg.CORSAllowedOrigins)
			assert.Equal(t, 5.0, cfg.RateLimit)
			assert.Equal(t, 20, cfg.RateBurst)
		})
	}
}

func TestLoadFileFromEnvPathAndEnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIToken, "secrettoken")
	path := writeFile(t, "kyc.yaml", "airtable:\n  base_id: FROMFILE\n  table_id: TBLFILE\n")
	t.Setenv(envConfigFile, path)
	t.Setenv(envTableID, "TBLENV")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "FROMFILE", cfg.Airtable.BaseID)
	assert.Equal(t, "TBLENV", cfg.Airtable.TableID)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	for name, content := range map[string]string{
		"kyc.toml": "listen_adr = \"x\"\n",
		"kyc.yaml": "airtable:\n  api_token: nope\n",
		"kyc.json": `{"unknown": 1}`,
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(envAPIToken, "secrettoken")

			_, err := Load(writeFile(t, name, content), nil)
			require.Error(t, err)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIToken, "secrettoken")

	_, err := Load(writeFile(t, "kyc.ini", "x=1"), nil)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"), nil)
	require.Error(t, err)

	_, err = Load(writeFile(t, "kyc.toml", "request_timeout = \"later\"\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request_timeout")
}

func TestToFileOmitsToken(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAPIToken, "secrettoken")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	for _, format := range []string{FormatTOML, FormatYAML, FormatJSON} {
		var buf bytes.Buffer
		require.NoError(t, cfg.ToFile().Encode(&buf, format))
		assert.NotContains(t, buf.String(), "secrettoken", format)
		assert.Contains(t, buf.String(), defaultBaseID, format)

		// the rendered document loads back to the same settings
		doc, err := Decode(buf.Bytes(), format)
		require.NoError(t, err, format)
		again := Defaults()
		require.NoError(t, doc.apply(&again), format)
		again.Airtable.APIToken = cfg.Airtable.APIToken
		assert.Equal(t, cfg, again, format)
	}
}
