// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const (
	envAPIToken           = "AIRTABLE_API_TOKEN"
	envAPIKeyLegacy       = "AIRTABLE_API_KEY"
	envAPIURL             = "AIRTABLE_API_URL"
	envBaseID             = "AIRTABLE_BASE_ID"
	envTableID            = "AIRTABLE_TABLE_ID"
	envStatusView         = "AIRTABLE_STATUS_VIEW"
	envStatusMaxRecords   = "AIRTABLE_STATUS_MAX_RECORDS"
	envConfigFile         = "KYC_CONFIG"
	envListenAddr         = "KYC_LISTEN_ADDR"
	envRoutePath          = "KYC_ROUTE_PATH"
	envForwardQuery       = "KYC_FORWARD_QUERY"
	envRequestTimeout     = "KYC_REQUEST_TIMEOUT"
	envInsecureSkip       = "KYC_UPSTREAM_INSECURE"
	envLogLevel           = "KYC_LOG_LEVEL"
	envLogFormat          = "KYC_LOG_FORMAT"
	envServerReadTimeout  = "KYC_SERVER_READ_TIMEOUT"
	envServerWriteTimeout = "KYC_SERVER_WRITE_TIMEOUT"
	envServerIdleTimeout  = "KYC_SERVER_IDLE_TIMEOUT"
	envGracefulShutdown   = "KYC_GRACEFUL_SHUTDOWN"
	envCORSOrigins        = "KYC_CORS_ORIGINS"
	envRateLimit          = "KYC_RATE_LIMIT"
	envRateBurst          = "KYC_RATE_BURST"

	defaultAPIURL             = "https://api.airtable.com"
	defaultBaseID             = "appc0ZVhbKj8hMLvH"
	defaultTableID            = "tblIxT2t2gHoZMucn"
	defaultStatusView         = "Grid view"
	defaultStatusMaxRecords   = 5
	defaultListenAddr         = "127.0.0.1:8080"
	defaultRoutePath          = "/kyc"
	defaultRequestTimeout     = 15 * time.Second
	defaultLogLevel           = "info"
	defaultLogFormat          = LogFormatJSON
	defaultServerReadTimeout  = 30 * time.Second
	defaultServerWriteTimeout = 30 * time.Second
	defaultServerIdleTimeout  = 120 * time.Second
	defaultGracefulShutdown   = 10 * time.Second
	defaultRateBurst          = 10
)

// Supported values for Config.LogFormat.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Flag names registered by RegisterFlags.
const (
	FlagListen    = "listen"
	FlagBaseID    = "base-id"
	FlagTableID   = "table-id"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
)

// ErrMissingToken is returned by Load when no Airtable credential is configured.
var ErrMissingToken = errors.New(envAPIToken + " is required")

// Airtable holds the upstream table coordinates and the credential used to
// read it.
type Airtable struct {
	APIURL   *url.URL
	BaseID   string
	TableID  string
	APIToken string
	// StatusView and StatusMaxRecords shape the per-account status query.
	StatusView       string
	StatusMaxRecords int
}

// Config captures runtime settings for the proxy.
type Config struct {
	ListenAddr              string
	RoutePath               string
	ForwardQuery            bool
	Airtable                Airtable
	RequestTimeout          time.Duration
	InsecureSkipVerify      bool
	LogLevel                string
	LogFormat               string
	ServerReadTimeout       time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	GracefulShutdownTimeout time.Duration
	CORSAllowedOrigins      []string
	// RateLimit is the sustained inbound requests per second; zero disables
	// limiting.
	RateLimit float64
	RateBurst int
}

// Defaults returns the configuration used when nothing overrides a value.
// The credential is intentionally absent.
func Defaults() Config {
	apiURL, _ := url.Parse(defaultAPIURL)
	return Config{
		ListenAddr:   defaultListenAddr,
		RoutePath:    defaultRoutePath,
		ForwardQuery: true,
		Airtable: Airtable{
			APIURL:           apiURL,
			BaseID:           defaultBaseID,
			TableID:          defaultTableID,
			StatusView:       defaultStatusView,
			StatusMaxRecords: defaultStatusMaxRecords,
		},
		RequestTimeout:          defaultRequestTimeout,
		LogLevel:                defaultLogLevel,
		LogFormat:               defaultLogFormat,
		ServerReadTimeout:       defaultServerReadTimeout,
		ServerWriteTimeout:      defaultServerWriteTimeout,
		ServerIdleTimeout:       defaultServerIdleTimeout,
		GracefulShutdownTimeout: defaultGracefulShutdown,
		CORSAllowedOrigins:      []string{"*"},
		RateBurst:               defaultRateBurst,
	}
}

// RegisterFlags adds the command-line overrides understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagListen, defaultListenAddr, "address to listen on (env "+envListenAddr+")")
	fs.String(FlagBaseID, defaultBaseID, "Airtable base ID (env "+envBaseID+")")
	fs.String(FlagTableID, defaultTableID, "Airtable table ID or name (env "+envTableID+")")
	fs.String(FlagLogLevel, defaultLogLevel, "log level: trace, debug, info, warn, error (env "+envLogLevel+")")
	fs.String(FlagLogFormat, defaultLogFormat, "log format: json or console (env "+envLogFormat+")")
}

// Load builds the configuration from defaults, an optional config file,
// environment variables and explicitly set flags, in that order of
// precedence, and validates the result. path may be empty, in which case
// KYC_CONFIG is consulted. flags may be nil.
//
// The Airtable credential is only ever read from the environment.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfigFile))
	}
	if path != "" {
		doc, err := ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := doc.apply(&cfg); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if flags != nil {
		if err := applyFlags(&cfg, flags); err != nil {
			return Config{}, err
		}
	}

	token := strings.TrimSpace(os.Getenv(envAPIToken))
	if token == "" {
		token = strings.TrimSpace(os.Getenv(envAPIKeyLegacy))
	}
	if token == "" {
		return Config{}, ErrMissingToken
	}
	cfg.Airtable.APIToken = token

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem found in cfg.
func (c Config) Validate() error {
	var errs []error

	if err := validateToken(c.Airtable.APIToken); err != nil {
		errs = append(errs, err)
	}
	if c.Airtable.APIURL == nil || !c.Airtable.APIURL.IsAbs() {
		errs = append(errs, errors.New(envAPIURL+" must be absolute (scheme://host)"))
	} else if s := c.Airtable.APIURL.Scheme; s != "http" && s != "https" {
		errs = append(errs, fmt.Errorf("%s scheme must be http or https, got %q", envAPIURL, s))
	}
	if err := validateID("base ID", c.Airtable.BaseID); err != nil {
		errs = append(errs, err)
	}
	if err := validateID("table ID", c.Airtable.TableID); err != nil {
		errs = append(errs, err)
	}
	if c.Airtable.StatusMaxRecords <= 0 {
		errs = append(errs, fmt.Errorf("status max records must be positive, got %d", c.Airtable.StatusMaxRecords))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	route := strings.TrimSuffix(c.RoutePath, "/")
	switch {
	case !strings.HasPrefix(c.RoutePath, "/") || route == "":
		errs = append(errs, fmt.Errorf("route path must start with / and not be the root, got %q", c.RoutePath))
	case strings.ContainsAny(c.RoutePath, "{} \t"):
		errs = append(errs, fmt.Errorf("route path must not contain braces or whitespace, got %q", c.RoutePath))
	case route == "/healthz":
		errs = append(errs, errors.New("route path /healthz is reserved"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err))
	}
	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatConsole {
		errs = append(errs, fmt.Errorf("log format must be %q or %q, got %q", LogFormatJSON, LogFormatConsole, c.LogFormat))
	}
	for name, d := range map[string]time.Duration{
		"request timeout":   c.RequestTimeout,
		"read timeout":      c.ServerReadTimeout,
		"write timeout":     c.ServerWriteTimeout,
		"idle timeout":      c.ServerIdleTimeout,
		"graceful shutdown": c.GracefulShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate burst must be at least 1, got %d", c.RateBurst))
	}

	return errors.Join(errs...)
}

func validateToken(token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if strings.IndexFunc(token, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return errors.New(envAPIToken + " must not contain whitespace or control characters")
	}
	return nil
}

func validateID(name, id string) error {
	if id == "" {
		return fmt.Errorf("airtable %s must not be empty", name)
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("airtable %s must not contain '/', got %q", name, id)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if raw := strings.TrimSpace(os.Getenv(envAPIURL)); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			collect(fmt.Errorf("invalid %s: %w", envAPIURL, err))
		} else {
			cfg.Airtable.APIURL = u
		}
	}
	cfg.Airtable.BaseID = getString(envBaseID, cfg.Airtable.BaseID)
	cfg.Airtable.TableID = getString(envTableID, cfg.Airtable.TableID)
	cfg.Airtable.StatusView = getString(envStatusView, cfg.Airtable.StatusView)
	collect(getInt(envStatusMaxRecords, &cfg.Airtable.StatusMaxRecords))

	cfg.ListenAddr = getString(envListenAddr, cfg.ListenAddr)
	cfg.RoutePath = getString(envRoutePath, cfg.RoutePath)
	collect(getBool(envForwardQuery, &cfg.ForwardQuery))
	collect(getDuration(envRequestTimeout, &cfg.RequestTimeout))
	collect(getBool(envInsecureSkip, &cfg.InsecureSkipVerify))
	cfg.LogLevel = strings.ToLower(getString(envLogLevel, cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getString(envLogFormat, cfg.LogFormat))
	collect(getDuration(envServerReadTimeout, &cfg.ServerReadTimeout))
	collect(getDuration(envServerWriteTimeout, &cfg.ServerWriteTimeout))
	collect(getDuration(envServerIdleTimeout, &cfg.ServerIdleTimeout))
	collect(getDuration(envGracefulShutdown, &cfg.GracefulShutdownTimeout))
	if origins := splitList(os.Getenv(envCORSOrigins)); len(origins) > 0 {
		cfg.CORSAllowedOrigins = origins
	}
	collect(getFloat(envRateLimit, &cfg.RateLimit))
	collect(getInt(envRateBurst, &cfg.RateBurst))

	return errors.Join(errs...)
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	targets := map[string]*string{
		FlagListen:    &cfg.ListenAddr,
		FlagBaseID:    &cfg.Airtable.BaseID,
		FlagTableID:   &cfg.Airtable.TableID,
		FlagLogLevel:  &cfg.LogLevel,
		FlagLogFormat: &cfg.LogFormat,
	}
	for name, dst := range targets {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
		*dst = strings.TrimSpace(val)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	return nil
}

func getString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, dst *bool) error {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func getInt(key string, dst *int) error {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func getFloat(key string, dst *float64) error {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func getDuration(key string, dst *time.Duration) error {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
