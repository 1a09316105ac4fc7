// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Supported config file formats, selected by file extension.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// File is the on-disk representation of the non-secret settings. Durations
// are Go duration strings ("15s", "2m"). Unset fields keep their defaults.
type File struct {
	ListenAddr         string        `toml:"listen_addr,omitempty" yaml:"listen_addr,omitempty" json:"listen_addr,omitempty"`
	RoutePath          string        `toml:"route_path,omitempty" yaml:"route_path,omitempty" json:"route_path,omitempty"`
	ForwardQuery       *bool         `toml:"forward_query,omitempty" yaml:"forward_query,omitempty" json:"forward_query,omitempty"`
	RequestTimeout     string        `toml:"request_timeout,omitempty" yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`
	InsecureSkipVerify *bool         `toml:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty"`
	LogLevel           string        `toml:"log_level,omitempty" yaml:"log_level,omitempty" json:"log_level,omitempty"`
	LogFormat          string        `toml:"log_format,omitempty" yaml:"log_format,omitempty" json:"log_format,omitempty"`
	GracefulShutdown   string        `toml:"graceful_shutdown,omitempty" yaml:"graceful_shutdown,omitempty" json:"graceful_shutdown,omitempty"`
	Airtable           FileAirtable  `toml:"airtable" yaml:"airtable" json:"airtable"`
	Server             FileServer    `toml:"server" yaml:"server" json:"server"`
	CORS               FileCORS      `toml:"cors" yaml:"cors" json:"cors"`
	RateLimit          FileRateLimit `toml:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// FileAirtable is the [airtable] section.
type FileAirtable struct {
	APIURL           string `toml:"api_url,omitempty" yaml:"api_url,omitempty" json:"api_url,omitempty"`
	BaseID           string `toml:"base_id,omitempty" yaml:"base_id,omitempty" json:"base_id,omitempty"`
	TableID          string `toml:"table_id,omitempty" yaml:"table_id,omitempty" json:"table_id,omitempty"`
	StatusView       string `toml:"status_view,omitempty" yaml:"status_view,omitempty" json:"status_view,omitempty"`
	StatusMaxRecords *int   `toml:"status_max_records,omitempty" yaml:"status_max_records,omitempty" json:"status_max_records,omitempty"`
}

// FileServer is the [server] section.
type FileServer struct {
	ReadTimeout  string `toml:"read_timeout,omitempty" yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout string `toml:"write_timeout,omitempty" yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	IdleTimeout  string `toml:"idle_timeout,omitempty" yaml:"idle_timeout,omitempty" json:"idle_timeout,omitempty"`
}

// FileCORS is the [cors] section.
type FileCORS struct {
	AllowedOrigins []string `toml:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty"`
}

// FileRateLimit is the [rate_limit] section.
type FileRateLimit struct {
	RPS   *float64 `toml:"rps,omitempty" yaml:"rps,omitempty" json:"rps,omitempty"`
	Burst *int     `toml:"burst,omitempty" yaml:"burst,omitempty" json:"burst,omitempty"`
}

// FormatFromPath maps a file extension to one of the Format constants.
func FormatFromPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config file extension %q (want .toml, .yaml, .yml, .json or .jsonc)", ext)
	}
}

// ReadFile parses the config file at path. Unknown keys are rejected so that
// typos fail at startup instead of being silently ignored.
func ReadFile(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	doc, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return doc, nil
}

// Decode parses data in the given format.
func Decode(data []byte, format string) (*File, error) {
	doc := &File{}
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), doc)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	return doc, nil
}

// Encode writes doc to w in the given format.
func (f *File) Encode(w io.Writer, format string) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(f)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}

// ToFile renders cfg as a File. The credential has no file representation
// and is never included.
func (c Config) ToFile() *File {
	forward := c.ForwardQuery
	insecure := c.InsecureSkipVerify
	maxRecords := c.Airtable.StatusMaxRecords
	rps := c.RateLimit
	burst := c.RateBurst

	var apiURL string
	if c.Airtable.APIURL != nil {
		apiURL = c.Airtable.APIURL.String()
	}

	return &File{
		ListenAddr:         c.ListenAddr,
		RoutePath:          c.RoutePath,
		ForwardQuery:       &forward,
		RequestTimeout:     c.RequestTimeout.String(),
		InsecureSkipVerify: &insecure,
		LogLevel:           c.LogLevel,
		LogFormat:          c.LogFormat,
		GracefulShutdown:   c.GracefulShutdownTimeout.String(),
		Airtable: FileAirtable{
			APIURL:           apiURL,
			BaseID:           c.Airtable.BaseID,
			TableID:          c.Airtable.TableID,
			StatusView:       c.Airtable.StatusView,
			StatusMaxRecords: &maxRecords,
		},
		Server: FileServer{
			ReadTimeout:  c.ServerReadTimeout.String(),
			WriteTimeout: c.ServerWriteTimeout.String(),
			IdleTimeout:  c.ServerIdleTimeout.String(),
		},
		CORS:      FileCORS{AllowedOrigins: append([]string(nil), c.CORSAllowedOrigins...)},
		RateLimit: FileRateLimit{RPS: &rps, Burst: &burst},
	}
}

func (f *File) apply(cfg *Config) error {
	var errs []error

	setString := func(dst *string, val string) {
		if val = strings.TrimSpace(val); val != "" {
			*dst = val
		}
	}
	setDuration := func(name string, dst *time.Duration, val string) {
		if val = strings.TrimSpace(val); val == "" {
			return
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
			return
		}
		*dst = d
	}

	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.RoutePath, f.RoutePath)
	if f.ForwardQuery != nil {
		cfg.ForwardQuery = *f.ForwardQuery
	}
	setDuration("request_timeout", &cfg.RequestTimeout, f.RequestTimeout)
	if f.InsecureSkipVerify != nil {
		cfg.InsecureSkipVerify = *f.InsecureSkipVerify
	}
	setString(&cfg.LogLevel, strings.ToLower(f.LogLevel))
	setString(&cfg.LogFormat, strings.ToLower(f.LogFormat))
	setDuration("graceful_shutdown", &cfg.GracefulShutdownTimeout, f.GracefulShutdown)

	if raw := strings.TrimSpace(f.Airtable.APIURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid airtable.api_url: %w", err))
		} else {
			cfg.Airtable.APIURL = u
		}
	}
	setString(&cfg.Airtable.BaseID, f.Airtable.BaseID)
	setString(&cfg.Airtable.TableID, f.Airtable.TableID)
	setString(&cfg.Airtable.StatusView, f.Airtable.StatusView)
	if f.Airtable.StatusMaxRecords != nil {
		cfg.Airtable.StatusMaxRecords = *f.Airtable.StatusMaxRecords
	}

	setDuration("server.read_timeout", &cfg.ServerReadTimeout, f.Server.ReadTimeout)
	setDuration("server.write_timeout", &cfg.ServerWriteTimeout, f.Server.WriteTimeout)
	setDuration("server.idle_timeout", &cfg.ServerIdleTimeout, f.Server.IdleTimeout)

	if len(f.CORS.AllowedOrigins) > 0 {
		origins := make([]string, 0, len(f.CORS.AllowedOrigins))
		for _, o := range f.CORS.AllowedOrigins {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSAllowedOrigins = origins
	}
	if f.RateLimit.RPS != nil {
		cfg.RateLimit = *f.RateLimit.RPS
	}
	if f.RateLimit.Burst != nil {
		cfg.RateBurst = *f.RateLimit.Burst
	}

	return errors.Join(errs...)
}
