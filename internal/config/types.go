package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jkroepke/sshlog-exporter/internal/config/types"
	"go.yaml.in/yaml/v4"
)

// ErrEmptyConfigFile signals that the configured document had no content;
// New treats this as "use defaults", not a fatal condition.
var ErrEmptyConfigFile = errors.New("configuration file is empty")

// ErrVersion is returned by New when --version was passed, so the caller
// can print version information and exit cleanly.
var ErrVersion = errors.New("version requested")

type Config struct {
	Web            Web    `json:"web"            yaml:"web"`
	Log            Log    `json:"log"            yaml:"log"`
	Global         Global `json:"global"         yaml:"global"`
	SSH            SSH    `json:"ssh"            yaml:"ssh"`
	Script         string `json:"script"         yaml:"script"`
	ReloadInterval int    `json:"reloadInterval" yaml:"reload_interval"`
	VerifyConfig   bool   `json:"-"              yaml:"-"`
}

type Web struct {
	ListenAddress string `json:"listenAddress" yaml:"listenAddress"`
	ConfigFile    string `json:"configFile"    yaml:"configFile"`
}

type Log struct {
	Format string     `json:"format" yaml:"format"`
	Level  slog.Level `json:"level"  yaml:"level"`
}

// Global is the scrape-wide global section: TTL/resilience defaults, an
// optional metric name prefix, named histogram bucket vectors, and the
// ordered column format.
type Global struct {
	Histograms           map[string]types.Float64Slice `json:"histograms"           yaml:"histograms"`
	Prefix               string                         `json:"prefix"               yaml:"prefix"`
	Separator            string                         `json:"separator"            yaml:"separator"`
	Quote                string                         `json:"quote"                yaml:"quote"`
	Format               []FormatEntry                  `json:"format"               yaml:"format"`
	TTLSeconds           int                            `json:"ttl"                  yaml:"ttl"`
	BackgroundResilience int                            `json:"backgroundResilience" yaml:"background_resilience"`
	LongTermResilience   int                            `json:"longTermResilience"   yaml:"long_term_resilience"`
}

// TTL returns global.ttl as a Duration.
func (g Global) TTL() time.Duration { return time.Duration(g.TTLSeconds) * time.Second }

// SeparatorByte returns global.separator's single byte, or 0 if unset;
// logparser substitutes its own default for a zero byte.
func (g Global) SeparatorByte() byte {
	if g.Separator == "" {
		return 0
	}

	return g.Separator[0]
}

// QuoteByte returns global.quote's single byte, or 0 if unset; logparser
// substitutes its own default for a zero byte.
func (g Global) QuoteByte() byte {
	if g.Quote == "" {
		return 0
	}

	return g.Quote[0]
}

// ReloadIntervalDuration returns the supervisor's inventory reload
// interval, or zero if unconfigured (the script then runs once).
func (c Config) ReloadIntervalDuration() time.Duration {
	return time.Duration(c.ReloadInterval) * time.Second
}

// FormatEntry is one column of global.format: either Ignore, or a single
// (Name, Type) pair with an optional Histogram bucket-spec reference.
type FormatEntry struct {
	Name      string
	Type      string
	Histogram string
	Ignore    bool
}

// UnmarshalYAML accepts either a null/empty node (-> Ignore) or a
// single-key mapping "name: type[+histogram_spec]".
//
//goland:noinspection GoMixedReceiverTypes
func (f *FormatEntry) UnmarshalYAML(data *yaml.Node) error {
	if data.Tag == "!!null" || (data.Kind == yaml.MappingNode && len(data.Content) == 0) {
		*f = FormatEntry{Ignore: true}

		return nil
	}

	var raw map[string]string

	if err := data.Decode(&raw); err != nil {
		return fmt.Errorf("config: decoding format entry: %w", err) //nolint:wrapcheck
	}

	if len(raw) == 0 {
		*f = FormatEntry{Ignore: true}

		return nil
	}

	if len(raw) != 1 {
		return fmt.Errorf("config: format entry must have exactly one key, got %d", len(raw))
	}

	for name, spec := range raw {
		typ, histogram, _ := strings.Cut(spec, "+")

		*f = FormatEntry{Name: name, Type: typ, Histogram: histogram}
	}

	return nil
}

// SSH is the ssh configuration subtree: connection defaults plus the
// static per-environment target list.
type SSH struct {
	Environments map[string]SSHEnvironment `json:"environments" yaml:"environments"`
	Connection   SSHConnection             `json:"connection"   yaml:"connection"`
}

// SSHConnection holds the fully-resolved connection settings for one
// target: either the global defaults or an environment's merged override.
type SSHConnection struct {
	File                  string `json:"file"           yaml:"file"`
	User                  string `json:"user"           yaml:"user"`
	Password              string `json:"password"       yaml:"password"`
	PrivateKeyPath        string `json:"pkey"           yaml:"pkey"`
	PrivateKeyPassphrase  string `json:"pkeyPassphrase" yaml:"pkey_passphrase"`
	ConnectTimeoutSeconds int    `json:"connectTimeout" yaml:"connect_timeout"`
	ReadTimeoutMS         int    `json:"readTimeoutMs"  yaml:"read_timeout_ms"`
}

// ConnectTimeout returns connect_timeout as a Duration.
func (c SSHConnection) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// ReadTimeout returns read_timeout_ms as a Duration.
func (c SSHConnection) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// SSHEnvironment is one entry of ssh.environments: a host list plus an
// optional field-by-field override of the connection defaults.
type SSHEnvironment struct {
	Connection *SSHConnectionOverride `json:"connection" yaml:"connection"`
	Hosts      []string               `json:"hosts"      yaml:"hosts"`
}

// SSHConnectionOverride carries only the fields an environment wants to
// override; nil pointers fall through to the default connection.
type SSHConnectionOverride struct {
	File                  *string `json:"file"           yaml:"file"`
	User                  *string `json:"user"           yaml:"user"`
	Password              *string `json:"password"       yaml:"password"`
	PrivateKeyPath        *string `json:"pkey"           yaml:"pkey"`
	PrivateKeyPassphrase  *string `json:"pkeyPassphrase" yaml:"pkey_passphrase"`
	ConnectTimeoutSeconds *int    `json:"connectTimeout" yaml:"connect_timeout"`
	ReadTimeoutMS         *int    `json:"readTimeoutMs"  yaml:"read_timeout_ms"`
}

// Apply merges o onto base, field by field, returning the effective
// connection settings for one environment. A nil receiver returns base
// unchanged.
//
//goland:noinspection GoMixedReceiverTypes
func (o *SSHConnectionOverride) Apply(base SSHConnection) SSHConnection {
	if o == nil {
		return base
	}

	result := base

	if o.File != nil {
		result.File = *o.File
	}

	if o.User != nil {
		result.User = *o.User
	}

	if o.Password != nil {
		result.Password = *o.Password
	}

	if o.PrivateKeyPath != nil {
		result.PrivateKeyPath = *o.PrivateKeyPath
	}

	if o.PrivateKeyPassphrase != nil {
		result.PrivateKeyPassphrase = *o.PrivateKeyPassphrase
	}

	if o.ConnectTimeoutSeconds != nil {
		result.ConnectTimeoutSeconds = *o.ConnectTimeoutSeconds
	}

	if o.ReadTimeoutMS != nil {
		result.ReadTimeoutMS = *o.ReadTimeoutMS
	}

	return result
}

// Effective resolves the host list and merged connection settings for one
// configured environment name.
func (s SSH) Effective(name string) (conn SSHConnection, hosts []string, ok bool) {
	env, exists := s.Environments[name]
	if !exists {
		return SSHConnection{}, nil, false
	}

	return env.Connection.Apply(s.Connection), env.Hosts, true
}

//goland:noinspection GoMixedReceiverTypes
func (c Config) String() string {
	jsonString, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}

	return string(jsonString)
}
