// Package config loads settings for the device CLI and the development
// verifier. Values come from defaults, then an optional YAML file, then
// ZKEKYC_* environment variables. Binaries apply command-line flags last.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/vault"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ZKEKYC_"

// Log selects the slog handler
type Log struct {
	Format string `yaml:"format"` // text|json
	Level  string `yaml:"level"`  // debug|info|warn|error
}

// Client configures the device CLI
type Client struct {
	ServerURL     string
	StateDir      string
	KeyringFile   string // defaults to <StateDir>/keyring.json
	SecretFile    string // defaults to <StateDir>/enrollment.json
	PassphraseEnv string // env var holding the keyring passphrase
	Suite         string
	Curve         string
	Timeout       time.Duration
	Log           Log
}

// Verifier configures the development verifier
type Verifier struct {
	Addr            string
	Issuer          string
	Audience        string
	TokenTTL        time.Duration
	SessionTTL      time.Duration
	MaxClockSkew    time.Duration
	RequestTimeout  time.Duration
	RateLimit       int // requests per minute per client, 0 disables
	RequireApproval bool
	Curve           string
	SigningKeyPath  string
	KeyID           string
	AdminTokenEnv   string // env var holding the admin bearer token
	Log             Log
}

// File is the on-disk layout. Pointers distinguish unset from zero.
type File struct {
	Client   ClientFile   `yaml:"client"`
	Verifier VerifierFile `yaml:"verifier"`
}

// ClientFile is the client section of File
type ClientFile struct {
	ServerURL     string        `yaml:"serverURL"`
	StateDir      string        `yaml:"stateDir"`
	KeyringFile   string        `yaml:"keyringFile"`
	SecretFile    string        `yaml:"secretFile"`
	PassphraseEnv string        `yaml:"passphraseEnv"`
	Suite         string        `yaml:"suite"`
	Curve         string        `yaml:"curve"`
	Timeout       time.Duration `yaml:"timeout"`
	Log           Log           `yaml:"log"`
}

// VerifierFile is the verifier section of File
type VerifierFile struct {
	Addr            string        `yaml:"addr"`
	Issuer          string        `yaml:"issuer"`
	Audience        string        `yaml:"audience"`
	TokenTTL        time.Duration `yaml:"tokenTTL"`
	SessionTTL      time.Duration `yaml:"sessionTTL"`
	MaxClockSkew    time.Duration `yaml:"maxClockSkew"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	RateLimit       *int          `yaml:"rateLimit"`
	RequireApproval *bool         `yaml:"requireApproval"`
	Curve           string        `yaml:"curve"`
	SigningKeyPath  string        `yaml:"signingKeyPath"`
	KeyID           string        `yaml:"keyID"`
	AdminTokenEnv   string        `yaml:"adminTokenEnv"`
	Log             Log           `yaml:"log"`
}

// DefaultClient returns the client defaults
func DefaultClient() Client {
	stateDir := ".zkekyc"
	if home, err := os.UserHomeDir(); err == nil {
		stateDir = filepath.Join(home, ".zkekyc")
	}
	return Client{
		ServerURL:     "http://127.0.0.1:8000",
		StateDir:      stateDir,
		PassphraseEnv: EnvPrefix + "PASSPHRASE",
		Suite:         string(vault.SuiteAESGCM),
		Curve:         curve.DefaultName,
		Timeout:       30 * time.Second,
		Log:           Log{Format: "text", Level: "info"},
	}
}

// DefaultVerifier returns the verifier defaults
func DefaultVerifier() Verifier {
	return Verifier{
		Addr:           ":8000",
		Issuer:         "https://verifier.zkekyc.local",
		Audience:       "zkekyc-app",
		TokenTTL:       15 * time.Minute,
		SessionTTL:     5 * time.Minute,
		MaxClockSkew:   5 * time.Minute,
		RequestTimeout: 30 * time.Second,
		RateLimit:      120,
		Curve:          curve.DefaultName,
		SigningKeyPath: "keys/session-signing.pem",
		KeyID:          "verifier-key-1",
		AdminTokenEnv:  EnvPrefix + "ADMIN_TOKEN",
		Log:            Log{Format: "text", Level: "info"},
	}
}

// ReadFile parses a YAML config file. An empty path yields an empty File.
func ReadFile(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// LoadClient builds the client configuration from defaults, path and the
// environment
func LoadClient(path string) (Client, error) {
	f, err := ReadFile(path)
	if err != nil {
		return Client{}, err
	}
	cfg := DefaultClient()
	MergeClient(&cfg, f.Client)
	if err := ApplyClientEnv(&cfg); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

// LoadVerifier builds the verifier configuration from defaults, path and
// the environment
func LoadVerifier(path string) (Verifier, error) {
	f, err := ReadFile(path)
	if err != nil {
		return Verifier{}, err
	}
	cfg := DefaultVerifier()
	MergeVerifier(&cfg, f.Verifier)
	if err := ApplyVerifierEnv(&cfg); err != nil {
		return Verifier{}, err
	}
	return cfg, nil
}

func mergeLog(dst *Log, src Log) {
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.Level != "" {
		dst.Level = src.Level
	}
}

// MergeClient copies the values set in src over dst
func MergeClient(dst *Client, src ClientFile) {
	if src.ServerURL != "" {
		dst.ServerURL = src.ServerURL
	}
	if src.StateDir != "" {
		dst.StateDir = src.StateDir
	}
	if src.KeyringFile != "" {
		dst.KeyringFile = src.KeyringFile
	}
	if src.SecretFile != "" {
		dst.SecretFile = src.SecretFile
	}
	if src.PassphraseEnv != "" {
		dst.PassphraseEnv = src.PassphraseEnv
	}
	if src.Suite != "" {
		dst.Suite = src.Suite
	}
	if src.Curve != "" {
		dst.Curve = src.Curve
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	mergeLog(&dst.Log, src.Log)
}

// MergeVerifier copies the values set in src over dst
func MergeVerifier(dst *Verifier, src VerifierFile) {
	if src.Addr != "" {
		dst.Addr = src.Addr
	}
	if src.Issuer != "" {
		dst.Issuer = src.Issuer
	}
	if src.Audience != "" {
		dst.Audience = src.Audience
	}
	if src.TokenTTL != 0 {
		dst.TokenTTL = src.TokenTTL
	}
	if src.SessionTTL != 0 {
		dst.SessionTTL = src.SessionTTL
	}
	if src.MaxClockSkew != 0 {
		dst.MaxClockSkew = src.MaxClockSkew
	}
	if src.RequestTimeout != 0 {
		dst.RequestTimeout = src.RequestTimeout
	}
	if src.RateLimit != nil {
		dst.RateLimit = *src.RateLimit
	}
	if src.RequireApproval != nil {
		dst.RequireApproval = *src.RequireApproval
	}
	if src.Curve != "" {
		dst.Curve = src.Curve
	}
	if src.SigningKeyPath != "" {
		dst.SigningKeyPath = src.SigningKeyPath
	}
	if src.KeyID != "" {
		dst.KeyID = src.KeyID
	}
	if src.AdminTokenEnv != "" {
		dst.AdminTokenEnv = src.AdminTokenEnv
	}
	mergeLog(&dst.Log, src.Log)
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

func envDuration(name string, dst *time.Duration) error {
	raw := env(name)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = d
	return nil
}

func envString(name string, dst *string) {
	if v := env(name); v != "" {
		*dst = v
	}
}

func applyLogEnv(l *Log) {
	envString("LOG_FORMAT", &l.Format)
	envString("LOG_LEVEL", &l.Level)
}

// ApplyClientEnv applies ZKEKYC_* overrides to cfg
func ApplyClientEnv(cfg *Client) error {
	envString("SERVER_URL", &cfg.ServerURL)
	envString("STATE_DIR", &cfg.StateDir)
	envString("SUITE", &cfg.Suite)
	envString("CURVE", &cfg.Curve)
	applyLogEnv(&cfg.Log)
	return envDuration("TIMEOUT", &cfg.Timeout)
}

// ApplyVerifierEnv applies ZKEKYC_* overrides to cfg
func ApplyVerifierEnv(cfg *Verifier) error {
	envString("ADDR", &cfg.Addr)
	envString("ISSUER", &cfg.Issuer)
	envString("AUDIENCE", &cfg.Audience)
	envString("CURVE", &cfg.Curve)
	envString("SIGNING_KEY", &cfg.SigningKeyPath)
	applyLogEnv(&cfg.Log)

	if raw := env("RATE_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err)
		}
		cfg.RateLimit = n
	}
	if raw := env("REQUIRE_APPROVAL"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%sREQUIRE_APPROVAL: %w", EnvPrefix, err)
		}
		cfg.RequireApproval = v
	}
	for name, dst := range map[string]*time.Duration{
		"TOKEN_TTL":      &cfg.TokenTTL,
		"SESSION_TTL":    &cfg.SessionTTL,
		"MAX_CLOCK_SKEW": &cfg.MaxClockSkew,
	} {
		if err := envDuration(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// KeyringPath returns the keyring file location
func (c Client) KeyringPath() string {
	if c.KeyringFile != "" {
		return c.KeyringFile
	}
	return filepath.Join(c.StateDir, "keyring.json")
}

// SecretPath returns the enrollment slot location
func (c Client) SecretPath() string {
	if c.SecretFile != "" {
		return c.SecretFile
	}
	return filepath.Join(c.StateDir, "enrollment.json")
}

// Validate checks the client configuration
func (c Client) Validate() error {
	var errs []error
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server URL must be an http(s) URL: %q", c.ServerURL))
	}
	if c.StateDir == "" && (c.KeyringFile == "" || c.SecretFile == "") {
		errs = append(errs, errors.New("state directory is required"))
	}
	if c.PassphraseEnv == "" {
		errs = append(errs, errors.New("passphrase variable name is required"))
	}
	if _, err := vault.ParseSuite(c.Suite); err != nil {
		errs = append(errs, err)
	}
	if _, err := curve.FromName(c.Curve); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Validate checks the verifier configuration
func (c Verifier) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.Issuer == "" || c.Audience == "" {
		errs = append(errs, errors.New("issuer and audience are required"))
	}
	if c.TokenTTL <= 0 || c.SessionTTL <= 0 {
		errs = append(errs, errors.New("token and session TTL must be positive"))
	}
	if c.MaxClockSkew < 0 || c.RequestTimeout < 0 || c.RateLimit < 0 {
		errs = append(errs, errors.New("negative durations or rate limit"))
	}
	if _, err := curve.FromName(c.Curve); err != nil {
		errs = append(errs, err)
	}
	if c.SigningKeyPath == "" {
		errs = append(errs, errors.New("signing key path is required"))
	}
	return errors.Join(errs...)
}
