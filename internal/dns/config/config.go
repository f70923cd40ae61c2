// Package config loads the server configuration from environment
// variables prefixed with GOATD_, applies defaults, and validates the
// result before any socket is opened.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// UDPAddr, TCPAddr and DoHAddr are the listen addresses for the
	// three transports. An empty TCPAddr or DoHAddr disables that
	// transport; UDP is always on.
	UDPAddr string `koanf:"udp_addr" validate:"required,listen_addr"`
	TCPAddr string `koanf:"tcp_addr" validate:"omitempty,listen_addr"`
	DoHAddr string `koanf:"doh_addr" validate:"omitempty,listen_addr"`

	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// MaxInFlight bounds the number of queries queued or being resolved
	// at once; queries beyond the bound are refused immediately.
	MaxInFlight int `koanf:"max_in_flight" validate:"required,gte=1"`

	// ReplyTimeoutMS is how long a transport waits for the resolver
	// before giving up on a query, in milliseconds.
	ReplyTimeoutMS int `koanf:"reply_timeout_ms" validate:"required,gte=1"`

	// UDPPayloadSize caps UDP response datagrams before truncation.
	UDPPayloadSize int `koanf:"udp_payload_size" validate:"required,gte=512,lte=65535"`

	// Hostname is returned for CHAOS class admin queries such as
	// version.bind. Empty falls back to the OS hostname.
	Hostname string `koanf:"hostname"`

	// AdminAllowList is the set of addresses or CIDR ranges allowed to
	// make CHAOS class admin queries.
	AdminAllowList []string `koanf:"admin_allow_list" validate:"dive,cidr_or_ip"`

	// ZoneDir is the directory where zone files are located.
	ZoneDir string `koanf:"zone_dir" validate:"required"`

	// DBPath is the bbolt database used to persist imported zones.
	// Empty disables persistence and zones live only in memory.
	DBPath string `koanf:"db_path"`

	// FormErrReplies makes the UDP transport answer malformed datagrams
	// with FORMERR instead of silently dropping them.
	FormErrReplies bool `koanf:"form_err_replies"`

	// CacheSize is the number of resolved answers kept in the LRU cache.
	CacheSize uint `koanf:"cache_size" validate:"required,gte=1"`

	// DisableCache disables answer caching when set to true.
	DisableCache bool `koanf:"disable_cache"`
}

// DEFAULT_APP_CONFIG defines the default application configuration. The
// default ports are unprivileged so the server runs without
// CAP_NET_BIND_SERVICE out of the box.
var DEFAULT_APP_CONFIG = AppConfig{
	UDPAddr:        ":15353",
	TCPAddr:        ":15353",
	DoHAddr:        ":18080",
	Env:            "prod",
	LogLevel:       "info",
	MaxInFlight:    512,
	ReplyTimeoutMS: 1000,
	UDPPayloadSize: 1232,
	AdminAllowList: []string{"127.0.0.1", "::1"},
	ZoneDir:        "/etc/goatd/zones/",
	DBPath:         "/var/lib/goatd/zones.db",
	CacheSize:      1000,
}

// validListenAddr accepts a host:port listen address where the host part
// may be empty (bind all interfaces) or an IP address.
func validListenAddr(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// validCIDROrIP accepts either a bare IP address or a CIDR range.
func validCIDROrIP(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if net.ParseIP(value) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(value)
	return err == nil
}

// envLoader loads environment variables with the prefix "GOATD_",
// lowercasing keys and splitting space- or comma-separated values into
// lists. Replaceable in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "GOATD_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "GOATD_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// fileLoader layers an optional config file over the defaults. The path
// comes from GOATD_CONFIG_FILE; unset means no file. Environment
// variables still win over file values.
var fileLoader = func(k *koanf.Koanf) error {
	path := os.Getenv("GOATD_CONFIG_FILE")
	if path == "" {
		return nil
	}
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	return k.Load(file.Provider(path), parser)
}

// defaultLoader seeds the Koanf instance from DEFAULT_APP_CONFIG.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidations wires the custom address validators.
var registerValidations = func(v *validator.Validate) error {
	if err := v.RegisterValidation("listen_addr", validListenAddr); err != nil {
		return err
	}
	return v.RegisterValidation("cidr_or_ip", validCIDROrIP)
}

// Load parses environment variables and returns a validated AppConfig.
// It opens no sockets and touches no files, so it also backs the
// config-check command.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := fileLoader(k); err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidations(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// AdminNets parses the allow list into networks, widening bare IPs to
// single-address CIDRs.
func (c *AppConfig) AdminNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.AdminAllowList))
	for _, entry := range c.AdminAllowList {
		if ip := net.ParseIP(entry); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid admin allow list entry %q: %w", entry, err)
		}
		nets = append(nets, network)
	}
	return nets, nil
}
