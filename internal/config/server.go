package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Server configuration keys. Environment variables use the CONNECTLY_ prefix
// with dots replaced by underscores, e.g. CONNECTLY_AUDIT_DSN.
const (
	KeyAddr           = "addr"
	KeyAllowedOrigins = "allowed_origins"
	KeySendQueueSize  = "send_queue_size"
	KeyMaxMessageSize = "max_message_size"
	KeyRateLimit      = "rate_limit"
	KeyRateBurst      = "rate_burst"
	KeyAuditDriver    = "audit.driver"
	KeyAuditDSN       = "audit.dsn"
	KeyMDNSEnabled    = "mdns.enabled"
	KeyMDNSInstance   = "mdns.instance"
	KeyLogLevel       = "log_level"
)

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"addr":            KeyAddr,
	"allowed-origins": KeyAllowedOrigins,
	"send-queue":      KeySendQueueSize,
	"max-message":     KeyMaxMessageSize,
	"rate-limit":      KeyRateLimit,
	"rate-burst":      KeyRateBurst,
	"audit-driver":    KeyAuditDriver,
	"audit-dsn":       KeyAuditDSN,
	"mdns":            KeyMDNSEnabled,
	"mdns-instance":   KeyMDNSInstance,
	"log-level":       KeyLogLevel,
}

// Server holds the signaling server configuration.
type Server struct {
	Addr           string
	AllowedOrigins []string
	SendQueueSize  int
	MaxMessageSize int64
	RateLimit      float64
	RateBurst      int

	AuditDriver string
	AuditDSN    string

	MDNSEnabled  bool
	MDNSInstance string

	LogLevel string
}

// NewViper returns a viper instance with server defaults and env binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyAllowedOrigins, []string{})
	v.SetDefault(KeySendQueueSize, 256)
	v.SetDefault(KeyMaxMessageSize, 64*1024)
	v.SetDefault(KeyRateLimit, 20.0)
	v.SetDefault(KeyRateBurst, 40)
	v.SetDefault(KeyAuditDriver, "")
	v.SetDefault(KeyAuditDSN, "")
	v.SetDefault(KeyMDNSEnabled, false)
	v.SetDefault(KeyMDNSInstance, "connectly")

	v.SetEnvPrefix("CONNECTLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadServer reads configuration with the following priority:
// 1. Flags that were set on the command line
// 2. CONNECTLY_* environment variables (a .env file is loaded first if present)
// 3. The config file, when cfgFile is not empty
// 4. Defaults
func LoadServer(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) (*Server, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Server{
		Addr:           v.GetString(KeyAddr),
		AllowedOrigins: splitList(v.GetStringSlice(KeyAllowedOrigins)),
		SendQueueSize:  v.GetInt(KeySendQueueSize),
		MaxMessageSize: v.GetInt64(KeyMaxMessageSize),
		RateLimit:      v.GetFloat64(KeyRateLimit),
		RateBurst:      v.GetInt(KeyRateBurst),
		AuditDriver:    strings.ToLower(v.GetString(KeyAuditDriver)),
		AuditDSN:       v.GetString(KeyAuditDSN),
		MDNSEnabled:    v.GetBool(KeyMDNSEnabled),
		MDNSInstance:   v.GetString(KeyMDNSInstance),
		LogLevel:       v.GetString(KeyLogLevel),
	}
	return cfg, cfg.Validate()
}

func (c *Server) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.SendQueueSize < 1 {
		return fmt.Errorf("send_queue_size must be positive, got %d", c.SendQueueSize)
	}
	if c.MaxMessageSize < 1024 {
		return fmt.Errorf("max_message_size must be at least 1024, got %d", c.MaxMessageSize)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.New("rate_limit and rate_burst must not be negative")
	}
	switch c.AuditDriver {
	case "":
	case "sqlite3", "mysql":
		if c.AuditDSN == "" {
			return fmt.Errorf("audit.dsn is required for driver %s", c.AuditDriver)
		}
	default:
		return fmt.Errorf("unsupported audit.driver %q", c.AuditDriver)
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated value,
// which is what an environment variable yields.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
