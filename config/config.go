// Package config loads the gate's settings from environment variables,
// applies defaults, and validates everything up front.
package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Gate    GateConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST"`
	Port int    `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// CORSOrigins is a comma-separated allow list for the browser client.
	CORSOrigins []string `env:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	// DBPath is the SQLite file. Empty means an in-memory store.
	DBPath string `env:"DB_PATH" envAlt:"DATABASE_PATH"`
}

// GateConfig controls validation behaviour.
type GateConfig struct {
	// PolicyFile is a JSON or YAML policy document. Empty means defaults.
	PolicyFile string `env:"POLICY_FILE"`

	// Fenced serialises validate+commit per collection.
	Fenced bool `env:"GATE_FENCED" default:"true"`

	// AcceptUnknown lets writes to unregistered collections through.
	AcceptUnknown bool `env:"GATE_ACCEPT_UNKNOWN" default:"false"`

	// MaxPayloadBytes caps request bodies.
	MaxPayloadBytes int64 `env:"GATE_MAX_PAYLOAD_BYTES" default:"1048576"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// InMemory reports whether no database file is configured.
func (c *StoreConfig) InMemory() bool {
	return c.DBPath == ""
}

// String is safe to log.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Addr: %q}, Store: {DBPath: %q}, Gate: {PolicyFile: %q, Fenced: %v, AcceptUnknown: %v}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), c.Store.DBPath, c.Gate.PolicyFile, c.Gate.Fenced, c.Gate.AcceptUnknown,
		c.Logging.Level, c.Logging.Format)
}
