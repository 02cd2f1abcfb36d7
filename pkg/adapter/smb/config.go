package smb

import (
	"fmt"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/handshake"
	"github.com/marmos91/dittosmb/internal/bytesize"
)

// DefaultMaxMessageSize bounds a single framed SMB1 message. The handshake
// commands are all tiny, so anything near this is hostile.
const DefaultMaxMessageSize = 64 * bytesize.KiB

// DefaultPort is a non-privileged stand-in for 445.
const DefaultPort = 12445

// TimeoutsConfig groups all timeout-related configuration.
type TimeoutsConfig struct {
	// Read bounds reading one complete frame once its first byte arrived.
	Read time.Duration `mapstructure:"read" yaml:"read" validate:"min=0"`

	// Write bounds writing one reply.
	Write time.Duration `mapstructure:"write" yaml:"write" validate:"min=0"`

	// Idle is how long a connection may sit between requests, including
	// after the handshake completed.
	Idle time.Duration `mapstructure:"idle" yaml:"idle" validate:"min=0"`

	// Shutdown is how long Stop waits before force-closing connections.
	Shutdown time.Duration `mapstructure:"shutdown" yaml:"shutdown" validate:"required,gt=0"`
}

// Config holds configuration parameters for the SMB1 handshake server.
//
// Default values (applied by New if zero):
//   - Port: 12445
//   - MaxMessageSize: 64Ki
//   - Timeouts.Read: 30s, Timeouts.Write: 30s, Timeouts.Idle: 5m
//   - Timeouts.Shutdown: 30s
//   - NativeOS: "Unix", NativeLanManager: "DittoSMB"
//   - MaxBufferSize, MaxMpxCount, MaxNumberVcs, MaxRawSize: 0xFFFF
type Config struct {
	// Enabled controls whether the adapter is started by `dittosmb start`.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// BindAddress is the IP address to listen on. Empty binds all interfaces.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address" validate:"omitempty,ip"`

	// Port is the TCP port. 0 selects DefaultPort.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent connections. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`

	// AcceptRate limits new connections per second (0 disables), with
	// AcceptBurst as the bucket size.
	AcceptRate  float64 `mapstructure:"accept_rate" yaml:"accept_rate" validate:"min=0"`
	AcceptBurst int     `mapstructure:"accept_burst" yaml:"accept_burst" validate:"min=0"`

	// MaxMessageSize rejects frames whose length prefix exceeds it.
	MaxMessageSize bytesize.ByteSize `mapstructure:"max_message_size" yaml:"max_message_size"`

	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`

	// ReportHandshakeErrors sends an error reply carrying an NT status
	// before closing a connection that broke the handshake. Off by default:
	// the connection is simply dropped.
	ReportHandshakeErrors bool `mapstructure:"report_handshake_errors" yaml:"report_handshake_errors"`

	// NativeOS and NativeLanManager are returned in SESSION_SETUP_ANDX.
	NativeOS         string `mapstructure:"native_os" yaml:"native_os"`
	NativeLanManager string `mapstructure:"native_lan_manager" yaml:"native_lan_manager"`

	// Limits advertised in the NEGOTIATE reply.
	MaxBufferSize uint32 `mapstructure:"max_buffer_size" yaml:"max_buffer_size"`
	MaxMpxCount   uint16 `mapstructure:"max_mpx_count" yaml:"max_mpx_count"`
	MaxNumberVcs  uint16 `mapstructure:"max_number_vcs" yaml:"max_number_vcs"`
	MaxRawSize    uint32 `mapstructure:"max_raw_size" yaml:"max_raw_size"`

	// MetricsLogInterval logs connection counts periodically. 0 disables.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval" validate:"min=0"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Timeouts.Read == 0 {
		c.Timeouts.Read = 30 * time.Second
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = 30 * time.Second
	}
	if c.Timeouts.Idle == 0 {
		c.Timeouts.Idle = 5 * time.Minute
	}
	if c.Timeouts.Shutdown == 0 {
		c.Timeouts.Shutdown = 30 * time.Second
	}

	def := handshake.DefaultOptions()
	if c.NativeOS == "" {
		c.NativeOS = def.NativeOS
	}
	if c.NativeLanManager == "" {
		c.NativeLanManager = def.NativeLanMan
	}
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = def.MaxBufferSize
	}
	if c.MaxMpxCount == 0 {
		c.MaxMpxCount = def.MaxMpxCount
	}
	if c.MaxNumberVcs == 0 {
		c.MaxNumberVcs = def.MaxNumberVcs
	}
	if c.MaxRawSize == 0 {
		c.MaxRawSize = def.MaxRawSize
	}
}

// Validate checks the configuration after defaults were applied.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max_connections %d: must be >= 0", c.MaxConnections)
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("invalid accept_rate %v: must be >= 0", c.AcceptRate)
	}
	// The header alone is 32 bytes and NEGOTIATE needs a little more.
	if c.MaxMessageSize < 64 {
		return fmt.Errorf("invalid max_message_size %s: must be at least 64 bytes", c.MaxMessageSize)
	}
	if c.Timeouts.Read < 0 || c.Timeouts.Write < 0 || c.Timeouts.Idle < 0 {
		return fmt.Errorf("invalid timeouts: read, write and idle must be >= 0")
	}
	if c.Timeouts.Shutdown <= 0 {
		return fmt.Errorf("invalid timeouts.shutdown %v: must be > 0", c.Timeouts.Shutdown)
	}
	return nil
}

// HandshakeOptions converts the reply-shaping settings for handshake.Session.
func (c *Config) HandshakeOptions() handshake.Options {
	opts := handshake.DefaultOptions()
	opts.NativeOS = c.NativeOS
	opts.NativeLanMan = c.NativeLanManager
	opts.MaxBufferSize = c.MaxBufferSize
	opts.MaxMpxCount = c.MaxMpxCount
	opts.MaxNumberVcs = c.MaxNumberVcs
	opts.MaxRawSize = c.MaxRawSize
	return opts
}
