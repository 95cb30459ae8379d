// Package config loads videochat settings from flags, the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultServerAddr = ":8000"
	DefaultServerURL  = "ws://localhost:8000/ws"
	DefaultWebBase    = "http://localhost:5173"
	DefaultConfigName = "videochat"
	EnvPrefix         = "VIDEOCHAT"
)

// DefaultSTUN is the public STUN list the web client ships with.
var DefaultSTUN = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

// Server configures the signaling server.
type Server struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	TrustProxy     bool          `mapstructure:"trust_proxy"`
	GhostEviction  bool          `mapstructure:"ghost_eviction"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
	ReapInterval   time.Duration `mapstructure:"reap_interval"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

// Client configures a participant's connection to the server.
type Client struct {
	URL               string        `mapstructure:"url"`
	WebBase           string        `mapstructure:"web_base"`
	Codec             string        `mapstructure:"codec"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
}

// ICE lists the servers used to reach other participants.
type ICE struct {
	STUN              []string      `mapstructure:"stun"`
	TURN              []string      `mapstructure:"turn"`
	TURNUser          string        `mapstructure:"turn_user"`
	TURNPass          string        `mapstructure:"turn_pass"`
	ForceRelay        bool          `mapstructure:"force_relay"`
	AutoRelay         bool          `mapstructure:"auto_relay"`
	CandidatePoolSize int           `mapstructure:"candidate_pool_size"`
	PLIInterval       time.Duration `mapstructure:"pli_interval"`
}

// Negotiation holds the recovery timings of the orchestrator.
type Negotiation struct {
	RecoveryTimeout    time.Duration `mapstructure:"recovery_timeout"`
	RecreateDelay      time.Duration `mapstructure:"recreate_delay"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
}

// Media names the files played as the local camera and microphone.
type Media struct {
	VideoFile string `mapstructure:"video_file"`
	AudioFile string `mapstructure:"audio_file"`
}

// Log configures logging.
type Log struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Config is the typed view of every setting.
type Config struct {
	Server      Server      `mapstructure:"server"`
	Client      Client      `mapstructure:"client"`
	ICE         ICE         `mapstructure:"ice"`
	Negotiation Negotiation `mapstructure:"negotiation"`
	Media       Media       `mapstructure:"media"`
	Log         Log         `mapstructure:"log"`
}

// New returns a viper instance with defaults and VIDEOCHAT_* environment
// variables registered. Nested keys map to underscores, so server.addr is
// read from VIDEOCHAT_SERVER_ADDR.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.ghost_eviction", true)
	v.SetDefault("server.stale_after", 45*time.Second)
	v.SetDefault("server.reap_interval", 60*time.Second)
	v.SetDefault("server.ping_period", 15*time.Second)
	v.SetDefault("server.pong_wait", 30*time.Second)
	v.SetDefault("server.send_buffer", 256)
	v.SetDefault("server.shutdown_grace", 5*time.Second)

	v.SetDefault("client.url", DefaultServerURL)
	v.SetDefault("client.web_base", DefaultWebBase)
	v.SetDefault("client.codec", "json")
	v.SetDefault("client.reconnect_attempts", 5)
	v.SetDefault("client.reconnect_delay", time.Second)
	v.SetDefault("client.max_reconnect_delay", 5*time.Second)
	v.SetDefault("client.dial_timeout", 10*time.Second)

	v.SetDefault("ice.stun", DefaultSTUN)
	v.SetDefault("ice.turn", []string{})
	v.SetDefault("ice.turn_user", "")
	v.SetDefault("ice.turn_pass", "")
	v.SetDefault("ice.force_relay", false)
	v.SetDefault("ice.auto_relay", true)
	v.SetDefault("ice.candidate_pool_size", 10)
	v.SetDefault("ice.pli_interval", 3*time.Second)

	v.SetDefault("negotiation.recovery_timeout", 10*time.Second)
	v.SetDefault("negotiation.recreate_delay", 2*time.Second)
	v.SetDefault("negotiation.negotiation_timeout", 30*time.Second)

	v.SetDefault("media.video_file", "")
	v.SetDefault("media.audio_file", "")

	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")
}

// Load reads videochat.{yaml,toml,json} from dir when present and returns
// the merged configuration. A missing file is not an error.
func Load(v *viper.Viper, dir string) (*Config, error) {
	if dir != "" {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations that cannot work at runtime.
func (c *Config) Validate() error {
	if c.ICE.ForceRelay && len(c.ICE.TURN) == 0 {
		return errors.New("cannot force relay mode without TURN server configured")
	}
	if c.ICE.CandidatePoolSize < 0 || c.ICE.CandidatePoolSize > 255 {
		return fmt.Errorf("candidate pool size %d out of range 0-255", c.ICE.CandidatePoolSize)
	}
	if c.Client.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect attempts must not be negative, got %d", c.Client.ReconnectAttempts)
	}
	switch c.Client.Codec {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("unknown codec %q", c.Client.Codec)
	}
	return nil
}
