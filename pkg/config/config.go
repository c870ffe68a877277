package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidPortRange = errors.New("rtc port range is invalid")
	ErrMissingCodec     = errors.New("at least one audio and one video codec must be configured")
	ErrInvalidTimeout   = errors.New("media timeout must be positive")
)

type Config struct {
	Port        uint32          `yaml:"port,omitempty"`
	BindAddress string          `yaml:"bind_address,omitempty"`
	LogLevel    string          `yaml:"log_level,omitempty"`
	Development bool            `yaml:"development,omitempty"`
	Database    DatabaseConfig  `yaml:"database,omitempty"`
	Redis       RedisConfig     `yaml:"redis,omitempty"`
	RTC         RTCConfig       `yaml:"rtc,omitempty"`
	TURN        TURNConfig      `yaml:"turn,omitempty"`
	Signaling   SignalingConfig `yaml:"signaling,omitempty"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url,omitempty"`
	MaxConns int32  `yaml:"max_conns,omitempty"`
}

// RedisConfig enables the redis backed whiteboard store when Address is set.
type RedisConfig struct {
	Address   string `yaml:"address,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

type CodecConfig struct {
	Kind       string                 `yaml:"kind"`
	MimeType   string                 `yaml:"mime_type"`
	ClockRate  uint32                 `yaml:"clock_rate"`
	Channels   uint16                 `yaml:"channels,omitempty"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty"`
}

type RTCConfig struct {
	PortRangeStart     uint16        `yaml:"port_range_start,omitempty"`
	PortRangeEnd       uint16        `yaml:"port_range_end,omitempty"`
	AnnouncedIP        string        `yaml:"announced_ip,omitempty"`
	STUNServers        []string      `yaml:"stun_servers,omitempty"`
	MaxIncomingBitrate uint64        `yaml:"max_incoming_bitrate,omitempty"`
	MediaTimeout       time.Duration `yaml:"media_timeout,omitempty"`
	Codecs             []CodecConfig `yaml:"codecs,omitempty"`
}

type TURNConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	UDPPort  int    `yaml:"udp_port,omitempty"`
	Realm    string `yaml:"realm,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

type SignalingConfig struct {
	WriteWait      time.Duration `yaml:"write_wait,omitempty"`
	PongWait       time.Duration `yaml:"pong_wait,omitempty"`
	MaxMessageSize int64         `yaml:"max_message_size,omitempty"`
	SendBuffer     int           `yaml:"send_buffer,omitempty"`
	AllowedOrigins []string      `yaml:"allowed_origins,omitempty"`
}

var DefaultConfig = Config{
	Port:        3000,
	BindAddress: "0.0.0.0",
	LogLevel:    "info",
	Database: DatabaseConfig{
		MaxConns: 10,
	},
	Redis: RedisConfig{
		KeyPrefix: "class:",
	},
	RTC: RTCConfig{
		PortRangeStart:     40000,
		PortRangeEnd:       49999,
		STUNServers:        []string{"stun:stun.l.google.com:19302"},
		MaxIncomingBitrate: 1500000,
		MediaTimeout:       10 * time.Second,
		Codecs: []CodecConfig{
			{Kind: "audio", MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
			{Kind: "video", MimeType: "video/VP8", ClockRate: 90000, Parameters: map[string]interface{}{
				"x-google-start-bitrate": 1000,
			}},
		},
	},
	TURN: TURNConfig{
		UDPPort: 3478,
		Realm:   "class",
	},
	Signaling: SignalingConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	},
}

// NewConfig layers the yaml in confString over the defaults, then the
// environment, then any CLI flags that were explicitly set.
func NewConfig(confString string, strictMode bool, c *cli.Context) (*Config, error) {
	marshalled, err := yaml.Marshal(&DefaultConfig)
	if err != nil {
		return nil, err
	}

	var conf Config
	if err = yaml.Unmarshal(marshalled, &conf); err != nil {
		return nil, err
	}

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(strictMode)
		if err := decoder.Decode(&conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %v", err)
		}
	}

	conf.updateFromEnv()
	if c != nil {
		conf.updateFromCLI(c)
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// LoadEnvFile reads a .env file into the process environment. A missing
// file is not an error, deployments usually inject variables directly.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (conf *Config) updateFromEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		conf.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		conf.Redis.Address = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		conf.Redis.Password = v
	}
	if v := os.Getenv("NODE_IP"); v != "" {
		conf.RTC.AnnouncedIP = v
	}
}

func (conf *Config) updateFromCLI(c *cli.Context) {
	if c.IsSet("port") {
		conf.Port = uint32(c.Uint("port"))
	}
	if c.IsSet("bind") {
		conf.BindAddress = c.String("bind")
	}
	if c.IsSet("database-url") {
		conf.Database.URL = c.String("database-url")
	}
	if c.IsSet("redis-address") {
		conf.Redis.Address = c.String("redis-address")
	}
	if c.IsSet("node-ip") {
		conf.RTC.AnnouncedIP = c.String("node-ip")
	}
	if c.IsSet("dev") {
		conf.Development = c.Bool("dev")
		if conf.Development {
			conf.LogLevel = "debug"
		}
	}
}

func (conf *Config) Validate() error {
	if conf.RTC.PortRangeStart != 0 || conf.RTC.PortRangeEnd != 0 {
		if conf.RTC.PortRangeStart == 0 || conf.RTC.PortRangeEnd < conf.RTC.PortRangeStart {
			return ErrInvalidPortRange
		}
	}
	var audio, video bool
	for _, codec := range conf.RTC.Codecs {
		switch codec.Kind {
		case "audio":
			audio = true
		case "video":
			video = true
		default:
			return fmt.Errorf("codec %s has unknown kind %q", codec.MimeType, codec.Kind)
		}
	}
	if !audio || !video {
		return ErrMissingCodec
	}
	if conf.RTC.MediaTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

func (conf *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", conf.BindAddress, conf.Port)
}
