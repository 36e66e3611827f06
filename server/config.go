package server

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// GlobalChannel 聊天时 chan 字段取该值表示广播给所有在线会话
const GlobalChannel = "global"

// MaxTickRateHz Tick 频率上限，周期不低于 1ms
const MaxTickRateHz = 1000

// Config 服务运行参数（环境变量覆盖，前缀 WORLDSYNC_）
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080" json:"addr"`

	TickRateHz      int           `env:"TICK_RATE_HZ" envDefault:"50" json:"tickRateHz"`
	LivenessTimeout time.Duration `env:"LIVENESS_TIMEOUT" envDefault:"120s" json:"livenessTimeout"`

	MaxMessagesPerSecond int `env:"MAX_MESSAGES_PER_SECOND" envDefault:"100" json:"maxMessagesPerSecond"`
	// RateLimitKickAfter 同一窗口内被拒绝的消息数达到该值时踢出，0 表示不踢
	RateLimitKickAfter int `env:"RATE_LIMIT_KICK_AFTER" envDefault:"0" json:"rateLimitKickAfter"`

	MaxChatLength int `env:"MAX_CHAT_LENGTH" envDefault:"71" json:"maxChatLength"`
	MaxNameLength int `env:"MAX_NAME_LENGTH" envDefault:"32" json:"maxNameLength"`

	WorldMin float64 `env:"WORLD_MIN" envDefault:"-15" json:"worldMin"`
	WorldMax float64 `env:"WORLD_MAX" envDefault:"15" json:"worldMax"`
	MaxSpeed float64 `env:"MAX_SPEED" envDefault:"6" json:"maxSpeed"`

	PlayerIDLength int `env:"PLAYER_ID_LENGTH" envDefault:"10" json:"playerIdLength"`

	SendQueueSize  int `env:"SEND_QUEUE_SIZE" envDefault:"64" json:"sendQueueSize"`
	EventQueueSize int `env:"EVENT_QUEUE_SIZE" envDefault:"1024" json:"eventQueueSize"`

	// Channels 固定频道定义，格式 name:capacity,name:capacity
	Channels map[string]int `env:"CHANNELS" envDefault:"chan1:5,chan2:5,chan3:5" envKeyValSeparator:":" json:"channels"`

	LogFile       string `env:"LOG_FILE" envDefault:"app.log" json:"logFile"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"10" json:"logMaxSizeMb"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3" json:"logMaxBackups"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"7" json:"logMaxAgeDays"`
	LogToStderr   bool   `env:"LOG_TO_STDERR" envDefault:"false" json:"logToStderr"`
	// LogLevel debug/info/warn/error；LogFormat console 或 json
	LogLevel  string `env:"LOG_LEVEL" envDefault:"debug" json:"logLevel"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console" json:"logFormat"`
}

// DefaultConfig 返回与 envDefault 一致的默认配置
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		TickRateHz:           50,
		LivenessTimeout:      120 * time.Second,
		MaxMessagesPerSecond: 100,
		MaxChatLength:        71,
		MaxNameLength:        32,
		WorldMin:             -15,
		WorldMax:             15,
		MaxSpeed:             6,
		PlayerIDLength:       10,
		SendQueueSize:        64,
		EventQueueSize:       1024,
		Channels:             map[string]int{"chan1": 5, "chan2": 5, "chan3": 5},
		LogFile:              "app.log",
		LogMaxSizeMB:         10,
		LogMaxBackups:        3,
		LogMaxAgeDays:        7,
		LogLevel:             "debug",
		LogFormat:            "console",
	}
}

// LoadConfig 从环境变量读取配置；解析失败时返回错误，由调用方决定是否退出
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "WORLDSYNC_"}); err != nil {
		return DefaultConfig(), fmt.Errorf("parse env: %w", err)
	}
	return cfg.Sanitize(), nil
}

// Sanitize 将非法取值回退为默认值
func (c Config) Sanitize() Config {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = def.TickRateHz
	}
	if c.TickRateHz > MaxTickRateHz {
		c.TickRateHz = MaxTickRateHz
	}
	if c.LivenessTimeout <= 0 {
		c.LivenessTimeout = def.LivenessTimeout
	}
	if c.MaxMessagesPerSecond <= 0 {
		c.MaxMessagesPerSecond = def.MaxMessagesPerSecond
	}
	if c.RateLimitKickAfter < 0 {
		c.RateLimitKickAfter = 0
	}
	if c.MaxChatLength <= 0 {
		c.MaxChatLength = def.MaxChatLength
	}
	if c.MaxNameLength <= 0 {
		c.MaxNameLength = def.MaxNameLength
	}
	if c.WorldMin >= c.WorldMax {
		c.WorldMin, c.WorldMax = def.WorldMin, def.WorldMax
	}
	if c.MaxSpeed <= 0 {
		c.MaxSpeed = def.MaxSpeed
	}
	if c.PlayerIDLength <= 0 {
		c.PlayerIDLength = def.PlayerIDLength
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = def.SendQueueSize
	}
	if c.EventQueueSize <= 0 {
		c.EventQueueSize = def.EventQueueSize
	}
	chans := make(map[string]int, len(c.Channels))
	for name, capacity := range c.Channels {
		name = strings.TrimSpace(name)
		if name == "" || name == GlobalChannel || capacity <= 0 {
			continue
		}
		chans[name] = capacity
	}
	if len(chans) == 0 {
		chans = def.Channels
	}
	c.Channels = chans
	if c.LogMaxSizeMB <= 0 {
		c.LogMaxSizeMB = def.LogMaxSizeMB
	}
	return c
}

// TickInterval 由 Tick 频率换算的周期（50Hz → 20ms），未经 Sanitize 的取值也不会得到非正周期
func (c Config) TickInterval() time.Duration {
	hz := c.TickRateHz
	if hz <= 0 || hz > MaxTickRateHz {
		hz = DefaultConfig().TickRateHz
	}
	return time.Second / time.Duration(hz)
}

// ChannelSpec 频道的展示用描述，如 "chan1:5,chan2:5"
func (c Config) ChannelSpec() string {
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+":"+strconv.Itoa(c.Channels[name]))
	}
	return strings.Join(parts, ",")
}
