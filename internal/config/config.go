package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig HTTP 服务配置（健康检查、指标、状态、WebSocket）
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Auth         AuthConfig    `mapstructure:"auth"`
}

// AuthConfig /api/v1 的 API Key 认证
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

// TCPConfig TCP 广播监听配置
type TCPConfig struct {
	Enable         bool          `mapstructure:"enable"`
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	MaxConnections int           `mapstructure:"maxConnections"`
	AcquireTimeout time.Duration `mapstructure:"acquireTimeout"`
	AcceptRate     int           `mapstructure:"acceptRate"`  // 每秒新连接
	AcceptBurst    int           `mapstructure:"acceptBurst"` // 突发容量
	QueueSize      int           `mapstructure:"queueSize"`   // 每客户端发送队列
	Protocols      []string      `mapstructure:"protocols"`   // 空表示全部
}

// UDPConfig UDP 推送配置
type UDPConfig struct {
	Enable    bool     `mapstructure:"enable"`
	Targets   []string `mapstructure:"targets"` // host:port，可为广播地址
	QueueSize int      `mapstructure:"queueSize"`
	Protocols []string `mapstructure:"protocols"`
}

// WebSocketConfig WebSocket 推送配置（挂载在 HTTP 服务上）
type WebSocketConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Path         string        `mapstructure:"path"`
	QueueSize    int           `mapstructure:"queueSize"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Protocols    []string      `mapstructure:"protocols"`
}

// SerialConfig 串口输出配置（仅 NMEA 0183 语句）
type SerialConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Port      string `mapstructure:"port"`
	BaudRate  int    `mapstructure:"baudRate"`
	QueueSize int    `mapstructure:"queueSize"`
}

// RedisConfig Redis Pub/Sub 推送配置
type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	PoolSize      int           `mapstructure:"poolSize"`
	MinIdleConns  int           `mapstructure:"minIdleConns"`
	DialTimeout   time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout   time.Duration `mapstructure:"readTimeout"`
	WriteTimeout  time.Duration `mapstructure:"writeTimeout"`
	ChannelPrefix string        `mapstructure:"channelPrefix"`
	QueueSize     int           `mapstructure:"queueSize"`
	Protocols     []string      `mapstructure:"protocols"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// SimulatorConfig 场景运行配置
type SimulatorConfig struct {
	Scenario   string  `mapstructure:"scenario"`
	SchemaPath string  `mapstructure:"schemaPath"` // 为空使用内置 schema
	Speed      float64 `mapstructure:"speed"`      // 虚拟秒/墙钟秒
	Loop       string  `mapstructure:"loop"`       // ""|"true"|"false"，非空时覆盖场景设置
	StartTime  string  `mapstructure:"startTime"`  // RFC 3339，非空时覆盖场景设置
	Strict     bool    `mapstructure:"strict"`     // 校验告警也阻止启动
}

// LoopOverride 解析 loop 覆盖；ok=false 表示沿用场景设置
func (c SimulatorConfig) LoopOverride() (loop bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(c.Loop)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return false, false
}

// Config 顶层配置结构
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	TCP       TCPConfig       `mapstructure:"tcp"`
	UDP       UDPConfig       `mapstructure:"udp"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 MSIM_CONFIG 读取；否则回退到 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("MSIM_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 MSIM_，并将点号替换为下划线
	v.SetEnvPrefix("MSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "marine-sim")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.auth.enabled", false)

	v.SetDefault("tcp.enable", true)
	v.SetDefault("tcp.addr", ":10110")
	v.SetDefault("tcp.readTimeout", "30s")
	v.SetDefault("tcp.writeTimeout", "5s")
	v.SetDefault("tcp.maxConnections", 256)
	v.SetDefault("tcp.acquireTimeout", "1s")
	v.SetDefault("tcp.acceptRate", 50)
	v.SetDefault("tcp.acceptBurst", 100)
	v.SetDefault("tcp.queueSize", 1024)

	v.SetDefault("udp.enable", false)
	v.SetDefault("udp.queueSize", 1024)

	v.SetDefault("websocket.enable", true)
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.queueSize", 1024)
	v.SetDefault("websocket.writeTimeout", "5s")

	v.SetDefault("serial.enable", false)
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baudRate", 4800)
	v.SetDefault("serial.queueSize", 512)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")
	v.SetDefault("redis.channelPrefix", "marine-sim")
	v.SetDefault("redis.queueSize", 4096)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/marine-sim.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("simulator.scenario", "scenarios/harbour_approach.yaml")
	v.SetDefault("simulator.speed", 1.0)
	v.SetDefault("simulator.strict", false)
}
