package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracker-sim/tracker-device-sim/pkg/trackproto"
)

// ErrInvalid 配置校验失败的哨兵错误, 进程启动时致命
var ErrInvalid = errors.New("invalid configuration")

// Config represents the simulator configuration.
type Config struct {
	Server   string `yaml:"server"`
	Interval int    `yaml:"interval"` // 上报周期（秒）
	Readings int    `yaml:"readings"` // 采样周期（秒）

	MotionDuration int `yaml:"motionDuration"` // 运动确认时长（秒）
	MotionInterval int `yaml:"motionInterval"` // 运动候选翻转周期（秒）

	UpdateDuration    int     `yaml:"updateDuration"` // 模拟升级时长（秒）
	UpdateInterval    int     `yaml:"updateInterval"` // 自发升级周期（秒），0禁用
	UpdateFailureRate float64 `yaml:"updateFailureRate"`

	IMEI  string `yaml:"imei"`
	ICCID string `yaml:"iccid"`
	Code  string `yaml:"code"`
	MCC   string `yaml:"mcc"`
	MNC   string `yaml:"mnc"`
	RAT   string `yaml:"rat"`

	SoftwareVersion string `yaml:"softwareVersion"`
	ModemVersion    string `yaml:"modemVersion"`

	Location LocationConfig `yaml:"location"`

	// 兼容原有扁平写法
	Lat *float64 `yaml:"lat"`
	Lon *float64 `yaml:"lon"`

	AckTimeout int     `yaml:"ackTimeout"` // 确认等待（秒）
	DropRate   float64 `yaml:"dropRate"`   // 模拟出站丢包率
	Seed       int64   `yaml:"seed"`       // 0 = 按时间播种

	Log  LogConfig  `yaml:"log"`
	API  APIConfig  `yaml:"api"`
	NATS NATSConfig `yaml:"nats"`
}

// LocationConfig represents the location mode and simulated coordinates.
type LocationConfig struct {
	Type string   `yaml:"type"` // simulated | cellid
	Lat  *float64 `yaml:"lat"`
	Lon  *float64 `yaml:"lon"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// APIConfig represents the local debug API configuration.
type APIConfig struct {
	Addr string `yaml:"addr"` // 为空则不启动
}

// NATSConfig represents the optional event tap configuration.
type NATSConfig struct {
	URL               string        `yaml:"url"` // 为空则不启动
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// Overrides carries command-line values applied on top of the file.
// nil指针表示未提供
type Overrides struct {
	Server   *string
	Interval *int
	Readings *int
	IMEI     *string
	ICCID    *string
	Code     *string
	MCC      *string
	MNC      *string
	RAT      *string
	Seed     *int64
}

// Load loads configuration from file, applies environment and command-line
// overrides, fills defaults and validates the result.
func Load(filename string, ov Overrides) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyOverrides(ov)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if server := os.Getenv("TRACKER_SERVER"); server != "" {
		c.Server = server
	}

	if imei := os.Getenv("TRACKER_IMEI"); imei != "" {
		c.IMEI = imei
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}
}

// applyOverrides 命令行优先级最高, 后应用者生效
func (c *Config) applyOverrides(ov Overrides) {
	if ov.Server != nil {
		c.Server = *ov.Server
	}
	if ov.Interval != nil {
		c.Interval = *ov.Interval
	}
	if ov.Readings != nil {
		c.Readings = *ov.Readings
	}
	if ov.IMEI != nil {
		c.IMEI = *ov.IMEI
	}
	if ov.ICCID != nil {
		c.ICCID = *ov.ICCID
	}
	if ov.Code != nil {
		c.Code = *ov.Code
	}
	if ov.MCC != nil {
		c.MCC = *ov.MCC
	}
	if ov.MNC != nil {
		c.MNC = *ov.MNC
	}
	if ov.RAT != nil {
		c.RAT = *ov.RAT
	}
	if ov.Seed != nil {
		c.Seed = *ov.Seed
	}
}

// setDefaults 填充缺省值
func (c *Config) setDefaults() {
	if c.Interval == 0 {
		c.Interval = 120
	}
	if c.Readings == 0 {
		c.Readings = 60
	}
	if c.Code == "" {
		c.Code = "00000000"
	}
	if c.MCC == "" {
		c.MCC = "001"
	}
	if c.MNC == "" {
		c.MNC = "01"
	}
	if c.RAT == "" {
		c.RAT = "LTE-M"
	}
	if c.SoftwareVersion == "" {
		c.SoftwareVersion = "tracker-sim-1.0.0"
	}
	if c.ModemVersion == "" {
		c.ModemVersion = "generic"
	}
	if c.UpdateDuration == 0 {
		c.UpdateDuration = 5
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = 5
	}
	if c.Location.Type == "" {
		c.Location.Type = locationSimulated
	}
	// 扁平 lat/lon 兼容
	if c.Location.Lat == nil && c.Lat != nil {
		c.Location.Lat = c.Lat
	}
	if c.Location.Lon == nil && c.Lon != nil {
		c.Location.Lon = c.Lon
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 10
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 2 * time.Second
	}
}

const (
	locationSimulated = "simulated"
	locationCellID    = "cellid"
)

// Validate checks the merged configuration. 覆盖后统一校验,
// 与初次加载使用同一套规则
func (c *Config) Validate() error {
	if c.IMEI == "" {
		return fmt.Errorf("%w: imei is required", ErrInvalid)
	}
	if _, err := trackproto.ParseIMEI(c.IMEI); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.Server == "" {
		return fmt.Errorf("%w: server is required", ErrInvalid)
	}
	host, port, err := net.SplitHostPort(c.Server)
	if err != nil || host == "" {
		return fmt.Errorf("%w: server must be host:port, got %q", ErrInvalid, c.Server)
	}
	if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("%w: server port %q out of range", ErrInvalid, port)
	}

	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalid, c.Interval)
	}
	if c.Readings <= 0 {
		return fmt.Errorf("%w: readings must be positive, got %d", ErrInvalid, c.Readings)
	}
	if c.MotionDuration < 0 || c.MotionInterval < 0 {
		return fmt.Errorf("%w: motionDuration/motionInterval must not be negative", ErrInvalid)
	}
	if c.UpdateDuration < 0 || c.UpdateInterval < 0 {
		return fmt.Errorf("%w: updateDuration/updateInterval must not be negative", ErrInvalid)
	}
	if c.AckTimeout < 0 {
		return fmt.Errorf("%w: ackTimeout must not be negative", ErrInvalid)
	}

	if c.UpdateFailureRate < 0 || c.UpdateFailureRate > 1 {
		return fmt.Errorf("%w: updateFailureRate must be within [0,1], got %g", ErrInvalid, c.UpdateFailureRate)
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("%w: dropRate must be within [0,1], got %g", ErrInvalid, c.DropRate)
	}

	if _, err := trackproto.ParseRAT(c.RAT); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch c.Location.Type {
	case locationSimulated:
		if c.Location.Lat == nil || c.Location.Lon == nil {
			return fmt.Errorf("%w: location.type=simulated requires location.lat and location.lon", ErrInvalid)
		}
	case locationCellID:
		// 使用 mcc/mnc, 无需坐标
	default:
		return fmt.Errorf("%w: location.type must be simulated or cellid, got %q", ErrInvalid, c.Location.Type)
	}

	return nil
}

// MotionEnabled reports whether motion simulation is live.
func (c *Config) MotionEnabled() bool {
	return c.MotionDuration > 0 && c.MotionInterval > 0
}

// 周期访问器, 调度器内部统一使用 time.Duration

func (c *Config) ReportInterval() time.Duration  { return time.Duration(c.Interval) * time.Second }
func (c *Config) ReadingInterval() time.Duration { return time.Duration(c.Readings) * time.Second }
func (c *Config) MotionDur() time.Duration       { return time.Duration(c.MotionDuration) * time.Second }
func (c *Config) MotionIvl() time.Duration       { return time.Duration(c.MotionInterval) * time.Second }
func (c *Config) UpdateDur() time.Duration       { return time.Duration(c.UpdateDuration) * time.Second }
func (c *Config) UpdateIvl() time.Duration       { return time.Duration(c.UpdateInterval) * time.Second }
func (c *Config) AckWait() time.Duration         { return time.Duration(c.AckTimeout) * time.Second }

// PrintConfigSummary 打印配置摘要
func (c *Config) PrintConfigSummary() {
	fmt.Printf("=== Tracker Device Simulator Configuration ===\n")
	fmt.Printf("IMEI: %s\n", c.IMEI)
	if c.ICCID != "" {
		fmt.Printf("ICCID: %s\n", c.ICCID)
	}
	fmt.Printf("Server: %s\n", c.Server)
	fmt.Printf("Reporting Interval: %ds, Reading Interval: %ds\n", c.Interval, c.Readings)
	fmt.Printf("Network: code=%s mcc=%s mnc=%s rat=%s\n", c.Code, c.MCC, c.MNC, c.RAT)
	fmt.Printf("Location: %s", c.Location.Type)
	if c.Location.Type == locationSimulated && c.Location.Lat != nil && c.Location.Lon != nil {
		fmt.Printf(" (%.6f, %.6f)", *c.Location.Lat, *c.Location.Lon)
	}
	fmt.Printf("\n")
	if c.MotionEnabled() {
		fmt.Printf("Motion: interval=%ds duration=%ds\n", c.MotionInterval, c.MotionDuration)
	} else {
		fmt.Printf("Motion: disabled\n")
	}
	if c.UpdateInterval > 0 {
		fmt.Printf("Update: every %ds, duration=%ds, failure rate=%.2f\n",
			c.UpdateInterval, c.UpdateDuration, c.UpdateFailureRate)
	} else {
		fmt.Printf("Update: on request only, duration=%ds, failure rate=%.2f\n",
			c.UpdateDuration, c.UpdateFailureRate)
	}
	if c.DropRate > 0 {
		fmt.Printf("Simulated packet loss: %.2f\n", c.DropRate)
	}
	if c.API.Addr != "" {
		fmt.Printf("Debug API: %s\n", c.API.Addr)
	}
	if c.NATS.URL != "" {
		fmt.Printf("Event tap: %s\n", c.NATS.URL)
	}
	fmt.Printf("==============================================\n")
}
