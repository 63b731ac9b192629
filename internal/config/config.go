package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"brandtrend/internal/logging"
	"brandtrend/internal/model"
)

// EnvPrefix 环境变量前缀，如 BRANDTREND_SERVER_PORT
const EnvPrefix = "BRANDTREND_"

// AppConfig 应用配置
type AppConfig struct {
	Server ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Data   DataConfig     `toml:"data" envPrefix:"DATA_"`
	Ingest IngestConfig   `toml:"ingest" envPrefix:"INGEST_"`
	Fetch  FetchConfig    `toml:"fetch" envPrefix:"FETCH_"`
	Query  QueryConfig    `toml:"query" envPrefix:"QUERY_"`
	Log    logging.Config `toml:"log" envPrefix:"LOG_"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    int  `toml:"port" env:"PORT"`
	DevMode bool `toml:"dev_mode" env:"DEV_MODE"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir     string `toml:"data_dir" env:"DIR"`
	MatrixFile  string `toml:"matrix_file" env:"MATRIX_FILE"`   // 宽表文件名（相对 data_dir）
	Sheet       string `toml:"sheet" env:"SHEET"`               // 为空读取第一个工作表
	BrandHeader string `toml:"brand_header" env:"BRAND_HEADER"` // 首列表头
	RunLog      string `toml:"run_log" env:"RUN_LOG"`           // 采集运行记录 SQLite 文件名
}

// IngestConfig 采集范围；end 为 0 时取上一个完整月份
type IngestConfig struct {
	StartYear   int `toml:"start_year" env:"START_YEAR"`
	StartMonth  int `toml:"start_month" env:"START_MONTH"`
	EndYear     int `toml:"end_year" env:"END_YEAR"`
	EndMonth    int `toml:"end_month" env:"END_MONTH"`
	Concurrency int `toml:"concurrency" env:"CONCURRENCY"`
}

// FetchConfig 数据源配置
type FetchConfig struct {
	URLTemplate string            `toml:"url_template" env:"URL_TEMPLATE"`
	Symbol      string            `toml:"symbol" env:"SYMBOL"`
	RecordsPath string            `toml:"records_path" env:"RECORDS_PATH"`
	BrandField  string            `toml:"brand_field" env:"BRAND_FIELD"`
	SalesField  string            `toml:"sales_field" env:"SALES_FIELD"` // 为空取每条记录的第二个字段
	Headers     map[string]string `toml:"headers" env:"HEADERS"`
	TimeoutSec  int               `toml:"timeout_sec" env:"TIMEOUT_SEC"`
	MaxRetries  uint64            `toml:"max_retries" env:"MAX_RETRIES"`
}

// QueryConfig 查询默认值
type QueryConfig struct {
	DefaultBrands      []string `toml:"default_brands" env:"DEFAULT_BRANDS"`
	DefaultGranularity string   `toml:"default_granularity" env:"DEFAULT_GRANULARITY"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string // 实际读取的配置文件，未读取时为空
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20262,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir:     "data",
			MatrixFile:  "brand_sales.xlsx",
			BrandHeader: "品牌",
			RunLog:      "brandtrend.db",
		},
		Ingest: IngestConfig{
			StartYear:   2020,
			StartMonth:  1,
			Concurrency: 4,
		},
		Fetch: FetchConfig{
			Symbol:     "品牌榜",
			BrandField: "品牌",
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Query: QueryConfig{
			DefaultBrands:      []string{"大众", "丰田", "奔驰", "宝马", "奥迪", "理想", "问界"},
			DefaultGranularity: string(model.Monthly),
		},
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultConfigPath 可执行文件同目录下的 config.toml
func DefaultConfigPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		exeDir = "."
	}
	return filepath.Join(exeDir, "config.toml")
}

// LoadConfigWithInfo 加载配置并返回元信息
// 顺序：默认值 -> config.toml -> .env -> BRANDTREND_ 环境变量。path 为空时使用 DefaultConfigPath。
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{}
	config := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.Path = path
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// 配置文件不存在，使用默认配置
	default:
		return nil, info, err
	}

	// .env 不存在时忽略
	_ = godotenv.Load()

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, info, fmt.Errorf("parse environment: %w", err)
	}
	if os.Getenv(EnvPrefix+"SERVER_PORT") != "" {
		info.PortSpecified = true
	}

	return config, info, nil
}

// LoadConfig 加载配置
func LoadConfig(path string) (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo(path)
	return config, err
}

// SaveConfig 保存配置到 path（为空时写入 DefaultConfigPath）
func SaveConfig(config *AppConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate 检查配置，汇总所有问题
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Data.MatrixFile == "" {
		errs = append(errs, errors.New("data.matrix_file is required"))
	} else if filepath.Ext(c.Data.MatrixFile) != ".xlsx" {
		errs = append(errs, fmt.Errorf("data.matrix_file must be .xlsx: %q", c.Data.MatrixFile))
	}
	if c.Data.RunLog == "" {
		errs = append(errs, errors.New("data.run_log is required"))
	}
	if _, err := c.Ingest.Range(time.Now()); err != nil {
		errs = append(errs, err)
	}
	if c.Ingest.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("ingest.concurrency must not be negative: %d", c.Ingest.Concurrency))
	}
	if c.Fetch.TimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout_sec must not be negative: %d", c.Fetch.TimeoutSec))
	}
	if _, err := model.ParseGranularity(c.Query.DefaultGranularity); err != nil {
		errs = append(errs, fmt.Errorf("query.default_granularity: %w", err))
	}
	return errors.Join(errs...)
}

// Range 采集的起止月份
func (c IngestConfig) Range(now time.Time) (model.PeriodRange, error) {
	start, err := model.NewPeriod(c.StartYear, c.StartMonth)
	if err != nil {
		return model.PeriodRange{}, fmt.Errorf("ingest start: %w", err)
	}

	end := model.PeriodOf(now).Prev()
	if c.EndYear != 0 || c.EndMonth != 0 {
		end, err = model.NewPeriod(c.EndYear, c.EndMonth)
		if err != nil {
			return model.PeriodRange{}, fmt.Errorf("ingest end: %w", err)
		}
	}

	if end.Before(start) {
		return model.PeriodRange{}, fmt.Errorf("ingest range inverted: %s > %s", start, end)
	}
	return model.PeriodRange{Start: start, End: end}, nil
}

// EnsureDataDir 确保数据目录存在并返回其绝对路径
// 相对路径位于可执行文件同目录下
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := config.Data.DataDir
	if !filepath.IsAbs(dataDir) {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		dataDir = filepath.Join(exeDir, dataDir)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	return dataDir, nil
}

// Timeout 单次请求超时
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// MatrixPath 宽表文件路径
func MatrixPath(dataDir string, config *AppConfig) string {
	if filepath.IsAbs(config.Data.MatrixFile) {
		return config.Data.MatrixFile
	}
	return filepath.Join(dataDir, config.Data.MatrixFile)
}

// RunLogPath 运行记录数据库路径
func RunLogPath(dataDir string, config *AppConfig) string {
	if filepath.IsAbs(config.Data.RunLog) {
		return config.Data.RunLog
	}
	return filepath.Join(dataDir, config.Data.RunLog)
}
