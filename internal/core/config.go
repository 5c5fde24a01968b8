package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/checarsner/crosspostit/internal/crawlers"
	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,如 CROSSPOSTIT_POSTGRES_DSN
const EnvPrefix = "CROSSPOSTIT"

// Config 应用程序配置
type Config struct {
	Harvest   models.HarvestConfig `mapstructure:"harvest"`
	Fetch     models.FetchConfig   `mapstructure:"fetch"`
	Selectors models.Selectors     `mapstructure:"selectors"`
	Batch     BatchConfig          `mapstructure:"batch"`
	Output    OutputConfig         `mapstructure:"output"`
	Postgres  PostgresConfig       `mapstructure:"postgres"`
	Logging   utils.LogConfig      `mapstructure:"logging"`
}

// BatchConfig 批量采集配置
type BatchConfig struct {
	Delay           time.Duration `mapstructure:"delay"`
	ContinueOnError bool          `mapstructure:"continue_on_error"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	CSVFile      string `mapstructure:"csv_file"`
	JSONFile     string `mapstructure:"json_file"`
	ImagesDir    string `mapstructure:"images_dir"`
	Images       bool   `mapstructure:"images"`         // 是否下载图片
	MaxImageSize int64  `mapstructure:"max_image_size"` // 单张图片字节上限,0表示不限
	PerUser      bool   `mapstructure:"per_user"`       // 每个用户一个子目录
	Report       bool   `mapstructure:"report"`         // 是否生成 harvest_report.json
}

// PostgresConfig PostgreSQL输出配置,DSN为空时不启用
type PostgresConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	MaxConns  int    `mapstructure:"max_conns"`
	BatchSize int    `mapstructure:"batch_size"`
}

// Enabled 是否启用PostgreSQL输出
func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".crosspostit"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		utils.Debugf("未找到配置文件,使用默认配置")
	} else {
		utils.Debugf("已加载配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	config.Selectors = config.Selectors.WithDefaults()

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 采集
	v.SetDefault("harvest.base_url", "https://offerup.com")
	v.SetDefault("harvest.profile_path", "/p/%s")
	v.SetDefault("harvest.max_pages", 5)
	v.SetDefault("harvest.page_delay_min", time.Second)
	v.SetDefault("harvest.page_delay_max", 3*time.Second)
	v.SetDefault("harvest.image_delay_min", 500*time.Millisecond)
	v.SetDefault("harvest.image_delay_max", 1500*time.Millisecond)

	// 请求
	v.SetDefault("fetch.mode", string(models.ModeStatic))
	v.SetDefault("fetch.request_timeout", 30*time.Second)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.retry_wait", time.Second)
	v.SetDefault("fetch.max_retry_wait", 30*time.Second)
	v.SetDefault("fetch.max_rps", 0.0)
	v.SetDefault("fetch.headless", true)
	v.SetDefault("fetch.settle_time", 2*time.Second)

	// 选择器
	d := models.DefaultSelectors()
	v.SetDefault("selectors.card", d.Card)
	v.SetDefault("selectors.item_link", d.ItemLink)
	v.SetDefault("selectors.title", d.Title)
	v.SetDefault("selectors.price", d.Price)
	v.SetDefault("selectors.location", d.Location)
	v.SetDefault("selectors.image", d.Image)
	v.SetDefault("selectors.post_date", d.PostDate)
	v.SetDefault("selectors.next_page", d.NextPage)
	v.SetDefault("selectors.description", d.Description)
	v.SetDefault("selectors.description_fallback", d.DescriptionFallback)

	// 批量
	v.SetDefault("batch.delay", 5*time.Second)
	v.SetDefault("batch.continue_on_error", true)

	// 输出
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.csv_file", "offerup_items.csv")
	v.SetDefault("output.json_file", "offerup_items.json")
	v.SetDefault("output.images_dir", "images")
	v.SetDefault("output.images", false)
	v.SetDefault("output.max_image_size", 10*1024*1024)
	v.SetDefault("output.per_user", true)
	v.SetDefault("output.report", true)

	// PostgreSQL
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "harvested_listings")
	v.SetDefault("postgres.max_conns", 2)
	v.SetDefault("postgres.batch_size", 200)

	// 日志
	logDefaults := utils.DefaultLogConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.dir", logDefaults.LogDir)
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)
	v.SetDefault("logging.compress", logDefaults.Compress)
	v.SetDefault("logging.no_color", false)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Harvest.Validate(); err != nil {
		return err
	}
	if err := c.Fetch.Validate(); err != nil {
		return err
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir不能为空")
	}
	if c.Output.MaxImageSize < 0 {
		return fmt.Errorf("output.max_image_size不能为负数")
	}
	if c.Batch.Delay < 0 {
		return fmt.Errorf("batch.delay不能为负数")
	}
	return nil
}

// CLIOverrides 命令行参数,零值(或nil)表示未指定
type CLIOverrides struct {
	MaxPages    int
	OutputDir   string
	Mode        string
	Images      *bool
	Headless    *bool
	LogLevel    string
	PostgresDSN string
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if o.MaxPages != 0 {
		c.Harvest.MaxPages = o.MaxPages
	}
	if o.OutputDir != "" {
		c.Output.Dir = o.OutputDir
	}
	if o.Mode != "" {
		c.Fetch.Mode = models.FetchMode(o.Mode)
	}
	if o.Images != nil {
		c.Output.Images = *o.Images
	}
	if o.Headless != nil {
		c.Fetch.Headless = *o.Headless
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.PostgresDSN != "" {
		c.Postgres.DSN = o.PostgresDSN
	}
}

// RetryOpts 由请求配置生成重试参数
func (c *Config) RetryOpts() crawlers.RetryOpts {
	return crawlers.RetryOpts{
		MaxAttempts: c.Fetch.MaxAttempts,
		InitialWait: c.Fetch.RetryWait,
		MaxWait:     c.Fetch.MaxRetryWait,
		Jitter:      true,
	}
}
