package models

import (
	"fmt"
	"time"
)

// FetchMode 抓取模式
type FetchMode string

const (
	ModeStatic  FetchMode = "static"  // HTTP直接请求(Colly)
	ModeBrowser FetchMode = "browser" // 浏览器渲染(go-rod)
)

// HarvestConfig 采集配置
type HarvestConfig struct {
	BaseURL       string        `mapstructure:"base_url" json:"base_url"`             // 站点根地址
	ProfilePath   string        `mapstructure:"profile_path" json:"profile_path"`     // 用户主页路径模板,%s为用户名
	MaxPages      int           `mapstructure:"max_pages" json:"max_pages"`           // 最大页数 (默认:5)
	PageDelayMin  time.Duration `mapstructure:"page_delay_min" json:"page_delay_min"` // 翻页随机延迟下限
	PageDelayMax  time.Duration `mapstructure:"page_delay_max" json:"page_delay_max"` // 翻页随机延迟上限
	ImageDelayMin time.Duration `mapstructure:"image_delay_min" json:"image_delay_min"`
	ImageDelayMax time.Duration `mapstructure:"image_delay_max" json:"image_delay_max"`
}

// Validate 验证配置
func (c *HarvestConfig) Validate() error {
	if err := ValidateURL(c.BaseURL); err != nil {
		return fmt.Errorf("base_url无效: %w", err)
	}
	if c.MaxPages < 1 || c.MaxPages > 1000 {
		return fmt.Errorf("最大页数必须在1-1000之间,当前值: %d", c.MaxPages)
	}
	if c.PageDelayMin < 0 || c.PageDelayMax < c.PageDelayMin {
		return fmt.Errorf("翻页延迟区间无效: [%v, %v]", c.PageDelayMin, c.PageDelayMax)
	}
	if c.ImageDelayMin < 0 || c.ImageDelayMax < c.ImageDelayMin {
		return fmt.Errorf("图片下载延迟区间无效: [%v, %v]", c.ImageDelayMin, c.ImageDelayMax)
	}
	return nil
}

// FetchConfig HTTP抓取配置
type FetchConfig struct {
	Mode           FetchMode     `mapstructure:"mode" json:"mode"`                       // static | browser
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"` // 单次请求超时
	MaxAttempts    int           `mapstructure:"max_attempts" json:"max_attempts"`       // 传输故障最大尝试次数
	RetryWait      time.Duration `mapstructure:"retry_wait" json:"retry_wait"`           // 首次重试等待
	MaxRetryWait   time.Duration `mapstructure:"max_retry_wait" json:"max_retry_wait"`
	MaxRPS         float64       `mapstructure:"max_rps" json:"max_rps"` // 每秒请求上限,0表示不限
	Headless       bool          `mapstructure:"headless" json:"headless"`
	SettleTime     time.Duration `mapstructure:"settle_time" json:"settle_time"` // 浏览器模式下页面加载后的额外等待
}

// Validate 验证配置
func (c *FetchConfig) Validate() error {
	if c.Mode != ModeStatic && c.Mode != ModeBrowser {
		return fmt.Errorf("无效的抓取模式: %s (有效值: static, browser)", c.Mode)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("请求超时必须大于0")
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		return fmt.Errorf("最大尝试次数必须在1-10之间,当前值: %d", c.MaxAttempts)
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("max_rps不能为负数")
	}
	return nil
}

// Selectors 页面选择器
type Selectors struct {
	Card                string `mapstructure:"card" json:"card"`
	ItemLink            string `mapstructure:"item_link" json:"item_link"`
	Title               string `mapstructure:"title" json:"title"`
	Price               string `mapstructure:"price" json:"price"`
	Location            string `mapstructure:"location" json:"location"`
	Image               string `mapstructure:"image" json:"image"`
	PostDate            string `mapstructure:"post_date" json:"post_date"`
	NextPage            string `mapstructure:"next_page" json:"next_page"`
	Description         string `mapstructure:"description" json:"description"`
	DescriptionFallback string `mapstructure:"description_fallback" json:"description_fallback"`
}

// DefaultSelectors OfferUp主页与详情页的默认选择器
func DefaultSelectors() Selectors {
	return Selectors{
		Card:                `div[data-test="item-card"]`,
		ItemLink:            `a[href^="/item/"]`,
		Title:               `p[data-test="item-title"]`,
		Price:               `span[data-test="item-price"]`,
		Location:            `p[data-test="item-location"]`,
		Image:               `img[src]`,
		PostDate:            `p[data-test="item-post-date"]`,
		NextPage:            `button[aria-label="Next page"]`,
		Description:         `div[data-test="item-description"]`,
		DescriptionFallback: `p[data-test="item-description"]`,
	}
}

// WithDefaults 空选择器使用默认值
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Card, d.Card)
	fill(&s.ItemLink, d.ItemLink)
	fill(&s.Title, d.Title)
	fill(&s.Price, d.Price)
	fill(&s.Location, d.Location)
	fill(&s.Image, d.Image)
	fill(&s.PostDate, d.PostDate)
	fill(&s.NextPage, d.NextPage)
	fill(&s.Description, d.Description)
	fill(&s.DescriptionFallback, d.DescriptionFallback)
	return s
}
