package crawlers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/checarsner/crosspostit/internal/models"
	"github.com/rs/zerolog/log"
)

// Outcome 单张卡片的提取结果类型
type Outcome int

const (
	OutcomeComplete Outcome = iota // 所有字段都提取到
	OutcomeDegraded                // 至少一个字段使用占位值
	OutcomeSkipped                 // 不产生记录
)

// String 返回结果类型名称
func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// CardResult 卡片提取结果
// Record 不含描述,描述由DetailFetcher填充
type CardResult struct {
	Record  models.ListingRecord
	Outcome Outcome
	Missing []string // 使用占位值或为空的字段名
	Err     error    // 跳过原因(仅OutcomeSkipped时可能非空)
}

// CardExtractor 商品卡片提取器
// 职责: 从单张卡片中提取商品字段,缺失字段使用占位值
type CardExtractor struct {
	selectors models.Selectors
	base      *url.URL
}

// NewCardExtractor 创建卡片提取器
func NewCardExtractor(baseURL string, selectors models.Selectors) (*CardExtractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("解析baseURL失败: %w", err)
	}
	return &CardExtractor{
		selectors: selectors.WithDefaults(),
		base:      base,
	}, nil
}

// Cards 返回页面中的所有商品卡片,按文档顺序
func (e *CardExtractor) Cards(doc Document) []Node {
	return doc.FindAll(e.selectors.Card)
}

// Extract 提取单张卡片
// 读取字段时的任何panic都会被恢复并转换为跳过
func (e *CardExtractor) Extract(card Node) (result CardResult) {
	defer func() {
		if r := recover(); r != nil {
			err := &models.HarvestError{
				Kind:  models.ParseFault,
				Cause: fmt.Errorf("提取卡片时发生panic: %v", r),
			}
			log.Error().Err(err).Msg("卡片提取失败,已跳过")
			result = CardResult{Outcome: OutcomeSkipped, Err: err}
		}
	}()

	link, ok := card.FindOne(e.selectors.ItemLink)
	if !ok {
		return CardResult{Outcome: OutcomeSkipped}
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return CardResult{Outcome: OutcomeSkipped}
	}
	href = strings.TrimSpace(href)

	var missing []string
	field := func(name, selector, placeholder string) string {
		if text, ok := textOf(card, selector); ok {
			return text
		}
		missing = append(missing, name)
		return placeholder
	}

	rec := models.ListingRecord{
		ItemID:   itemIDFromHref(href),
		ItemURL:  e.resolve(href),
		Title:    field("title", e.selectors.Title, models.PlaceholderTitle),
		Price:    field("price", e.selectors.Price, models.PlaceholderPrice),
		Location: field("location", e.selectors.Location, models.PlaceholderLocation),
		PostDate: field("post_date", e.selectors.PostDate, models.PlaceholderPostDate),
	}

	if img, ok := card.FindOne(e.selectors.Image); ok {
		if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
			abs := e.resolve(strings.TrimSpace(src))
			rec.ImageURL = &abs
		}
	}
	if rec.ImageURL == nil {
		missing = append(missing, "image_url")
	}
	if rec.ItemID == nil {
		missing = append(missing, "item_id")
	}

	outcome := OutcomeComplete
	if len(missing) > 0 {
		outcome = OutcomeDegraded
	}
	return CardResult{Record: rec, Outcome: outcome, Missing: missing}
}

// resolve 将相对链接转换为绝对URL
func (e *CardExtractor) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return strings.TrimRight(e.base.String(), "/") + ref
	}
	return e.base.ResolveReference(u).String()
}

// itemIDFromHref 取链接路径按"/"分割后的第3段
// "/item/abc123" -> "abc123", 少于3段或该段为空时返回nil
func itemIDFromHref(href string) *string {
	path := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		path = u.Path
	}
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return nil
	}
	return models.StringPtr(parts[2])
}
