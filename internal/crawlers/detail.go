package crawlers

import (
	"context"

	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
)

// DetailResult 详情页描述获取结果
type DetailResult struct {
	Description string
	Outcome     Outcome // OutcomeComplete 或 OutcomeDegraded(占位值)
	Err         error   // 降级原因,已记录日志
}

// DetailFetcher 详情页描述获取器
type DetailFetcher struct {
	fetcher  Fetcher
	primary  string
	fallback string
}

// NewDetailFetcher 创建详情页获取器
func NewDetailFetcher(fetcher Fetcher, selectors models.Selectors) *DetailFetcher {
	selectors = selectors.WithDefaults()
	return &DetailFetcher{
		fetcher:  fetcher,
		primary:  selectors.Description,
		fallback: selectors.DescriptionFallback,
	}
}

// Fetch 获取商品描述
// 任何故障都转换为占位值,错误只随结果返回,不向上传播
func (d *DetailFetcher) Fetch(ctx context.Context, itemURL string) DetailResult {
	resp, err := d.fetcher.Fetch(ctx, itemURL)
	if err != nil {
		utils.Warnf("⚠️  获取商品详情失败 [%s]: %v", itemURL, err)
		return degraded(err)
	}
	if !resp.OK() {
		err := &models.HarvestError{Kind: models.UnexpectedStatus, URL: itemURL, StatusCode: resp.StatusCode}
		utils.Warnf("⚠️  获取商品详情失败 [%s]: %v", itemURL, err)
		return degraded(err)
	}

	doc, err := ParseDocument(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		utils.Warnf("⚠️  解析商品详情失败 [%s]: %v", itemURL, err)
		return degraded(err)
	}

	if text, ok := textOf(doc, d.primary); ok {
		return DetailResult{Description: text, Outcome: OutcomeComplete}
	}
	if text, ok := textOf(doc, d.fallback); ok {
		return DetailResult{Description: text, Outcome: OutcomeComplete}
	}

	utils.Debugf("详情页未找到描述: %s", itemURL)
	return DetailResult{
		Description: models.PlaceholderDescription,
		Outcome:     OutcomeDegraded,
		Err:         &models.HarvestError{Kind: models.ParseFault, URL: itemURL},
	}
}

func degraded(err error) DetailResult {
	return DetailResult{
		Description: models.PlaceholderDescription,
		Outcome:     OutcomeDegraded,
		Err:         err,
	}
}
