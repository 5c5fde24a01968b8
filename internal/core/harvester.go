package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/checarsner/crosspostit/internal/crawlers"
	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
)

var (
	// ErrNoPagesRetrieved 一个列表页都没有获取成功
	ErrNoPagesRetrieved = errors.New("未获取到任何列表页")

	// ErrInvalidTarget 用户名或页数参数无效
	ErrInvalidTarget = errors.New("无效的采集目标")
)

// State 分页控制器状态
type State int

const (
	StateFetchingPage State = iota
	StateExtractingCards
	StateDecidingContinuation
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFetchingPage:
		return "fetching_page"
	case StateExtractingCards:
		return "extracting_cards"
	case StateDecidingContinuation:
		return "deciding_continuation"
	case StateDone:
		return "done"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// HarvesterDeps 分页控制器依赖
type HarvesterDeps struct {
	Config    models.HarvestConfig
	Selectors models.Selectors

	// Fetcher 列表页获取器
	Fetcher crawlers.Fetcher

	// DetailFetcher 详情页获取器 (可选,默认与Fetcher相同)
	DetailFetcher crawlers.Fetcher

	// PageDelay 翻页间隔 (可选,默认按Config中的区间随机)
	PageDelay crawlers.Delayer

	// Headers 记录到会话中的出站请求头
	Headers http.Header
}

// Harvester 分页控制器
// 职责: 逐页获取用户主页,提取卡片,补全描述,直到满足终止条件
type Harvester struct {
	cfg          models.HarvestConfig
	fetcher      crawlers.Fetcher
	extractor    *crawlers.CardExtractor
	detail       *crawlers.DetailFetcher
	pageDelay    crawlers.Delayer
	nextSelector string
	headers      http.Header
}

// NewHarvester 创建分页控制器
func NewHarvester(deps HarvesterDeps) (*Harvester, error) {
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("未提供页面获取器")
	}
	if err := models.ValidateURL(deps.Config.BaseURL); err != nil {
		return nil, fmt.Errorf("base_url无效: %w", err)
	}

	selectors := deps.Selectors.WithDefaults()
	extractor, err := crawlers.NewCardExtractor(deps.Config.BaseURL, selectors)
	if err != nil {
		return nil, err
	}

	detailFetcher := deps.DetailFetcher
	if detailFetcher == nil {
		detailFetcher = deps.Fetcher
	}

	pageDelay := deps.PageDelay
	if pageDelay == nil {
		pageDelay = crawlers.NewRandomDelay(deps.Config.PageDelayMin, deps.Config.PageDelayMax)
	}

	return &Harvester{
		cfg:          deps.Config,
		fetcher:      deps.Fetcher,
		extractor:    extractor,
		detail:       crawlers.NewDetailFetcher(detailFetcher, selectors),
		pageDelay:    pageDelay,
		nextSelector: selectors.NextPage,
		headers:      deps.Headers,
	}, nil
}

// ProfileURL 返回用户主页地址
func (h *Harvester) ProfileURL(username string) string {
	path := h.cfg.ProfilePath
	if path == "" {
		path = "/p/%s"
	}
	if strings.Contains(path, "%s") {
		path = strings.Replace(path, "%s", url.PathEscape(username), 1)
	} else {
		path = strings.TrimRight(path, "/") + "/" + url.PathEscape(username)
	}
	return strings.TrimRight(h.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// pageURL 在主页地址后追加页码参数
func pageURL(profileURL string, page int) string {
	u, err := url.Parse(profileURL)
	if err != nil {
		return fmt.Sprintf("%s?page=%d", profileURL, page)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// run 单次运行的状态
type run struct {
	session  *models.HarvestSession
	maxPages int
	page     int
	doc      crawlers.Document
	lastErr  error
}

// Run 采集指定用户的商品列表
// 返回的会话总是包含已累积的记录;上下文取消时同时返回上下文错误,
// 一页都没获取到时返回 ErrNoPagesRetrieved
func (h *Harvester) Run(ctx context.Context, username string, maxPages int) (*models.HarvestSession, error) {
	name, err := models.NormalizeUsername(username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if maxPages < 1 {
		return nil, fmt.Errorf("%w: 最大页数必须为正整数,当前值: %d", ErrInvalidTarget, maxPages)
	}

	profileURL := h.ProfileURL(name)
	r := &run{
		session:  models.NewHarvestSession(name, h.cfg.BaseURL, profileURL, h.headers),
		maxPages: maxPages,
		page:     1,
	}

	utils.Infof("🚀 开始采集用户: %s", name)
	utils.Infof("主页地址: %s (最多 %d 页)", profileURL, maxPages)

	state := StateFetchingPage
	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return h.cancelled(r, err)
		}

		utils.Debugf("状态: %s (第%d页)", state, r.page)
		switch state {
		case StateFetchingPage:
			state = h.fetchPage(ctx, r)
		case StateExtractingCards:
			state = h.extractCards(ctx, r)
		case StateDecidingContinuation:
			state = h.decideContinuation(ctx, r)
		}
	}

	if r.session.StopReason == models.StopCancelled {
		return h.cancelled(r, ctx.Err())
	}

	s := r.session
	utils.Infof("🏁 采集结束 [%s]: %d页, %d条记录 (跳过 %d, 降级 %d, 详情失败 %d)",
		s.StopReason, s.Stats.PagesFetched, s.Len(), s.Stats.Skipped, s.Stats.Degraded, s.Stats.DetailFailures)

	if s.Stats.PagesFetched == 0 {
		if r.lastErr != nil {
			return s, fmt.Errorf("%w: %v", ErrNoPagesRetrieved, r.lastErr)
		}
		return s, ErrNoPagesRetrieved
	}
	return s, nil
}

func (h *Harvester) cancelled(r *run, err error) (*models.HarvestSession, error) {
	if err == nil {
		err = context.Canceled
	}
	if r.session.StopReason != models.StopCancelled {
		r.session.Finish(models.StopCancelled)
	}
	utils.Warnf("⚠️  采集已中断: 保留 %d 条记录", r.session.Len())
	return r.session, err
}

func (h *Harvester) finish(r *run, reason models.StopReason) State {
	r.doc = nil
	r.session.Finish(reason)
	return StateDone
}

// fetchPage 获取当前页,失败时结束本次运行并保留已有记录
func (h *Harvester) fetchPage(ctx context.Context, r *run) State {
	target := pageURL(r.session.ProfileURL, r.page)
	utils.Infof("📄 获取第 %d/%d 页: %s", r.page, r.maxPages, target)

	resp, err := h.fetcher.Fetch(ctx, target)
	if ctx.Err() != nil {
		return h.finish(r, models.StopCancelled)
	}
	if err == nil && !resp.OK() {
		err = &models.HarvestError{Kind: models.UnexpectedStatus, URL: target, StatusCode: resp.StatusCode}
	}
	if err != nil {
		r.lastErr = err
		utils.Warnf("⚠️  第%d页获取失败,停止翻页: %v", r.page, err)
		return h.finish(r, models.StopPageFetchFailed)
	}

	doc, err := crawlers.ParseDocument(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		r.lastErr = &models.HarvestError{Kind: models.ParseFault, URL: target, Cause: err}
		utils.Warnf("⚠️  第%d页解析失败,停止翻页: %v", r.page, r.lastErr)
		return h.finish(r, models.StopPageFetchFailed)
	}

	r.session.Stats.PagesFetched++
	r.doc = doc
	return StateExtractingCards
}

// extractCards 逐张提取卡片并补全描述
// 单张卡片的失败不影响其他卡片
func (h *Harvester) extractCards(ctx context.Context, r *run) State {
	cards := h.extractor.Cards(r.doc)
	if len(cards) == 0 {
		utils.Infof("第%d页没有商品,已到末尾", r.page)
		return h.finish(r, models.StopExhausted)
	}

	stats := &r.session.Stats
	added := 0
	for i, card := range cards {
		if ctx.Err() != nil {
			return h.finish(r, models.StopCancelled)
		}
		stats.CardsSeen++

		res := h.extractor.Extract(card)
		if res.Outcome == crawlers.OutcomeSkipped {
			stats.Skipped++
			if res.Err != nil {
				utils.Warnf("第%d页第%d张卡片已跳过: %v", r.page, i+1, res.Err)
			} else {
				utils.Debugf("第%d页第%d张卡片没有商品链接,已跳过", r.page, i+1)
			}
			continue
		}

		rec := res.Record
		detail := h.detail.Fetch(ctx, rec.ItemURL)
		if ctx.Err() != nil {
			return h.finish(r, models.StopCancelled)
		}
		rec.Description = detail.Description

		if detail.Outcome == crawlers.OutcomeDegraded {
			stats.DetailFailures++
		}
		if res.Outcome == crawlers.OutcomeDegraded || detail.Outcome == crawlers.OutcomeDegraded {
			stats.Degraded++
			utils.Debugf("记录使用了占位值 [%s]: 缺失 %v", rec.ItemURL, res.Missing)
		}

		r.session.Append(rec)
		added++
	}

	utils.Infof("✅ 第%d页: %d张卡片, 新增 %d 条记录 (累计 %d)", r.page, len(cards), added, r.session.Len())
	return StateDecidingContinuation
}

// decideContinuation 判断是否翻到下一页
// 页数上限在等待之前检查
func (h *Harvester) decideContinuation(ctx context.Context, r *run) State {
	next, ok := r.doc.FindOne(h.nextSelector)
	if !ok || isDisabled(next) {
		utils.Infof("没有下一页")
		return h.finish(r, models.StopNoNextPage)
	}
	if r.page >= r.maxPages {
		utils.Infof("已达到最大页数 %d", r.maxPages)
		return h.finish(r, models.StopPageLimit)
	}

	r.page++
	r.doc = nil
	if err := h.pageDelay.Wait(ctx); err != nil {
		return h.finish(r, models.StopCancelled)
	}
	return StateFetchingPage
}

// isDisabled 下一页按钮是否处于禁用状态
func isDisabled(n crawlers.Node) bool {
	if v, ok := n.Attr("disabled"); ok && !strings.EqualFold(strings.TrimSpace(v), "false") {
		return true
	}
	if v, ok := n.Attr("aria-disabled"); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
		return true
	}
	return false
}
