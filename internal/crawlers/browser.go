package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserFetcherConfig 浏览器获取器配置
type BrowserFetcherConfig struct {
	Headless           bool
	Timeout            time.Duration
	SettleTime         time.Duration // 页面load后额外等待,给前端渲染留时间
	InsecureSkipVerify bool
}

// BrowserFetcher 基于go-rod的页面获取器
// 用于列表由前端脚本渲染的主页,浏览器在首次请求时启动
type BrowserFetcher struct {
	config         BrowserFetcherConfig
	headerProvider models.HeaderProvider

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewBrowserFetcher 创建浏览器获取器
func NewBrowserFetcher(cfg BrowserFetcherConfig, headerProvider models.HeaderProvider) *BrowserFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &BrowserFetcher{
		config:         cfg,
		headerProvider: headerProvider,
	}
}

// ensureBrowser 按需启动浏览器
func (f *BrowserFetcher) ensureBrowser() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	l := launcher.New().Headless(f.config.Headless)
	if f.config.InsecureSkipVerify {
		l = l.Set("ignore-certificate-errors")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	f.launcher = l
	f.browser = browser
	return browser, nil
}

// Fetch 在新标签页中打开URL并返回渲染后的HTML
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := f.ensureBrowser()
	if err != nil {
		return nil, &models.HarvestError{Kind: models.TransportFault, URL: pageURL, Cause: err}
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, &models.HarvestError{Kind: models.TransportFault, URL: pageURL, Cause: fmt.Errorf("创建标签页失败: %w", err)}
	}
	defer page.Close()

	if err := f.applyHeaders(page); err != nil {
		utils.Warnf("设置浏览器请求头失败: %v", err)
	}

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		utils.Debugf("启用网络域失败: %v", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()
	p := page.Context(fetchCtx)

	statusCh := watchDocumentStatus(p)

	if err := p.Navigate(pageURL); err != nil {
		return nil, f.navError(ctx, pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, f.navError(ctx, pageURL, err)
	}
	if f.config.SettleTime > 0 {
		if err := sleepContext(fetchCtx, f.config.SettleTime); err != nil {
			return nil, f.navError(ctx, pageURL, err)
		}
	}

	html, err := p.HTML()
	if err != nil {
		return nil, f.navError(ctx, pageURL, err)
	}

	status := http.StatusOK
	select {
	case status = <-statusCh:
	default:
		utils.Debugf("未捕获到主文档响应状态,按200处理: %s", pageURL)
	}

	resp := &Response{
		URL:        pageURL,
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       []byte(html),
	}
	if info, err := p.Info(); err == nil && info.URL != "" {
		resp.URL = info.URL
	}

	if !resp.OK() {
		return resp, &models.HarvestError{Kind: models.UnexpectedStatus, URL: pageURL, StatusCode: status}
	}
	return resp, nil
}

// watchDocumentStatus 记录主文档的响应状态
// 监听绑定在p的上下文上,本次获取结束时随之退出
func watchDocumentStatus(p *rod.Page) <-chan int {
	statusCh := make(chan int, 1)
	wait := p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		select {
		case statusCh <- e.Response.Status:
		default:
		}
		return true
	})
	go wait()
	return statusCh
}

// applyHeaders 将头部应用到标签页
// User-Agent与Accept-Language走UA覆盖,其余作为额外请求头
func (f *BrowserFetcher) applyHeaders(page *rod.Page) error {
	if f.headerProvider == nil {
		return nil
	}
	headers, err := f.headerProvider.GetHeaders()
	if err != nil {
		return err
	}

	if ua := headers.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: headers.Get("Accept-Language"),
		}); err != nil {
			return err
		}
	}

	var extra []string
	for name, values := range headers {
		switch http.CanonicalHeaderKey(name) {
		case "User-Agent", "Accept-Language", "Accept-Encoding", "Connection":
			continue
		}
		if len(values) > 0 {
			extra = append(extra, name, values[0])
		}
	}
	if len(extra) == 0 {
		return nil
	}
	_, err = page.SetExtraHeaders(extra)
	return err
}

func (f *BrowserFetcher) navError(ctx context.Context, pageURL string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &models.HarvestError{Kind: models.TransportFault, URL: pageURL, Cause: err}
}

// Close 关闭浏览器
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	if f.launcher != nil {
		f.launcher.Kill()
	}
	f.browser = nil
	f.launcher = nil
	utils.Debugf("浏览器已关闭")
	return err
}
