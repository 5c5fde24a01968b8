package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
	"github.com/gocolly/colly/v2"
)

// Response 一次页面请求的结果
type Response struct {
	URL        string      // 最终URL(跟随重定向后)
	StatusCode int         // HTTP状态码
	Header     http.Header // 响应头
	Body       []byte      // 已解压的响应体
}

// OK 状态码是否为2xx
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher 页面获取接口
// 非2xx响应返回Response和UnexpectedStatus错误,网络失败返回TransportFault错误
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetcherFunc 函数适配器
type FetcherFunc func(ctx context.Context, url string) (*Response, error)

// Fetch 实现Fetcher接口
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}

// StaticFetcherConfig 静态获取器配置
type StaticFetcherConfig struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxBodySize        int
}

// StaticFetcher 基于Colly的HTTP页面获取器
type StaticFetcher struct {
	collector      *colly.Collector
	headerProvider models.HeaderProvider
}

// NewStaticFetcher 创建静态获取器
func NewStaticFetcher(cfg StaticFetcherConfig, headerProvider models.HeaderProvider) *StaticFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify,
			},
			MaxIdleConnsPerHost: 4,
		},
		Timeout: cfg.Timeout,
	}

	// 同步模式,允许重复访问同一URL(重试需要)
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetClient(httpClient)
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}

	utils.Debugf("静态获取器: 超时 %v, 跳过证书验证=%v", cfg.Timeout, cfg.InsecureSkipVerify)

	return &StaticFetcher{
		collector:      c,
		headerProvider: headerProvider,
	}
}

// Fetch 获取单个页面
func (f *StaticFetcher) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 每次请求使用独立的克隆,回调只作用于本次请求
	c := f.collector.Clone()
	c.Context = ctx

	var (
		resp     *Response
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if f.headerProvider == nil {
			return
		}
		headers, err := f.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		utils.Debugf("请求: %s", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		header := http.Header{}
		if r.Headers != nil {
			header = r.Headers.Clone()
		}

		body, err := decompressResponse(header.Get("Content-Encoding"), r.Body)
		if err != nil {
			utils.Warnf("解压响应失败 [%s]: %v", r.Request.URL, err)
			body = r.Body
		}

		resp = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Header:     header,
			Body:       body,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 && resp == nil {
			resp = &Response{
				URL:        r.Request.URL.String(),
				StatusCode: r.StatusCode,
				Body:       r.Body,
			}
			if r.Headers != nil {
				resp.Header = r.Headers.Clone()
			}
		}
		fetchErr = err
	})

	visitErr := c.Visit(pageURL)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if resp != nil {
		if !resp.OK() {
			return resp, &models.HarvestError{
				Kind:       models.UnexpectedStatus,
				URL:        pageURL,
				StatusCode: resp.StatusCode,
			}
		}
		return resp, nil
	}

	if fetchErr == nil {
		fetchErr = visitErr
	}
	if fetchErr == nil {
		fetchErr = errors.New("未收到响应")
	}
	return nil, &models.HarvestError{
		Kind:  models.TransportFault,
		URL:   pageURL,
		Cause: fetchErr,
	}
}

// decompressResponse 根据Content-Encoding头部解压响应体
// Colly已处理gzip,这里只在仍是gzip魔数时再解一次
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
