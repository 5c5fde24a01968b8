package sinks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/checarsner/crosspostit/internal/crawlers"
	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// DefaultImageDir 默认图片目录
const DefaultImageDir = "images"

// ErrImageTooLarge 图片超过 MaxFileSize
var ErrImageTooLarge = errors.New("图片文件过大")

// ImageStats 图片下载统计
type ImageStats struct {
	Attempted  int `json:"attempted"`
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"` // 没有图片URL的记录
}

// ImageSinkConfig 图片下载配置
type ImageSinkConfig struct {
	Dir          string
	Timeout      time.Duration
	MaxFileSize  int64            // 单个文件上限,0表示不限
	Delay        crawlers.Delayer // 每次下载后的等待
	ShowProgress bool
	Client       *http.Client // 可选
}

// ImageSink 图片下载器
// 顺序下载,单个失败记录日志后继续
type ImageSink struct {
	client         *http.Client
	dir            string
	maxFileSize    int64
	delay          crawlers.Delayer
	showProgress   bool
	headerProvider models.HeaderProvider
}

// NewImageSink 创建图片下载器
func NewImageSink(cfg ImageSinkConfig, headerProvider models.HeaderProvider) *ImageSink {
	if cfg.Dir == "" {
		cfg.Dir = DefaultImageDir
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Delay == nil {
		cfg.Delay = crawlers.NewRandomDelay(500*time.Millisecond, 1500*time.Millisecond)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &ImageSink{
		client:         client,
		dir:            cfg.Dir,
		maxFileSize:    cfg.MaxFileSize,
		delay:          cfg.Delay,
		showProgress:   cfg.ShowProgress,
		headerProvider: headerProvider,
	}
}

// Dir 图片输出目录
func (s *ImageSink) Dir() string {
	return s.dir
}

// Download 下载所有带图片URL的记录
// 只有创建目录失败或上下文取消时返回错误
func (s *ImageSink) Download(ctx context.Context, records []models.ListingRecord) (ImageStats, error) {
	var stats ImageStats

	pending := make([]models.ListingRecord, 0, len(records))
	for _, rec := range records {
		if rec.HasImage() {
			pending = append(pending, rec)
		} else {
			stats.Skipped++
		}
	}
	if len(pending) == 0 {
		utils.Info("没有可下载的图片")
		return stats, nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return stats, ioFault(s.dir, fmt.Errorf("创建图片目录失败: %w", err))
	}

	headers := s.requestHeaders()
	var bar *progressbar.ProgressBar
	if s.showProgress {
		bar = utils.NewProgressBar(len(pending), "📷 下载图片")
	}

	utils.Infof("📷 开始下载 %d 张图片到 %s", len(pending), s.dir)
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Attempted++
		path := filepath.Join(s.dir, ImageFilename(rec))
		if err := s.download(ctx, rec.ImageOrEmpty(), path, headers); err != nil {
			stats.Failed++
			utils.Warnf("⚠️  图片下载失败 [%s]: %v", rec.ImageOrEmpty(), err)
		} else {
			stats.Downloaded++
			utils.Debugf("图片已保存: %s", path)
		}
		if bar != nil {
			_ = bar.Add(1)
		}

		if err := s.delay.Wait(ctx); err != nil {
			return stats, err
		}
	}

	utils.Infof("✅ 图片下载完成: 成功 %d, 失败 %d, 无图片 %d", stats.Downloaded, stats.Failed, stats.Skipped)
	return stats, nil
}

// requestHeaders 复用页面请求头,去掉Accept-Encoding让传输层处理压缩
func (s *ImageSink) requestHeaders() http.Header {
	if s.headerProvider == nil {
		return http.Header{}
	}
	headers, err := s.headerProvider.GetHeaders()
	if err != nil {
		utils.Warnf("获取请求头失败,使用空请求头: %v", err)
		return http.Header{}
	}
	headers = headers.Clone()
	headers.Del("Accept-Encoding")
	return headers
}

// download 流式写入临时文件后重命名,失败时不留下半个文件
func (s *ImageSink) download(ctx context.Context, imageURL, path string, headers http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return &models.HarvestError{Kind: models.TransportFault, URL: imageURL, Cause: err}
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &models.HarvestError{Kind: models.TransportFault, URL: imageURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &models.HarvestError{Kind: models.UnexpectedStatus, URL: imageURL, StatusCode: resp.StatusCode}
	}
	if s.maxFileSize > 0 && resp.ContentLength > s.maxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrImageTooLarge, resp.ContentLength)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return ioFault(path, err)
	}
	tmpPath := tmp.Name()

	reader := io.Reader(resp.Body)
	if s.maxFileSize > 0 {
		// 多读一个字节用于发现超限的分块响应
		reader = io.LimitReader(resp.Body, s.maxFileSize+1)
	}
	written, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return ioFault(path, err)
	}
	if s.maxFileSize > 0 && written > s.maxFileSize {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: 超过 %d bytes", ErrImageTooLarge, s.maxFileSize)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return ioFault(path, err)
	}
	return nil
}

// ImageFilename 图片文件名: <itemId>.jpg,没有ID时使用标题的sha256前16位
func ImageFilename(rec models.ListingRecord) string {
	id := rec.IDOrEmpty()
	if id != "" && id != "." && id != ".." && filepath.Base(id) == id {
		return id + ".jpg"
	}
	sum := sha256.Sum256([]byte(rec.Title))
	return hex.EncodeToString(sum[:])[:16] + ".jpg"
}
