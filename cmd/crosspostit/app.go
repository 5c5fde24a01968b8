package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/checarsner/crosspostit/internal/core"
	"github.com/checarsner/crosspostit/internal/crawlers"
	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/sinks"
	"github.com/checarsner/crosspostit/internal/utils"
)

// sinkTimeout 中断后写入数据库的最长时间
const sinkTimeout = 30 * time.Second

// app 一次命令行运行所需的组件
type app struct {
	cfg            *core.Config
	headerProvider models.HeaderProvider
	harvester      *core.Harvester
	browser        *crawlers.BrowserFetcher
	postgres       *sinks.PostgresSink
	postgresErr    error // 启动时数据库不可用的原因
}

// newApp 按配置组装获取器、分页控制器与输出目标
func newApp(ctx context.Context, cfg *core.Config, headerProvider *core.HeaderManager) (*app, error) {
	headers, err := headerProvider.GetHeaders()
	if err != nil {
		return nil, err
	}
	utils.Debugf("请求头: %s", utils.NewHeaderRedactor().RedactToString(headers))

	a := &app{cfg: cfg, headerProvider: headerProvider}

	static := crawlers.NewStaticFetcher(crawlers.StaticFetcherConfig{Timeout: cfg.Fetch.RequestTimeout}, headerProvider)
	detailFetcher := wrapFetcher(static, cfg)
	pageFetcher := detailFetcher

	// 浏览器模式只用于列表页,详情页仍走HTTP
	if cfg.Fetch.Mode == models.ModeBrowser {
		a.browser = crawlers.NewBrowserFetcher(crawlers.BrowserFetcherConfig{
			Headless:   cfg.Fetch.Headless,
			Timeout:    cfg.Fetch.RequestTimeout,
			SettleTime: cfg.Fetch.SettleTime,
		}, headerProvider)
		pageFetcher = wrapFetcher(a.browser, cfg)
	}
	utils.Infof("抓取模式: %s", cfg.Fetch.Mode)

	a.harvester, err = core.NewHarvester(core.HarvesterDeps{
		Config:        cfg.Harvest,
		Selectors:     cfg.Selectors,
		Fetcher:       pageFetcher,
		DetailFetcher: detailFetcher,
		Headers:       headers,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Postgres.Enabled() {
		if err := a.openPostgres(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// openPostgres 连接数据库输出
// 配置错误直接返回;数据库不可用时只禁用该输出,其余输出照常
func (a *app) openPostgres(ctx context.Context) error {
	pg, err := sinks.NewPostgresSink(ctx, sinks.PostgresSinkConfig{
		DSN:       a.cfg.Postgres.DSN,
		Table:     a.cfg.Postgres.Table,
		MaxConns:  a.cfg.Postgres.MaxConns,
		BatchSize: a.cfg.Postgres.BatchSize,
	})
	if err == nil {
		if err = pg.EnsureSchema(ctx); err != nil {
			pg.Close()
		}
	}
	switch {
	case err == nil:
		a.postgres = pg
		return nil
	case errors.Is(err, sinks.ErrPostgresUnavailable):
		utils.Errorf("❌ PostgreSQL输出已禁用: %v", err)
		a.postgresErr = err
		return nil
	default:
		return err
	}
}

// wrapFetcher 限速在内,重试在外,每次重试同样受限速约束
func wrapFetcher(f crawlers.Fetcher, cfg *core.Config) crawlers.Fetcher {
	return crawlers.NewRetryFetcher(crawlers.NewRateLimitedFetcher(f, cfg.Fetch.MaxRPS), cfg.RetryOpts())
}

// Close 释放浏览器与数据库连接
func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
}

// runSingle 采集单个用户
func (a *app) runSingle(ctx context.Context, username string) error {
	session, err := a.harvester.Run(ctx, username, a.cfg.Harvest.MaxPages)
	if session == nil {
		return err
	}
	if session.Len() > 0 {
		if outErr := a.writeOutputs(ctx, session); outErr != nil {
			utils.Warnf("部分输出失败: %v", outErr)
		}
	}
	return classify(err, session.Stats.PagesFetched)
}

// runBatch 批量采集用户列表
func (a *app) runBatch(ctx context.Context, usernames []string) error {
	bh := core.NewBatchHarvester(a.harvester, a.cfg.Harvest.MaxPages, a.cfg.Batch.Delay, a.cfg.Batch.ContinueOnError, a.writeOutputs)
	summary, err := bh.HarvestBatch(ctx, usernames)

	pages := 0
	noPages := 0
	for _, r := range summary.Results {
		pages += r.Stats.PagesFetched
		if errors.Is(r.Error, core.ErrNoPagesRetrieved) {
			noPages++
		}
	}
	if err != nil {
		return classify(err, pages)
	}
	if summary.SuccessCount == 0 && noPages == len(summary.Results) && noPages > 0 {
		return fmt.Errorf("%w: 所有用户均失败", core.ErrNoPagesRetrieved)
	}
	utils.Info("✨ 批量采集任务完成!")
	return nil
}

// classify 将采集错误转换为命令行结果
// 中断但已有页面时视为部分成功
func classify(err error, pagesFetched int) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		if pagesFetched == 0 {
			return errInterrupted
		}
		utils.Warn("采集被中断,已保存部分结果")
		return nil
	default:
		return err
	}
}

// outputDirFor 用户的输出目录
func (a *app) outputDirFor(username string) string {
	if a.cfg.Output.PerUser {
		return filepath.Join(a.cfg.Output.Dir, username)
	}
	return a.cfg.Output.Dir
}

// writeOutputs 依次写入各输出目标,单个目标失败不影响其他目标
func (a *app) writeOutputs(ctx context.Context, session *models.HarvestSession) error {
	dir := a.outputDirFor(session.Username)
	records := session.Records()
	results := make([]models.SinkResult, 0, 4)
	var errs []error

	record := func(name, target string, written int, err error) {
		res := models.SinkResult{Name: name, Target: target, Written: written}
		if err != nil {
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			utils.Errorf("❌ %s 输出失败: %v", name, err)
		}
		results = append(results, res)
	}

	csvPath := filepath.Join(dir, a.cfg.Output.CSVFile)
	n, err := sinks.WriteCSV(csvPath, records)
	record("csv", csvPath, n, err)

	jsonPath := filepath.Join(dir, a.cfg.Output.JSONFile)
	n, err = sinks.WriteJSON(jsonPath, records)
	record("json", jsonPath, n, err)

	if a.cfg.Output.Images {
		switch {
		case ctx.Err() != nil:
			utils.Warn("采集已中断,跳过图片下载")
			results = append(results, models.SinkResult{Name: "images", Skipped: true})
		default:
			imageSink := sinks.NewImageSink(sinks.ImageSinkConfig{
				Dir:          filepath.Join(dir, a.cfg.Output.ImagesDir),
				Timeout:      a.cfg.Fetch.RequestTimeout,
				MaxFileSize:  a.cfg.Output.MaxImageSize,
				Delay:        crawlers.NewRandomDelay(a.cfg.Harvest.ImageDelayMin, a.cfg.Harvest.ImageDelayMax),
				ShowProgress: true,
			}, a.headerProvider)
			stats, err := imageSink.Download(ctx, records)
			record("images", imageSink.Dir(), stats.Downloaded, err)
			results[len(results)-1].Failed = stats.Failed
		}
	}

	if a.postgres != nil {
		pgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		n, err := a.postgres.Write(pgCtx, session)
		cancel()
		record("postgres", a.cfg.Postgres.Table, n, err)
	} else if a.postgresErr != nil {
		results = append(results, models.SinkResult{Name: "postgres", Target: a.cfg.Postgres.Table, Skipped: true, Error: a.postgresErr.Error()})
	}

	if a.cfg.Output.Report {
		report := utils.BuildReport(session, a.cfg.Fetch.Mode, a.cfg.Harvest, results)
		if _, err := utils.NewReporter(dir).GenerateReport(report); err != nil {
			utils.Warnf("生成报告失败: %v", err)
		}
	}

	return errors.Join(errs...)
}
