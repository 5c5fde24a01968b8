package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/checarsner/crosspostit/internal/models"
	"github.com/schollz/progressbar/v3"
)

// ReportFile 运行报告文件名
const ReportFile = "harvest_report.json"

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// BuildReport 根据已结束的会话生成报告
func BuildReport(session *models.HarvestSession, mode models.FetchMode, cfg models.HarvestConfig, sinks []models.SinkResult) *models.HarvestReport {
	if sinks == nil {
		sinks = []models.SinkResult{}
	}
	return &models.HarvestReport{
		RunID:      session.ID,
		Username:   session.Username,
		ProfileURL: session.ProfileURL,
		Mode:       mode,
		StopReason: session.StopReason,
		StartTime:  session.StartedAt,
		EndTime:    session.FinishedAt,
		Duration:   session.Duration().Seconds(),
		Stats:      session.Stats,
		Sinks:      sinks,
		Harvest:    cfg,
	}
}

// GenerateReport 写入 harvest_report.json,返回文件路径
func (r *Reporter) GenerateReport(report *models.HarvestReport) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	data, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	path := filepath.Join(r.outputDir, ReportFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Infof("📋 报告已生成: %s", path)
	return path, nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
