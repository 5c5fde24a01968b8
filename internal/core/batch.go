package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/checarsner/crosspostit/internal/crawlers"
	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
)

// SessionHandler 单个用户采集结束后的处理(写入各输出目标)
type SessionHandler func(ctx context.Context, session *models.HarvestSession) error

// BatchHarvester 批量采集器
// 按顺序逐个采集用户,用户之间等待 batchDelay
type BatchHarvester struct {
	harvester     *Harvester
	maxPages      int
	batchDelay    crawlers.Delayer
	continueOnErr bool
	handle        SessionHandler
}

// BatchResult 单个用户的采集结果
type BatchResult struct {
	Username    string
	Success     bool
	Error       error
	StopReason  models.StopReason
	Stats       models.SessionStats
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量采集摘要
type BatchSummary struct {
	TotalUsers    int
	SuccessCount  int
	FailCount     int
	TotalRecords  int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchHarvester 创建批量采集器
func NewBatchHarvester(harvester *Harvester, maxPages int, batchDelay time.Duration, continueOnErr bool, handle SessionHandler) *BatchHarvester {
	return &BatchHarvester{
		harvester:     harvester,
		maxPages:      maxPages,
		batchDelay:    crawlers.NewRandomDelay(batchDelay, batchDelay),
		continueOnErr: continueOnErr,
		handle:        handle,
	}
}

// HarvestBatch 批量采集用户列表
// 上下文取消时停止并返回已完成部分的摘要与上下文错误
func (bh *BatchHarvester) HarvestBatch(ctx context.Context, usernames []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量采集: %d个用户", len(usernames))

	summary := &BatchSummary{
		TotalUsers: len(usernames),
		Results:    make([]BatchResult, 0, len(usernames)),
	}

	startTime := time.Now()
	var runErr error

	for i, username := range usernames {
		utils.Infof("==================== [%d/%d] ====================", i+1, len(usernames))
		utils.Infof("目标用户: %s", username)

		result := bh.harvestSingle(ctx, username)
		summary.Results = append(summary.Results, result)
		summary.TotalRecords += result.Stats.Records

		if errors.Is(result.Error, context.Canceled) || errors.Is(result.Error, context.DeadlineExceeded) {
			summary.FailCount++
			runErr = result.Error
			break
		}

		if result.Success {
			summary.SuccessCount++
		} else {
			summary.FailCount++
			utils.Errorf("❌ 采集失败 [%s]: %v", username, result.Error)

			if !bh.continueOnErr {
				utils.Warn("批量采集中止 (continue_on_error=false)")
				break
			}
		}

		// 最后一个用户不需要等待
		if i < len(usernames)-1 {
			if err := bh.batchDelay.Wait(ctx); err != nil {
				runErr = err
				break
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	bh.printSummary(summary)

	return summary, runErr
}

// harvestSingle 采集单个用户并交给处理函数
// 命名返回值,defer中写入的Duration才会带回调用方
func (bh *BatchHarvester) harvestSingle(ctx context.Context, username string) (result BatchResult) {
	startTime := time.Now()
	result = BatchResult{
		Username:    username,
		ProcessedAt: startTime,
	}
	defer func() {
		result.Duration = time.Since(startTime).Seconds()
	}()

	session, err := bh.harvester.Run(ctx, username, bh.maxPages)
	if session != nil {
		result.StopReason = session.StopReason
		result.Stats = session.Stats
	}

	// 中断时已采集的记录仍然输出
	if session != nil && session.Len() > 0 && bh.handle != nil {
		if handleErr := bh.handle(ctx, session); handleErr != nil && err == nil {
			err = fmt.Errorf("输出失败: %w", handleErr)
		}
	}

	if err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}

// printSummary 打印批量采集摘要
func (bh *BatchHarvester) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量采集摘要")
	utils.Info("==================================================")
	utils.Infof("总用户数: %d", summary.TotalUsers)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📦 总记录数: %d", summary.TotalRecords)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的用户:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.Username, result.Error)
			}
		}
	}
}
