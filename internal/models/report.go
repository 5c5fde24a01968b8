package models

import (
	"encoding/json"
	"time"
)

// HarvestReport 采集报告
type HarvestReport struct {
	// 任务信息
	RunID      string     `json:"run_id"`
	Username   string     `json:"username"`
	ProfileURL string     `json:"profile_url"`
	Mode       FetchMode  `json:"mode"`
	StopReason StopReason `json:"stop_reason"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats SessionStats `json:"stats"`

	// 输出结果
	Sinks []SinkResult `json:"sinks"`

	// 配置快照
	Harvest HarvestConfig `json:"harvest"`
}

// SinkResult 单个输出目标的执行结果
type SinkResult struct {
	Name    string `json:"name"`
	Target  string `json:"target,omitempty"`  // 文件路径/目录/表名
	Written int    `json:"written"`           // 成功写入的条数
	Failed  int    `json:"failed,omitempty"`  // 失败条数(仅图片下载)
	Skipped bool   `json:"skipped,omitempty"` // 无数据未执行
	Error   string `json:"error,omitempty"`
}

// ToJSON 序列化为JSON
func (r *HarvestReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *HarvestReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
