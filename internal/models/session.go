package models

import (
	"net/http"
	"time"
)

// StopReason 采集结束原因
type StopReason string

const (
	StopNone            StopReason = ""                  // 尚未结束
	StopPageLimit       StopReason = "page_limit"        // 达到最大页数
	StopExhausted       StopReason = "exhausted"         // 页面中没有商品卡片
	StopNoNextPage      StopReason = "no_next_page"      // 下一页按钮缺失或禁用
	StopPageFetchFailed StopReason = "page_fetch_failed" // 列表页请求失败
	StopCancelled       StopReason = "cancelled"         // 上下文取消
)

// SessionStats 采集统计
type SessionStats struct {
	PagesFetched   int `json:"pages_fetched"`   // 成功获取的列表页数
	CardsSeen      int `json:"cards_seen"`      // 发现的卡片数
	Records        int `json:"records"`         // 追加的记录数
	Skipped        int `json:"skipped"`         // 跳过的卡片数(无商品链接或解析失败)
	Degraded       int `json:"degraded"`        // 至少一个字段使用占位文本的记录数
	DetailFailures int `json:"detail_failures"` // 详情页描述获取失败数
}

// HarvestSession 单次采集的会话状态
// 仅由一次Harvester运行持有,运行期间只追加记录,结束后只读
type HarvestSession struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	BaseURL    string      `json:"base_url"`
	ProfileURL string      `json:"profile_url"`
	Headers    http.Header `json:"-"`

	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	StopReason StopReason   `json:"stop_reason"`
	Stats      SessionStats `json:"stats"`

	records []ListingRecord
}

// NewHarvestSession 创建会话
func NewHarvestSession(username, baseURL, profileURL string, headers http.Header) *HarvestSession {
	return &HarvestSession{
		ID:         generateID(),
		Username:   username,
		BaseURL:    baseURL,
		ProfileURL: profileURL,
		Headers:    headers,
		StartedAt:  time.Now(),
		records:    make([]ListingRecord, 0),
	}
}

// Append 追加一条记录
func (s *HarvestSession) Append(rec ListingRecord) {
	s.records = append(s.records, rec)
	s.Stats.Records = len(s.records)
}

// Records 返回记录副本,调用方修改不会影响会话
func (s *HarvestSession) Records() []ListingRecord {
	out := make([]ListingRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len 当前记录数
func (s *HarvestSession) Len() int {
	return len(s.records)
}

// Finish 标记会话结束
func (s *HarvestSession) Finish(reason StopReason) {
	s.StopReason = reason
	s.FinishedAt = time.Now()
}

// Duration 会话耗时
func (s *HarvestSession) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
