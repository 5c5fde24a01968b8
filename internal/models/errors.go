package models

import (
	"errors"
	"fmt"
	"net/http"
)

// FaultKind 故障类型
type FaultKind string

const (
	TransportFault   FaultKind = "transport_fault"   // 网络/连接失败(含超时)
	UnexpectedStatus FaultKind = "unexpected_status" // 非2xx响应
	ParseFault       FaultKind = "parse_fault"       // 响应中缺少预期结构
	IOFault          FaultKind = "io_fault"          // 本地文件写入失败
)

// HarvestError 采集过程中的结构化错误
type HarvestError struct {
	// Kind 故障类型
	Kind FaultKind

	// URL 出错的请求地址或文件路径 (可选)
	URL string

	// StatusCode HTTP状态码 (仅UnexpectedStatus)
	StatusCode int

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *HarvestError) Error() string {
	switch {
	case e.Kind == UnexpectedStatus:
		return fmt.Sprintf("%s [%s]: HTTP %d %s", e.Kind, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	case e.URL != "" && e.Cause != nil:
		return fmt.Sprintf("%s [%s]: %v", e.Kind, e.URL, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return string(e.Kind)
	}
}

// Unwrap 支持errors.Unwrap
func (e *HarvestError) Unwrap() error {
	return e.Cause
}

// IsRetryable 仅传输层故障值得重试
// 非2xx状态对页面请求是终止信号,不做重试
func (e *HarvestError) IsRetryable() bool {
	return e.Kind == TransportFault
}

// KindOf 返回错误链中的故障类型,不是HarvestError时返回空
func KindOf(err error) FaultKind {
	var he *HarvestError
	if errors.As(err, &he) {
		return he.Kind
	}
	return ""
}

// IsRetryable 判断错误链是否可重试
func IsRetryable(err error) bool {
	var he *HarvestError
	if errors.As(err, &he) {
		return he.IsRetryable()
	}
	return false
}

func errRowWidth(n int) error {
	return fmt.Errorf("CSV行字段数错误: %d (期望 %d)", n, len(ListingFields))
}
