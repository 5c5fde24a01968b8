package crawlers

import (
	"context"
	"math/rand"
	"time"

	"github.com/checarsner/crosspostit/internal/models"
	"github.com/checarsner/crosspostit/internal/utils"
)

// RetryOpts 重试配置
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry 默认重试配置
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// RetryFetcher 对传输层故障做指数退避重试
// 非2xx状态直接返回,不重试
type RetryFetcher struct {
	next Fetcher
	opts RetryOpts
}

// NewRetryFetcher 创建重试获取器,MaxAttempts<=1 时直接返回next
func NewRetryFetcher(next Fetcher, opts RetryOpts) Fetcher {
	if opts.MaxAttempts <= 1 {
		return next
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultRetry.MaxWait
	}
	return &RetryFetcher{next: next, opts: opts}
}

// Fetch 实现Fetcher接口
func (f *RetryFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	var (
		resp *Response
		err  error
	)
	wait := f.opts.InitialWait

	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		resp, err = f.next.Fetch(ctx, url)
		if err == nil || !models.IsRetryable(err) {
			return resp, err
		}
		if attempt == f.opts.MaxAttempts {
			break
		}

		sleepDur := wait
		if f.opts.Jitter {
			sleepDur = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if sleepDur > f.opts.MaxWait {
			sleepDur = f.opts.MaxWait
		}

		utils.Warnf("⚠️  请求失败,%v 后重试 (%d/%d) [%s]: %v", sleepDur.Round(time.Millisecond), attempt, f.opts.MaxAttempts, url, err)

		if sleepErr := sleepContext(ctx, sleepDur); sleepErr != nil {
			return nil, sleepErr
		}

		wait *= 2
		if wait > f.opts.MaxWait {
			wait = f.opts.MaxWait
		}
	}
	return resp, err
}
