package crawlers

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Delayer 请求间隔控制
type Delayer interface {
	Wait(ctx context.Context) error
}

// RandomDelay 在[Min, Max]内均匀随机等待
type RandomDelay struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomDelay 创建随机延迟
func NewRandomDelay(min, max time.Duration) *RandomDelay {
	if max < min {
		min, max = max, min
	}
	return &RandomDelay{
		Min: min,
		Max: max,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next 返回下一次等待时长
func (d *RandomDelay) Next() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rnd == nil {
		d.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return d.Min + time.Duration(d.rnd.Int63n(int64(d.Max-d.Min)+1))
}

// Wait 等待随机时长,上下文取消时提前返回
func (d *RandomDelay) Wait(ctx context.Context) error {
	return sleepContext(ctx, d.Next())
}

// NoDelay 不等待,用于测试
type NoDelay struct{}

// Wait 实现Delayer接口
func (NoDelay) Wait(ctx context.Context) error {
	return ctx.Err()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitedFetcher 令牌桶限速的获取器
// 与随机延迟叠加,作为全局请求速率的上限
type RateLimitedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

// NewRateLimitedFetcher 创建限速获取器,maxRPS<=0 时直接返回next
func NewRateLimitedFetcher(next Fetcher, maxRPS float64) Fetcher {
	if maxRPS <= 0 {
		return next
	}
	return &RateLimitedFetcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(maxRPS), 1),
	}
}

// Fetch 等待令牌后发起请求
func (f *RateLimitedFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return f.next.Fetch(ctx, url)
}
