package crawlers

import (
	"context"
	"testing"
	"time"
)

// TestRandomDelay_Next 测试随机延迟落在区间内
func TestRandomDelay_Next(t *testing.T) {
	tests := []struct {
		name     string
		min, max time.Duration
	}{
		{"翻页区间", time.Second, 3 * time.Second},
		{"图片区间", 500 * time.Millisecond, 1500 * time.Millisecond},
		{"上下限相同", time.Second, time.Second},
		{"上下限颠倒", 3 * time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewRandomDelay(tt.min, tt.max)
			for i := 0; i < 200; i++ {
				got := d.Next()
				if got < d.Min || got > d.Max {
					t.Fatalf("Next() = %v, 超出区间 [%v, %v]", got, d.Min, d.Max)
				}
			}
		})
	}
}

// TestRandomDelay_Wait 测试等待可被取消
func TestRandomDelay_Wait(t *testing.T) {
	d := NewRandomDelay(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := d.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("取消后应立即返回")
	}

	if err := NewRandomDelay(0, 0).Wait(context.Background()); err != nil {
		t.Errorf("零延迟 Wait() error = %v", err)
	}
	if err := (NoDelay{}).Wait(context.Background()); err != nil {
		t.Errorf("NoDelay.Wait() error = %v", err)
	}
}

// TestRateLimitedFetcher 测试令牌桶限速
func TestRateLimitedFetcher(t *testing.T) {
	calls := 0
	inner := scriptedFetcher(&calls)

	t.Run("不限速时不包装", func(t *testing.T) {
		if _, ok := NewRateLimitedFetcher(inner, 0).(*RateLimitedFetcher); ok {
			t.Error("max_rps=0 不应包装")
		}
	})

	t.Run("限速器放行请求", func(t *testing.T) {
		f := NewRateLimitedFetcher(inner, 1000)
		for i := 0; i < 3; i++ {
			if _, err := f.Fetch(context.Background(), "https://offerup.com/p/x"); err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("已取消的上下文", func(t *testing.T) {
		f := NewRateLimitedFetcher(inner, 0.001)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := f.Fetch(ctx, "https://offerup.com/p/x"); err == nil {
			t.Error("期望返回错误")
		}
	})
}
