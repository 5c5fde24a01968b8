package crawlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/checarsner/crosspostit/internal/models"
)

// scriptedFetcher 按顺序返回预设错误,用尽后返回成功
func scriptedFetcher(calls *int, errs ...error) Fetcher {
	return FetcherFunc(func(ctx context.Context, url string) (*Response, error) {
		i := *calls
		*calls++
		if i < len(errs) && errs[i] != nil {
			var resp *Response
			if models.KindOf(errs[i]) == models.UnexpectedStatus {
				resp = &Response{URL: url, StatusCode: 503}
			}
			return resp, errs[i]
		}
		return &Response{URL: url, StatusCode: 200, Body: []byte("ok")}, nil
	})
}

func transportErr() error {
	return &models.HarvestError{Kind: models.TransportFault, Cause: errors.New("connection reset")}
}

// TestRetryFetcher 测试只对传输故障重试
func TestRetryFetcher(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}

	t.Run("传输故障后成功", func(t *testing.T) {
		calls := 0
		f := NewRetryFetcher(scriptedFetcher(&calls, transportErr(), transportErr()), opts)
		resp, err := f.Fetch(context.Background(), "https://offerup.com/p/x")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if !resp.OK() || calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("重试次数用尽", func(t *testing.T) {
		calls := 0
		f := NewRetryFetcher(scriptedFetcher(&calls, transportErr(), transportErr(), transportErr(), transportErr()), opts)
		_, err := f.Fetch(context.Background(), "https://offerup.com/p/x")
		if models.KindOf(err) != models.TransportFault {
			t.Errorf("KindOf() = %q", models.KindOf(err))
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("状态错误不重试", func(t *testing.T) {
		calls := 0
		statusErr := &models.HarvestError{Kind: models.UnexpectedStatus, StatusCode: 503}
		f := NewRetryFetcher(scriptedFetcher(&calls, statusErr), opts)
		resp, err := f.Fetch(context.Background(), "https://offerup.com/p/x")
		if models.KindOf(err) != models.UnexpectedStatus || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
		if resp == nil || resp.StatusCode != 503 {
			t.Error("应保留状态响应")
		}
	})

	t.Run("等待期间取消", func(t *testing.T) {
		calls := 0
		slow := RetryOpts{MaxAttempts: 3, InitialWait: time.Hour, MaxWait: time.Hour}
		f := NewRetryFetcher(scriptedFetcher(&calls, transportErr()), slow)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := f.Fetch(ctx, "https://offerup.com/p/x")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want DeadlineExceeded", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("单次尝试不包装", func(t *testing.T) {
		calls := 0
		inner := scriptedFetcher(&calls)
		if _, ok := NewRetryFetcher(inner, RetryOpts{MaxAttempts: 1}).(*RetryFetcher); ok {
			t.Error("MaxAttempts=1 不应包装")
		}
	})
}
