package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/checarsner/crosspostit/internal/crawlers"
	"github.com/checarsner/crosspostit/internal/models"
)

func batchSite() *fakeSite {
	site := newFakeSite()
	for _, user := range []string{"alice", "carol"} {
		site.pages[fmt.Sprintf("%s/p/%s?page=1", testBase, user)] = listPage("", card(user+"1", "Item of "+user, "$5"))
		site.withItem(user + "1")
	}
	return site
}

func TestBatchHarvester_HarvestBatch(t *testing.T) {
	users := []string{"alice", "bob", "carol"}

	t.Run("失败后继续", func(t *testing.T) {
		var handled []string
		handle := func(ctx context.Context, s *models.HarvestSession) error {
			handled = append(handled, s.Username)
			return nil
		}
		bh := NewBatchHarvester(newTestHarvester(t, batchSite(), crawlers.NoDelay{}), 3, 0, true, handle)

		summary, err := bh.HarvestBatch(context.Background(), users)
		if err != nil {
			t.Fatalf("HarvestBatch() error = %v", err)
		}
		if summary.SuccessCount != 2 || summary.FailCount != 1 || len(summary.Results) != 3 {
			t.Errorf("summary = %+v", summary)
		}
		if summary.TotalRecords != 2 {
			t.Errorf("TotalRecords = %d, want 2", summary.TotalRecords)
		}
		if !errors.Is(summary.Results[1].Error, ErrNoPagesRetrieved) {
			t.Errorf("bob的错误 = %v", summary.Results[1].Error)
		}
		if len(handled) != 2 || handled[0] != "alice" || handled[1] != "carol" {
			t.Errorf("handled = %v", handled)
		}
	})

	t.Run("失败后停止", func(t *testing.T) {
		bh := NewBatchHarvester(newTestHarvester(t, batchSite(), crawlers.NoDelay{}), 3, 0, false, nil)
		summary, err := bh.HarvestBatch(context.Background(), users)
		if err != nil {
			t.Fatalf("HarvestBatch() error = %v", err)
		}
		if len(summary.Results) != 2 || summary.FailCount != 1 {
			t.Errorf("summary = %+v", summary)
		}
	})

	t.Run("输出失败计为失败", func(t *testing.T) {
		handle := func(ctx context.Context, s *models.HarvestSession) error {
			return &models.HarvestError{Kind: models.IOFault, URL: "output"}
		}
		bh := NewBatchHarvester(newTestHarvester(t, batchSite(), crawlers.NoDelay{}), 3, 0, true, handle)
		summary, _ := bh.HarvestBatch(context.Background(), []string{"alice"})
		if summary.SuccessCount != 0 || models.KindOf(summary.Results[0].Error) != models.IOFault {
			t.Errorf("summary = %+v", summary.Results[0])
		}
	})

	t.Run("记录单个用户耗时", func(t *testing.T) {
		handle := func(ctx context.Context, s *models.HarvestSession) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		}
		bh := NewBatchHarvester(newTestHarvester(t, batchSite(), crawlers.NoDelay{}), 3, 0, true, handle)
		summary, err := bh.HarvestBatch(context.Background(), []string{"alice"})
		if err != nil {
			t.Fatalf("HarvestBatch() error = %v", err)
		}
		if got := summary.Results[0].Duration; got < 0.05 {
			t.Errorf("Duration = %.4f, want >= 0.05", got)
		}
		if summary.TotalDuration < summary.Results[0].Duration {
			t.Errorf("TotalDuration = %.4f 小于单个用户耗时", summary.TotalDuration)
		}
	})

	t.Run("取消时停止", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		bh := NewBatchHarvester(newTestHarvester(t, batchSite(), crawlers.NoDelay{}), 3, 0, true, nil)
		summary, err := bh.HarvestBatch(ctx, users)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
		if len(summary.Results) != 1 {
			t.Errorf("取消后仍继续采集: %d", len(summary.Results))
		}
	})
}
