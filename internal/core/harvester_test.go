package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/checarsner/crosspostit/internal/crawlers"
	"github.com/checarsner/crosspostit/internal/models"
)

const testBase = "https://offerup.com"

// fakeSite 按URL返回预设页面,未登记的URL返回404
type fakeSite struct {
	pages    map[string]string
	errs     map[string]error
	requests []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: map[string]string{}, errs: map[string]error{}}
}

func (s *fakeSite) Fetch(ctx context.Context, u string) (*crawlers.Response, error) {
	s.requests = append(s.requests, u)
	if err, ok := s.errs[u]; ok {
		return nil, err
	}
	body, ok := s.pages[u]
	if !ok {
		resp := &crawlers.Response{URL: u, StatusCode: http.StatusNotFound, Header: http.Header{}}
		return resp, &models.HarvestError{Kind: models.UnexpectedStatus, URL: u, StatusCode: http.StatusNotFound}
	}
	return &crawlers.Response{
		URL:        u,
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       []byte(body),
	}, nil
}

func (s *fakeSite) requested(u string) bool {
	for _, r := range s.requests {
		if r == u {
			return true
		}
	}
	return false
}

// withItem 登记商品卡片对应的详情页
func (s *fakeSite) withItem(id string) {
	s.pages[testBase+"/item/"+id] = fmt.Sprintf(`<html><body><div data-test="item-description">description of %s</div></body></html>`, id)
}

func profilePage(page int) string {
	return fmt.Sprintf("%s/p/seller?page=%d", testBase, page)
}

func card(id, title, price string) string {
	var b strings.Builder
	b.WriteString(`<div data-test="item-card">`)
	if id != "" {
		fmt.Fprintf(&b, `<a href="/item/%s"><img src="https://images.example/%s.jpg"></a>`, id, id)
	}
	fmt.Fprintf(&b, `<p data-test="item-title">%s</p>`, title)
	if price != "" {
		fmt.Fprintf(&b, `<span data-test="item-price">%s</span>`, price)
	}
	b.WriteString(`<p data-test="item-location">Austin, TX</p><p data-test="item-post-date">today</p></div>`)
	return b.String()
}

const (
	nextEnabled  = `<button aria-label="Next page">Next</button>`
	nextDisabled = `<button aria-label="Next page" disabled>Next</button>`
)

func listPage(next string, cards ...string) string {
	return "<html><body>" + strings.Join(cards, "\n") + next + "</body></html>"
}

type countingDelay struct {
	calls  int
	onWait func()
}

func (d *countingDelay) Wait(ctx context.Context) error {
	d.calls++
	if d.onWait != nil {
		d.onWait()
	}
	return ctx.Err()
}

func newTestHarvester(t *testing.T, site *fakeSite, delay crawlers.Delayer) *Harvester {
	t.Helper()
	h, err := NewHarvester(HarvesterDeps{
		Config:    models.HarvestConfig{BaseURL: testBase, ProfilePath: "/p/%s"},
		Selectors: models.DefaultSelectors(),
		Fetcher:   site,
		PageDelay: delay,
	})
	if err != nil {
		t.Fatalf("NewHarvester() error = %v", err)
	}
	return h
}

// TestHarvester_TwoPages 第1页3张卡片(其中1张无价格),第2页没有卡片
func TestHarvester_TwoPages(t *testing.T) {
	site := newFakeSite()
	site.pages[profilePage(1)] = listPage(nextEnabled,
		card("a1", "Bike", "$100"),
		card("b2", "Lamp", ""),
		card("c3", "Desk", "$40"),
	)
	site.pages[profilePage(2)] = listPage(nextEnabled)
	for _, id := range []string{"a1", "b2", "c3"} {
		site.withItem(id)
	}
	delay := &countingDelay{}

	session, err := newTestHarvester(t, site, delay).Run(context.Background(), "seller", 5)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	records := session.Records()
	if len(records) != 3 {
		t.Fatalf("记录数 = %d, want 3", len(records))
	}
	noPrice := 0
	for _, rec := range records {
		if rec.Price == models.PlaceholderPrice {
			noPrice++
		}
	}
	if noPrice != 1 {
		t.Errorf("无价格记录数 = %d, want 1", noPrice)
	}

	wantOrder := []string{"a1", "b2", "c3"}
	for i, rec := range records {
		if rec.IDOrEmpty() != wantOrder[i] {
			t.Errorf("records[%d].ItemID = %q, want %q", i, rec.IDOrEmpty(), wantOrder[i])
		}
		if rec.Description != "description of "+wantOrder[i] {
			t.Errorf("records[%d].Description = %q", i, rec.Description)
		}
		if rec.ItemURL != testBase+"/item/"+wantOrder[i] {
			t.Errorf("records[%d].ItemURL = %q", i, rec.ItemURL)
		}
	}

	if session.StopReason != models.StopExhausted {
		t.Errorf("StopReason = %q, want %q", session.StopReason, models.StopExhausted)
	}
	if session.Stats.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, want 2", session.Stats.PagesFetched)
	}
	if session.Stats.Degraded != 1 {
		t.Errorf("Degraded = %d, want 1", session.Stats.Degraded)
	}
	if delay.calls != 1 {
		t.Errorf("翻页等待次数 = %d, want 1", delay.calls)
	}
	if session.ProfileURL != testBase+"/p/seller" {
		t.Errorf("ProfileURL = %q", session.ProfileURL)
	}
}

// TestHarvester_Termination 测试各种终止条件
func TestHarvester_Termination(t *testing.T) {
	tests := []struct {
		name       string
		page1      string
		page2      string
		maxPages   int
		wantReason models.StopReason
		wantPages  int
		wantDelays int
	}{
		{
			name:       "页数上限为1时不请求第2页",
			page1:      listPage(nextEnabled, card("a1", "Bike", "$1")),
			page2:      listPage(nextEnabled, card("b2", "Lamp", "$2")),
			maxPages:   1,
			wantReason: models.StopPageLimit,
			wantPages:  1,
			wantDelays: 0,
		},
		{
			name:       "没有下一页按钮",
			page1:      listPage("", card("a1", "Bike", "$1")),
			maxPages:   5,
			wantReason: models.StopNoNextPage,
			wantPages:  1,
		},
		{
			name:       "下一页按钮禁用",
			page1:      listPage(nextDisabled, card("a1", "Bike", "$1")),
			maxPages:   5,
			wantReason: models.StopNoNextPage,
			wantPages:  1,
		},
		{
			name:       "aria-disabled",
			page1:      listPage(`<button aria-label="Next page" aria-disabled="true">Next</button>`, card("a1", "Bike", "$1")),
			maxPages:   5,
			wantReason: models.StopNoNextPage,
			wantPages:  1,
		},
		{
			name:       "第1页没有卡片",
			page1:      listPage(nextEnabled),
			maxPages:   5,
			wantReason: models.StopExhausted,
			wantPages:  1,
		},
		{
			name:       "第2页获取失败",
			page1:      listPage(nextEnabled, card("a1", "Bike", "$1")),
			maxPages:   5,
			wantReason: models.StopPageFetchFailed,
			wantPages:  1,
			wantDelays: 1,
		},
		{
			name:       "达到上限前正常翻页",
			page1:      listPage(nextEnabled, card("a1", "Bike", "$1")),
			page2:      listPage(nextEnabled, card("b2", "Lamp", "$2")),
			maxPages:   2,
			wantReason: models.StopPageLimit,
			wantPages:  2,
			wantDelays: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newFakeSite()
			site.pages[profilePage(1)] = tt.page1
			if tt.page2 != "" {
				site.pages[profilePage(2)] = tt.page2
			}
			site.withItem("a1")
			site.withItem("b2")
			delay := &countingDelay{}

			session, err := newTestHarvester(t, site, delay).Run(context.Background(), "seller", tt.maxPages)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if session.StopReason != tt.wantReason {
				t.Errorf("StopReason = %q, want %q", session.StopReason, tt.wantReason)
			}
			if session.Stats.PagesFetched != tt.wantPages {
				t.Errorf("PagesFetched = %d, want %d", session.Stats.PagesFetched, tt.wantPages)
			}
			if delay.calls != tt.wantDelays {
				t.Errorf("翻页等待次数 = %d, want %d", delay.calls, tt.wantDelays)
			}
			if tt.maxPages == 1 && site.requested(profilePage(2)) {
				t.Error("超过页数上限仍请求了第2页")
			}
			if session.Len() == 0 && tt.wantReason != models.StopExhausted {
				t.Error("已获取的记录丢失")
			}
		})
	}
}

// TestHarvester_Faults 测试单条记录与页面级故障
func TestHarvester_Faults(t *testing.T) {
	t.Run("首页失败返回ErrNoPagesRetrieved", func(t *testing.T) {
		site := newFakeSite()
		session, err := newTestHarvester(t, site, &countingDelay{}).Run(context.Background(), "seller", 3)
		if !errors.Is(err, ErrNoPagesRetrieved) {
			t.Fatalf("err = %v, want ErrNoPagesRetrieved", err)
		}
		if session == nil || session.StopReason != models.StopPageFetchFailed {
			t.Fatalf("session = %+v", session)
		}
	})

	t.Run("传输故障结束翻页", func(t *testing.T) {
		site := newFakeSite()
		site.errs[profilePage(1)] = &models.HarvestError{Kind: models.TransportFault, URL: profilePage(1), Cause: errors.New("timeout")}
		_, err := newTestHarvester(t, site, &countingDelay{}).Run(context.Background(), "seller", 3)
		if !errors.Is(err, ErrNoPagesRetrieved) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("无链接卡片计入跳过数", func(t *testing.T) {
		site := newFakeSite()
		site.pages[profilePage(1)] = listPage("",
			card("a1", "Bike", "$1"),
			card("", "Sponsored", "$0"),
			card("c3", "Desk", "$3"),
		)
		site.withItem("a1")
		site.withItem("c3")

		session, err := newTestHarvester(t, site, &countingDelay{}).Run(context.Background(), "seller", 1)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if session.Len() != 2 {
			t.Errorf("记录数 = %d, want 2", session.Len())
		}
		if session.Stats.Skipped != 1 || session.Stats.CardsSeen != 3 {
			t.Errorf("Stats = %+v", session.Stats)
		}
	})

	t.Run("详情页失败使用占位描述", func(t *testing.T) {
		site := newFakeSite()
		site.pages[profilePage(1)] = listPage("", card("a1", "Bike", "$1"), card("b2", "Lamp", "$2"))
		site.withItem("b2")

		session, err := newTestHarvester(t, site, &countingDelay{}).Run(context.Background(), "seller", 1)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		records := session.Records()
		if len(records) != 2 {
			t.Fatalf("记录数 = %d, want 2", len(records))
		}
		if records[0].Description != models.PlaceholderDescription {
			t.Errorf("Description = %q", records[0].Description)
		}
		if records[1].Description != "description of b2" {
			t.Errorf("兄弟记录受到影响: %q", records[1].Description)
		}
		if session.Stats.DetailFailures != 1 {
			t.Errorf("DetailFailures = %d, want 1", session.Stats.DetailFailures)
		}
	})
}

// TestHarvester_Cancellation 测试协作式取消
func TestHarvester_Cancellation(t *testing.T) {
	t.Run("翻页等待时取消", func(t *testing.T) {
		site := newFakeSite()
		site.pages[profilePage(1)] = listPage(nextEnabled, card("a1", "Bike", "$1"))
		site.pages[profilePage(2)] = listPage(nextEnabled, card("b2", "Lamp", "$2"))
		site.withItem("a1")
		site.withItem("b2")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		delay := &countingDelay{onWait: cancel}

		session, err := newTestHarvester(t, site, delay).Run(ctx, "seller", 5)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		if session.StopReason != models.StopCancelled {
			t.Errorf("StopReason = %q", session.StopReason)
		}
		if session.Len() != 1 {
			t.Errorf("记录数 = %d, want 1", session.Len())
		}
		if site.requested(profilePage(2)) {
			t.Error("取消后仍请求了第2页")
		}
	})

	t.Run("开始前已取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		site := newFakeSite()

		session, err := newTestHarvester(t, site, &countingDelay{}).Run(ctx, "seller", 5)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
		if session.Len() != 0 || len(site.requests) != 0 {
			t.Errorf("取消后不应发出请求: %v", site.requests)
		}
	})

	t.Run("卡片之间取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		site := newFakeSite()
		site.pages[profilePage(1)] = listPage("", card("a1", "Bike", "$1"), card("b2", "Lamp", "$2"))
		site.withItem("a1")
		site.withItem("b2")
		fetcher := crawlers.FetcherFunc(func(c context.Context, u string) (*crawlers.Response, error) {
			resp, err := site.Fetch(c, u)
			if strings.HasSuffix(u, "/item/a1") {
				cancel()
			}
			return resp, err
		})

		h, err := NewHarvester(HarvesterDeps{
			Config:    models.HarvestConfig{BaseURL: testBase},
			Fetcher:   fetcher,
			PageDelay: crawlers.NoDelay{},
		})
		if err != nil {
			t.Fatalf("NewHarvester() error = %v", err)
		}
		session, err := h.Run(ctx, "seller", 1)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
		if site.requested(testBase + "/item/b2") {
			t.Error("取消后仍处理了下一张卡片")
		}
		if session.StopReason != models.StopCancelled {
			t.Errorf("StopReason = %q", session.StopReason)
		}
	})
}

func TestHarvester_InvalidTarget(t *testing.T) {
	h := newTestHarvester(t, newFakeSite(), crawlers.NoDelay{})

	tests := []struct {
		name     string
		username string
		maxPages int
	}{
		{"空用户名", "  ", 1},
		{"非法字符", "bad/user", 1},
		{"页数为0", "seller", 0},
		{"页数为负", "seller", -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.Run(context.Background(), tt.username, tt.maxPages); !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("err = %v, want ErrInvalidTarget", err)
			}
		})
	}
}

func TestHarvester_ProfileURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.HarvestConfig
		user string
		want string
	}{
		{"模板路径", models.HarvestConfig{BaseURL: "https://offerup.com/", ProfilePath: "/p/%s"}, "seller", "https://offerup.com/p/seller"},
		{"默认路径", models.HarvestConfig{BaseURL: "https://offerup.com"}, "seller", "https://offerup.com/p/seller"},
		{"无占位符时追加", models.HarvestConfig{BaseURL: "https://offerup.com", ProfilePath: "/profile/"}, "seller", "https://offerup.com/profile/seller"},
		{"模板中其他百分号保持原样", models.HarvestConfig{BaseURL: "https://offerup.com", ProfilePath: "/my%20shop/%s"}, "seller", "https://offerup.com/my%20shop/seller"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Harvester{cfg: tt.cfg}
			if got := h.ProfileURL(tt.user); got != tt.want {
				t.Errorf("ProfileURL() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := pageURL("https://offerup.com/p/seller", 3); got != "https://offerup.com/p/seller?page=3" {
		t.Errorf("pageURL() = %q", got)
	}
}

func TestIsDisabled(t *testing.T) {
	tests := []struct {
		name   string
		button string
		want   bool
	}{
		{"启用", `<button aria-label="Next page">Next</button>`, false},
		{"disabled属性", `<button aria-label="Next page" disabled>Next</button>`, true},
		{"disabled=false", `<button aria-label="Next page" disabled="false">Next</button>`, false},
		{"aria-disabled=true", `<button aria-label="Next page" aria-disabled="true">Next</button>`, true},
		{"aria-disabled=false", `<button aria-label="Next page" aria-disabled="false">Next</button>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := crawlers.ParseHTML("<html><body>" + tt.button + "</body></html>")
			if err != nil {
				t.Fatalf("ParseHTML() error = %v", err)
			}
			node, ok := doc.FindOne(`button[aria-label="Next page"]`)
			if !ok {
				t.Fatal("未找到按钮")
			}
			if got := isDisabled(node); got != tt.want {
				t.Errorf("isDisabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
