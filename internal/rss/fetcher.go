package rss

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iabetor/rssdigest/internal/logger"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultUserAgent    = "rssdigest/1.0"
	maxSummaryLen       = 1200 // 摘要最大字符数
)

// FetcherOptions 抓取器配置。
type FetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
	// RatePerSecond 所有源共享的请求速率上限，<= 0 表示不限速。
	RatePerSecond float64
	// Client 为空时使用带 Timeout 的默认客户端。
	Client *http.Client
}

// Fetcher 负责抓取单个订阅源并转换为 Entry。
// 可以被多个 goroutine 并发使用。
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	policy    *bluemonday.Policy
}

// NewFetcher 创建 RSS 内容抓取器。
func NewFetcher(opts FetcherOptions) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	f := &Fetcher{
		client:    client,
		userAgent: ua,
		policy:    bluemonday.StrictPolicy(),
	}
	if opts.RatePerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return f
}

// Fetch 抓取指定 URL 并返回结果。失败不会 panic 也不会返回 error，
// 而是记录在 FetchResult.Err 中，由调用方决定如何汇报。
func (f *Fetcher) Fetch(ctx context.Context, url string) FetchResult {
	result := FetchResult{URL: url}

	feed, err := f.parseFeed(ctx, url)
	if err != nil {
		result.Err = err
		return result
	}

	result.Entries = f.convertItems(feed, url)
	logger.Debugf("[rss] %s: %d 条", url, len(result.Entries))
	return result
}

// parseFeed 请求并解析 Feed URL。
func (f *Fetcher) parseFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析失败: %w", err)
	}
	return feed, nil
}

// convertItems 将 gofeed 条目转换为 Entry，保持源中的顺序。
// 没有链接的条目无法作为游标，直接跳过。
func (f *Fetcher) convertItems(feed *gofeed.Feed, source string) []Entry {
	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}

		entry := Entry{
			Source: source,
			Title:  strings.TrimSpace(html.UnescapeString(item.Title)),
			Link:   link,
		}

		raw := item.Description
		if raw == "" {
			raw = item.Content
		}
		if summary := f.cleanText(raw); summary != "" {
			summary = truncate(summary, maxSummaryLen)
			entry.Summary = &summary
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			entry.Published = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			entry.Published = &t
		}

		entries = append(entries, entry)
	}
	return entries
}

// cleanText 剥离 HTML 标签并合并空白。
func (f *Fetcher) cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(f.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// truncate 截断字符串到指定字符数（按 UTF-8 字符计算）。
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
