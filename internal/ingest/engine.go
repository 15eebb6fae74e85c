// Package ingest 实现增量抓取：对每个订阅源从新到旧遍历条目，
// 遇到上次的游标即停止，收集新条目并计算新游标。
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/iabetor/rssdigest/internal/history"
	"github.com/iabetor/rssdigest/internal/logger"
	"github.com/iabetor/rssdigest/internal/rss"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBootstrapCap 首次见到某个源时最多取的条目数。
	DefaultBootstrapCap = 3
	defaultConcurrency  = 4
)

// Fetcher 抓取单个订阅源，条目按最新在前排列。失败记录在结果中而不是返回 error。
type Fetcher interface {
	Fetch(ctx context.Context, url string) rss.FetchResult
}

// Options 引擎配置。
type Options struct {
	BootstrapCap int
	// Cutoff 非零时，发布时间早于它或没有发布时间的条目不算新条目。
	Cutoff      time.Time
	Order       Order
	Concurrency int
}

// SourceWarning 单个源抓取失败的原因，不会中断整次运行。
type SourceWarning struct {
	URL    string
	Reason string
}

// Result 一次抓取的汇总。
type Result struct {
	// Entries 所有源的新条目，按源的顺序排列，源内按 Order 排列。
	Entries []rss.Entry
	// Counts 每个源的新条目数，包含 0。
	Counts map[string]int
	// Updated 本次前进了的游标。
	Updated history.Cursor
	// Cursor 合并后的完整游标。
	Cursor   history.Cursor
	Warnings []SourceWarning
}

// Total 新条目总数。
func (r *Result) Total() int {
	return len(r.Entries)
}

// Engine 增量抓取引擎。
type Engine struct {
	fetcher Fetcher
	opts    Options
}

// New 创建引擎。
func New(fetcher Fetcher, opts Options) *Engine {
	if opts.BootstrapCap <= 0 {
		opts.BootstrapCap = DefaultBootstrapCap
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Engine{fetcher: fetcher, opts: opts}
}

// Run 读取游标文件，抓取所有源，合并新游标并写回文件。
// 游标在返回前提交，与后续是否生成摘要无关。没有任何源前进时不写文件。
// 抓取阶段被取消时不会写文件。
func (e *Engine) Run(ctx context.Context, historyPath string, sources []rss.Source) (*Result, error) {
	res, err := e.Collect(ctx, history.Load(historyPath), sources)
	if err != nil {
		return nil, err
	}
	if len(res.Updated) == 0 {
		// 没有任何源前进时不碰文件，损坏的游标文件也保持原样
		logger.Debugf("[ingest] 没有源前进，游标文件保持不变")
		return res, nil
	}
	if err := history.Save(historyPath, res.Cursor); err != nil {
		return nil, fmt.Errorf("提交游标失败: %w", err)
	}
	logger.Infof("[ingest] 游标已提交: %d 个源前进", len(res.Updated))
	return res, nil
}

// Collect 抓取所有源并计算新条目和新游标，不写文件。last 不会被修改。
func (e *Engine) Collect(ctx context.Context, last history.Cursor, sources []rss.Source) (*Result, error) {
	fetched, err := e.fetchAll(ctx, sources)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Counts:  make(map[string]int, len(sources)),
		Updated: history.Cursor{},
		Cursor:  last.Clone(),
	}

	for i, src := range sources {
		fr := fetched[i]
		if !fr.OK() {
			logger.Warnf("[ingest] 抓取 %s 失败: %v", src.URL, fr.Err)
			res.Warnings = append(res.Warnings, SourceWarning{URL: src.URL, Reason: fr.Err.Error()})
			res.Counts[src.URL] = 0
			continue
		}

		prev, seen := last[src.URL]
		sel := e.Select(fr.Entries, prev, seen && prev != "")
		res.Counts[src.URL] = len(sel.Entries)
		if sel.Advanced {
			res.Updated[src.URL] = sel.Cursor
		}
		res.Entries = append(res.Entries, sel.Entries...)

		if len(sel.Entries) == 0 {
			logger.Debugf("[ingest] %s: 没有新内容", src.URL)
		} else {
			logger.Infof("[ingest] %s: %d 条新内容", src.URL, len(sel.Entries))
		}
	}

	// 所有源处理完后统一合并
	res.Cursor.Merge(res.Updated)
	return res, nil
}

// fetchAll 并发抓取所有源，结果按 sources 的下标存放。
func (e *Engine) fetchAll(ctx context.Context, sources []rss.Source) ([]rss.FetchResult, error) {
	results := make([]rss.FetchResult, len(sources))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = e.fetcher.Fetch(ctx, src.URL)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("抓取被取消: %w", err)
	}
	return results, nil
}

// Selection 单个源的选择结果。
type Selection struct {
	Entries []rss.Entry
	// Cursor 本次抓到的最新条目链接，仅在 Advanced 时有意义。
	Cursor   string
	Advanced bool
}

// Select 从按最新在前排列的 entries 中选出新条目。
//
// 没有游标时取最前面的 BootstrapCap 条；有游标时从前往后遍历直到遇到游标，
// 游标不在列表中则全部算新。之后再按 Cutoff 过滤。
// 至少有一条新条目时游标前进到 entries[0]。
func (e *Engine) Select(entries []rss.Entry, last string, hasLast bool) Selection {
	if len(entries) == 0 {
		return Selection{}
	}

	var candidates []rss.Entry
	if !hasLast {
		candidates = entries[:min(e.opts.BootstrapCap, len(entries))]
	} else {
		stop := len(entries)
		for i, entry := range entries {
			if entry.Link == last {
				stop = i
				break
			}
		}
		candidates = entries[:stop]
	}

	if !e.opts.Cutoff.IsZero() {
		candidates = lo.Filter(candidates, func(entry rss.Entry, _ int) bool {
			return entry.Published != nil && !entry.Published.Before(e.opts.Cutoff)
		})
	}

	if len(candidates) == 0 {
		return Selection{}
	}

	out := make([]rss.Entry, len(candidates))
	copy(out, candidates)
	if e.opts.Order == OldestFirst {
		out = lo.Reverse(out)
	}

	return Selection{
		Entries:  out,
		Cursor:   entries[0].Link,
		Advanced: true,
	}
}
