// Package rss 提供订阅源列表加载和 RSS/Atom 内容抓取功能。
package rss

import "time"

// Source 一个订阅源，以抓取 URL 作为唯一标识。
type Source struct {
	URL string `json:"url"`
	// Collection 声明该源的列表名称，仅用于展示。
	Collection string `json:"collection"`
}

// Entry 抓取时读到的一个条目。条目不会被持久化，只有其 Link 会成为游标。
type Entry struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	// Summary 为 nil 表示源没有提供摘要。
	Summary *string `json:"summary,omitempty"`
	// Link 是条目的稳定标识。
	Link string `json:"link"`
	// Published 为 nil 表示没有可解析的发布时间。
	Published *time.Time `json:"published,omitempty"`
}

// SummaryText 返回摘要，没有则返回空字符串。
func (e Entry) SummaryText() string {
	if e.Summary == nil {
		return ""
	}
	return *e.Summary
}

// FetchResult 单个源的抓取结果：成功时带条目，失败时带原因。
type FetchResult struct {
	URL string
	// Entries 按源中的顺序排列（最新在前）。
	Entries []Entry
	Err     error
}

// OK 判断抓取是否成功。
func (r FetchResult) OK() bool {
	return r.Err == nil
}
