package ingest

import "fmt"

// Order 单个源内新条目的排列顺序。
type Order int

const (
	// NewestFirst 与源中顺序一致。
	NewestFirst Order = iota
	// OldestFirst 按时间正序，适合阅读。
	OldestFirst
)

func (o Order) String() string {
	switch o {
	case NewestFirst:
		return "newest_first"
	case OldestFirst:
		return "oldest_first"
	}
	return "unknown"
}

// ParseOrder 解析配置中的顺序名称，空字符串为 NewestFirst。
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "newest_first":
		return NewestFirst, nil
	case "oldest_first":
		return OldestFirst, nil
	}
	return NewestFirst, fmt.Errorf("未知的条目顺序: %q", s)
}
