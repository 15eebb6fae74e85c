package rss

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/iabetor/rssdigest/internal/logger"
	"gopkg.in/yaml.v3"
)

// ErrMalformedSourceList 订阅源列表无法解析，无法确定要抓取什么。
var ErrMalformedSourceList = errors.New("订阅源列表格式错误")

// sourceList 一个订阅源列表文件：一个命名集合加若干 URL。
//
//	{"name": "tech", "feeds": ["https://example.com/feed.xml"]}
type sourceList struct {
	Name  string   `json:"name" yaml:"name" toml:"name"`
	Feeds []string `json:"feeds" yaml:"feeds" toml:"feeds"`
}

// LoadSources 按顺序读取多个订阅源列表文件并合并为一个源列表。
// 同一 URL 只保留第一次出现的位置。任何文件不可读或格式错误都会返回错误。
func LoadSources(paths ...string) ([]Source, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: 未指定订阅源列表文件", ErrMalformedSourceList)
	}

	seen := make(map[string]bool)
	var sources []Source
	for _, p := range paths {
		list, err := readSourceList(p)
		if err != nil {
			return nil, err
		}
		for _, raw := range list.Feeds {
			u, err := normalizeURL(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSourceList, p, err)
			}
			if seen[u] {
				logger.Debugf("[rss] 重复的订阅源已忽略: %s (%s)", u, list.Name)
				continue
			}
			seen[u] = true
			sources = append(sources, Source{URL: u, Collection: list.Name})
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: 没有任何订阅源", ErrMalformedSourceList)
	}
	return sources, nil
}

func readSourceList(path string) (sourceList, error) {
	var list sourceList

	data, err := os.ReadFile(path)
	if err != nil {
		return list, fmt.Errorf("读取订阅源列表 %s 失败: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		err = json.Unmarshal(data, &list)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &list)
	case ".toml":
		_, err = toml.Decode(string(data), &list)
	default:
		return list, fmt.Errorf("%w: %s: 不支持的文件类型 %q", ErrMalformedSourceList, path, ext)
	}
	if err != nil {
		return list, fmt.Errorf("%w: %s: %v", ErrMalformedSourceList, path, err)
	}

	if list.Name == "" {
		list.Name = strings.TrimSuffix(filepath.Base(path), ext)
	}
	return list, nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("空 URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("无效 URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL %q 的协议必须是 http 或 https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q 缺少主机名", raw)
	}
	return raw, nil
}
