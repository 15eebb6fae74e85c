package rss

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadSourcesMultipleFormats(t *testing.T) {
	dir := t.TempDir()
	jsonFile := writeFile(t, dir, "tech.json", `{"name": "tech", "feeds": ["https://a.example.com/feed", "https://b.example.com/rss"]}`)
	yamlFile := writeFile(t, dir, "news.yaml", "feeds:\n  - https://c.example.com/atom.xml\n  - https://a.example.com/feed\n")
	tomlFile := writeFile(t, dir, "blogs.toml", "name = \"blogs\"\nfeeds = [\"http://d.example.com/index.xml\"]\n")

	sources, err := LoadSources(jsonFile, yamlFile, tomlFile)
	require.NoError(t, err)

	// 重复的 URL 只保留第一次出现
	assert.Equal(t, []Source{
		{URL: "https://a.example.com/feed", Collection: "tech"},
		{URL: "https://b.example.com/rss", Collection: "tech"},
		{URL: "https://c.example.com/atom.xml", Collection: "news"},
		{URL: "http://d.example.com/index.xml", Collection: "blogs"},
	}, sources)
}

func TestLoadSourcesOriginalFormat(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "feeds.json", `{"feeds": ["https://example.com/feed.xml"]}`)

	sources, err := LoadSources(p)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "feeds", sources[0].Collection, "集合名称应默认取文件名")
}

func TestLoadSourcesMalformed(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"invalid json", "bad.json", `{"feeds": [`},
		{"invalid yaml", "bad.yaml", "feeds: [unterminated\n"},
		{"wrong type", "bad2.json", `{"feeds": "https://example.com"}`},
		{"bad scheme", "ftp.json", `{"feeds": ["ftp://example.com/feed"]}`},
		{"empty url", "empty.json", `{"feeds": [""]}`},
		{"no feeds", "none.json", `{"name": "x", "feeds": []}`},
		{"unknown ext", "feeds.txt", "https://example.com/feed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, dir, tt.file, tt.content)
			_, err := LoadSources(p)
			assert.ErrorIs(t, err, ErrMalformedSourceList)
		})
	}
}

func TestLoadSourcesMissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err, "文件不存在应返回错误")

	_, err = LoadSources()
	assert.Error(t, err, "未指定文件应返回错误")
}
