// Package history 持久化每个订阅源最近一次处理到的条目链接（游标）。
//
// 游标文件是一个扁平 JSON 对象：源 URL → 最后见到的条目链接。
// 文件只有单个写入者，不做文件锁。
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iabetor/rssdigest/internal/logger"
)

// Cursor 源 URL → 最后见到的条目链接。
type Cursor map[string]string

// Clone 返回一份独立副本。
func (c Cursor) Clone() Cursor {
	out := make(Cursor, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge 将 updates 合并进 c，已有的键被覆盖，其他键保持不变。
func (c Cursor) Merge(updates Cursor) {
	for k, v := range updates {
		c[k] = v
	}
}

// Load 读取游标文件。文件不存在返回空游标；内容损坏时记录警告并返回空游标，
// 不会把错误抛给调用方。
func Load(path string) Cursor {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("[history] 读取游标文件 %s 失败（将使用空游标）: %v", path, err)
		}
		return Cursor{}
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		logger.Warnf("[history] 游标文件 %s 不是合法 JSON（将使用空游标）: %v", path, err)
		return Cursor{}
	}
	if c == nil {
		// 文件内容为 null
		return Cursor{}
	}
	return c
}

// Save 序列化整个游标并覆盖写入文件，不做合并。
// 先写同目录临时文件再重命名，写入要么完成要么不生效。
func Save(path string, c Cursor) error {
	if c == nil {
		c = Cursor{}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建游标目录失败: %w", err)
	}

	// map 序列化时键按字典序输出，格式稳定
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化游标失败: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入游标失败: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("设置游标文件权限失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入游标失败: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("替换游标文件失败: %w", err)
	}

	logger.Debugf("[history] 已保存 %d 个游标到 %s", len(c), path)
	return nil
}

// Reset 从游标文件中删除指定源；urls 为空则清空全部。返回删除的数量。
func Reset(path string, urls ...string) (int, error) {
	c := Load(path)
	removed := 0
	if len(urls) == 0 {
		removed = len(c)
		c = Cursor{}
	} else {
		for _, u := range urls {
			if _, ok := c[u]; ok {
				delete(c, u)
				removed++
			}
		}
	}
	if err := Save(path, c); err != nil {
		return 0, err
	}
	return removed, nil
}
