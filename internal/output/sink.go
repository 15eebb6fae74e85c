// Package output 把生成的摘要写成以运行时间命名的文件，
// 并可选复制一份到外部笔记工具的目录。
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iabetor/rssdigest/internal/logger"
)

const fileTimeLayout = "2006-01-02_15-04-05"

// Artifact 一次运行写出的文件。
type Artifact struct {
	Path string
	// NotePath 复制到笔记目录的路径，未配置或复制失败时为空。
	NotePath string
}

// Sink 输出目标。
type Sink struct {
	dir      string
	notesDir string
	ext      string
}

// NewSink 创建输出目标。notesDir 为空表示不复制。
func NewSink(dir, notesDir, ext string) *Sink {
	if ext == "" {
		ext = ".md"
	}
	return &Sink{dir: dir, notesDir: notesDir, ext: ext}
}

// Write 将 text 原样写入 dir/<运行时间><ext>。
// 主文件写入失败返回错误；笔记目录复制失败只记录警告。
func (s *Sink) Write(runAt time.Time, text string) (Artifact, error) {
	name := runAt.Format(fileTimeLayout)

	path, err := writeNew(s.dir, name, s.ext, text)
	if err != nil {
		return Artifact{}, fmt.Errorf("写入摘要文件失败: %w", err)
	}
	logger.Infof("[output] 摘要已写入 %s", path)

	art := Artifact{Path: path}
	if s.notesDir != "" {
		notePath, err := writeNew(s.notesDir, name, s.ext, text)
		if err != nil {
			logger.Warnf("[output] 复制到笔记目录 %s 失败: %v", s.notesDir, err)
		} else {
			art.NotePath = notePath
			logger.Infof("[output] 摘要已复制到 %s", notePath)
		}
	}
	return art, nil
}

// writeNew 在 dir 下创建一个新文件，同名文件已存在时追加序号，不覆盖。
func writeNew(dir, name, ext, text string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	for i := 0; i < 100; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", name, i)
		}
		path := filepath.Join(dir, candidate+ext)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.WriteString(text); err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("%s 下同名文件过多: %s", dir, name)
}
