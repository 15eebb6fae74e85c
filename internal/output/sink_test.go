package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteArtifact(t *testing.T) {
	dir := t.TempDir()
	runAt := time.Date(2026, 2, 19, 8, 30, 5, 0, time.Local)

	art, err := NewSink(dir, "", "").Write(runAt, "# Digest\n\nbody")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "2026-02-19_08-30-05.md"), art.Path)
	assert.Empty(t, art.NotePath, "未配置笔记目录时 NotePath 应为空")

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, "# Digest\n\nbody", string(data), "内容应原样写入")
}

func TestWriteDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	runAt := time.Date(2026, 2, 19, 8, 30, 5, 0, time.Local)
	sink := NewSink(dir, "", ".txt")

	first, err := sink.Write(runAt, "one")
	require.NoError(t, err)
	second, err := sink.Write(runAt, "two")
	require.NoError(t, err)

	require.NotEqual(t, first.Path, second.Path, "同一时间的两次运行不应写到同一文件")
	assert.Equal(t, "2026-02-19_08-30-05-1.txt", filepath.Base(second.Path))

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data), "第一个文件被覆盖")
}

func TestWriteCopiesToNotesDir(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(t.TempDir(), "vault", "Digests")

	art, err := NewSink(dir, notes, ".md").Write(time.Now(), "summary")
	require.NoError(t, err)
	require.NotEmpty(t, art.NotePath, "应复制到笔记目录")
	assert.Equal(t, notes, filepath.Dir(art.NotePath))

	data, err := os.ReadFile(art.NotePath)
	require.NoError(t, err)
	assert.Equal(t, "summary", string(data))
}

func TestWriteNotesFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	// 笔记目录的父路径是普通文件，无法创建目录
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	art, err := NewSink(dir, filepath.Join(blocker, "notes"), ".md").Write(time.Now(), "summary")
	require.NoError(t, err, "笔记目录失败不应导致整体失败")
	assert.NotEmpty(t, art.Path)
	assert.Empty(t, art.NotePath)
}

func TestWriteMainFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := NewSink(filepath.Join(blocker, "out"), "", ".md").Write(time.Now(), "summary")
	assert.Error(t, err, "主目录不可写时应返回错误")
}
