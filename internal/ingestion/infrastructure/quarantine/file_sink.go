package quarantine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
)

// FileSink 文件隔离区：每条隔离条目一个 JSON 文件，
// 目录按任务名划分命名空间，文件名携带纳秒时间戳与失败原因，
// 供下游检视、重放与去重。
type FileSink struct {
	root string
}

// NewFileSink 创建文件隔离区，root 不存在时自动创建
func NewFileSink(root string) (*FileSink, error) {
	if root == "" {
		return nil, fmt.Errorf("quarantine root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create quarantine root: %w", err)
	}
	return &FileSink{root: root}, nil
}

var _ domain.QuarantineSink = (*FileSink)(nil)

// Record 落盘一条隔离条目。写入尽力而为；错误交由调用方记录，
// 不得中断批次。
func (s *FileSink) Record(ctx context.Context, entry domain.QuarantineEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(s.root, sanitize(entry.JobName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create quarantine namespace: %w", err)
	}

	name := fmt.Sprintf("%d_%s.json", entry.Timestamp.UnixNano(), sanitize(entry.ErrorMessage))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal quarantine entry: %w", err)
	}

	// 先写临时文件再重命名，避免下游读到半截文件
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write quarantine entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize quarantine entry: %w", err)
	}
	return nil
}

// List 列出某任务名下的全部隔离条目文件路径
func (s *FileSink) List(jobName string) ([]string, error) {
	dir := filepath.Join(s.root, sanitize(jobName))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// sanitize 替换文件名中的非法字符
func sanitize(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		" ", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
	)
	out := replacer.Replace(s)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
