// Package csvfile implements an Extractor over local CSV exports, used for
// backfills and integration environments without provider access. Files live
// under <root>/<dataset>/<symbol>.csv with a header row naming the raw fields.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/pkg/logger"
)

// Extractor 本地 CSV 文件抽取器
type Extractor struct {
	root string
}

// New 创建 CSV 抽取器，root 为数据集目录的根
func New(root string) *Extractor {
	return &Extractor{root: root}
}

var _ domain.Extractor = (*Extractor)(nil)

// Stream 按符号逐文件读取，过滤日期范围外的行，按分块大小投递。
// 文件缺失视为符号无法识别，属不可重试错误。
func (e *Extractor) Stream(ctx context.Context, cfg domain.JobConfig) (<-chan domain.Chunk, <-chan error) {
	chunks := make(chan domain.Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		seq := 0
		pending := make([]domain.RawRecord, 0, cfg.ChunkSize)

		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			chunk := domain.Chunk{Seq: seq, Records: pending}
			seq++
			pending = make([]domain.RawRecord, 0, cfg.ChunkSize)
			select {
			case chunks <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, symbol := range cfg.Symbols {
			if ctx.Err() != nil {
				errs <- ctx.Err()
				return
			}

			path := filepath.Join(e.root, cfg.Dataset, symbol+".csv")
			records, err := e.readFile(ctx, path, cfg)
			if err != nil {
				errs <- err
				return
			}
			logger.Debug(ctx, "Read backfill file", "path", path, "records", len(records))

			for _, record := range records {
				pending = append(pending, record)
				if len(pending) >= cfg.ChunkSize {
					if !flush() {
						errs <- ctx.Err()
						return
					}
				}
			}
		}

		if !flush() {
			errs <- ctx.Err()
		}
	}()

	return chunks, errs
}

// readFile 读取单个符号文件，首行为字段名
func (e *Extractor) readFile(ctx context.Context, path string, cfg domain.JobConfig) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		perr := domain.NewPermanentProviderError(fmt.Sprintf("no backfill file for symbol at %s", path), err)
		perr.Remediation = "check symbol list against files under the backfill root"
		return nil, perr
	}
	if err != nil {
		return nil, domain.NewTransientProviderError("failed to open backfill file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		return nil, domain.NewPermanentProviderError(fmt.Sprintf("missing header row in %s", path), err)
	}

	// 日期范围为闭区间，按整天过滤
	rangeEnd := cfg.End.AddDate(0, 0, 1)

	var records []domain.RawRecord
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.NewPermanentProviderError(fmt.Sprintf("malformed row in %s", path), err)
		}

		record := make(domain.RawRecord, len(header))
		for i, field := range header {
			if i < len(row) {
				record[field] = row[i]
			}
		}

		if inRange(record["ts_event"], cfg.Start, rangeEnd) {
			records = append(records, record)
		}
	}
	return records, nil
}

// inRange 无法解析的时间戳不在此过滤，交由转换层隔离
func inRange(ts string, start, end time.Time) bool {
	if ts == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return true
	}
	return !t.Before(start) && t.Before(end)
}
