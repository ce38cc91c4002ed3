// Package httpapi implements an Extractor for HTTP market-data providers
// exposing a date-ranged JSON records endpoint. Long date ranges are split
// into bounded sub-ranges and fetched sequentially, then re-chunked by the
// job's chunk size.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/pkg/logger"
)

const (
	dateFormat       = "2006-01-02"
	defaultChunkDays = 30
)

// Extractor 基于 HTTP JSON 接口的抽取器
type Extractor struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	chunkDays int
}

// Option 配置抽取器
type Option func(*Extractor)

// WithClient 自定义 HTTP 客户端
func WithClient(c *http.Client) Option {
	return func(e *Extractor) { e.client = c }
}

// WithChunkDays 设置单次请求覆盖的日期跨度
func WithChunkDays(days int) Option {
	return func(e *Extractor) {
		if days > 0 {
			e.chunkDays = days
		}
	}
}

// New 创建 HTTP 抽取器
func New(baseURL, apiKey string, opts ...Option) *Extractor {
	e := &Extractor{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{},
		chunkDays: defaultChunkDays,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

var _ domain.Extractor = (*Extractor)(nil)

// Stream 拉取任务日期范围内的全部记录，按任务分块大小切块投递。
// 流有限且不可中途重启；终止错误经 error 通道给出。
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

		for _, dateRange := range splitDateRange(cfg.Start, cfg.End, e.chunkDays) {
			if ctx.Err() != nil {
				errs <- ctx.Err()
				return
			}

			records, err := e.fetchRange(ctx, cfg, dateRange)
			if err != nil {
				errs <- err
				return
			}

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

// fetchRange 拉取单个日期子区间的记录
func (e *Extractor) fetchRange(ctx context.Context, cfg domain.JobConfig, r dateRange) ([]domain.RawRecord, error) {
	if cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ExtractTimeout)
		defer cancel()
	}

	query := url.Values{}
	query.Set("symbols", strings.Join(cfg.Symbols, ","))
	query.Set("stype_in", string(cfg.SymbolType))
	query.Set("start", r.from.Format(dateFormat))
	query.Set("end", r.to.Format(dateFormat))

	endpoint := fmt.Sprintf("%s/v1/%s/%s?%s", e.baseURL, url.PathEscape(cfg.Dataset), url.PathEscape(string(cfg.Schema)), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewPermanentProviderError("failed to build request", err)
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// 网络错误与超时均按瞬态处理
		return nil, domain.NewTransientProviderError("request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, domain.NewTransientProviderError("failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, domain.NewPermanentProviderError("malformed response payload", err)
	}

	records := make([]domain.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRawRecord(row))
	}

	logger.Debug(ctx, "Fetched provider range",
		"start", r.from.Format(dateFormat),
		"end", r.to.Format(dateFormat),
		"records", len(records),
	)
	return records, nil
}

// classifyStatus HTTP 状态码分类：限流与服务端错误可重试，
// 客户端错误（无效符号、非法模式/日期组合）不可重试。
func classifyStatus(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}

	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return domain.NewTransientProviderError(
			fmt.Sprintf("provider returned %d", status),
			errors.New(msg),
		)
	default:
		perr := domain.NewPermanentProviderError(
			fmt.Sprintf("provider rejected request with %d", status),
			errors.New(msg),
		)
		if status == http.StatusNotFound || status == http.StatusBadRequest {
			perr.Remediation = "check symbol list and schema/date combination"
		}
		return perr
	}
}

// toRawRecord 将 JSON 对象的所有字段字符串化
func toRawRecord(row map[string]any) domain.RawRecord {
	record := make(domain.RawRecord, len(row))
	for key, value := range row {
		switch v := value.(type) {
		case string:
			record[key] = v
		case float64:
			record[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			record[key] = strconv.FormatBool(v)
		case nil:
			// 缺失字段不写入，交由转换层判定
		default:
			data, _ := json.Marshal(v)
			record[key] = string(data)
		}
	}
	return record
}

type dateRange struct {
	from time.Time
	to   time.Time
}

// splitDateRange 将闭区间日期范围切分为有界子区间
func splitDateRange(from, to time.Time, chunkDays int) []dateRange {
	if from.After(to) || chunkDays <= 0 {
		return nil
	}

	var ranges []dateRange
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, chunkDays) {
		end := cur.AddDate(0, 0, chunkDays-1)
		if end.After(to) {
			end = to
		}
		ranges = append(ranges, dateRange{from: cur, to: end})
	}
	return ranges
}
