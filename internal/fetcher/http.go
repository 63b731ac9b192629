package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"brandtrend/internal/model"
)

const maxBodySize = 32 << 20

// ErrEmptyRanking 数据源返回空榜单
var ErrEmptyRanking = errors.New("empty ranking")

// HTTPOptions HTTP 数据源参数
type HTTPOptions struct {
	// URLTemplate 支持占位符 {symbol} {date}(YYYYMM) {year} {month}
	URLTemplate string
	Symbol      string
	// RecordsPath gjson 路径，指向记录数组；为空表示根节点即数组
	RecordsPath string
	BrandField  string
	// SalesField 销量字段名；为空时取每条记录的第二个字段（各月列名不同）
	SalesField string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries uint64
	Client     *http.Client
}

// HTTPFetcher 通过 HTTP JSON 接口抓取月度品牌榜
type HTTPFetcher struct {
	opts   HTTPOptions
	client *http.Client
}

// NewHTTPFetcher 创建 HTTP 数据源
func NewHTTPFetcher(opts HTTPOptions) (*HTTPFetcher, error) {
	if strings.TrimSpace(opts.URLTemplate) == "" {
		return nil, errors.New("fetch url template is required")
	}
	if opts.BrandField == "" {
		opts.BrandField = "品牌"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPFetcher{opts: opts, client: client}, nil
}

// URL 生成某月的请求地址
func (f *HTTPFetcher) URL(period model.Period) string {
	r := strings.NewReplacer(
		"{symbol}", url.QueryEscape(f.opts.Symbol),
		"{date}", period.APIDate(),
		"{year}", strconv.Itoa(period.Year),
		"{month}", strconv.Itoa(period.Month),
	)
	return r.Replace(f.opts.URLTemplate)
}

// Fetch 抓取某月榜单，5xx/429/网络错误按指数退避重试，其余 4xx 直接失败
func (f *HTTPFetcher) Fetch(ctx context.Context, period model.Period) ([]model.BrandPeriodRecord, error) {
	target := f.URL(period)

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range f.opts.Headers {
			req.Header.Set(k, v)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch %s: status %d", period, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", period, resp.StatusCode))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.opts.MaxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		logrus.WithFields(logrus.Fields{
			"period": period.Key(),
			"wait":   wait.String(),
		}).WithError(err).Debug("抓取失败，稍后重试")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}

	records, err := ParseRecords(body, period, f.opts.RecordsPath, f.opts.BrandField, f.opts.SalesField)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", period, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", period, ErrEmptyRanking)
	}
	return records, nil
}

// ParseRecords 解析 JSON 榜单为统一记录
// 销量字段名每月可能不同：salesField 为空时取记录的第二个字段并统一为 Sales。
func ParseRecords(body []byte, period model.Period, recordsPath, brandField, salesField string) ([]model.BrandPeriodRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not valid json")
	}

	list := gjson.ParseBytes(body)
	if recordsPath != "" {
		list = list.Get(recordsPath)
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("records at %q is not an array", recordsPath)
	}

	var out []model.BrandPeriodRecord
	list.ForEach(func(_, rec gjson.Result) bool {
		if !rec.IsObject() {
			return true
		}

		var brand string
		var sales gjson.Result
		found := false
		pos := 0
		rec.ForEach(func(key, value gjson.Result) bool {
			name := strings.TrimSpace(key.String())
			if name == brandField {
				brand = strings.TrimSpace(value.String())
			}
			if (salesField != "" && name == salesField) || (salesField == "" && pos == 1) {
				sales = value
				found = true
			}
			pos++
			return true
		})

		if brand == "" {
			return true
		}
		r := model.BrandPeriodRecord{Brand: brand, Period: period}
		if found {
			r.Sales = numberOf(sales)
		}
		out = append(out, r)
		return true
	})
	return out, nil
}

// numberOf 数值或数值字符串（含千分位）；其他视为缺失
func numberOf(v gjson.Result) *float64 {
	switch v.Type {
	case gjson.Number:
		return model.Float(v.Float())
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(v.Str), ",", "")
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
