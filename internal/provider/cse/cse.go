package cse

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

	"go.uber.org/zap"

	"github.com/John-Robertt/imginject/internal/infra/logx"
	providerx "github.com/John-Robertt/imginject/internal/provider"
)

// DefaultBaseURL 是 Custom Search JSON API 的入口。
const DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// 单次请求允许的最大结果数（API 限制）。
const maxNum = 10

// Client 调用结构化搜索 API。
type Client struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
	CX      string
}

// Response 只保留抽取图片需要的字段；pagemap 原样保留给 ExtractImageURLs 宽松解析。
type Response struct {
	Items []Item `json:"items"`
}

type Item struct {
	Title   string          `json:"title"`
	Link    string          `json:"link"`
	Pagemap json.RawMessage `json:"pagemap"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c Client) baseURL() string {
	u := strings.TrimSpace(c.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return u
}

// Search 发起一次查询：GET base?key=..&cx=..&q=..&num=..
//
// num 会被收敛到 [1,10]。非 2xx 返回 *provider.HTTPStatusError（URL 中的 key 已脱敏）。
func (c Client) Search(ctx context.Context, query string, num int) (*Response, error) {
	if c.HTTP == nil {
		return nil, errors.New("http client 不能为空")
	}
	if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.CX) == "" {
		return nil, errors.New("api_key 与 cx 不能为空")
	}
	if num < 1 {
		num = 1
	}
	if num > maxNum {
		num = maxNum
	}

	q := url.Values{}
	q.Set("key", c.APIKey)
	q.Set("cx", c.CX)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(num))
	u := c.baseURL() + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		// url.Error 会带上完整 URL，这里替换掉避免 key 进日志。
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, fmt.Errorf("%s %s: %w", ue.Op, redact(u, c.APIKey), ue.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &providerx.HTTPStatusError{
			URL:        redact(u, c.APIKey),
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}
		var ae apiError
		if json.Unmarshal(body, &ae) == nil {
			he.Detail = ae.Error.Message
		}
		return nil, he
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("解析搜索响应失败：%w", err)
	}
	return &out, nil
}

func redact(u, key string) string {
	if key == "" {
		return u
	}
	return strings.ReplaceAll(u, url.QueryEscape(key), "REDACTED")
}

// Provider 把 Client + ExtractImageURLs 组合为一个发现来源。
type Provider struct {
	Client Client
	Logger *zap.Logger
}

func (Provider) Name() string { return "cse" }

func (p Provider) Discover(ctx context.Context, query string, max int) ([]string, error) {
	resp, err := p.Client.Search(ctx, query, max)
	if err != nil {
		return nil, err
	}
	urls := ExtractImageURLs(resp)
	if len(urls) > max {
		urls = urls[:max]
	}
	logx.OrNop(p.Logger).Debug("cse 搜索完成",
		zap.String("query", query),
		zap.Int("items", len(resp.Items)),
		zap.Int("images", len(urls)),
	)
	return urls, nil
}
