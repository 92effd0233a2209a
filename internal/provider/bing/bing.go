package bing

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/John-Robertt/imginject/internal/infra/logx"
)

// DefaultBaseURL 是图片搜索结果页入口。
const DefaultBaseURL = "https://www.bing.com/images/search"

// SearchURL 拼出带大图过滤的结果页 URL。
func SearchURL(base, query string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "?q=" + url.QueryEscape(query) + "&first=1&qft=+filterui:imagesize-large"
}

// Provider 抓取图片搜索结果页并用 Strategies 抽取候选。
//
// 约束：
// - 只发一次请求，不翻页
// - 抓取失败返回 error（由上层记为一次失败尝试）；页面里没有候选返回空切片
type Provider struct {
	Fetcher PageFetcher
	BaseURL string
	Logger  *zap.Logger
}

func (Provider) Name() string { return "bing" }

func (p Provider) Discover(ctx context.Context, query string, max int) ([]string, error) {
	if p.Fetcher == nil {
		return nil, errors.New("page fetcher 不能为空")
	}
	if max <= 0 {
		return []string{}, nil
	}
	pageURL := SearchURL(p.BaseURL, query)
	html, err := p.Fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	urls, err := Parse(html, max)
	if err != nil {
		return nil, err
	}
	logx.OrNop(p.Logger).Debug("bing 结果页解析完成",
		zap.String("query", query),
		zap.Int("bytes", len(html)),
		zap.Int("images", len(urls)),
	)
	return urls, nil
}

// Parse 对结果页 HTML 执行全部规则并做最终排序。
func Parse(html []byte, max int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	return FilterAndRank(Collect(doc, Strategies(), max), max), nil
}
