package bing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/John-Robertt/imginject/internal/infra/httpx"
	providerx "github.com/John-Robertt/imginject/internal/provider"
)

// PageFetcher 取回结果页 HTML。
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

// HTTPFetcher 直接用 HTTP GET 取页面，带浏览器风格请求头。
type HTTPFetcher struct {
	Client *http.Client
	// Header 为空时使用 httpx.BrowserHeader()。
	Header http.Header
}

func (f HTTPFetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if f.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	h := f.Header
	if h == nil {
		h = httpx.BrowserHeader()
	}
	for k, vs := range h {
		req.Header[k] = append([]string(nil), vs...)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerx.HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	r, err := httpx.DecodeBody(resp)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// BrowserFetcher 用无头 Chrome 渲染结果页后取 DOM。
//
// 结果页的部分候选由脚本填充；纯 HTTP 拿到的页面偶尔只有骨架。
// 需要本机可用的 Chrome/Chromium。
type BrowserFetcher struct {
	// ProxyURL 非空时传给 Chrome 的 --proxy-server。
	ProxyURL string
	// Timeout 为单页渲染超时；<=0 时使用 httpx.DefaultScrapeTimeout。
	Timeout time.Duration
	// ExecPath 指定浏览器可执行文件；为空时由 chromedp 自动查找。
	ExecPath string
}

func (f BrowserFetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(httpx.DesktopUserAgent),
		chromedp.Flag("lang", "en-US"),
	)
	if f.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(f.ProxyURL))
	}
	if f.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = httpx.DefaultScrapeTimeout
	}
	tabCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, err
	}
	return []byte(html), nil
}
