package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// 各类请求的默认超时。
const (
	DefaultSearchTimeout = 10 * time.Second
	DefaultScrapeTimeout = 15 * time.Second
	DefaultImageTimeout  = 10 * time.Second
)

// DesktopUserAgent 是抓取搜索结果页时固定使用的桌面浏览器 UA。
const DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Transport 把“UA 池 + 默认请求头 + 代理 + keep-alive 策略”固化为统一策略。
//
// provider 只负责“定位页面 + 解析结果”，不关心网络策略细节。
// 这里不做重试：单次请求失败即交给上层走下一个来源。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// Header 是默认请求头；仅在请求自身没有设置该头时补上。
	Header http.Header

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// Clone 会复制 Header，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	for k, vs := range t.Header {
		if r.Header.Get(k) != "" || len(vs) == 0 {
			continue
		}
		r.Header[k] = append([]string(nil), vs...)
	}
	if r.Header.Get("User-Agent") == "" && t.ua != nil {
		r.Header.Set("User-Agent", t.ua.random())
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return t.Base.RoundTrip(r)
}

// Options 描述一个 client 的网络策略。
type Options struct {
	// ProxyURL 非空时所有请求走该代理，并禁用 keep-alive（每请求新连接）。
	ProxyURL string
	// Timeout 为单次请求总超时；<=0 时不设上限（由 ctx 控制）。
	Timeout time.Duration
	// Header 为默认请求头。
	Header http.Header
}

// NewClient 按 Options 构造 HTTP client：内置 UA 池，可选代理。
func NewClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:               nil,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	disableKeepAlives := false

	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy.url 必须包含 scheme 与 host")
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	tr := &Transport{
		Base:              base,
		ua:                globalUA,
		Header:            opts.Header.Clone(),
		DisableKeepAlives: disableKeepAlives,
	}
	c := &http.Client{Transport: tr}
	if opts.Timeout > 0 {
		c.Timeout = opts.Timeout
	}
	return c, nil
}

// BrowserHeader 返回模拟桌面浏览器访问结果页时的请求头。
//
// 注意：手动声明 Accept-Encoding 后 net/http 不再自动解压，读取 body 必须走 DecodeBody。
func BrowserHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", DesktopUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("DNT", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		DesktopUserAgent,
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
