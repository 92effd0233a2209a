package bing

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy 是一条独立的候选 URL 抽取规则。
//
// Extract 只负责“按文档顺序列出原始候选”，去重/截断/协议校验由 Collect 统一处理。
type Strategy struct {
	Name string
	// RequireHTTP 为 true 时，候选必须以 http 开头才会被收集。
	RequireHTTP bool
	Extract     func(doc *goquery.Document) []string
}

// Strategies 返回固定顺序的五条规则。
func Strategies() []Strategy {
	return []Strategy{
		{Name: "iusc", RequireHTTP: true, Extract: iuscMediaURLs},
		{Name: "data-src", RequireHTTP: true, Extract: lazyImageSources},
		{Name: "src", RequireHTTP: true, Extract: imageSources},
		// 脚本里的匹配本身已限定了图片扩展名；协议由 FilterAndRank 兜底。
		{Name: "script", RequireHTTP: false, Extract: scriptImageURLs},
		{Name: "mediaurl", RequireHTTP: true, Extract: mediaURLParams},
	}
}

// Collect 依次执行 strategies，收集至多 max 个不重复候选。
//
// 某条规则开始前若已达到 max，则跳过它以及后续所有规则。
func Collect(doc *goquery.Document, strategies []Strategy, max int) []string {
	out := []string{}
	if doc == nil || max <= 0 {
		return out
	}
	seen := make(map[string]struct{}, max)
	for _, st := range strategies {
		if len(out) >= max {
			break
		}
		for _, u := range st.Extract(doc) {
			if u == "" {
				continue
			}
			if st.RequireHTTP && !strings.HasPrefix(u, "http") {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
			if len(out) >= max {
				break
			}
		}
	}
	return out
}

// iuscMediaURLs：结果容器 <a class="iusc" m="{...}"> 中的 murl。
func iuscMediaURLs(doc *goquery.Document) []string {
	var out []string
	doc.Find("a.iusc").Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("m")
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		var m struct {
			MURL string `json:"murl"`
		}
		// 单个容器的 JSON 坏了只跳过它。
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return
		}
		if m.MURL != "" {
			out = append(out, m.MURL)
		}
	})
	return out
}

// lazyImageSources：懒加载图片的 data-src。
func lazyImageSources(doc *goquery.Document) []string {
	return attrValues(doc.Find("img[data-src]"), "data-src")
}

func imageSources(doc *goquery.Document) []string {
	return attrValues(doc.Find("img[src]"), "src")
}

var (
	scriptMURL = regexp.MustCompile(`"murl":"([^"]+\.(?:jpg|jpeg|png|gif|webp))"`)
	scriptURL  = regexp.MustCompile(`"url":"([^"]+\.(?:jpg|jpeg|png|gif|webp))"`)
)

// scriptImageURLs：内联脚本里的 "murl":"..." 与 "url":"..."。
//
// 逐个脚本处理：先取该脚本全部 murl 匹配，再取 url 匹配。
func scriptImageURLs(doc *goquery.Document) []string {
	var out []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		body := s.Text()
		if strings.TrimSpace(body) == "" {
			return
		}
		for _, re := range []*regexp.Regexp{scriptMURL, scriptURL} {
			for _, m := range re.FindAllStringSubmatch(body, -1) {
				out = append(out, m[1])
			}
		}
	})
	return out
}

var mediaURLParam = regexp.MustCompile(`mediaurl=([^&]+)`)

// mediaURLParams：链接 href 中的 mediaurl= 参数（URL 解码后）。
func mediaURLParams(doc *goquery.Document) []string {
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := mediaURLParam.FindStringSubmatch(href)
		if m == nil {
			return
		}
		v, err := url.QueryUnescape(m[1])
		if err != nil {
			return
		}
		out = append(out, v)
	})
	return out
}

func attrValues(sel *goquery.Selection, name string) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(name); ok {
			out = append(out, strings.TrimSpace(v))
		}
	})
	return out
}
