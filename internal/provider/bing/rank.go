package bing

import "strings"

// sizeHints 是提示“大图/原图”的 URL 子串（小写比较）。
var sizeHints = []string{"large", "original", "full", "hd", "4k", "3840", "2160", "1920", "1080"}

// FilterAndRank 做最终过滤与排序：
// 丢弃非 http 开头与重复的 URL，把含尺寸提示的 URL 稳定地前移，再截断到 max。
func FilterAndRank(urls []string, max int) []string {
	if max <= 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(urls))
	var hinted, rest []string
	for _, u := range urls {
		if !strings.HasPrefix(u, "http") {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		if hasSizeHint(u) {
			hinted = append(hinted, u)
		} else {
			rest = append(rest, u)
		}
	}
	out := append(hinted, rest...)
	if out == nil {
		out = []string{}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func hasSizeHint(u string) bool {
	l := strings.ToLower(u)
	for _, h := range sizeHints {
		if strings.Contains(l, h) {
			return true
		}
	}
	return false
}
