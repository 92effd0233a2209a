package provider

import (
	"context"
	"fmt"
	"strings"
)

// 尝试阶段。
const (
	StageFetch = "fetch" // 请求或解析失败
	StageEmpty = "empty" // 请求成功但没有候选
	StageOK    = "ok"
)

// Attempt 记录一次来源尝试（用于解释回退原因）。
type Attempt struct {
	Provider string
	Stage    string
	Found    int
	Err      error // 仅 Stage==fetch 时非 nil
}

// Discover 按 chain 顺序尝试各来源，返回第一个非空结果。
func Discover(ctx context.Context, reg Registry, chain []string, query string, max int) ([]string, string) {
	urls, used, _ := DiscoverTrace(ctx, reg, chain, query, max)
	return urls, used
}

// DiscoverTrace 与 Discover 相同，但额外返回每个来源的尝试记录。
//
// 规则：
// - 某来源出错或返回空：记录后继续下一个
// - 某来源返回非空：立即返回，后续来源不再调用
// - 全部失败：返回空切片（不是错误；对单条记录而言只是“没有图片”）
// - ctx 结束：停止尝试
func DiscoverTrace(ctx context.Context, reg Registry, chain []string, query string, max int) (urls []string, used string, attempts []Attempt) {
	query = strings.TrimSpace(query)
	if query == "" || max <= 0 {
		return []string{}, "", nil
	}

	for _, name := range chain {
		if ctx.Err() != nil {
			break
		}
		name = strings.ToLower(strings.TrimSpace(name))
		p, ok := reg.Get(name)
		if !ok {
			attempts = append(attempts, Attempt{Provider: name, Stage: StageFetch, Err: fmt.Errorf("provider 未注册：%q", name)})
			continue
		}

		got, err := p.Discover(ctx, query, max)
		if err != nil {
			attempts = append(attempts, Attempt{Provider: name, Stage: StageFetch, Err: err})
			continue
		}
		if len(got) == 0 {
			attempts = append(attempts, Attempt{Provider: name, Stage: StageEmpty})
			continue
		}
		if len(got) > max {
			got = got[:max]
		}
		attempts = append(attempts, Attempt{Provider: name, Stage: StageOK, Found: len(got)})
		return got, name, attempts
	}
	return []string{}, "", attempts
}
