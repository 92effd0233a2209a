package provider

import "context"

// Provider 把“来源变化”限制在各自的子包内部；核心流程只依赖统一接口。
//
// 约束：
// - Discover 不做缓存、不做重试（失败即交给下一个来源）
// - 返回的 URL 按来源自身的优先级排序，长度不超过 max
// - 找不到任何候选时返回空切片与 nil error；error 只表示请求/解析层面的失败
type Provider interface {
	Name() string
	Discover(ctx context.Context, query string, max int) ([]string, error)
}
