package run

import (
	"time"

	"github.com/John-Robertt/imginject/internal/config"
	"github.com/John-Robertt/imginject/internal/domain"
)

// Observer 用于把“运行进度/阶段/结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 事件按处理顺序在同一个 goroutine 中发出
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（目前只有 scan）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnRecordDone 在文档内每条记录处理完成时调用；idx 从 1 开始。
	OnRecordDone(doc string, idx, total int, res domain.RecordResult, dur time.Duration)
	// OnDocumentDone 在每个文档处理完成（含失败）时调用；idx 从 1 开始。
	OnDocumentDone(idx, total int, res domain.DocumentResult, dur time.Duration)
}
