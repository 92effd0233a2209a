package domain

import (
	"sort"
	"time"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const (
	ErrCodeLoadFailed    = "load_failed"
	ErrCodeParseFailed   = "parse_failed"
	ErrCodeWriteFailed   = "write_failed"
	ErrCodeCancelled     = "cancelled"
	ErrCodeIOFailed      = "io_failed"
	ErrCodeConfigInvalid = "config_invalid"
)

// RunReport 是对外稳定输出（stdout JSON / report_file）的结构。
type RunReport struct {
	RunID string `json:"run_id"`
	Dir   string `json:"dir"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary   ReportSummary    `json:"summary"`
	Documents []DocumentResult `json:"documents"`
}

type ReportSummary struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`

	Records int `json:"records"`
	Images  int `json:"images"`
}

// DocumentResult 描述一个文档的处理结果。Path 为空表示合成条目（配置/扫描阶段失败）。
type DocumentResult struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Records []RecordResult `json:"records"`
}

// RecordResult 描述单条记录：发现了多少候选、最终嵌入了多少图片、由哪个 provider 提供。
type RecordResult struct {
	Index        int               `json:"index"`
	Title        string            `json:"title"`
	ProviderUsed string            `json:"provider_used"`
	Candidates   int               `json:"candidates"`
	Images       int               `json:"images"`
	Attempts     []ProviderAttempt `json:"attempts"`
}

// ProviderAttempt 是 discovery 链路上一次 provider 尝试的可序列化形式。
type ProviderAttempt struct {
	Provider string `json:"provider"`
	Stage    string `json:"stage"`
	Found    int    `json:"found"`
	ErrorMsg string `json:"error_msg"`
}

// Images 汇总该文档嵌入的图片数。
func (d DocumentResult) Images() int {
	n := 0
	for _, r := range d.Records {
		n += r.Images
	}
	return n
}

// Finalize 统一时间为 UTC，按 path 稳定排序（合成条目排最后），并由 documents 计算 summary。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Documents == nil {
		r.Documents = []DocumentResult{}
	}
	sort.SliceStable(r.Documents, func(i, j int) bool {
		a := r.Documents[i].Path
		b := r.Documents[j].Path
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, d := range r.Documents {
		switch d.Status {
		case StatusSucceeded:
			s.Successful++
		case StatusFailed:
			s.Failed++
		}
		s.Records += len(d.Records)
		s.Images += d.Images()
	}
	s.Total = len(r.Documents)
	r.Summary = s
}
