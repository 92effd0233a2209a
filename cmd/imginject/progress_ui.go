package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/imginject/internal/app/run"
	"github.com/John-Robertt/imginject/internal/config"
	"github.com/John-Robertt/imginject/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的逐行进度输出。
//
// 过程信息只写到 w（stderr 优先），stdout 的 JSON 契约不受影响。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time

	total int
	done  int
	ok    int
	fail  int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] imginject run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  dir: %s\n", eff.Dir)
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "  providers: %s\n", providerChain(eff.Providers))
	fmt.Fprintf(p.w, "  api_key: %s\n", setUnset(eff.APIKey))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  browser: %s\n", onOff(eff.Browser))
	fmt.Fprintf(p.w, "  selection: *%s skip=%d take=%d exclude=%s\n", eff.Suffix, eff.Skip, eff.Take, formatStringListJSON(eff.Exclude))
	fmt.Fprintf(p.w, "  max_images: %d\n", eff.MaxImages)
	fmt.Fprintf(p.w, "  delays: image=%s record=%s document=%s\n", eff.ImageDelay, eff.RecordDelay, eff.DocumentDelay)
	if eff.ReportFile != "" {
		fmt.Fprintf(p.w, "  report_file: %s\n", truncate(eff.ReportFile, 120))
	}
	if eff.MetricsFile != "" {
		fmt.Fprintf(p.w, "  metrics_file: %s\n", truncate(eff.MetricsFile, 120))
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		p.total = intField(fields, "documents")
		fmt.Fprintf(p.w, "[%s] scan: 选中 %d 个文档 (%s)\n", time.Now().Format("15:04:05"), p.total, formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "[%s] %s: done (%s)\n", time.Now().Format("15:04:05"), name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnRecordDone(doc string, idx, total int, res domain.RecordResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	title := truncate(res.Title, 60)
	if title == "" {
		fmt.Fprintf(p.w, "    [%d/%d] (无 title) 跳过\n", idx, total)
		return
	}
	used := res.ProviderUsed
	if used == "" {
		used = "-"
	}
	line := fmt.Sprintf("    [%d/%d] %q %s images=%d/%d %s", idx, total, title, used, res.Images, res.Candidates, formatShortDuration(dur))
	if res.Images == 0 {
		if chain := formatAttemptChain(res.Attempts, 3); chain != "" {
			line += " (" + chain + ")"
		}
	}
	fmt.Fprintln(p.w, line)
}

func (p *progressUI) OnDocumentDone(idx, total int, res domain.DocumentResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if res.Status == domain.StatusSucceeded {
		p.ok++
	} else {
		p.fail++
	}

	name := filepath.Base(res.Path)
	if res.Path == "" {
		name = "<run>"
	}
	elapsed := formatElapsed(time.Since(p.startedAt))

	if res.Status == domain.StatusSucceeded {
		fmt.Fprintf(p.w, "[%d/%d] OK   %s records=%d images=%d %s | ok=%d fail=%d | %s\n",
			idx, total, name, len(res.Records), res.Images(), formatShortDuration(dur), p.ok, p.fail, elapsed)
		return
	}
	msg := truncate(res.ErrorMsg, 120)
	fmt.Fprintf(p.w, "[%d/%d] FAIL %s %s: %s %s | ok=%d fail=%d | %s\n",
		idx, total, name, res.ErrorCode, msg, formatShortDuration(dur), p.ok, p.fail, elapsed)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func setUnset(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unset"
	}
	return "set"
}

func providerChain(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, " -> ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatStringListJSON(xs []string) string {
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// formatAttemptChain 把一条记录的发现链路压成一行，例如 "cse:fetch:HTTP 403;bing:ok:3"。
func formatAttemptChain(attempts []domain.ProviderAttempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Provider) + ":" + strings.TrimSpace(a.Stage)
		if em := strings.TrimSpace(a.ErrorMsg); em != "" {
			s += ":" + truncate(em, 80)
		} else if a.Found > 0 {
			s += fmt.Sprintf(":%d", a.Found)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

func intField(fields map[string]any, key string) int {
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}
