package run

import (
	"context"
	"net/http"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/John-Robertt/imginject/internal/config"
	"github.com/John-Robertt/imginject/internal/domain"
	"github.com/John-Robertt/imginject/internal/infra/metrics"
	"github.com/John-Robertt/imginject/internal/provider"
)

type recordObserver struct {
	startCalls int
	phases     []string
	records    []int
	documents  []string
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) { o.startCalls++ }

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnRecordDone(doc string, idx, total int, res domain.RecordResult, dur time.Duration) {
	o.records = append(o.records, idx)
}

func (o *recordObserver) OnDocumentDone(idx, total int, res domain.DocumentResult, dur time.Duration) {
	o.documents = append(o.documents, filepath.Base(res.Path))
}

func TestExecuteWithObserver_EmitsEvents(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "a_en.json"), `[{"title":"x"},{"n":1}]`)
	writeJSON(t, filepath.Join(dir, "b_en.json"), `[{"title":"y"}]`)

	reg, _ := provider.NewRegistry(&stubProvider{name: "bing"})
	eff := testConfig(dir)
	eff.Providers = []string{"bing"}

	m := metrics.New()
	obs := &recordObserver{}
	_ = ExecuteWithObserver(context.Background(), eff, Deps{
		Registry:    reg,
		ImageClient: http.DefaultClient,
		Metrics:     m,
		Sleep:       (&sleepRecorder{}).Sleep,
	}, obs)

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}
	if !reflect.DeepEqual(obs.phases, []string{"scan"}) {
		t.Fatalf("阶段事件不符合预期：%v", obs.phases)
	}
	if !reflect.DeepEqual(obs.records, []int{1, 2, 1}) {
		t.Fatalf("记录事件不符合预期：%v", obs.records)
	}
	if !reflect.DeepEqual(obs.documents, []string{"a_en.json", "b_en.json"}) {
		t.Fatalf("文档事件不符合预期：%v", obs.documents)
	}

	if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("titled")); got != 2 {
		t.Fatalf("titled 期望 2，实际 %v", got)
	}
	if got := testutil.ToFloat64(m.DiscoveriesTotal.WithLabelValues("bing", provider.StageEmpty)); got != 2 {
		t.Fatalf("bing/empty 期望 2，实际 %v", got)
	}
	if got := testutil.ToFloat64(m.DocumentsTotal.WithLabelValues(domain.StatusSucceeded)); got != 2 {
		t.Fatalf("documents 期望 2，实际 %v", got)
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "a_en.json"), `[{"notitle":true}]`)

	reg, _ := provider.NewRegistry(&stubProvider{name: "bing"})
	eff := testConfig(dir)
	eff.Providers = []string{"bing"}
	deps := Deps{Registry: reg, ImageClient: http.DefaultClient, Sleep: (&sleepRecorder{}).Sleep}

	a := Execute(context.Background(), eff, deps)
	b := ExecuteWithObserver(context.Background(), eff, deps, nil)

	// 时间与 run_id 每次不同；对比时归零。
	a.StartedAt, a.FinishedAt, a.RunID = time.Time{}, time.Time{}, ""
	b.StartedAt, b.FinishedAt, b.RunID = time.Time{}, time.Time{}, ""

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}

func TestSleepCtx(t *testing.T) {
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Fatalf("d=0 不应报错：%v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	started := time.Now()
	if err := sleepCtx(ctx, time.Hour); err == nil {
		t.Fatalf("ctx 已取消时期望错误")
	}
	if time.Since(started) > time.Second {
		t.Fatalf("ctx 已取消时应立即返回")
	}
}
