package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/imginject/internal/config"
	"github.com/John-Robertt/imginject/internal/domain"
	"github.com/John-Robertt/imginject/internal/infra/httpx"
	"github.com/John-Robertt/imginject/internal/infra/imgx"
	"github.com/John-Robertt/imginject/internal/infra/logx"
	"github.com/John-Robertt/imginject/internal/infra/metrics"
	"github.com/John-Robertt/imginject/internal/provider"
	"github.com/John-Robertt/imginject/internal/scan"
	"github.com/John-Robertt/imginject/internal/store"
)

// Deps 是一次运行需要的外部协作者；由 CLI 组装，测试可替换。
type Deps struct {
	Registry provider.Registry
	// ImageClient 为空时按 eff 的代理与 image_timeout 构造。
	ImageClient *http.Client
	Logger      *zap.Logger
	// Metrics 可为 nil（不采集）。
	Metrics *metrics.Metrics
	// Sleep 用于节奏控制；为空时使用真实计时器。ctx 结束时必须立即返回 ctx.Err()。
	Sleep func(ctx context.Context, d time.Duration) error
}

// Execute 处理目录中选中的全部文档，并返回对外稳定的 RunReport。
// 单个文档失败只记录在 report 中，不影响其他文档。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Dir:       eff.Dir,
		StartedAt: time.Now().UTC(),
		Documents: make([]domain.DocumentResult, 0, 16),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	log := logx.OrNop(deps.Logger)
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}
	if deps.ImageClient == nil {
		c, err := httpx.NewClient(httpx.Options{ProxyURL: eff.ProxyURL, Timeout: eff.ImageTimeout})
		if err != nil {
			rr.Documents = append(rr.Documents, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
			return finish()
		}
		deps.ImageClient = c
	}

	scanStarted := time.Now()
	paths, err := scan.ListDocuments(eff.Dir, scan.Selection{
		Suffix:  eff.Suffix,
		Exclude: eff.Exclude,
		Skip:    eff.Skip,
		Take:    eff.Take,
	})
	if err != nil {
		rr.Documents = append(rr.Documents, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("列出文档失败：%v", err)))
		return finish()
	}
	log.Info("选中文档", zap.String("dir", eff.Dir), zap.Int("documents", len(paths)), zap.Strings("providers", eff.Providers))
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"documents": len(paths)}, time.Since(scanStarted))
	}

	for i, path := range paths {
		if ctx.Err() != nil {
			rr.Documents = append(rr.Documents, cancelledDocument(path))
			continue
		}

		started := time.Now()
		res := processDocument(ctx, eff, deps, path, obs)
		dur := time.Since(started)
		rr.Documents = append(rr.Documents, res)
		deps.Metrics.Document(res.Status, dur)
		if obs != nil {
			obs.OnDocumentDone(i+1, len(paths), res, dur)
		}

		if i < len(paths)-1 {
			// 出错说明 ctx 已结束；下一轮循环会把剩余文档记为 cancelled。
			_ = deps.Sleep(ctx, eff.DocumentDelay)
		}
	}

	out := finish()
	log.Info("运行结束",
		zap.String("run_id", out.RunID),
		zap.Int("successful", out.Summary.Successful),
		zap.Int("failed", out.Summary.Failed),
		zap.Int("images", out.Summary.Images),
	)
	return out
}

// processDocument 读取一个文档、逐条处理、全部完成后原子回写。
//
// ctx 在处理中途结束时不回写：磁盘上的文件保持原样。
func processDocument(ctx context.Context, eff config.EffectiveConfig, deps Deps, path string, obs Observer) domain.DocumentResult {
	log := logx.OrNop(deps.Logger).With(zap.String("document", path))
	res := domain.DocumentResult{
		Path:    path,
		Status:  domain.StatusSucceeded,
		Records: []domain.RecordResult{},
	}

	doc, err := store.Load(path)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = storeErrorCode(err)
		res.ErrorMsg = err.Error()
		log.Error("读取文档失败", zap.Error(err))
		return res
	}

	for i, rec := range doc.Records {
		if ctx.Err() != nil {
			break
		}
		started := time.Now()
		rr, err := processRecord(ctx, eff, deps, log, rec, i)
		if err != nil {
			res.Status = domain.StatusFailed
			res.ErrorCode = domain.ErrCodeWriteFailed
			res.ErrorMsg = fmt.Sprintf("第 %d 条记录写入 images 失败：%v", i, err)
			return res
		}
		res.Records = append(res.Records, rr)
		if obs != nil {
			obs.OnRecordDone(path, i+1, len(doc.Records), rr, time.Since(started))
		}
	}

	if ctx.Err() != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeCancelled
		res.ErrorMsg = fmt.Sprintf("运行被取消，已处理 %d/%d 条记录，文档未回写", len(res.Records), len(doc.Records))
		log.Warn("运行被取消，文档未回写", zap.Int("processed", len(res.Records)))
		return res
	}

	if err := store.Save(doc); err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = storeErrorCode(err)
		res.ErrorMsg = err.Error()
		log.Error("回写文档失败", zap.Error(err))
		return res
	}
	log.Info("文档已回写", zap.Int("records", len(doc.Records)), zap.Int("images", res.Images()))
	return res
}

// processRecord 为一条记录发现并下载图片，整体覆盖其 images 字段。
//
// 规则：
// - 无标题：images=[]，不发任何网络请求，也不等待
// - 每次下载后（无论成败）等待 image_delay；处理完一条有标题的记录后等待 record_delay
// - 下载失败的 URL 直接丢弃，不留占位
func processRecord(ctx context.Context, eff config.EffectiveConfig, deps Deps, log *zap.Logger, rec *domain.Record, idx int) (domain.RecordResult, error) {
	rr := domain.RecordResult{Index: idx, Attempts: []domain.ProviderAttempt{}}

	title, ok := rec.Title()
	deps.Metrics.Record(ok)
	if !ok {
		return rr, rec.SetImages(nil)
	}
	rr.Title = title

	urls, used, attempts := provider.DiscoverTrace(ctx, deps.Registry, eff.Providers, title, eff.MaxImages)
	for _, a := range attempts {
		deps.Metrics.Discovery(a.Provider, a.Stage)
		pa := domain.ProviderAttempt{Provider: a.Provider, Stage: a.Stage, Found: a.Found}
		if a.Err != nil {
			pa.ErrorMsg = a.Err.Error()
			log.Warn("图片来源失败，尝试下一个", zap.String("title", title), zap.String("provider", a.Provider), zap.Error(a.Err))
		}
		rr.Attempts = append(rr.Attempts, pa)
	}
	rr.ProviderUsed = used
	rr.Candidates = len(urls)

	images := make([]domain.EncodedImage, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		img, err := imgx.Fetch(ctx, deps.ImageClient, u)
		deps.Metrics.ImageFetch(err == nil)
		if err != nil {
			log.Warn("图片下载失败", zap.String("url", u), zap.Error(err))
		} else {
			images = append(images, img)
		}
		_ = deps.Sleep(ctx, eff.ImageDelay)
	}
	rr.Images = len(images)

	if err := rec.SetImages(images); err != nil {
		return rr, err
	}
	log.Debug("记录处理完成",
		zap.Int("index", idx),
		zap.String("title", title),
		zap.String("provider", used),
		zap.Int("candidates", len(urls)),
		zap.Int("images", len(images)),
	)
	_ = deps.Sleep(ctx, eff.RecordDelay)
	return rr, nil
}

func storeErrorCode(err error) string {
	var se *store.Error
	if !errors.As(err, &se) {
		return domain.ErrCodeIOFailed
	}
	switch se.Kind {
	case store.KindLoad:
		return domain.ErrCodeLoadFailed
	case store.KindParse:
		return domain.ErrCodeParseFailed
	case store.KindWrite:
		return domain.ErrCodeWriteFailed
	default:
		return domain.ErrCodeIOFailed
	}
}

func cancelledDocument(path string) domain.DocumentResult {
	return domain.DocumentResult{
		Path:      path,
		Status:    domain.StatusFailed,
		ErrorCode: domain.ErrCodeCancelled,
		ErrorMsg:  "运行被取消，未开始处理",
		Records:   []domain.RecordResult{},
	}
}

func syntheticFailed(code, msg string) domain.DocumentResult {
	return domain.DocumentResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Records:   []domain.RecordResult{},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
