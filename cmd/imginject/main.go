package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/imginject/internal/app/run"
	"github.com/John-Robertt/imginject/internal/config"
	"github.com/John-Robertt/imginject/internal/domain"
	"github.com/John-Robertt/imginject/internal/infra/fsx"
	"github.com/John-Robertt/imginject/internal/infra/logx"
	"github.com/John-Robertt/imginject/internal/infra/metrics"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute 返回进程退出码：0 全部成功，1 存在失败文档或配置错误，2 参数错误。
func execute(args []string, stdout, stderr io.Writer) int {
	code := 0
	root := newRootCmd(&code)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	// SIGINT/SIGTERM：取消 ctx，正在处理的文档不回写。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n使用 \"imginject run --help\" 查看详细说明。\n", err)
		return 2
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "imginject",
		Short:         "为 JSON 文档中的记录搜索并嵌入图片",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(code))
	return root
}

func newRunCmd(code *int) *cobra.Command {
	var (
		configFile string
		maxImages  int
		skip       int
		take       int
		providers  []string
		browser    bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "处理 dir（默认当前目录）中选中的文档，原地写回 images 字段",
		Long: `按文件名排序选中 dir 下的文档（默认 *_en.json，跳过第 1 个，最多 99 个），
为每条带 title 的记录搜索图片（先结构化搜索，再抓取图片搜索结果页），
下载后以 base64 写入记录的 images 字段。

配置来源优先级：命令行参数 > IMGINJECT_* 环境变量 > imginject.json > 内置默认。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := config.CLIArgs{
				ConfigFile:   configFile,
				MaxImages:    maxImages,
				MaxImagesSet: cmd.Flags().Changed("max-images"),
				Skip:         skip,
				SkipSet:      cmd.Flags().Changed("skip"),
				Take:         take,
				TakeSet:      cmd.Flags().Changed("take"),
				Providers:    providers,
				ProvidersSet: cmd.Flags().Changed("providers"),
				Browser:      browser,
				BrowserSet:   cmd.Flags().Changed("browser"),
				LogLevel:     logLevel,
				LogLevelSet:  cmd.Flags().Changed("log-level"),
			}
			if len(args) == 1 {
				cli.Dir = args[0]
			}
			*code = runMain(cmd.Context(), cli, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "配置文件路径（默认读取 <dir>/imginject.json 或 ./imginject.json，可选）")
	f.IntVar(&maxImages, "max-images", 3, "每条记录最多嵌入的图片数")
	f.IntVar(&skip, "skip", 1, "排序后跳过的文档数")
	f.IntVar(&take, "take", 99, "跳过后最多处理的文档数（0 表示不限）")
	f.StringSliceVar(&providers, "providers", nil, "图片来源顺序：cse,bing")
	f.BoolVar(&browser, "browser", false, "用无头 Chrome 渲染图片搜索结果页")
	f.StringVar(&logLevel, "log-level", "info", "日志级别：debug|info|warn|error")
	return cmd
}

func runMain(ctx context.Context, cli config.CLIArgs, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		emitReport(stdout, stderr, reportForConfigError(cwdAbs, err))
		return 1
	}

	logger, err := logx.New(eff.LogLevel, eff.LogFormat, zapcore.Lock(zapcore.AddSync(stderr)))
	if err != nil {
		fmt.Fprintf(stderr, "初始化日志失败：%v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range eff.Warnings {
		logger.Warn(w)
	}
	if eff.ConfigFile != "" {
		logger.Debug("已读取配置文件", zap.String("path", eff.ConfigFile))
	}

	var m *metrics.Metrics
	if eff.MetricsFile != "" {
		m = metrics.New()
	}

	deps, err := buildDeps(eff, logger, m)
	if err != nil {
		fmt.Fprintf(stderr, "初始化失败：%v\n", err)
		return 1
	}

	progressW, interactive := pickProgressWriter(stdout, stderr)
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(ctx, eff, deps, obs)

	exit := 0
	if eff.ReportFile != "" {
		if err := writeReportFile(eff.ReportFile, rr); err != nil {
			logger.Error("写入 report 失败", zap.String("path", eff.ReportFile), zap.Error(err))
			exit = 1
		}
	}
	if err := m.WriteFile(eff.MetricsFile); err != nil {
		logger.Error("写入 metrics 失败", zap.String("path", eff.MetricsFile), zap.Error(err))
		exit = 1
	}

	emitReport(stdout, stderr, rr)
	if interactive && eff.ReportFile != "" {
		fmt.Fprintf(progressW, "report: %s\n", eff.ReportFile)
	}
	if rr.Summary.Failed > 0 {
		exit = 1
	}
	return exit
}

func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	summary := fmt.Sprintf("完成：successful=%d failed=%d total=%d records=%d images=%d\n",
		rr.Summary.Successful, rr.Summary.Failed, rr.Summary.Total, rr.Summary.Records, rr.Summary.Images,
	)
	if isTTY(stdout) {
		fmt.Fprint(stdout, summary)
		for _, d := range rr.Documents {
			if d.Status != domain.StatusFailed {
				continue
			}
			key := d.Path
			if key == "" {
				key = "<run>"
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", key, d.ErrorCode, d.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(rr)
	fmt.Fprint(stderr, summary)
}

func reportForConfigError(cwdAbs string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Dir:        cwdAbs,
		StartedAt:  now,
		FinishedAt: now,
		Documents: []domain.DocumentResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Records:   []domain.RecordResult{},
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(dir, filepath.Base(path), b, 0o644)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}
