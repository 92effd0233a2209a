package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// DefaultFileName 是自动发现的配置文件名。
const DefaultFileName = "imginject.json"

// EnvPrefix 是环境变量前缀；嵌套键的 "." 换成 "_"（例如 IMGINJECT_PROXY_URL）。
const EnvPrefix = "IMGINJECT"

// 已知的发现来源。
const (
	ProviderCSE  = "cse"
	ProviderBing = "bing"
)

// DefaultProviders 是未配置 providers 时的发现顺序：先结构化搜索，再抓取结果页。
var DefaultProviders = []string{ProviderCSE, ProviderBing}

// CLIArgs 是 CLI 暴露的覆盖项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --browser=false 必须能覆盖配置里的 browser=true。
type CLIArgs struct {
	// ConfigFile 非空时必须存在。
	ConfigFile string
	Dir        string

	MaxImages    int
	MaxImagesSet bool

	Skip    int
	SkipSet bool

	Take    int
	TakeSet bool

	Providers    []string
	ProvidersSet bool

	Browser    bool
	BrowserSet bool

	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应配置文件（及 IMGINJECT_* 环境变量）的解析结构。
type FileConfig struct {
	Dir           string        `mapstructure:"dir"`
	APIKey        string        `mapstructure:"api_key"`
	CX            string        `mapstructure:"cx"`
	Providers     []string      `mapstructure:"providers"`
	Suffix        string        `mapstructure:"suffix"`
	Exclude       []string      `mapstructure:"exclude"`
	Skip          int           `mapstructure:"skip"`
	Take          int           `mapstructure:"take"`
	MaxImages     int           `mapstructure:"max_images"`
	ImageDelay    time.Duration `mapstructure:"image_delay"`
	RecordDelay   time.Duration `mapstructure:"record_delay"`
	DocumentDelay time.Duration `mapstructure:"document_delay"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	ScrapeTimeout time.Duration `mapstructure:"scrape_timeout"`
	ImageTimeout  time.Duration `mapstructure:"image_timeout"`
	Proxy         ProxyConfig   `mapstructure:"proxy"`
	CSEBaseURL    string        `mapstructure:"cse_base_url"`
	BingBaseURL   string        `mapstructure:"bing_base_url"`
	Browser       bool          `mapstructure:"browser"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
	MetricsFile   string        `mapstructure:"metrics_file"`
	ReportFile    string        `mapstructure:"report_file"`
}

type ProxyConfig struct {
	URL string `mapstructure:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Dir string
	// ConfigFile 为实际读取的配置文件；未读取任何文件时为空。
	ConfigFile string

	APIKey    string
	CX        string
	Providers []string

	Suffix  string
	Exclude []string
	Skip    int
	Take    int

	MaxImages int

	ImageDelay    time.Duration
	RecordDelay   time.Duration
	DocumentDelay time.Duration

	SearchTimeout time.Duration
	ScrapeTimeout time.Duration
	ImageTimeout  time.Duration

	ProxyURL    string
	CSEBaseURL  string
	BingBaseURL string
	Browser     bool

	LogLevel    string
	LogFormat   string
	MetricsFile string
	ReportFile  string

	// Warnings 是不影响运行、但值得提示用户的配置问题。
	Warnings []string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dir", ".")
	v.SetDefault("api_key", "")
	v.SetDefault("cx", "")
	v.SetDefault("providers", []string{})
	v.SetDefault("suffix", "_en.json")
	v.SetDefault("exclude", []string{"1_with_images.json"})
	v.SetDefault("skip", 1)
	v.SetDefault("take", 99)
	v.SetDefault("max_images", 3)
	v.SetDefault("image_delay", 500*time.Millisecond)
	v.SetDefault("record_delay", time.Second)
	v.SetDefault("document_delay", 2*time.Second)
	v.SetDefault("search_timeout", 10*time.Second)
	v.SetDefault("scrape_timeout", 15*time.Second)
	v.SetDefault("image_timeout", 10*time.Second)
	v.SetDefault("proxy.url", "")
	v.SetDefault("cse_base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("bing_base_url", "https://www.bing.com/images/search")
	v.SetDefault("browser", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics_file", "")
	v.SetDefault("report_file", "")
}

// LoadEffective 发现并读取配置文件与环境变量，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：读取该文件（必须存在）
// 2) CLI 提供 dir：尝试读取 <dir>/imginject.json（可选）
// 3) 否则：尝试读取 <cwd>/imginject.json（可选）
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 内置默认。
// 相对路径（dir/metrics_file/report_file）一律相对 cwd 解析。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfgPath := ""
	switch {
	case strings.TrimSpace(cli.ConfigFile) != "":
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		if _, err := os.Stat(cfgPath); err != nil {
			if os.IsNotExist(err) {
				return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
			}
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	case strings.TrimSpace(cli.Dir) != "":
		cfgPath = optionalFile(filepath.Join(absCleanFrom(cwdAbs, cli.Dir), DefaultFileName))
	default:
		cfgPath = optionalFile(filepath.Join(cwdAbs, DefaultFileName))
	}

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	eff, err := merge(cwdAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigFile = cfgPath
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		Dir:           fc.Dir,
		APIKey:        strings.TrimSpace(fc.APIKey),
		CX:            strings.TrimSpace(fc.CX),
		Suffix:        fc.Suffix,
		Exclude:       append([]string(nil), fc.Exclude...),
		Skip:          fc.Skip,
		Take:          fc.Take,
		MaxImages:     fc.MaxImages,
		ImageDelay:    fc.ImageDelay,
		RecordDelay:   fc.RecordDelay,
		DocumentDelay: fc.DocumentDelay,
		SearchTimeout: fc.SearchTimeout,
		ScrapeTimeout: fc.ScrapeTimeout,
		ImageTimeout:  fc.ImageTimeout,
		ProxyURL:      strings.TrimSpace(fc.Proxy.URL),
		CSEBaseURL:    strings.TrimSpace(fc.CSEBaseURL),
		BingBaseURL:   strings.TrimSpace(fc.BingBaseURL),
		Browser:       fc.Browser,
		LogLevel:      strings.ToLower(strings.TrimSpace(fc.LogLevel)),
		LogFormat:     strings.ToLower(strings.TrimSpace(fc.LogFormat)),
		MetricsFile:   strings.TrimSpace(fc.MetricsFile),
		ReportFile:    strings.TrimSpace(fc.ReportFile),
	}
	providers := fc.Providers

	if strings.TrimSpace(cli.Dir) != "" {
		eff.Dir = cli.Dir
	}
	if cli.MaxImagesSet {
		eff.MaxImages = cli.MaxImages
	}
	if cli.SkipSet {
		eff.Skip = cli.Skip
	}
	if cli.TakeSet {
		eff.Take = cli.Take
	}
	if cli.ProvidersSet {
		providers = cli.Providers
	}
	if cli.BrowserSet {
		eff.Browser = cli.Browser
	}
	if cli.LogLevelSet {
		eff.LogLevel = strings.ToLower(strings.TrimSpace(cli.LogLevel))
	}

	if strings.TrimSpace(eff.Dir) == "" {
		eff.Dir = "."
	}
	eff.Dir = absCleanFrom(cwdAbs, eff.Dir)
	if eff.MetricsFile != "" {
		eff.MetricsFile = absCleanFrom(cwdAbs, eff.MetricsFile)
	}
	if eff.ReportFile != "" {
		eff.ReportFile = absCleanFrom(cwdAbs, eff.ReportFile)
	}

	if eff.Suffix == "" {
		return EffectiveConfig{}, errors.New("suffix 不能为空")
	}
	if eff.MaxImages < 1 {
		return EffectiveConfig{}, fmt.Errorf("max_images 必须 >= 1，实际 %d", eff.MaxImages)
	}
	if eff.Skip < 0 || eff.Take < 0 {
		return EffectiveConfig{}, fmt.Errorf("skip/take 不能为负数（skip=%d take=%d）", eff.Skip, eff.Take)
	}
	for name, d := range map[string]time.Duration{
		"image_delay":    eff.ImageDelay,
		"record_delay":   eff.RecordDelay,
		"document_delay": eff.DocumentDelay,
	} {
		if d < 0 {
			return EffectiveConfig{}, fmt.Errorf("%s 不能为负数：%v", name, d)
		}
	}
	for name, d := range map[string]time.Duration{
		"search_timeout": eff.SearchTimeout,
		"scrape_timeout": eff.ScrapeTimeout,
		"image_timeout":  eff.ImageTimeout,
	} {
		if d <= 0 {
			return EffectiveConfig{}, fmt.Errorf("%s 必须 > 0：%v", name, d)
		}
	}

	if eff.ProxyURL != "" {
		u, err := url.Parse(eff.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%q", eff.ProxyURL)
		}
	}
	for name, s := range map[string]string{"cse_base_url": eff.CSEBaseURL, "bing_base_url": eff.BingBaseURL} {
		if err := validateHTTPURL(s); err != nil {
			return EffectiveConfig{}, fmt.Errorf("%s %w", name, err)
		}
	}

	if _, err := zapcore.ParseLevel(eff.LogLevel); err != nil {
		return EffectiveConfig{}, fmt.Errorf("log_level 无效：%q", eff.LogLevel)
	}
	switch eff.LogFormat {
	case "console", "json":
	default:
		return EffectiveConfig{}, fmt.Errorf("log_format 只能是 console 或 json，实际是 %q", eff.LogFormat)
	}

	chain, warnings, err := resolveProviders(providers, eff.APIKey != "" && eff.CX != "")
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.Providers = chain
	eff.Warnings = warnings
	return eff, nil
}

// resolveProviders 规范化发现顺序。
//
// - 未配置：使用默认顺序；缺少 api_key/cx 时去掉 cse 并给出警告
// - 显式配置：名称必须已知且不重复；显式包含 cse 却缺少凭据视为配置错误
func resolveProviders(in []string, haveCredentials bool) ([]string, []string, error) {
	var out []string
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		if haveCredentials {
			return append([]string(nil), DefaultProviders...), nil, nil
		}
		var chain []string
		for _, p := range DefaultProviders {
			if p != ProviderCSE {
				chain = append(chain, p)
			}
		}
		return chain, []string{"未配置 api_key/cx：跳过 cse，仅使用 bing"}, nil
	}

	seen := make(map[string]struct{}, len(out))
	for _, p := range out {
		switch p {
		case ProviderCSE, ProviderBing:
		default:
			return nil, nil, fmt.Errorf("未知 provider：%q（只支持 cse|bing）", p)
		}
		if _, ok := seen[p]; ok {
			return nil, nil, fmt.Errorf("重复的 provider：%q", p)
		}
		seen[p] = struct{}{}
	}
	if _, ok := seen[ProviderCSE]; ok && !haveCredentials {
		return nil, nil, errors.New("providers 包含 cse，但 api_key 或 cx 为空")
	}
	return out, nil, nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("无效：%q", s)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", s)
	}
	return nil
}

func optionalFile(path string) string {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return ""
	}
	return path
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
