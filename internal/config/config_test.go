package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Dir != cwd {
		t.Fatalf("期望 dir=%q，实际=%q", cwd, eff.Dir)
	}
	if eff.ConfigFile != "" {
		t.Fatalf("未提供配置文件时 ConfigFile 应为空：%q", eff.ConfigFile)
	}
	if eff.Suffix != "_en.json" || !reflect.DeepEqual(eff.Exclude, []string{"1_with_images.json"}) {
		t.Fatalf("文件选择默认值不一致：suffix=%q exclude=%v", eff.Suffix, eff.Exclude)
	}
	if eff.Skip != 1 || eff.Take != 99 || eff.MaxImages != 3 {
		t.Fatalf("数量默认值不一致：skip=%d take=%d max=%d", eff.Skip, eff.Take, eff.MaxImages)
	}
	if eff.ImageDelay != 500*time.Millisecond || eff.RecordDelay != time.Second || eff.DocumentDelay != 2*time.Second {
		t.Fatalf("节奏默认值不一致：%v %v %v", eff.ImageDelay, eff.RecordDelay, eff.DocumentDelay)
	}
	if eff.SearchTimeout != 10*time.Second || eff.ScrapeTimeout != 15*time.Second || eff.ImageTimeout != 10*time.Second {
		t.Fatalf("超时默认值不一致")
	}
	// 没有凭据：默认只剩 bing，并给出警告。
	if !reflect.DeepEqual(eff.Providers, []string{"bing"}) {
		t.Fatalf("期望 providers=[bing]，实际 %v", eff.Providers)
	}
	if len(eff.Warnings) != 1 {
		t.Fatalf("期望 1 条警告，实际 %v", eff.Warnings)
	}
}

func TestLoadEffective_ConfigFileInCWD(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, DefaultFileName), []byte(`{
	  "dir": "data",
	  "api_key": "k",
	  "cx": "c",
	  "max_images": 5,
	  "image_delay": "0s",
	  "document_delay": "250ms",
	  "proxy": {"url": "http://127.0.0.1:7890"},
	  "report_file": "out/report.json"
	}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Dir != filepath.Join(cwd, "data") {
		t.Fatalf("dir 不一致：%q", eff.Dir)
	}
	if eff.ConfigFile != filepath.Join(cwd, DefaultFileName) {
		t.Fatalf("ConfigFile 不一致：%q", eff.ConfigFile)
	}
	if !reflect.DeepEqual(eff.Providers, []string{"cse", "bing"}) || len(eff.Warnings) != 0 {
		t.Fatalf("有凭据时应使用默认顺序：%v %v", eff.Providers, eff.Warnings)
	}
	if eff.MaxImages != 5 || eff.ImageDelay != 0 || eff.DocumentDelay != 250*time.Millisecond {
		t.Fatalf("配置文件值未生效：%+v", eff)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" {
		t.Fatalf("proxy.url 不一致：%q", eff.ProxyURL)
	}
	if eff.ReportFile != filepath.Join(cwd, "out", "report.json") {
		t.Fatalf("report_file 应相对 cwd 解析：%q", eff.ReportFile)
	}
}

func TestLoadEffective_ConfigInDirWhenCLIDirGiven(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "docs", DefaultFileName), []byte(`{"take": 7}`))

	eff, err := LoadEffective(cwd, CLIArgs{Dir: "docs"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Take != 7 || eff.Dir != filepath.Join(cwd, "docs") {
		t.Fatalf("应读取 <dir>/%s：take=%d dir=%q", DefaultFileName, eff.Take, eff.Dir)
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigFile: "nope.json"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_InvalidJSON(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, DefaultFileName), []byte(`{"skip": `))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_CLIOverridesEnvOverridesFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, DefaultFileName), []byte(`{"max_images": 5, "skip": 3, "browser": true}`))
	t.Setenv("IMGINJECT_MAX_IMAGES", "4")
	t.Setenv("IMGINJECT_SKIP", "2")

	eff, err := LoadEffective(cwd, CLIArgs{Skip: 0, SkipSet: true, Browser: false, BrowserSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MaxImages != 4 {
		t.Fatalf("环境变量应覆盖配置文件：max_images=%d", eff.MaxImages)
	}
	if eff.Skip != 0 {
		t.Fatalf("CLI --skip=0 应覆盖环境变量：skip=%d", eff.Skip)
	}
	if eff.Browser {
		t.Fatalf("CLI --browser=false 应覆盖配置文件")
	}
}

func TestLoadEffective_EnvNestedAndList(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("IMGINJECT_PROXY_URL", "socks5://127.0.0.1:1080")
	t.Setenv("IMGINJECT_PROVIDERS", "bing")

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ProxyURL != "socks5://127.0.0.1:1080" {
		t.Fatalf("proxy.url 应来自环境变量：%q", eff.ProxyURL)
	}
	if !reflect.DeepEqual(eff.Providers, []string{"bing"}) || len(eff.Warnings) != 0 {
		t.Fatalf("显式 providers 不应产生警告：%v %v", eff.Providers, eff.Warnings)
	}
}

func TestLoadEffective_ProviderRules(t *testing.T) {
	cases := []struct {
		name      string
		providers []string
		apiKey    string
		wantErr   string
		want      []string
	}{
		{name: "unknown", providers: []string{"google"}, wantErr: "未知 provider"},
		{name: "duplicate", providers: []string{"bing", "BING"}, wantErr: "重复"},
		{name: "cse-without-credentials", providers: []string{"cse"}, wantErr: "api_key"},
		{name: "bing-first", providers: []string{"bing", "cse"}, apiKey: "k", want: []string{"bing", "cse"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cwd := t.TempDir()
			if tc.apiKey != "" {
				writeFile(t, filepath.Join(cwd, DefaultFileName), []byte(`{"api_key":"`+tc.apiKey+`","cx":"c"}`))
			}
			eff, err := LoadEffective(cwd, CLIArgs{Providers: tc.providers, ProvidersSet: true})
			if tc.wantErr != "" {
				if Code(err) != ErrCodeInvalid || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("期望包含 %q 的 config_invalid，实际 %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			if !reflect.DeepEqual(eff.Providers, tc.want) {
				t.Fatalf("providers 不一致：%v", eff.Providers)
			}
		})
	}
}

func TestLoadEffective_InvalidValues(t *testing.T) {
	bodies := []string{
		`{"max_images": 0}`,
		`{"take": -1}`,
		`{"record_delay": "-1s"}`,
		`{"image_timeout": "0s"}`,
		`{"proxy": {"url": "127.0.0.1:8080"}}`,
		`{"bing_base_url": "ftp://example.com"}`,
		`{"log_format": "xml"}`,
		`{"log_level": "loud"}`,
		`{"suffix": ""}`,
	}
	for _, body := range bodies {
		cwd := t.TempDir()
		writeFile(t, filepath.Join(cwd, DefaultFileName), []byte(body))
		if _, err := LoadEffective(cwd, CLIArgs{}); Code(err) != ErrCodeInvalid {
			t.Fatalf("%s：期望 config_invalid，实际 %v", body, err)
		}
	}
}
