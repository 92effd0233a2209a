package main

import (
	"go.uber.org/zap"

	"github.com/John-Robertt/imginject/internal/app/run"
	"github.com/John-Robertt/imginject/internal/config"
	"github.com/John-Robertt/imginject/internal/infra/httpx"
	"github.com/John-Robertt/imginject/internal/infra/metrics"
	"github.com/John-Robertt/imginject/internal/provider"
	"github.com/John-Robertt/imginject/internal/provider/bing"
	"github.com/John-Robertt/imginject/internal/provider/cse"
)

// buildDeps 按生效配置组装 HTTP client 与图片来源。
//
// 三类请求各用一个 client：超时不同，结果页抓取还带浏览器请求头。
func buildDeps(eff config.EffectiveConfig, logger *zap.Logger, m *metrics.Metrics) (run.Deps, error) {
	searchClient, err := httpx.NewClient(httpx.Options{ProxyURL: eff.ProxyURL, Timeout: eff.SearchTimeout})
	if err != nil {
		return run.Deps{}, err
	}
	scrapeClient, err := httpx.NewClient(httpx.Options{ProxyURL: eff.ProxyURL, Timeout: eff.ScrapeTimeout, Header: httpx.BrowserHeader()})
	if err != nil {
		return run.Deps{}, err
	}
	imageClient, err := httpx.NewClient(httpx.Options{ProxyURL: eff.ProxyURL, Timeout: eff.ImageTimeout})
	if err != nil {
		return run.Deps{}, err
	}

	var fetcher bing.PageFetcher = bing.HTTPFetcher{Client: scrapeClient}
	if eff.Browser {
		fetcher = bing.BrowserFetcher{ProxyURL: eff.ProxyURL, Timeout: eff.ScrapeTimeout}
	}

	providers := []provider.Provider{
		bing.Provider{Fetcher: fetcher, BaseURL: eff.BingBaseURL, Logger: logger.Named("bing")},
	}
	// 缺少凭据时 cse 已在配置阶段从顺序中去掉；这里不注册即可。
	if eff.APIKey != "" && eff.CX != "" {
		providers = append(providers, cse.Provider{
			Client: cse.Client{HTTP: searchClient, BaseURL: eff.CSEBaseURL, APIKey: eff.APIKey, CX: eff.CX},
			Logger: logger.Named("cse"),
		})
	}
	reg, err := provider.NewRegistry(providers...)
	if err != nil {
		return run.Deps{}, err
	}

	return run.Deps{
		Registry:    reg,
		ImageClient: imageClient,
		Logger:      logger,
		Metrics:     m,
	}, nil
}
