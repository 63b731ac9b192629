package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"brandtrend/internal/config"
	"brandtrend/internal/dataset"
	"brandtrend/internal/fetcher"
	"brandtrend/internal/importer"
	"brandtrend/internal/logging"
	"brandtrend/internal/metrics"
	"brandtrend/internal/store"
)

// app 各子命令共用的运行时依赖
type app struct {
	cfg     *config.AppConfig
	info    config.LoadConfigInfo
	dataDir string
	dataset *dataset.Handle
	store   *store.Store
	metrics *metrics.Metrics
}

func loadApp(opts *rootOptions) (*app, error) {
	cfg, info, err := config.LoadConfigWithInfo(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 命令行参数覆盖配置
	if opts.dataDir != "" {
		cfg.Data.DataDir = opts.dataDir
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := logging.Setup(cfg.Log, nil); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	// 确保数据目录存在
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	ds, err := dataset.Open(dataset.Options{
		Path:        config.MatrixPath(dataDir, cfg),
		Sheet:       cfg.Data.Sheet,
		BrandHeader: cfg.Data.BrandHeader,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.New(config.RunLogPath(dataDir, cfg))
	if err != nil {
		return nil, fmt.Errorf("初始化运行记录失败: %w", err)
	}

	if info.Path != "" {
		logrus.WithField("path", info.Path).Debug("已加载配置文件")
	}

	return &app{
		cfg:     cfg,
		info:    info,
		dataDir: dataDir,
		dataset: ds,
		store:   st,
		metrics: metrics.New(),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logrus.WithError(err).Warn("关闭运行记录失败")
	}
}

// errNoSource 未配置数据源地址
var errNoSource = errors.New("fetch.url_template 未配置，无法采集")

// coordinator 按配置创建 HTTP 数据源与采集协调器
func (a *app) coordinator() (*importer.Coordinator, error) {
	if a.cfg.Fetch.URLTemplate == "" {
		return nil, errNoSource
	}

	src, err := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		URLTemplate: a.cfg.Fetch.URLTemplate,
		Symbol:      a.cfg.Fetch.Symbol,
		RecordsPath: a.cfg.Fetch.RecordsPath,
		BrandField:  a.cfg.Fetch.BrandField,
		SalesField:  a.cfg.Fetch.SalesField,
		Headers:     a.cfg.Fetch.Headers,
		Timeout:     a.cfg.Fetch.Timeout(),
		MaxRetries:  a.cfg.Fetch.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	return importer.NewCoordinator(a.dataset, src,
		importer.WithRunLog(a.store),
		importer.WithMetrics(a.metrics),
		importer.WithConcurrency(a.cfg.Ingest.Concurrency),
	), nil
}
