package api

import (
	"errors"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"brandtrend/internal/dataset"
	"brandtrend/internal/importer"
	"brandtrend/internal/matrix"
	"brandtrend/internal/metrics"
	"brandtrend/internal/model"
	"brandtrend/internal/store"
)

// Defaults 未保存偏好时使用的查询默认值（来自配置文件）
type Defaults struct {
	Brands      []string
	Granularity model.Granularity
}

// RangeFunc 未指定采集范围时使用的默认范围
type RangeFunc func() (model.PeriodRange, error)

// Deps 处理器依赖
type Deps struct {
	Dataset      *dataset.Handle
	Store        *store.Store
	Importer     *importer.Coordinator
	Metrics      *metrics.Metrics
	Defaults     Defaults
	DefaultRange RangeFunc
}

// Handler API 处理器
type Handler struct {
	dataset      *dataset.Handle
	store        *store.Store
	importer     *importer.Coordinator
	metrics      *metrics.Metrics
	defaults     Defaults
	defaultRange RangeFunc

	ingesting atomic.Bool
}

// NewHandler 创建 API 处理器
func NewHandler(deps Deps) *Handler {
	if deps.Defaults.Granularity == "" {
		deps.Defaults.Granularity = model.Monthly
	}
	return &Handler{
		dataset:      deps.Dataset,
		store:        deps.Store,
		importer:     deps.Importer,
		metrics:      deps.Metrics,
		defaults:     deps.Defaults,
		defaultRange: deps.DefaultRange,
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 查询
	router.GET("/brands", h.ListBrands)
	router.GET("/periods", h.ListPeriods)
	router.GET("/trend", h.GetTrend)

	// 偏好配置
	router.GET("/config", h.GetConfig)
	router.PATCH("/config", h.UpdateConfig)

	// 数据采集
	router.POST("/ingest", h.Ingest)
	router.GET("/ingest/runs", h.ListRuns)
	router.GET("/ingest/runs/:id", h.GetRun)

	// 数据导出
	router.GET("/export", h.Export)
}

// loadMatrix 读取宽表快照；文件尚不存在时返回空表
func (h *Handler) loadMatrix() (*matrix.Matrix, error) {
	m, err := h.dataset.Load()
	if errors.Is(err, dataset.ErrNotFound) {
		return matrix.New(), nil
	}
	if err != nil {
		logrus.WithError(err).Warn("读取宽表失败")
		return nil, err
	}
	h.metrics.SetDataset(m.NumBrands(), m.NumColumns())
	return m, nil
}
