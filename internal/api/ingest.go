package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"brandtrend/internal/importer"
	"brandtrend/internal/model"
	"brandtrend/internal/store"
)

// IngestRequest 采集请求；from/to 为空时使用配置的采集范围
type IngestRequest struct {
	From   string `json:"from"` // 如 "2025-1"
	To     string `json:"to"`
	DryRun bool   `json:"dryRun"`
}

// Ingest 抓取并合并月度数据 (SSE 流式响应)
// POST /api/ingest
func (h *Handler) Ingest(c *gin.Context) {
	if h.importer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "未配置数据源"})
		return
	}

	var req IngestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误"})
			return
		}
	}

	periods, err := h.ingestPeriods(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.ingesting.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "已有采集任务在运行"})
		return
	}
	defer h.ingesting.Store(false)

	// 流式发送进度事件
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "不支持流式响应"})
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	progressChan := h.importer.Import(c.Request.Context(), importer.ImportOptions{
		Periods: periods,
		DryRun:  req.DryRun,
	})

	for event := range progressChan {
		// 序列化事件为 JSON
		eventData, err := json.Marshal(event)
		if err != nil {
			continue
		}

		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

func (h *Handler) ingestPeriods(req IngestRequest) ([]model.Period, error) {
	var rng model.PeriodRange
	if h.defaultRange != nil && (req.From == "" || req.To == "") {
		def, err := h.defaultRange()
		if err != nil {
			return nil, err
		}
		rng = def
	}
	if req.From != "" {
		p, err := model.ParsePeriod(req.From)
		if err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		rng.Start = p
	}
	if req.To != "" {
		p, err := model.ParsePeriod(req.To)
		if err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
		rng.End = p
	}
	if !rng.Start.Valid() || !rng.End.Valid() {
		return nil, errors.New("ingest range is required")
	}
	return rng.Periods()
}

// ListRuns 最近的采集运行记录
// GET /api/ingest/runs?limit=20
func (h *Handler) ListRuns(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"items": []store.IngestRun{}})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit 必须为正整数"})
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// GetRun 单次运行记录
// GET /api/ingest/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行记录不存在"})
		return
	}

	run, err := h.store.GetRun(c.Param("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行记录不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}
