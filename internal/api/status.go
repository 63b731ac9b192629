package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brandtrend/internal/dataset"
	"brandtrend/internal/store"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Initialized bool             `json:"initialized"` // 宽表文件是否存在且可读
	File        dataset.Info     `json:"file"`
	Brands      int              `json:"brands"`
	Columns     int              `json:"columns"`
	Malformed   int              `json:"malformed"` // 无法解析为年月的列
	Cells       int              `json:"cells"`
	Ingesting   bool             `json:"ingesting"`
	LastRun     *store.IngestRun `json:"lastRun,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	resp := StatusResponse{Ingesting: h.ingesting.Load()}

	info, err := h.dataset.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp.File = info

	if info.Exists {
		m, err := h.loadMatrix()
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Initialized = true
			resp.Brands = m.NumBrands()
			resp.Columns = m.NumColumns()
			resp.Malformed = len(m.MalformedColumns())
			resp.Cells = m.CellCount()
		}
	}

	if h.store != nil {
		if run, err := h.store.LastRun(); err == nil {
			resp.LastRun = run
		}
	}

	c.JSON(http.StatusOK, resp)
}
