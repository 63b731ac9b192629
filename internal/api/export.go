package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"brandtrend/internal/dataset"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export 下载当前宽表文件
// GET /api/export
func (h *Handler) Export(c *gin.Context) {
	info, err := h.dataset.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !info.Exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚无数据，请先采集"})
		return
	}

	filename := filepath.Base(info.Path)
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	c.Status(http.StatusOK)

	if err := h.dataset.CopyTo(c.Writer); err != nil {
		// 文件在 Stat 之后被删除
		if errors.Is(err, dataset.ErrNotFound) && !c.Writer.Written() {
			c.JSON(http.StatusNotFound, gin.H{"error": "尚无数据，请先采集"})
			return
		}
		logrus.WithError(err).Warn("导出宽表失败")
	}
}
