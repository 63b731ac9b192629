package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"brandtrend/internal/model"
)

// ConfigResponse 查询偏好
type ConfigResponse struct {
	DefaultBrands      []string          `json:"defaultBrands"`
	DefaultGranularity model.Granularity `json:"defaultGranularity"`
}

// UpdateConfigRequest 更新偏好请求，未给出的字段保持不变
type UpdateConfigRequest struct {
	DefaultBrands      *[]string `json:"defaultBrands"`
	DefaultGranularity *string   `json:"defaultGranularity"`
}

// GetConfig 获取查询偏好
// GET /api/config
func (h *Handler) GetConfig(c *gin.Context) {
	brands := h.defaultBrands()
	if brands == nil {
		brands = []string{}
	}
	c.JSON(http.StatusOK, ConfigResponse{
		DefaultBrands:      brands,
		DefaultGranularity: h.defaultGranularity(),
	})
}

// UpdateConfig 更新查询偏好
// PATCH /api/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "偏好存储不可用"})
		return
	}

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误"})
		return
	}

	if req.DefaultGranularity != nil {
		g, err := model.ParseGranularity(*req.DefaultGranularity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := h.store.SetDefaultGranularity(string(g)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新配置失败: defaultGranularity"})
			return
		}
	}

	if req.DefaultBrands != nil {
		brands := make([]string, 0, len(*req.DefaultBrands))
		for _, b := range *req.DefaultBrands {
			if b = strings.TrimSpace(b); b != "" {
				brands = append(brands, b)
			}
		}
		if err := h.store.SetDefaultBrands(brands); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新配置失败: defaultBrands"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "配置更新成功"})
}
