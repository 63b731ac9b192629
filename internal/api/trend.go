package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"brandtrend/internal/matrix"
	"brandtrend/internal/model"
	"brandtrend/internal/trend"
)

// ListBrands 品牌下拉选项
// GET /api/brands
func (h *Handler) ListBrands(c *gin.Context) {
	m, err := h.loadMatrix()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    trend.Brands(m),
		"defaults": h.defaultBrands(),
	})
}

type periodsResponse struct {
	Periods   []matrix.Column `json:"periods"`
	Malformed []string        `json:"malformed"`
	Years     []int           `json:"years"`
}

// ListPeriods 宽表的列：有效年月、无法解析的列、年份
// GET /api/periods
func (h *Handler) ListPeriods(c *gin.Context) {
	m, err := h.loadMatrix()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := periodsResponse{
		Periods:   m.ValidColumns(),
		Malformed: m.MalformedColumns(),
		Years:     trend.Years(m),
	}
	if resp.Malformed == nil {
		resp.Malformed = []string{}
	}
	if resp.Years == nil {
		resp.Years = []int{}
	}
	c.JSON(http.StatusOK, resp)
}

// TrendPoint 图表上的一个点
type TrendPoint struct {
	Date  string   `json:"date"` // 按月为当月第一天，按年为年份
	Year  int      `json:"year"`
	Sales *float64 `json:"sales"` // null 表示未知
}

// TrendSeries 单个品牌的序列
type TrendSeries struct {
	Brand  string       `json:"brand"`
	Points []TrendPoint `json:"points"`
}

// TrendResponse 趋势查询响应
type TrendResponse struct {
	NoBrandSelected bool              `json:"noBrandSelected"`
	Granularity     model.Granularity `json:"granularity"`
	Range           *trend.Range      `json:"range,omitempty"`
	Axis            *trend.Axis       `json:"axis,omitempty"`
	Series          []TrendSeries     `json:"series"`
}

// GetTrend 趋势查询
// GET /api/trend?brand=A&brand=B&granularity=monthly&yearStart=2020&yearEnd=2025
//
// 未传 brand 参数时使用默认品牌；传了空值表示未选择品牌。
func (h *Handler) GetTrend(c *gin.Context) {
	start := time.Now()

	req, err := h.trendRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.loadMatrix()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	res, err := trend.Query(m, req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, trend.ErrInvalidQuery) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	resp := TrendResponse{
		NoBrandSelected: res.NoBrandSelected,
		Granularity:     res.Granularity,
		Series:          []TrendSeries{},
	}
	if res.HasRange {
		rng := res.Range
		resp.Range = &rng
	}
	if axis, ok := res.AxisRange(); ok {
		resp.Axis = &axis
	}
	for brand, rows := range res.Series() {
		s := TrendSeries{Brand: brand, Points: []TrendPoint{}}
		for row := range rows {
			s.Points = append(s.Points, TrendPoint{Date: row.Date(), Year: row.Year, Sales: row.Sales})
		}
		resp.Series = append(resp.Series, s)
	}

	h.metrics.ObserveQuery(string(res.Granularity), time.Since(start))
	logrus.WithFields(logrus.Fields{
		"brands":      len(resp.Series),
		"granularity": res.Granularity,
	}).Debug("趋势查询完成")

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) trendRequest(c *gin.Context) (trend.Request, error) {
	var req trend.Request

	brands, given := c.GetQueryArray("brand")
	if given {
		for _, b := range brands {
			// 兼容逗号分隔
			req.Brands = append(req.Brands, strings.Split(b, ",")...)
		}
	} else {
		req.Brands = h.defaultBrands()
	}

	g := c.Query("granularity")
	if g == "" {
		g = string(h.defaultGranularity())
	}
	granularity, err := model.ParseGranularity(g)
	if err != nil {
		return req, errors.Join(trend.ErrInvalidQuery, err)
	}
	req.Granularity = granularity

	if req.YearStart, err = trend.ParseYear(c.Query("yearStart")); err != nil {
		return req, err
	}
	if req.YearEnd, err = trend.ParseYear(c.Query("yearEnd")); err != nil {
		return req, err
	}
	return req, nil
}

// defaultBrands 已保存的偏好优先，其次配置文件
func (h *Handler) defaultBrands() []string {
	if h.store != nil {
		brands, ok, err := h.store.GetDefaultBrands()
		if err != nil {
			logrus.WithError(err).Warn("读取默认品牌失败")
		}
		if ok {
			return brands
		}
	}
	return append([]string(nil), h.defaults.Brands...)
}

func (h *Handler) defaultGranularity() model.Granularity {
	if h.store != nil {
		if v, err := h.store.GetDefaultGranularity(); err == nil && v != "" {
			if g, err := model.ParseGranularity(v); err == nil {
				return g
			}
		}
	}
	return h.defaults.Granularity
}
