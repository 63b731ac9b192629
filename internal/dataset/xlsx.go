package dataset

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"brandtrend/internal/matrix"
)

const (
	// DefaultBrandHeader 首列表头
	DefaultBrandHeader = "品牌"
	defaultSheet       = "Sheet1"
)

// DecodeStats 读取宽表时的容错统计
type DecodeStats struct {
	MalformedCells int // 非数值单元格，按缺失处理
	BlankRows      int // 品牌为空的行，忽略
	OrphanCells    int // 没有表头的单元格，忽略
	BlankHeaders   int // 空表头，以 "Unnamed: N" 保留
	RenamedHeaders int // 规范化后重名的表头，保留原始列名
}

// Decode 从 xlsx 读取宽表
// sheet 为空时读取第一个工作表；表结构不合法时返回错误（由调用方包装为不可读）
func Decode(r io.Reader, sheet string) (*matrix.Matrix, DecodeStats, error) {
	var stats DecodeStats

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to open excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, stats, fmt.Errorf("workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, stats, fmt.Errorf("sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, stats, fmt.Errorf("sheet %q has no header row", sheet)
	}

	m := matrix.New()

	// 表头：首列为品牌，其余为年月列名
	header := rows[0]
	columns := make([]string, 0, len(header)-1)
	for i, raw := range header[1:] {
		key := headerKey(m, raw, i+1, &stats)
		if err := m.AddColumn(key); err != nil {
			return nil, stats, fmt.Errorf("header column %d: %w", i+2, err)
		}
		columns = append(columns, key)
	}

	for rowNo, row := range rows[1:] {
		brand := ""
		if len(row) > 0 {
			brand = strings.TrimSpace(row[0])
		}
		if brand == "" {
			stats.BlankRows++
			continue
		}
		if err := m.AddBrand(brand); err != nil {
			return nil, stats, fmt.Errorf("row %d: %w", rowNo+2, err)
		}

		for j, raw := range row[1:] {
			if j >= len(columns) {
				if strings.TrimSpace(raw) != "" {
					stats.OrphanCells++
				}
				continue
			}
			v, ok, valid := parseNumber(raw)
			if !valid {
				stats.MalformedCells++
				continue
			}
			if ok {
				_ = m.Set(brand, columns[j], &v)
			}
		}
	}

	return m, stats, nil
}

// headerKey 为表头单元格选取唯一列名
// 空表头记为 "Unnamed: N"（N 为从 0 开始的列号）；规范化后与已有列重名时退回原始文本，
// 仍冲突则追加 ".1"、".2" 后缀。列只会被改名，不会被丢弃。
func headerKey(m *matrix.Matrix, raw string, pos int, stats *DecodeStats) string {
	key := matrix.CanonicalKey(raw)
	if key == "" {
		key = fmt.Sprintf("Unnamed: %d", pos)
		stats.BlankHeaders++
	}
	if !m.HasColumn(key) {
		return key
	}

	stats.RenamedHeaders++
	if trimmed := strings.TrimSpace(raw); trimmed != "" && !m.HasColumn(trimmed) {
		return trimmed
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.%d", key, n)
		if !m.HasColumn(candidate) {
			return candidate
		}
	}
}

// parseNumber 解析单元格数值；空串视为缺失
func parseNumber(raw string) (v float64, ok bool, valid bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false, true
	}
	// 移除千分位分隔符
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, false
	}
	return f, true, true
}

// Encode 将宽表写为 xlsx
func Encode(w io.Writer, m *matrix.Matrix, sheet, brandHeader string) error {
	if sheet == "" {
		sheet = defaultSheet
	}
	if brandHeader == "" {
		brandHeader = DefaultBrandHeader
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	}

	columns := m.Columns()

	// 表头
	if err := f.SetCellStr(sheet, "A1", brandHeader); err != nil {
		return err
	}
	for j, c := range columns {
		cell, err := excelize.CoordinatesToCellName(j+2, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, c); err != nil {
			return err
		}
	}

	// 设置表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, headerStyle)
	}

	// 写入数据，缺失单元格留空
	for i, b := range m.Brands() {
		row := i + 2
		if err := f.SetCellStr(sheet, fmt.Sprintf("A%d", row), b); err != nil {
			return err
		}
		for j, c := range columns {
			v, ok := m.Lookup(b, c)
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+2, row)
			if err != nil {
				return err
			}
			if err := f.SetCellFloat(sheet, cell, v, -1, 64); err != nil {
				return err
			}
		}
	}

	// 设置列宽
	_ = f.SetColWidth(sheet, "A", "A", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write excel: %w", err)
	}
	return nil
}

func logDecodeStats(path string, stats DecodeStats) {
	if stats == (DecodeStats{}) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"path":            path,
		"malformed_cells": stats.MalformedCells,
		"blank_rows":      stats.BlankRows,
		"orphan_cells":    stats.OrphanCells,
		"blank_headers":   stats.BlankHeaders,
		"renamed_headers": stats.RenamedHeaders,
	}).Warn("宽表存在无法识别的内容，已按缺失处理")
}
