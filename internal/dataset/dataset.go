package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"brandtrend/internal/matrix"
)

var (
	// ErrNotFound 宽表文件不存在
	ErrNotFound = errors.New("dataset file not found")
	// ErrExistingFileUnreadable 已有文件无法解析为宽表
	ErrExistingFileUnreadable = errors.New("existing dataset file unreadable")
	// ErrBusy 已有写入在进行（单写者）
	ErrBusy = errors.New("dataset is being updated by another run")
)

// Options 宽表文件参数
type Options struct {
	Path        string
	Sheet       string // 为空时读取第一个工作表，写入 Sheet1
	BrandHeader string // 首列表头，默认 "品牌"
}

// Handle 宽表文件的资源句柄
// 读取整文件一次得到一致快照；写入通过临时文件 + rename 原子替换；同一时刻只允许一个写者。
type Handle struct {
	opts Options

	writer sync.Mutex   // 单写者
	swap   sync.RWMutex // 读者与文件替换互斥
}

// Info 文件元信息
type Info struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Open 创建句柄，确保目录存在；文件本身可以尚不存在
func Open(opts Options) (*Handle, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("dataset path is required")
	}
	if ext := strings.ToLower(filepath.Ext(opts.Path)); ext != ".xlsx" {
		return nil, fmt.Errorf("dataset path must be .xlsx, got %q", ext)
	}
	if opts.BrandHeader == "" {
		opts.BrandHeader = DefaultBrandHeader
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Handle{opts: opts}, nil
}

// Path 文件路径
func (h *Handle) Path() string {
	return h.opts.Path
}

// Stat 获取文件元信息
func (h *Handle) Stat() (Info, error) {
	h.swap.RLock()
	defer h.swap.RUnlock()

	info := Info{Path: h.opts.Path}
	st, err := os.Stat(h.opts.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, err
	}
	info.Exists = true
	info.Size = st.Size()
	info.ModTime = st.ModTime()
	return info, nil
}

// readFile 读取宽表文件，测试中可替换以模拟 I/O 错误
var readFile = os.ReadFile

// Load 读取整个宽表
// 文件不存在返回 ErrNotFound；内容无法解析返回包装了 ErrExistingFileUnreadable 的错误；
// 其他读取失败原样包装返回
func (h *Handle) Load() (*matrix.Matrix, error) {
	h.swap.RLock()
	data, err := readFile(h.opts.Path)
	h.swap.RUnlock()

	return h.decode(data, err)
}

func (h *Handle) decode(data []byte, readErr error) (*matrix.Matrix, error) {
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return nil, ErrNotFound
		}
		// 读取失败不属于不可读，调用方不得据此覆盖文件
		return nil, fmt.Errorf("failed to read dataset file: %w", readErr)
	}

	m, stats, err := Decode(bytes.NewReader(data), h.opts.Sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExistingFileUnreadable, err)
	}
	logDecodeStats(h.opts.Path, stats)
	return m, nil
}

// UpdateFunc 基于旧宽表计算新宽表
// old 为 nil 时 loadErr 说明原因（ErrNotFound、ErrExistingFileUnreadable 或读取错误）。
// 返回 nil 宽表表示不写入。
type UpdateFunc func(old *matrix.Matrix, loadErr error) (*matrix.Matrix, error)

// Update 单写者的读-改-写；已有写者时立即返回 ErrBusy
func (h *Handle) Update(ctx context.Context, fn UpdateFunc) error {
	if !h.writer.TryLock() {
		return ErrBusy
	}
	defer h.writer.Unlock()

	// 持有写锁期间文件只会被本写者替换，读取不需要 swap 锁
	data, readErr := readFile(h.opts.Path)
	old, loadErr := h.decode(data, readErr)

	next, err := fn(old, loadErr)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.replace(next)
}

// Replace 直接覆盖写入宽表（单写者）
func (h *Handle) Replace(m *matrix.Matrix) error {
	if !h.writer.TryLock() {
		return ErrBusy
	}
	defer h.writer.Unlock()
	return h.replace(m)
}

// replace 写临时文件后 rename，保证崩溃时旧文件完好
func (h *Handle) replace(m *matrix.Matrix) error {
	dir := filepath.Dir(h.opts.Path)
	tmp, err := os.CreateTemp(dir, ".brandtrend-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := Encode(tmp, m, h.opts.Sheet, h.opts.BrandHeader); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	h.swap.Lock()
	err = os.Rename(tmpPath, h.opts.Path)
	h.swap.Unlock()
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to replace dataset file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"path":    h.opts.Path,
		"brands":  m.NumBrands(),
		"columns": m.NumColumns(),
	}).Debug("宽表已保存")
	return nil
}

// CopyTo 将当前文件原样写出（导出下载）
func (h *Handle) CopyTo(w io.Writer) error {
	h.swap.RLock()
	defer h.swap.RUnlock()

	f, err := os.Open(h.opts.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
