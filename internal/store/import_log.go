package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// 运行状态
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusDryRun    = "dry_run"
)

// ErrRunNotFound 运行记录不存在
var ErrRunNotFound = errors.New("ingest run not found")

// IngestRun 一次采集运行的记录
type IngestRun struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	DryRun         bool       `json:"dryRun"`
	Requested      int        `json:"requested"`
	Succeeded      int        `json:"succeeded"`
	Failed         int        `json:"failed"`
	FailedPeriods  []string   `json:"failedPeriods"`
	NewColumns     int        `json:"newColumns"`
	NewBrands      int        `json:"newBrands"`
	TotalBrands    int        `json:"totalBrands"`
	TotalColumns   int        `json:"totalColumns"`
	PriorDiscarded bool       `json:"priorDiscarded"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// RunResult 运行结束时写入的统计
type RunResult struct {
	Status         string
	Succeeded      int
	Failed         int
	FailedPeriods  []string
	NewColumns     int
	NewBrands      int
	TotalBrands    int
	TotalColumns   int
	PriorDiscarded bool
	ErrorMessage   string
}

// CreateRun 创建运行记录
func (s *Store) CreateRun(id string, requested int, dryRun bool) error {
	_, err := s.db.Exec(`
		INSERT INTO ingest_runs (id, status, dry_run, requested, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, RunStatusRunning, dryRun, requested, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create ingest run: %w", err)
	}
	return nil
}

// FinishRun 完成运行记录更新
func (s *Store) FinishRun(id string, r RunResult) error {
	res, err := s.db.Exec(`
		UPDATE ingest_runs SET
			status = ?,
			succeeded = ?,
			failed = ?,
			failed_periods = ?,
			new_columns = ?,
			new_brands = ?,
			total_brands = ?,
			total_columns = ?,
			prior_discarded = ?,
			error_message = ?,
			completed_at = ?
		WHERE id = ?
	`, r.Status, r.Succeeded, r.Failed, strings.Join(r.FailedPeriods, ","), r.NewColumns, r.NewBrands,
		r.TotalBrands, r.TotalColumns, r.PriorDiscarded, r.ErrorMessage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update ingest run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `id, status, dry_run, requested, succeeded, failed, failed_periods, new_columns, new_brands,
	total_brands, total_columns, prior_discarded, error_message, started_at, completed_at`

// GetRun 查询单次运行
func (s *Store) GetRun(id string) (*IngestRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM ingest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns 最近的运行记录（按创建顺序倒序）
func (s *Store) ListRuns(limit int) ([]IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM ingest_runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingest runs failed: %w", err)
	}
	defer rows.Close()

	out := []IngestRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ingest run failed: %w", err)
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest runs failed: %w", err)
	}
	return out, nil
}

// LastRun 最近一次运行；没有记录时返回 nil
func (s *Store) LastRun() (*IngestRun, error) {
	runs, err := s.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*IngestRun, error) {
	var (
		run       IngestRun
		failed    string
		completed sql.NullTime
	)
	err := sc.Scan(&run.ID, &run.Status, &run.DryRun, &run.Requested, &run.Succeeded, &run.Failed, &failed,
		&run.NewColumns, &run.NewBrands, &run.TotalBrands, &run.TotalColumns, &run.PriorDiscarded,
		&run.ErrorMessage, &run.StartedAt, &completed)
	if err != nil {
		return nil, err
	}
	run.FailedPeriods = []string{}
	if failed != "" {
		run.FailedPeriods = strings.Split(failed, ",")
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return &run, nil
}
