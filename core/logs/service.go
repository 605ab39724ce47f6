// Package logs provides filtered, paginated read access to the
// append-only log tables, best-effort reads of the NDJSON log files on
// disk, compressed export artifacts and aggregate security statistics.
package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"oficri-sdt/config"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

const (
	defaultListLimit = 100
	maxFileLogLimit  = 1000
)

// Valid filesystem log categories, one NDJSON file each.
var fileCategories = map[string]bool{
	utils.LogFileApp:        true,
	utils.LogFileError:      true,
	utils.LogFileSecurity:   true,
	utils.LogFileExceptions: true,
	utils.LogFileRejections: true,
}

type Service struct {
	store      store.LogStore
	logsDir    string
	exportsDir string
	maxExport  int
	logger     *utils.Logger
}

func NewService(cfg *config.AppConfig, logStore store.LogStore, logger *utils.Logger) *Service {
	return &Service{
		store:      logStore,
		logsDir:    cfg.LogsDir,
		exportsDir: cfg.Exports.Dir,
		maxExport:  cfg.ExportMaxRows(),
		logger:     logger,
	}
}

type Filter struct {
	Table  store.LogTable
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type Pagination struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Pages  int64 `json:"pages"`
}

type ListResult struct {
	Rows       []store.LogRecord `json:"logs"`
	Pagination Pagination        `json:"pagination"`
}

// List returns one page of a log table, most recent first. The total is
// a second count query over the same predicate; pages is
// ceil(total/limit).
func (s *Service) List(ctx context.Context, f Filter) (*ListResult, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	rng := store.LogRange{From: f.From, To: f.To}
	rows, err := s.store.List(ctx, f.Table, rng, f.Limit, f.Offset)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	total, err := s.store.Count(ctx, f.Table, rng)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	return &ListResult{
		Rows: rows,
		Pagination: Pagination{
			Total:  total,
			Limit:  f.Limit,
			Offset: f.Offset,
			Pages:  pageCount(total, f.Limit),
		},
	}, nil
}

func pageCount(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

type FileLogResult struct {
	Rows       []map[string]any `json:"logs"`
	Pagination Pagination       `json:"pagination"`
}

// FileLogs reads one NDJSON log file. The whole file is read, then
// offset/limit are applied to the line slice; the limit is hard-capped.
// A line that is not valid JSON is kept as {"raw": <line>} instead of
// being dropped.
func (s *Service) FileLogs(category string, limit, offset int) (*FileLogResult, error) {
	if !fileCategories[category] {
		return nil, NewDomainError(ErrorCodeValidation, "categoria de log invalida")
	}
	if limit <= 0 || limit > maxFileLogLimit {
		limit = maxFileLogLimit
	}
	if offset < 0 {
		offset = 0
	}
	path := filepath.Join(s.logsDir, category+".log")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileLogResult{
				Rows:       []map[string]any{},
				Pagination: Pagination{Limit: limit, Offset: offset},
			}, nil
		}
		return nil, &QueryError{Err: err}
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &QueryError{Err: err}
	}

	total := int64(len(lines))
	if offset > len(lines) {
		offset = len(lines)
	}
	end := offset + limit
	if end > len(lines) {
		end = len(lines)
	}
	rows := make([]map[string]any, 0, end-offset)
	for _, line := range lines[offset:end] {
		entry := map[string]any{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			rows = append(rows, map[string]any{"raw": line})
			continue
		}
		rows = append(rows, entry)
	}
	return &FileLogResult{
		Rows: rows,
		Pagination: Pagination{
			Total:  total,
			Limit:  limit,
			Offset: offset,
			Pages:  pageCount(total, limit),
		},
	}, nil
}

type SecurityStats struct {
	IntrusionsByType map[string]int64         `json:"intrusionsByType"`
	LogTableCounts   map[store.LogTable]int64 `json:"logTableCounts"`
	TotalLogs        int64                    `json:"totalLogs"`
}

// Stats counts intrusion events grouped by type and every log table under
// the same date filter. One query per table is fine here: the endpoint is
// on-demand, not on a hot path.
func (s *Service) Stats(ctx context.Context, from, to *time.Time) (*SecurityStats, error) {
	rng := store.LogRange{From: from, To: to}
	byType, err := s.store.IntrusionsByType(ctx, rng)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	counts := map[store.LogTable]int64{}
	var total int64
	for _, table := range store.AllLogTables() {
		n, err := s.store.Count(ctx, table, rng)
		if err != nil {
			return nil, &QueryError{Err: err}
		}
		counts[table] = n
		total += n
	}
	return &SecurityStats{
		IntrusionsByType: byType,
		LogTableCounts:   counts,
		TotalLogs:        total,
	}, nil
}
