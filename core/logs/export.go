package logs

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"oficri-sdt/core/store"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"

	emptyExportPlaceholder = "No se encontraron registros para los filtros indicados."
)

type ExportRequest struct {
	Table       store.LogTable
	From        *time.Time
	To          *time.Time
	Format      string
	RequestedBy int64
}

type ExportArtifact struct {
	FileName    string    `json:"fileName"`
	FilePath    string    `json:"-"`
	Size        int64     `json:"size"`
	RecordCount int       `json:"recordCount"`
	Truncated   bool      `json:"truncated"`
	Format      string    `json:"format"`
	ExportedAt  time.Time `json:"exportedAt"`
}

// Export serializes the filtered rows, gzips them and writes the
// artifact under the exports directory. The write goes to a temp name
// first and is renamed on success so a failed export never leaves a
// partial artifact discoverable by the download endpoint.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*ExportArtifact, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCSV {
		return nil, NewDomainError(ErrorCodeValidation, "formato invalido: "+req.Format)
	}

	// One extra row past the cap tells us whether the result set was cut.
	rng := store.LogRange{From: req.From, To: req.To}
	rows, err := s.store.List(ctx, req.Table, rng, s.maxExport+1, 0)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	truncated := false
	if len(rows) > s.maxExport {
		rows = rows[:s.maxExport]
		truncated = true
	}

	var payload []byte
	switch format {
	case FormatJSON:
		if len(rows) == 0 {
			payload = []byte(emptyExportPlaceholder + "\n")
		} else {
			payload, err = json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return nil, &ExportError{Err: err}
			}
		}
	case FormatCSV:
		payload = []byte(recordsToCSV(rows))
	}

	now := time.Now().UTC()
	fileName := fmt.Sprintf("logs_%s_%s.%s.gz", req.Table, now.Format("20060102_150405"), format)
	if err := os.MkdirAll(s.exportsDir, 0o700); err != nil {
		return nil, &ExportError{Err: err}
	}
	finalPath := filepath.Join(s.exportsDir, fileName)
	tmpPath := finalPath + ".tmp"
	if err := writeGzip(tmpPath, payload); err != nil {
		_ = os.Remove(tmpPath)
		return nil, &ExportError{Err: err}
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, &ExportError{Err: err}
	}
	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, &ExportError{Err: err}
	}

	artifact := &ExportArtifact{
		FileName:    fileName,
		FilePath:    finalPath,
		Size:        info.Size(),
		RecordCount: len(rows),
		Truncated:   truncated,
		Format:      format,
		ExportedAt:  now,
	}
	s.recordExport(ctx, req, artifact)
	return artifact, nil
}

func (s *Service) recordExport(ctx context.Context, req ExportRequest, artifact *ExportArtifact) {
	ok := true
	details := "tipo=" + string(req.Table) +
		" archivo=" + artifact.FileName +
		" registros=" + strconv.Itoa(artifact.RecordCount) +
		" truncado=" + strconv.FormatBool(artifact.Truncated)
	if req.From != nil {
		details += " fecha_inicio=" + req.From.UTC().Format(time.RFC3339)
	}
	if req.To != nil {
		details += " fecha_fin=" + req.To.UTC().Format(time.RFC3339)
	}
	rec := &store.LogRecord{EventType: "logs.exportado", Success: &ok, Details: details}
	if req.RequestedBy > 0 {
		rec.UserID = &req.RequestedBy
	}
	if err := s.store.Append(ctx, store.LogTableExportacion, rec); err != nil && s.logger != nil {
		s.logger.Errorf("export log append failed: %v", err)
	}
}

func writeGzip(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(payload); err != nil {
		_ = zw.Close()
		_ = f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

type DownloadInfo struct {
	Path        string
	FileName    string
	Size        int64
	ContentType string
}

// Download resolves a previously exported artifact. The name is reduced
// to its base before resolving inside the exports directory, so path
// traversal in the request cannot escape it.
func (s *Service) Download(fileName string) (*DownloadInfo, error) {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, NewDomainError(ErrorCodeNotFound, "archivo no encontrado")
	}
	path := filepath.Join(s.exportsDir, base)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, NewDomainError(ErrorCodeNotFound, "archivo no encontrado")
	}
	return &DownloadInfo{
		Path:        path,
		FileName:    base,
		Size:        info.Size(),
		ContentType: contentTypeFor(base),
	}, nil
}

func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	default:
		return "text/csv"
	}
}

type csvField struct {
	name  string
	value any
}

func recordFields(rec store.LogRecord) []csvField {
	var userID any
	if rec.UserID != nil {
		userID = *rec.UserID
	}
	var success any
	if rec.Success != nil {
		success = *rec.Success
	}
	return []csvField{
		{"id", rec.ID},
		{"event_type", rec.EventType},
		{"event_at", rec.EventAt.UTC().Format(time.RFC3339)},
		{"user_id", userID},
		{"success", success},
		{"ip", rec.IP},
		{"details", rec.Details},
	}
}

// recordsToCSV renders the export rows. Header row is the key set of the
// first record; string values are double-quoted with inner quotes
// doubled, everything else is written literally (nil as empty).
func recordsToCSV(rows []store.LogRecord) string {
	if len(rows) == 0 {
		return emptyExportPlaceholder + "\n"
	}
	var b strings.Builder
	header := recordFields(rows[0])
	for i, f := range header {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.name)
	}
	b.WriteByte('\n')
	for _, rec := range rows {
		for i, f := range recordFields(rec) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(csvCell(f.value))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func csvCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return `"` + strings.ReplaceAll(val, `"`, `""`) + `"`
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
