package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/logging"
	"github.com/klytics/sheetkit/internal/recovery"
	"github.com/klytics/sheetkit/internal/table"
)

// previewResponse is the body of POST /api/preview.
type previewResponse struct {
	Sheets    []string     `json:"sheets"`
	Sheet     string       `json:"sheet"`
	TotalRows int          `json:"totalRows"`
	Table     *table.Table `json:"table"`
}

// refineResponse is the body of POST /api/refine. Table is set when the
// reply was recovered; Raw, Reason and Diagnostic when it was not.
type refineResponse struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	Table      *table.Table `json:"table,omitempty"`
	Raw        string       `json:"raw,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Diagnostic string       `json:"diagnostic,omitempty"`
	Model      string       `json:"model,omitempty"`
	DurationMS int64        `json:"durationMs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "provider": s.refiner.Provider.Name()})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rows := s.preview
	if v := r.FormValue("rows"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rows = n
		}
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Sheets:    up.sheets,
		Sheet:     up.sheet,
		TotalRows: up.table.NumRows(),
		Table:     up.table.Head(rows),
	})
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ref := *s.refiner
	ref.Logger = logging.FromContext(r.Context()).With("file", up.filename)
	res, err := ref.Refine(r.Context(), up.table, r.FormValue("instruction"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := refineResponse{
		ID:         res.ID.String(),
		Status:     res.Outcome.Status(),
		Model:      res.Reply.Model,
		DurationMS: res.Duration.Milliseconds(),
	}
	switch out := res.Outcome.(type) {
	case recovery.Recovered:
		resp.Table = out.Table
	case recovery.Unrecovered:
		resp.Raw = out.Raw
		resp.Reason = out.Reason.String()
		resp.Diagnostic = out.Diagnostic
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxUpload)
	var t table.Table
	if err := json.NewDecoder(body).Decode(&t); err != nil {
		s.respondError(w, r, badRequest(fmt.Errorf("request body is not a table: %w", err)))
		return
	}

	name := sanitizeFilename(r.URL.Query().Get("filename"))
	exp, err := xlsx.ExportTable(&t, xlsx.WriteOptions{Filename: name})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exp.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(exp.Data); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "error", err)
	}
}

type upload struct {
	filename string
	sheets   []string
	sheet    string
	table    *table.Table
}

// readUpload parses the multipart "file" field and loads it.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			return nil, &statusError{status: http.StatusRequestEntityTooLarge,
				msg: fmt.Sprintf("upload is larger than %d MB", s.maxUpload>>20)}
		}
		return nil, badRequest(fmt.Errorf("expected a multipart form with a 'file' field: %w", err))
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest(fmt.Errorf("missing 'file' field: upload an .xlsx spreadsheet"))
	}
	defer f.Close()
	if !strings.HasSuffix(strings.ToLower(hdr.Filename), ".xlsx") {
		return nil, badRequest(fmt.Errorf("expected an .xlsx file, got %q", hdr.Filename))
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("could not read upload: %w", err)
	}

	sheet := r.FormValue("sheet")
	t, err := xlsx.Load(data, xlsx.LoadOptions{Sheet: sheet})
	if err != nil {
		return nil, err
	}
	sheets, _ := xlsx.SheetNames(data)
	if sheet == "" && len(sheets) > 0 {
		sheet = sheets[0]
	}
	return &upload{filename: hdr.Filename, sheets: sheets, sheet: sheet, table: t}, nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '/' || r == '\\' || r < 0x20:
			return '_'
		}
		return r
	}, name)
	if !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are already sent
		slog.Warn("json encode error", "error", err)
	}
}
