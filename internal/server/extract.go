package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/checklist-cli/internal/extract"
	"github.com/sells-group/checklist-cli/internal/sheet"
)

type extractParams struct {
	JobID string `validate:"omitempty,uuid"`
	Sheet string `validate:"omitempty,max=128"`
}

// handleExtract reads a multipart upload (file, optional job_id and sheet),
// runs the extraction synchronously, and returns the merged result.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.opts.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	params := extractParams{
		JobID: strings.TrimSpace(r.FormValue("job_id")),
		Sheet: strings.TrimSpace(r.FormValue("sheet")),
	}
	if err := s.validate.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, paramProblem(err))
		return
	}
	if params.JobID == "" {
		params.JobID = uuid.NewString()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}

	tbl, err := sheet.Read(data, header.Filename, sheet.Options{SheetName: params.Sheet})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.ext.Extract(r.Context(), extract.Input{
		JobID:    params.JobID,
		Header:   tbl.Header,
		DataRows: tbl.DataRows,
	})
	switch {
	case errors.Is(err, extract.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "sheet has no data rows")
	case errors.Is(err, extract.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, "no LLM provider configured")
	case errors.Is(err, context.Canceled):
		zap.L().Info("server: client went away during extraction", zap.String("job_id", params.JobID))
	case err != nil:
		zap.L().Error("server: extraction failed", zap.String("job_id", params.JobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "extraction failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func paramProblem(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid parameters"
	}
	fe := verrs[0]
	switch fe.Field() {
	case "JobID":
		return "job_id must be a UUID"
	case "Sheet":
		return "sheet name too long"
	}
	return "invalid " + fe.Field()
}
