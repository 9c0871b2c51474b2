package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/analysis"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/extract"
	"github.com/poiesic/stdgap/ingestion"
	"github.com/poiesic/stdgap/search"
	"github.com/poiesic/stdgap/storage"
)

var codec = sonic.ConfigStd

var (
	errBadID       = errors.New("invalid id")
	errMissingFile = errors.New("no file uploaded")
	errBadBody     = errors.New("invalid request body")
)

// statusFor maps an action error to an HTTP status code.
func statusFor(err error) int {
	var tooBig *http.MaxBytesError
	var batchErr *ingestion.BatchError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateDocument),
		errors.Is(err, storage.ErrStoreNotEmpty),
		errors.Is(err, storage.ErrVectorAlreadySet),
		errors.Is(err, core.ErrDimensionMismatch):
		return http.StatusConflict
	case errors.Is(err, analysis.ErrParse),
		errors.Is(err, extract.ErrUnreadable),
		errors.Is(err, extract.ErrEmptyText):
		return http.StatusUnprocessableEntity
	case errors.As(err, &batchErr),
		errors.Is(err, ai.ErrPermanent),
		errors.Is(err, ai.ErrTransient),
		errors.Is(err, ai.ErrRateLimited),
		errors.Is(err, ai.ErrRetriesExhausted),
		errors.Is(err, ai.ErrEmptyResponse):
		return http.StatusBadGateway
	case errors.As(err, &tooBig),
		errors.Is(err, errBadID),
		errors.Is(err, errMissingFile),
		errors.Is(err, errBadBody),
		errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrTooLarge),
		errors.Is(err, search.ErrInvalidK),
		errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, analysis.ErrEmptyResearch),
		errors.Is(err, analysis.ErrDomainRequired),
		errors.Is(err, core.ErrInvalidDocument),
		errors.Is(err, core.ErrInvalidSection),
		errors.Is(err, core.ErrInvalidGap),
		errors.Is(err, core.ErrInvalidRecommendation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	codec.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func parseID(s string) (core.ID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, errBadID
	}
	return core.ID(id), nil
}
