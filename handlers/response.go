package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kevinaaaquil/unilib/middleware"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/service"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Meta    *listMeta  `json:"meta,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type listMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type errorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeList(w http.ResponseWriter, data any, p page, total int64) {
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Meta:    &listMeta{Page: p.Page, Limit: p.Limit, Total: total},
	})
}

func statusFor(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindPermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a workflow error onto the JSON error envelope. Internal details are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := service.AsError(err)
	reqID := chimw.GetReqID(r.Context())
	status := statusFor(e.Kind)
	msg := e.Message
	if e.Kind == service.KindInternal {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", reqID, "err", err)
		msg = "internal error"
	}
	writeJSON(w, status, envelope{Error: &errorBody{
		Code:      e.Code,
		Message:   msg,
		Fields:    e.Fields,
		RequestID: reqID,
	}})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return service.Validation("request body is required", nil)
		}
		return service.Validation("invalid json: "+err.Error(), nil)
	}
	return nil
}

func principal(r *http.Request) (models.Principal, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return models.Principal{}, service.Unauthorized("authentication required")
	}
	return p, nil
}
