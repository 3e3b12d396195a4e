package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON marshals v as JSON and writes it with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encoding response", zap.Error(err))
	}
}

// writeError maps err to its HTTP status and writes a structured body.
// Untyped errors are logged and reported without their message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	resp := apperr.ToResponse(err)
	if status >= http.StatusInternalServerError && apperr.Code(err) == "UNKNOWN_ERROR" {
		s.log.Error("internal error", zap.Error(err))
		resp = apperr.Response{Code: "INTERNAL_ERROR", Message: "internal server error"}
	}
	s.writeJSON(w, status, resp)
}

// decodeJSON decodes the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.NewValidation("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// filtersFromQuery turns query parameters into list filters. page and
// limit become integers; limit is capped at 100.
func filtersFromQuery(r *http.Request) crud.Filters {
	q := r.URL.Query()
	f := crud.Filters{}
	for k, vs := range q {
		if len(vs) == 0 || vs[0] == "" {
			continue
		}
		f[k] = vs[0]
	}
	for _, k := range []string{crud.FilterPage, crud.FilterLimit} {
		raw, ok := f[k].(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			delete(f, k)
			continue
		}
		f[k] = n
	}
	if n, ok := f[crud.FilterLimit].(int); ok && n > 100 {
		f[crud.FilterLimit] = 100
	}
	return f
}
