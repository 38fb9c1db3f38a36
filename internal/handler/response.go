// Package handler holds the HTTP controllers of the sharing module.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

var errBadRequest = errors.New("bad request")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	response, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// readJSON decodes a JSON request body into dst.
func readJSON(r *http.Request, dst any) error {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return errBadRequest
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errBadRequest
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return errBadRequest
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errBadRequest
	}
	return nil
}

// formOrJSON reads fields from a JSON body or a form.
func formOrJSON(r *http.Request, fields ...string) (map[string]string, error) {
	values := make(map[string]string, len(fields))

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]string
		if err := readJSON(r, &body); err != nil {
			return nil, err
		}
		for _, f := range fields {
			values[f] = body[f]
		}
		return values, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errBadRequest
	}
	for _, f := range fields {
		values[f] = r.PostForm.Get(f)
	}
	return values, nil
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
