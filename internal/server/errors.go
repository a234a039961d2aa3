package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/terraconstructs/estate/internal/auth"
	estatemiddleware "github.com/terraconstructs/estate/internal/middleware"
)

// maxBodyBytes caps request bodies; every payload here is a handful of fields.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	estatemiddleware.WriteJSON(w, status, v)
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	estatemiddleware.WriteError(w, r, logger, err)
}

// decodeBody decodes an optional JSON body into dst. An empty body leaves dst
// untouched; malformed JSON is an invalid request.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed JSON body", auth.ErrInvalidRequest)
	}
	return nil
}
