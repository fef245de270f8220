package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/soaringjerry/Vitals/internal/services"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	case services.ErrorUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		log.Printf("api: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error", "code": "internal"})
		return
	}
	if se.Code == services.ErrorUnavailable {
		log.Printf("api: store unavailable: %v", err)
	}
	body := map[string]string{"error": se.Message, "code": string(se.Code)}
	if se.Reason != "" {
		body["reason"] = se.Reason
	}
	writeJSON(w, statusFor(se.Code), body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.NewInvalidError("request body required")
		}
		return services.NewInvalidError("invalid json: " + err.Error())
	}
	return nil
}

// identityView is the public shape of an identity. The password hash never
// leaves the server.
type identityView struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Role      services.Role `json:"role"`
	CreatedAt time.Time     `json:"created_at"`
}

func viewOf(i *services.Identity) identityView {
	return identityView{ID: i.ID, Email: i.Email, Name: i.Name, Role: i.Role, CreatedAt: i.CreatedAt}
}

func viewsOf(ids []*services.Identity) []identityView {
	out := make([]identityView, 0, len(ids))
	for _, i := range ids {
		out = append(out, viewOf(i))
	}
	return out
}
