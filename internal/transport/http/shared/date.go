package shared

import (
	"net/http"

	"hrops/internal/domain/leave"
)

// QueryDate reads an optional YYYY-MM-DD query parameter.
func QueryDate(r *http.Request, name string) (leave.Date, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return leave.Date{}, false, nil
	}
	parsed, err := leave.ParseDate(raw)
	if err != nil {
		return leave.Date{}, false, err
	}
	return parsed, true, nil
}
