package controller

import (
	"net/http"
	"strconv"

	"github.com/go-jose/go-jose/v4/json"
)

const defaultAnomaliesLimit = 100

// Anomalies returns the ranked top anomalies, most extreme first.
func (c *Controller) Anomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultAnomaliesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	rows, err := c.App.Store.GetTopAnomalies(ctx, limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	_ = json.NewEncoder(w).Encode(rows)
}
