package controller

import (
	"net/http"
	"strconv"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/mortality-signals/signalsx/pkg/db"
)

const defaultRecordsLimit = 500

// Records returns enriched mortality rows, optionally filtered by entity,
// cause and a [from, to] year range.
func (c *Controller) Records(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	qs := r.URL.Query()

	filter := db.RecordFilter{
		Entity: qs.Get("entity"),
		Cause:  qs.Get("cause"),
		Limit:  defaultRecordsLimit,
	}

	if v := qs.Get("from"); v != "" {
		year, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid from year"})
			return
		}
		filter.FromYear = uint16(year)
	}
	if v := qs.Get("to"); v != "" {
		year, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid to year"})
			return
		}
		filter.ToYear = uint16(year)
	}
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}

	rows, err := c.App.Store.GetRecords(ctx, filter)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	_ = json.NewEncoder(w).Encode(rows)
}
