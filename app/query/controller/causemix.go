package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
)

// CauseMix returns the latest-year cause composition for an entity.
func (c *Controller) CauseMix(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := mux.Vars(r)["entity"]

	rows, err := c.App.Store.GetCauseMixShares(ctx, entity)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	if len(rows) == 0 {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "entity not found"})
		return
	}

	_ = json.NewEncoder(w).Encode(rows)
}
