package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
)

// GlobalByYear returns worldwide death totals per year.
func (c *Controller) GlobalByYear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := c.App.Store.GetGlobalByYear(ctx)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	_ = json.NewEncoder(w).Encode(rows)
}

// EntityByYear returns per-entity death totals per year, optionally for a
// single entity via ?entity=.
func (c *Controller) EntityByYear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := c.App.Store.GetEntityByYear(ctx, r.URL.Query().Get("entity"))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	_ = json.NewEncoder(w).Encode(rows)
}

// CauseByYear returns per-cause death totals per year, optionally for a
// single cause via ?cause=.
func (c *Controller) CauseByYear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := c.App.Store.GetCauseByYear(ctx, r.URL.Query().Get("cause"))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	_ = json.NewEncoder(w).Encode(rows)
}
