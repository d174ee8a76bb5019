package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mortality-signals/signalsx/app/query/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	r.HandleFunc("/records", c.Records).Methods("GET")
	r.HandleFunc("/aggregates/global", c.GlobalByYear).Methods("GET")
	r.HandleFunc("/aggregates/entities", c.EntityByYear).Methods("GET")
	r.HandleFunc("/aggregates/causes", c.CauseByYear).Methods("GET")
	r.HandleFunc("/anomalies", c.Anomalies).Methods("GET")
	r.HandleFunc("/causemix/{entity}", c.CauseMix).Methods("GET")

	r.HandleFunc("/ws", c.HandleWebSocket)

	return r, nil
}

// WithCORS wraps the handler with permissive CORS headers.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Development: Echo back the origin to allow credentials with any origin
		// TODO: Restrict this in production to specific domains
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
