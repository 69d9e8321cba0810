package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/auth"
	"github.com/MrWong99/oralread/internal/health"
	"github.com/MrWong99/oralread/internal/observe"
	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/internal/transport"
	"github.com/MrWong99/oralread/pkg/provider/stt"
)

// buildRouter assembles the HTTP surface:
//
//	GET /healthz, /readyz                   probes
//	GET <metrics_path>                      Prometheus scrape
//	GET /api/v1/tests/{testID}/session      websocket session (student)
//	GET /api/v1/tests/{testID}              test definition (teacher, admin)
//	GET /api/v1/results/{userID}            stored results (teacher, admin)
func (a *App) buildRouter() http.Handler {
	r := mux.NewRouter()
	r.Use(observe.Middleware(a.metrics))

	health.New(a.checks...).Register(r)
	r.Handle(a.cfg.Observability.MetricsPath, promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	var topts []transport.Option
	topts = append(topts, transport.WithMetrics(a.metrics))
	if origins := originPatterns(a.cfg.Server.AllowedOrigins); len(origins) > 0 {
		topts = append(topts, transport.WithOriginPatterns(origins...))
	}
	if a.speech != nil {
		topts = append(topts, transport.WithSpeechProvider(a.speech, stt.StreamConfig{
			SampleRate: a.cfg.Speech.SampleRate,
			Language:   a.cfg.Speech.Language,
		}))
	}
	student := api.NewRoute().Subrouter()
	student.Use(auth.Require(a.verifier, auth.RoleStudent))
	student.Handle("/tests/{testID}/session", transport.NewHandler(a.sessions, topts...)).Methods(http.MethodGet)

	staff := api.NewRoute().Subrouter()
	staff.Use(auth.Require(a.verifier, auth.RoleTeacher, auth.RoleAdmin))
	staff.HandleFunc("/tests/{testID}", a.getTest).Methods(http.MethodGet)
	staff.HandleFunc("/results/{userID}", a.listResults).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

func (a *App) getTest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["testID"]
	def, err := a.defs.Definition(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("test not found"))
	case err != nil:
		observe.Logger(r.Context()).Error("load definition failed", "test_id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("could not load test"))
	default:
		writeJSON(w, http.StatusOK, def)
	}
}

func (a *App) listResults(w http.ResponseWriter, r *http.Request) {
	if a.results == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("no result store configured"))
		return
	}
	userID := mux.Vars(r)["userID"]
	results, err := a.results.ListResults(r.Context(), userID)
	if err != nil {
		observe.Logger(r.Context()).Error("list results failed", "user_id", userID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("could not list results"))
		return
	}
	if results == nil {
		results = []assessment.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

// originPatterns turns CORS origins ("https://school.example") into the host
// patterns the websocket origin check expects.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, o)
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "err", err)
	}
}
