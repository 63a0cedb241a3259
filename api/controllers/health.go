package controllers

import (
	"net/http"

	"github.com/nnamdiosuji/okrika-backend/api/responses"
	"github.com/nnamdiosuji/okrika-backend/pkg/config"
	"github.com/nnamdiosuji/okrika-backend/pkg/db"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Okrika-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, database db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Okrika-Env", cfg.App.Env)
		if database != nil {
			if err := database.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
