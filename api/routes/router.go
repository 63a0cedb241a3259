package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nnamdiosuji/okrika-backend/api/controllers"
	webhookcontrollers "github.com/nnamdiosuji/okrika-backend/api/controllers/webhooks"
	"github.com/nnamdiosuji/okrika-backend/api/middleware"
	"github.com/nnamdiosuji/okrika-backend/pkg/config"
	"github.com/nnamdiosuji/okrika-backend/pkg/db"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
)

type squareClient interface {
	SigningSecret() string
}

// NewListenerRouter builds the webhook listener's HTTP surface: health
// probes plus the provider webhook endpoints.
func NewListenerRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database db.Pinger,
	webhookSvc webhookcontrollers.PaymentWebhookService,
	square squareClient,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, database))

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(webhookSvc, square, logg))
	})

	return r
}
