package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scoutledger/backend/api/controllers"
	"github.com/scoutledger/backend/api/middleware"
	"github.com/scoutledger/backend/pkg/config"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/redis"
)

// Services groups the domain services the HTTP surface exposes.
type Services struct {
	Balances    controllers.BalanceService
	Points      controllers.PointsClaimer
	Proofs      controllers.ProofService
	Onchain     controllers.OnchainClaimer
	Leaderboard controllers.LeaderboardService
	SeasonID    string
	Now         func() time.Time
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redis.IdempotencyStore,
	redisP controllers.Pinger,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": dbP,
			"redis":    redisP,
		}))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/leaderboard", controllers.Leaderboard(svc.Leaderboard, svc.SeasonID, svc.Now, logg))

		r.Route("/scouts/{scoutId}", func(r chi.Router) {
			r.Get("/balance", controllers.ScoutBalance(svc.Balances, logg))
			r.Post("/claims/points", controllers.ScoutClaimPoints(svc.Points, logg))
		})

		r.Route("/claims", func(r chi.Router) {
			r.Get("/{week}/proofs/{address}", controllers.ClaimProof(svc.Proofs, logg))
			r.Post("/onchain", controllers.ClaimOnchain(svc.Onchain, logg))
		})
	})

	return r
}
