package routes

import (
	"log/slog"
	"net/http"

	_ "github.com/Dosada05/pong-arena/docs"
	"github.com/Dosada05/pong-arena/handlers"
	"github.com/Dosada05/pong-arena/metrics"
	"github.com/Dosada05/pong-arena/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	JWTSecret          []byte
	CORSAllowedOrigins []string
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
	Gatherer           prometheus.Gatherer
}

type Handlers struct {
	Auth       *handlers.AuthHandler
	Player     *handlers.PlayerHandler
	Tournament *handlers.TournamentHandler
	Invitation *handlers.InvitationHandler
	Match      *handlers.MatchHandler
	WebSocket  *handlers.WebSocketHandler
	Health     *handlers.HealthHandler
}

func SetupRoutes(router chi.Router, opts Options, h Handlers) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.Metrics(opts.Metrics))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Get("/healthz", h.Health.Healthz)
	router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
	})

	router.Route("/players", func(r chi.Router) {
		r.With(authenticate).Get("/me", h.Player.Me)
		r.Get("/{playerID}", h.Player.GetByID)
		r.Get("/{playerID}/history", h.Player.History)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.Tournament.ListHandler)
		r.Get("/{roomID}", h.Tournament.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.Tournament.CreateHandler)
			r.Post("/{roomID}/players", h.Tournament.JoinHandler)
			r.Delete("/{roomID}/players/me", h.Tournament.LeaveHandler)
			r.Post("/{roomID}/start", h.Tournament.StartHandler)
			r.Post("/{roomID}/next-match", h.Tournament.NextMatchHandler)
			r.Post("/{roomID}/matches/{matchID}/result", h.Tournament.SubmitResultHandler)
			r.Post("/{roomID}/end", h.Tournament.EndHandler)
		})
	})

	router.Route("/invitations", func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/", h.Invitation.Create)
		r.Get("/", h.Invitation.List)
		r.Get("/{invitationID}", h.Invitation.Get)
		r.Post("/{invitationID}/accept", h.Invitation.Accept)
		r.Post("/{invitationID}/reject", h.Invitation.Reject)
		r.Post("/{invitationID}/match", h.Invitation.CreateMatch)
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", h.Match.GetByID)
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/pve", h.Match.CreatePvE)
			r.Post("/{matchID}/result", h.Match.SubmitResult)
		})
	})

	// Spectating is public.
	router.Get("/ws/tournaments/{roomID}", h.WebSocket.ServeWs)
}
