package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/esports-booking/docs"
	"github.com/Dosada05/esports-booking/handlers"
	"github.com/Dosada05/esports-booking/metrics"
	"github.com/Dosada05/esports-booking/middleware"
	"github.com/Dosada05/esports-booking/services"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Tournament   *handlers.TournamentHandler
	Booking      *handlers.BookingHandler
	Admin        *handlers.AdminHandler
	Contact      *handlers.ContactHandler
	Settings     *handlers.SettingsHandler
	Leaderboard  *handlers.LeaderboardHandler
	Blog         *handlers.BlogHandler
	Dashboard    *handlers.DashboardHandler
	Notification *handlers.NotificationHandler
	WebSocket    *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      string
	Access         services.AccessService
	Metrics        *metrics.Metrics
	RateLimiter    *middleware.IPRateLimiter
	AllowedOrigins []string
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware)
		router.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	rateLimited := func(next http.Handler) http.Handler { return next }
	if opts.RateLimiter != nil {
		rateLimited = middleware.RateLimit(opts.RateLimiter)
	}

	authenticate := middleware.Authenticate(opts.JWTSecret)
	optionalAuth := middleware.OptionalAuthenticate(opts.JWTSecret)
	resolveRole := middleware.ResolveRole(opts.Access)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/auth", func(r chi.Router) {
		r.With(rateLimited).Post("/register", h.Auth.Register)
		r.With(rateLimited).Post("/login", h.Auth.Login)
	})

	// Публичные маршруты; токен, если есть, расширяет видимость (данные комнаты).
	router.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Use(resolveRole)

		r.Get("/tournaments", h.Tournament.ListHandler)
		r.Get("/tournaments/{tournamentID}", h.Tournament.GetByIDHandler)
		r.Get("/leaderboard", h.Leaderboard.Top)
		r.Get("/blogs", h.Blog.List)
		r.Get("/blogs/{slug}", h.Blog.GetBySlug)
		r.Get("/settings/ticker", h.Settings.GetTicker)
		r.Get("/settings/footer", h.Settings.GetFooterStats)
		r.With(rateLimited).Post("/contact", h.Contact.Submit)

		r.Get("/ws/tournaments", h.WebSocket.ServeTournaments)
		r.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeTournament)
	})

	// Игрок
	router.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/ws/me", h.WebSocket.ServeMe)

		r.Group(func(r chi.Router) {
			r.Use(resolveRole)

			r.Get("/me", h.Auth.Me)
			r.Get("/me/dashboard", h.Dashboard.Player)
			r.Get("/me/bookings", h.Booking.ListMine)
			r.Get("/me/contact", h.Contact.ListMine)
			r.Get("/me/notifications", h.Notification.List)
			r.Post("/me/notifications/{notificationID}/read", h.Notification.MarkRead)
			r.Get("/me/inbox", h.Notification.Inbox)
			r.Post("/me/inbox/{entryID}/read", h.Notification.MarkInboxRead)

			r.With(rateLimited).Post("/tournaments/{tournamentID}/bookings", h.Booking.Submit)
			r.Get("/bookings/{bookingID}", h.Booking.Get)
			r.Post("/bookings/{bookingID}/qr", h.Booking.UploadPayoutQR)
		})
	})

	// Админка: роль проверяется заново на каждом запросе.
	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireAdmin(opts.Access))

		r.Get("/dashboard", h.Dashboard.Stats)

		r.Route("/tournaments", func(r chi.Router) {
			r.Post("/", h.Tournament.CreateHandler)
			r.Route("/{tournamentID}", func(r chi.Router) {
				r.Delete("/", h.Tournament.DeleteHandler)
				r.Patch("/status", h.Tournament.UpdateStatusHandler)
				r.Post("/room", h.Tournament.ReleaseRoomHandler)
				r.Put("/slots", h.Tournament.ReplaceSlotListHandler)
				r.Post("/results", h.Tournament.DeclareResultsHandler)
				r.Post("/results/images", h.Tournament.UploadResultsHandler)
				r.Post("/cancel", h.Tournament.CancelHandler)
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", h.Booking.List)
			r.Route("/{bookingID}", func(r chi.Router) {
				r.Post("/approve", h.Booking.Approve)
				r.Post("/reject", h.Booking.Reject)
				r.Post("/message", h.Booking.SendMessage)
				r.Patch("/status", h.Booking.UpdateStatus)
				r.Post("/paid", h.Booking.MarkPaid)
			})
		})

		r.Get("/contact", h.Contact.List)
		r.Post("/contact/{messageID}/reply", h.Contact.Reply)
		r.Delete("/contact/{messageID}", h.Contact.Delete)

		r.Post("/settings/ticker", h.Settings.AddTickerMessage)
		r.Delete("/settings/ticker", h.Settings.RemoveTickerMessage)
		r.Put("/settings/footer", h.Settings.UpdateFooterStats)

		r.Put("/leaderboard", h.Leaderboard.Upsert)
		r.Delete("/leaderboard/{entryID}", h.Leaderboard.Delete)

		r.Post("/blogs", h.Blog.Create)
		r.Delete("/blogs/{postID}", h.Blog.Delete)

		r.Get("/users", h.Admin.ListUsers)
		r.Post("/users/{userID}/notify", h.Admin.SendNotification)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSuperAdmin)

			r.Get("/staff", h.Admin.ListSubAdmins)
			r.Post("/staff", h.Admin.CreateSubAdmin)
			r.Delete("/staff/{adminID}", h.Admin.DeleteSubAdmin)
			r.Get("/logs", h.Admin.ListLogs)
		})
	})
}
