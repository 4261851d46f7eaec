package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/metrics"
)

// Deps is everything the router needs.
type Deps struct {
	Attempts       *app.AttemptService
	Quizzes        *app.QuizService
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// NewRouter mounts the REST API, the attempt socket, health and metrics.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger(deps.Logger), instrument(deps.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	quizzes := &quizHandler{service: deps.Quizzes}
	attempts := &attemptHandler{service: deps.Attempts, log: deps.Logger}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(30 * time.Second))

		api.Route("/quizzes", func(qr chi.Router) {
			qr.Get("/", quizzes.list)
			qr.Post("/", quizzes.create)
			qr.Route("/{quizID}", func(one chi.Router) {
				one.Get("/", quizzes.get)
				one.Patch("/", quizzes.update)
				one.Delete("/", quizzes.delete)
				one.Post("/questions", quizzes.addQuestions)
				one.Put("/questions/{questionID}", quizzes.updateQuestion)
				one.Delete("/questions/{questionID}", quizzes.deleteQuestion)
				one.Delete("/questions/{questionID}/options/{index}", quizzes.removeOption)
			})
		})

		api.Route("/attempts", func(ar chi.Router) {
			ar.Post("/", attempts.start)
			ar.Route("/{attemptID}", func(one chi.Router) {
				one.Post("/answers", attempts.logAnswer)
				one.Post("/submit", attempts.submit)
				one.Get("/result", attempts.result)
				one.Post("/events", attempts.recordEvent)
				one.Get("/events", attempts.events)
				one.Get("/tally", attempts.tally)
			})
		})
	})

	ws := NewWSHandler(deps.Attempts, deps.Logger)
	r.Get("/ws", ws.ServeWS)
	return r
}
