// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"farebid/internal/http/handlers"
	"farebid/internal/http/middleware"
	"farebid/internal/metrics"
	"farebid/internal/modules/bidding"
	"farebid/internal/modules/predictor"
)

type ServerDeps struct {
	Predictor *predictor.Predictor
	Bidding   *bidding.Service
	Metrics   *metrics.Registry

	CORSOrigins []string
	APIKeys     []string
	RateLimit   float64
	RateBurst   int
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(s.deps.Metrics), middleware.Recovery())

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	api := r.Group("/api", middleware.Auth(s.deps.APIKeys), middleware.RateLimit(s.deps.RateLimit, s.deps.RateBurst))

	predict := handlers.NewPredictHandler(s.deps.Predictor, s.deps.Metrics)
	api.GET("/model", predict.Model)
	api.POST("/predict", predict.Predict)
	api.POST("/predict/batch", predict.PredictBatch)

	bid := handlers.NewBidHandler(s.deps.Bidding)
	api.POST("/optimize", bid.Optimize)
	api.GET("/decisions/:order_id", bid.History)

	origins := s.deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})
	return c.Handler(r)
}
