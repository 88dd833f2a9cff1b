package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/handlers"
	"github.com/craftlane/craftlane-orders-service/internal/middleware"
)

// Server wraps the gin router and the http server lifecycle.
type Server struct {
	config     *config.Config
	router     *gin.Engine
	handlers   *handlers.Handlers
	httpServer *http.Server
}

// New creates the server and registers all routes.
func New(h *handlers.Handlers, cfg *config.Config) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	orders := s.router.Group("/orders")
	{
		orders.POST("", s.handlers.CreateOrder)
		orders.GET("", s.handlers.ListOrders)
		orders.GET("/:id", s.handlers.GetOrder)
		orders.GET("/:id/timeline", s.handlers.GetOrderTimeline)
		orders.POST("/:id/status", s.handlers.UpdateOrderStatus)
	}

	payments := s.router.Group("/payments")
	{
		payments.POST("/create", s.handlers.CreatePayment)
		payments.GET("/verify/:id", s.handlers.VerifyPayment)
		payments.POST("/webhook/:provider", s.handlers.Webhook)
		payments.POST("/:id/refund", s.handlers.Refund)
		payments.GET("/methods", s.handlers.Methods)
	}
}

// Start begins serving requests.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the engine for handler tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
