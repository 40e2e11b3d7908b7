package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/Dan9191/memo-service/internal/config"
	"github.com/Dan9191/memo-service/internal/handler"
	"github.com/Dan9191/memo-service/internal/middleware"
	"github.com/Dan9191/memo-service/internal/repository"
	"github.com/Dan9191/memo-service/internal/service"
	"github.com/Dan9191/memo-service/internal/token"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := repository.Apply(context.Background(), db); err != nil {
		logger.Fatalf("Failed to apply migrations: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	tokens := token.NewManager([]byte(cfg.JWTSecret), cfg.TokenTTL)
	svc := service.NewService(repo, tokens, logger)
	h := handler.NewHandler(svc, logger)

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/api/users/register", h.Register).Methods("POST")
	r.HandleFunc("/api/users/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/api/memos").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(tokens, repo, logger))
	authRouter.HandleFunc("", h.CreateMemo).Methods("POST")
	authRouter.HandleFunc("/{id:[0-9]+}", h.GetMemo).Methods("GET")
	authRouter.HandleFunc("/{id:[0-9]+}", h.UpdateMemo).Methods("PUT")
	authRouter.HandleFunc("/{id:[0-9]+}", h.DeleteMemo).Methods("DELETE")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
