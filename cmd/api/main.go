//	@title			Image Hosting API
//	@version		1.0
//	@description	User-authenticated image hosting: presigned direct-to-storage uploads with server-side confirmation.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/imagehost/service/internal/admin"
	"github.com/imagehost/service/internal/auth"
	"github.com/imagehost/service/internal/config"
	"github.com/imagehost/service/internal/db"
	"github.com/imagehost/service/internal/image"
	appMiddleware "github.com/imagehost/service/internal/middleware"
	"github.com/imagehost/service/internal/storage"
	"github.com/imagehost/service/internal/user"

	_ "github.com/imagehost/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	// The storage client is built once here and injected; missing storage
	// configuration fails the process at startup, not mid-request.
	store, err := storage.NewMinioStorage(
		cfg.StorageEndpoint,
		cfg.StorageAccessKey,
		cfg.StorageSecretKey,
		cfg.StorageBucket,
		cfg.StoragePublicBase,
		cfg.StorageUseSSL,
	)
	if err != nil {
		log.Fatalf("object storage init failed: %v", err)
	}

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)

	authSvc := auth.NewService(userSvc, cfg)
	authHandler := auth.NewHandler(authSvc)

	imageRepo := image.NewRepository(pool)
	imageSvc := image.NewService(imageRepo, store, cfg)
	imageHandler := image.NewHandler(imageSvc)

	adminHandler := admin.NewHandler(imageSvc, userSvc)

	requireAuth := appMiddleware.RequireAuth(authSvc, userSvc)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.FrontendURL},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(requireAuth).Get("/me", authHandler.Me)
		})

		// Protected image endpoints
		r.Route("/images", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/upload-url", imageHandler.RequestUpload)
			r.Post("/confirm", imageHandler.Confirm)
			r.Get("/", imageHandler.List)
			r.Get("/{id}", imageHandler.Get)
			r.Delete("/{id}", imageHandler.Delete)
		})

		// Admin-only endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(appMiddleware.RequireAdmin)
			r.Get("/stats", adminHandler.Stats)
			r.Get("/images", adminHandler.ListImages)
			r.Get("/images/{id}", adminHandler.GetImage)
			r.Delete("/images/{id}", adminHandler.DeleteImage)
			r.Get("/users", adminHandler.ListUsers)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s)", cfg.Port, cfg.AppEnv)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}
