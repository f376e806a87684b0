package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/cardbinder/cardbinderbackend/classifier"
	"github.com/cardbinder/cardbinderbackend/config"
	"github.com/cardbinder/cardbinderbackend/database"
	"github.com/cardbinder/cardbinderbackend/handlers"
	"github.com/cardbinder/cardbinderbackend/imagecache"
	"github.com/cardbinder/cardbinderbackend/media"
	"github.com/cardbinder/cardbinderbackend/repository"
	"github.com/cardbinder/cardbinderbackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.MediaStoragePath, cfg.CacheStoragePath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying sql.DB: %v", err)
	}

	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}
	processor := media.NewProcessor(cfg.ThumbnailMaxWidth, cfg.ThumbnailMaxHeight)
	cacheManager := imagecache.NewManager(cfg.CacheStoragePath, processor, cfg.CacheQuotaBytes, cfg.ThumbQuotaBytes)

	log.Printf("Initializing thumbnail rebuild pool (Workers: %d, Queue Size: %d)...", cfg.NumRebuildWorkers, cfg.RebuildQueueSize)
	rebuilder := workers.NewThumbnailRebuilder(cacheManager, cfg.RebuildQueueSize, cfg.NumRebuildWorkers)

	sharedRepo := repository.NewSharedImageRepository(db, mediaStore)
	moderationRepo := repository.NewModerationRepository(db, cfg.HideThreshold)

	var classifierClient *classifier.Client
	if cfg.ClassifierURL != "" {
		classifierClient = classifier.NewClient(cfg.ClassifierURL, time.Duration(cfg.ClassifierTimeoutSecs)*time.Second)
		log.Printf("Image classifier enabled at %s", cfg.ClassifierURL)
	} else {
		log.Printf("No CLASSIFIER_URL configured; publishing without classification")
	}

	policy := media.UploadPolicy{
		MaxBytes:  cfg.MaxUploadBytes,
		MinWidth:  cfg.MinImageWidth,
		MinHeight: cfg.MinImageHeight,
	}

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing media in: %s", cfg.MediaStoragePath)
	log.Printf("Per-collector cache quota: %d bytes (thumbnails: %d)", cfg.CacheQuotaBytes, cfg.ThumbQuotaBytes)
	log.Printf("Hide threshold: %d reports", cfg.HideThreshold)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	collectionHandler := &handlers.CollectionHandler{Caches: cacheManager, Policy: policy, Rebuilder: rebuilder}
	sharedImageHandler := &handlers.SharedImageHandler{Repo: sharedRepo, Moderation: moderationRepo, Classifier: classifierClient, Policy: policy}
	moderationHandler := &handlers.ModerationHandler{Repo: moderationRepo, StatsDB: sqlDB}

	r.Route("/api", func(r chi.Router) {
		r.Post("/fingerprint", handlers.BuildFingerprint)

		r.Route("/collection/{owner_id}", func(r chi.Router) {
			r.Get("/cards", collectionHandler.ListImages)
			r.Post("/restore", collectionHandler.Restore)
			r.Route("/cards/{card_id}", func(r chi.Router) {
				r.Put("/image", collectionHandler.PutImage)
				r.Get("/image", collectionHandler.GetImage)
				r.Get("/thumbnail", collectionHandler.GetThumbnail)
				r.Delete("/image", collectionHandler.DeleteImage)
			})
		})

		r.Route("/shared-images", func(r chi.Router) {
			r.Post("/", sharedImageHandler.Publish)
			r.Get("/", sharedImageHandler.Get)
			r.Post("/batch", sharedImageHandler.GetBatch)
			r.Post("/reports", moderationHandler.Report)
			r.Get("/visibility", moderationHandler.Visibility)
		})

		r.Route("/admin/moderation", func(r chi.Router) {
			r.Use(handlers.RequireAdminKey(cfg.AdminKeyHash))
			r.Get("/", moderationHandler.List)
			r.Get("/stats", moderationHandler.Stats)
			r.Post("/approve", moderationHandler.Approve)
			r.Post("/block", moderationHandler.Block)
			r.Post("/clear", moderationHandler.Clear)
		})

		sharedAssetGuard := handlers.SharedImageHidden(sharedRepo, moderationRepo)
		r.Get(fmt.Sprintf("/assets/%s/*", media.SharedSubDir), handlers.AssetServer(cfg.MediaStoragePath, media.SharedSubDir, sharedAssetGuard))
		log.Printf("Registered shared image server at /api/assets/%s/*", media.SharedSubDir)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
