package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	api "github.com/mind-engage/mindengage-papers/internal/api/http"
	"github.com/mind-engage/mindengage-papers/internal/assembly"
	auth "github.com/mind-engage/mindengage-papers/internal/auth/middleware"
	"github.com/mind-engage/mindengage-papers/internal/config"
	"github.com/mind-engage/mindengage-papers/internal/db"
	"github.com/mind-engage/mindengage-papers/internal/generate"
	"github.com/mind-engage/mindengage-papers/internal/paper"
	"github.com/mind-engage/mindengage-papers/internal/remote"
	"github.com/mind-engage/mindengage-papers/internal/storage"
	syncx "github.com/mind-engage/mindengage-papers/internal/sync"
	"github.com/mind-engage/mindengage-papers/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if cfg.SeedTeacher {
		created, err := auth.EnsureTeacher(ctx, dbh, cfg.DefaultTeacher, cfg.DefaultTeacherPass)
		if err != nil {
			log.Fatalf("seed teacher: %v", err)
		}
		if created {
			log.Printf("created default teacher %q", cfg.DefaultTeacher)
		}
	}

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	if len(os.Args) > 1 {
		err := runCommand(ctx, dbh, authSvc, os.Args[1:])
		_ = dbh.Close()
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	// --- Workspace views ---
	var views workspace.Views
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		views = workspace.NewRedisViews(rdb, cfg.WorkspaceTTL)
	} else {
		views = workspace.NewMemoryViews()
	}

	// --- Generation ---
	var gen generate.Generator = generate.Mock{}
	if cfg.AIAPIKey != "" {
		gen = generate.NewChatClient(generate.ChatConfig{APIKey: cfg.AIAPIKey, BaseURL: cfg.AIBaseURL, Model: cfg.AIModel})
	} else {
		log.Printf("AI_API_KEY not set; using offline question generator")
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Paper/question service: remote when configured, else in-process ---
	store := paper.NewSQLStore(dbh)
	var (
		papers    assembly.PaperService
		questions assembly.QuestionService
		paperAPI  *api.PaperAPI
	)
	if cfg.PaperServiceURL != "" {
		rc := remote.New(remote.Config{
			BaseURL:      cfg.PaperServiceURL,
			Token:        cfg.PaperServiceToken,
			TokenURL:     cfg.PaperServiceTokenURL,
			ClientID:     cfg.PaperServiceClientID,
			ClientSecret: cfg.PaperServiceClientSecret,
		})
		papers, questions = rc, rc
	} else {
		local := paper.Local{Store: store}
		papers, questions = local, local
		paperAPI = &api.PaperAPI{Store: store}
	}

	srv := &api.Server{
		DB:   dbh,
		Auth: authSvc,
		Authoring: &api.Authoring{
			Views:      views,
			Generator:  gen,
			Blobs:      bs,
			Papers:     papers,
			Questions:  questions,
			Events:     syncx.NewEventRepo(dbh),
			SiteID:     cfg.SiteID,
			Score:      cfg.AttachScore,
			RunTimeout: cfg.AssemblyTimeout,
		},
		Papers: paperAPI,
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	srv.Mount(r)

	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	mode := "in-process"
	if cfg.PaperServiceURL != "" {
		mode = "remote " + cfg.PaperServiceURL
	}
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		log.Printf("listening on %s (mode=%s, db=%s, papers=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, mode)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Printf("shutting down")
	shutCtx, cancelShut := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShut()
	if err := hs.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	_ = dbh.Close()
}
