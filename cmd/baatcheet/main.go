package main

import (
	"flag"
	"log"
	"log/slog"

	"github.com/baatcheet/backend/internal/auth"
	"github.com/baatcheet/backend/internal/chat"
	"github.com/baatcheet/backend/internal/config"
	"github.com/baatcheet/backend/internal/httpx"
	"github.com/baatcheet/backend/internal/identity"
	"github.com/baatcheet/backend/internal/messages"
	"github.com/baatcheet/backend/internal/profile"
	"github.com/baatcheet/backend/internal/storage"
	"github.com/baatcheet/backend/internal/storage/postgres"
	"github.com/baatcheet/backend/internal/storage/sqlite"
	"github.com/baatcheet/backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	var (
		db        *storage.DB
		migrateFn func() error
	)
	switch cfg.DBDriver {
	case "postgres":
		conn, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("error connecting to postgres: %v", err)
		}
		db, migrateFn = conn.DB, conn.Migrate
	default:
		conn, err := sqlite.New(cfg.SQLiteDSN)
		if err != nil {
			log.Fatalf("error opening sqlite: %v", err)
		}
		db, migrateFn = conn.DB, conn.Migrate
	}
	defer db.Close()

	if *migrate {
		if err := migrateFn(); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		slog.Info("migration completed")
		return
	}

	userStore := identity.NewStore(db)
	verifier := &identity.Verifier{Users: userStore, Secret: cfg.JWTSecret}
	msgStore := messages.NewStore(db)

	registry := chat.NewRegistry()
	router := chat.NewRouter(registry, userStore, msgStore)
	hub := chat.NewHub(registry, userStore, router)
	go hub.Run()

	r := gin.Default()
	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		httpx.OK(c, gin.H{"status": "OK"})
	})

	users.RegisterPublic(api.Group("/auth"), db, cfg)
	chat.RegisterWS(api, hub, verifier)

	authed := api.Group("", auth.JWTMiddleware(cfg.JWTSecret))
	users.RegisterAuthed(authed, db)
	profile.Register(authed, userStore)
	messages.Register(authed.Group("/chat"), msgStore, userStore)

	slog.Info("server listening", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
