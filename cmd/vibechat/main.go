package main

import (
	"flag"
	"log"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rochd1/the-final-progect/internal/auth"
	"github.com/rochd1/the-final-progect/internal/chat"
	"github.com/rochd1/the-final-progect/internal/config"
	"github.com/rochd1/the-final-progect/internal/friends"
	"github.com/rochd1/the-final-progect/internal/messages"
	"github.com/rochd1/the-final-progect/internal/storage"
	"github.com/rochd1/the-final-progect/internal/storage/postgres"
	"github.com/rochd1/the-final-progect/internal/storage/sqlite"
	"github.com/rochd1/the-final-progect/internal/users"
)

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	//config part
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using process environment")
	}
	cfg := config.MustLoad()

	//database handling
	var (
		conn       *storage.Handle
		schemaFile string
		err        error
	)
	switch cfg.DBDriver {
	case "postgres":
		conn, err = postgres.New(cfg.PostgresDsn)
		schemaFile = postgres.SchemaFile
	default:
		conn, err = sqlite.New(cfg.SQLITEDsn)
		schemaFile = sqlite.SchemaFile
	}
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer conn.Close()

	if *migrate {
		if err := conn.Migrate(schemaFile); err != nil {
			log.Fatalf("Migration failed %v", err)
		}
		slog.Info("Migration Completed")
		return
	}

	msgStore := &messages.Store{DB: conn}
	friendStore := &friends.Store{DB: conn}

	hub := chat.NewHub(conn, msgStore, friendStore)
	go hub.Run()

	r := gin.Default()

	api := r.Group("/api")
	users.RegisterPublic(api.Group("/auth"), conn, cfg)

	authed := api.Group("", auth.JWTMiddleware(cfg.JWTSecret))
	users.Register(authed, conn)
	friends.Register(authed, conn, friendStore)
	messages.Register(authed, msgStore, hub)

	chat.RegisterWS(r.Group(""), hub, cfg.JWTSecret)

	slog.Info("starting vibechat", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
