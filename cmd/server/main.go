package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/parley-chat/parley/internal/server"
	"github.com/parley-chat/parley/internal/store"
)

func main() {
	envFile := flag.String("env-file", "", "optional .env file to load before reading the environment")
	addr := flag.String("addr", "", "TCP listen address (overrides SERVER_ADDR)")
	wsAddr := flag.String("ws-addr", "", "WebSocket listen address (overrides WS_ADDR)")
	userDB := flag.String("user-db", "", "path to the user database (overrides USER_DB)")
	banDB := flag.String("ban-db", "", "path to the ban list (overrides BAN_DB)")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("Loading %s: %v", *envFile, err)
		}
	} else {
		// Best-effort: a missing .env just means plain environment config.
		_ = godotenv.Load()
	}

	cfg := server.NewConfigFromEnv()
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *wsAddr != "" {
		cfg.WSAddr = *wsAddr
	}
	if *userDB != "" {
		cfg.UserDB = *userDB
	}
	if *banDB != "" {
		cfg.BanDB = *banDB
	}

	fmt.Println("Starting Parley chat server...")

	users, err := store.OpenFileUserStore(cfg.UserDB)
	if err != nil {
		log.Fatalf("Opening user store: %v", err)
	}

	var bans store.BanStore
	if cfg.RedisAddr != "" {
		rbs, err := store.OpenRedisBanStore(cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Opening redis ban store: %v", err)
		}
		bans = rbs
	} else {
		bans = store.NewFileBanStore(cfg.BanDB)
	}
	defer func() {
		if err := bans.Close(); err != nil {
			log.Printf("Closing ban store: %v", err)
		}
	}()

	srv, err := server.New(*cfg, users, bans)
	if err != nil {
		log.Fatalf("Initializing server: %v", err)
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("Starting server: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("Shutdown finished with error: %v", err)
	}
	fmt.Println("Server shut down gracefully.")
}
