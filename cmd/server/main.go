package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/gridduel/internal/game"
	"github.com/Tyrowin/gridduel/internal/logger"
	"github.com/Tyrowin/gridduel/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		logger.Setup("info", logger.FormatConsole)
		log.Fatal().Err(err).Msg("load config")
	}
	server.SetConfig(cfg)
	active := server.CurrentConfig()

	l := logger.Setup(active.LogLevel, active.LogFormat)
	log.Info().Msg("starting Grid Duel server")

	hub := server.NewHub()
	server.StartHub(hub)

	opts := active.GameOptions()
	opts.Notifier = hub
	opts.Logger = l.With().Str("component", "game").Logger()
	registry := game.NewRegistry(opts)

	httpServer := server.CreateServer(active.Port, server.NewRouter(server.NewHandler(registry, hub)))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	registry.Close()
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("hub shutdown")
	}
}
