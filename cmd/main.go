package main

import (
	"campus-chat/domain"
	grpcserver "campus-chat/infrastructure/grpc/server"
	httpserver "campus-chat/infrastructure/http/server"
	"campus-chat/repositories"
	"campus-chat/runtime"
	"campus-chat/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	kv, err := openStore(log, config)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing store", "backend", config.StoreBackend)
		_ = kv.Close()
	}()

	sup := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(log, kv, sup, registry, domain.SystemClock, runtime.Settings{
		BufferSize:     config.EventBufferSize,
		SinkTimeout:    config.SinkTimeout,
		ReaperInterval: config.ReaperInterval,
		SampleInterval: config.SampleInterval,
		PageLimit:      config.ListPageLimit,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}
	defer orchestrator.Stop()

	secret := []byte(config.JWTSecret)
	app := httpserver.New(log, orchestrator.ChatService(), orchestrator.Monitoring(), httpserver.Config{
		Secret:    secret,
		AccessLog: config.AccessLog,
	})

	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	health := grpcserver.NewHealthServer(log)
	s := grpcserver.NewGRPCServer(secret, health)

	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting gRPC server", "address", grpcAddress)
		if err := s.Serve(listener); err != nil && err != grpc.ErrServerStopped {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	httpAddress := fmt.Sprintf("%s:%d", config.Host, config.Port)
	go func() {
		log.Info("Starting HTTP server", "address", httpAddress)
		if err := app.Listen(httpAddress); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	health.MarkServing()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		health.Shutdown()
		s.Stop()
		_ = app.ShutdownWithTimeout(5 * time.Second)
		return err
	}

	health.Shutdown()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Warn("HTTP shutdown", "error", err)
	}
	s.GracefulStop()
	log.Info("Program stopped cleanly")
	return nil
}

func openStore(log *slog.Logger, config Config) (repositories.KV, error) {
	switch strings.ToLower(config.StoreBackend) {
	case "badger":
		db, err := repositories.OpenBadger(config.BadgerFilepath)
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		return repositories.NewBadgerKV(db, log), nil
	case "redis":
		return repositories.NewRedisKV(repositories.NewRedisClient(config.RedisAddr, config.RedisPassword, config.RedisDB)), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", config.StoreBackend)
	}
}
