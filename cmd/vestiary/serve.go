// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/vestiary/vestiary/internal/action"
	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/config"
	"github.com/vestiary/vestiary/internal/logging"
	"github.com/vestiary/vestiary/internal/observability"
	"github.com/vestiary/vestiary/internal/restriction"
	"github.com/vestiary/vestiary/internal/room"
	"github.com/vestiary/vestiary/internal/state"
	"github.com/vestiary/vestiary/internal/store"
	"github.com/vestiary/vestiary/internal/transport/ws"
	"github.com/vestiary/vestiary/pkg/errutil"
)

const (
	persistInterval = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the room server",
		Long: `Start the websocket room server: loads the asset catalog,
restores room and character state from postgres and serves clients.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("vestiary", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server",
		"listen_addr", cfg.ListenAddr,
		"room_id", cfg.RoomID,
	)

	manager, err := assets.LoadDirectory(cfg.AssetsDir)
	if err != nil {
		return oops.Code("CATALOG_LOAD_FAILED").With("dir", cfg.AssetsDir).Wrap(err)
	}
	logger.Info("asset catalog loaded", "dir", cfg.AssetsDir)

	migrator, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	_ = migrator.Close()

	st, err := store.NewStore(ctx, cfg.DatabaseURL, manager, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("connected to database")

	roomBundle, err := st.LoadRoom(ctx, cfg.RoomID)
	if err != nil {
		return err
	}
	initial, err := state.Load(manager, state.Bundle{Room: roomBundle}, logger)
	if err != nil {
		return oops.Code("STATE_LOAD_FAILED").With("room_id", cfg.RoomID).Wrap(err)
	}

	roles := restriction.MustDefaultRoles()
	engine := action.NewEngine(roles, logger)

	rm := room.NewRoom(cfg.RoomID, logger,
		room.WithChatLimiter(room.NewChatLimiter(cfg.ChatBurst, cfg.ChatRate)))
	rt := room.NewRuntime(rm, engine, roles, initial, logger)

	server := ws.NewServer(rt, st, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.Handler())
	mux.HandleFunc("POST /internal/directory", directoryHandler(rt, logger))

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool { return true })
		action.RegisterMetrics(obsServer.Registry())
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go func() {
			if serveErr, ok := <-obsErrCh; ok && serveErr != nil {
				errutil.LogError(logger, "observability server failed", serveErr)
				stop()
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	// Periodic persistence of the current snapshot.
	persistDone := make(chan struct{})
	go func() {
		defer close(persistDone)
		ticker := time.NewTicker(persistInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				persist(ctx, st, rt, cfg.RoomID, logger)
			}
		}
	}()

	cmd.Println("Server started on " + cfg.ListenAddr)
	logger.Info("server ready", "room_id", cfg.RoomID)

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case serveErr := <-errCh:
		stop()
		errutil.LogError(logger, "listener failed", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	<-persistDone

	// Final save before the runtime goes away.
	persist(shutdownCtx, st, rt, cfg.RoomID, logger)

	rt.Close()
	rm.Close()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("observability shutdown", "error", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// directoryHandler accepts action messages relayed by the directory
// server. Replays are dropped by the room's directory-time marker.
func directoryHandler(rt *room.Runtime, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var messages []room.DirectoryMessage
		if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
			http.Error(w, "malformed payload", http.StatusBadRequest)
			return
		}
		if err := rt.ProcessDirectoryMessages(r.Context(), messages); err != nil {
			errutil.LogError(logger, "directory messages", err)
			http.Error(w, "room unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// persist writes the current snapshot's bundles to the store.
func persist(ctx context.Context, st *store.Store, rt *room.Runtime, roomID string, logger *slog.Logger) {
	bundle := rt.State().Export()
	if err := st.SaveRoom(ctx, roomID, bundle.Room); err != nil {
		errutil.LogError(logger, "save room", err)
	}
	for id, cb := range bundle.Characters {
		if err := st.SaveCharacter(ctx, id, cb); err != nil {
			errutil.LogError(logger, "save character", err)
		}
	}
}
