package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"unichatclient/internal/api"
	"unichatclient/internal/events"
	"unichatclient/internal/redis"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversation over HTTP and server-sent events",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewBroadcaster()
	defer hub.Close()
	publishers := []events.Publisher{hub}

	var mirror *events.SnapshotMirror
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			return errors.Wrap(err, "create redis client")
		}
		defer rdb.Close()
		redisPub := events.NewRedisPublisher(rdb)
		defer redisPub.Close()
		mirror = events.NewSnapshotMirror(rdb)
		defer mirror.Close()
		publishers = append(publishers, redisPub, mirror)
		log.Info().Str("channel", events.RedisChannel).Msg("cli: publishing events to redis")
	}

	conv, err := buildConversation(ctx, cfg, publishers...)
	if err != nil {
		return err
	}
	if mirror != nil {
		mirror.Bind(conv.Snapshot)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	api.NewHandler(conv, hub).RegisterRoutes(router)

	srv := &http.Server{Addr: cfg.BasicConfig.ServerAddress, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("cli: http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	log.Info().Msg("cli: shutting down")
	// Streams block until their client leaves; closing the hub ends them.
	hub.Close()
	conv.Reset()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
