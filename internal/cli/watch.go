package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"unichatclient/internal/events"
	"unichatclient/internal/redis"
)

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print conversation events published to redis by a running server",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print raw JSON events")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Redis.Enabled() {
		return errors.New("watch requires redis.host in the config")
	}
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		return errors.Wrap(err, "create redis client")
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	snap, ok, err := events.LoadSnapshot(ctx, rdb)
	if err != nil {
		log.Warn().Err(err).Msg("cli: could not load current transcript")
	} else if ok && !watchJSON {
		for _, turn := range snap.Turns {
			printTurn(out, turn)
		}
	}
	pub := events.NewRedisPublisher(rdb)
	defer pub.Close()
	return pub.Listen(ctx, func(ev events.Event) {
		printEvent(out, ev, watchJSON)
	})
}

func printEvent(w io.Writer, ev events.Event, raw bool) {
	if raw {
		data, err := json.Marshal(ev)
		if err == nil {
			fmt.Fprintln(w, string(data))
		}
		return
	}
	stamp := ev.At.Format("15:04:05")
	if ev.Turn == nil {
		fmt.Fprintf(w, "%s %s conversation=%s\n", stamp, ev.Kind, ev.ConversationID)
		return
	}
	content := ev.Turn.Content
	if ev.Turn.Pending {
		content = "..."
	}
	fmt.Fprintf(w, "%s %s #%d %s: %s\n", stamp, ev.Kind, ev.Turn.ID, ev.Turn.Role, content)
}
