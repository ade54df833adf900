// Command snapshot-feeder replays a JSONL file of round snapshots into the
// tracker's websocket, one snapshot per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shoe-tracker/internal/config"
	"shoe-tracker/internal/logging"
	"shoe-tracker/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const maxLineBytes = 1 << 20

type feedResult struct {
	Sent     int
	Rejected int
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	defer logging.Close()
	cfg, err := config.LoadFeeder()
	if err != nil {
		log.Fatal().Err(err).Msg("load feeder config failed")
	}

	in := io.Reader(os.Stdin)
	if cfg.File != "" {
		f, err := os.Open(cfg.File)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.File).Msg("open snapshot file failed")
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.WSURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.WSURL).Msg("dial failed")
	}
	defer conn.Close()

	res, err := feed(ctx, conn, in, cfg.Delay)
	if err != nil {
		log.Error().Err(err).Int("sent", res.Sent).Msg("feed stopped")
	}
	log.Info().Int("sent", res.Sent).Int("rejected", res.Rejected).Msg("feed_complete")
}

// feed sends every non-empty line of in as one text frame and waits for its
// ack before sleeping delay and moving on.
func feed(ctx context.Context, conn *websocket.Conn, in io.Reader, delay time.Duration) (feedResult, error) {
	var res feedResult
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			return res, fmt.Errorf("write line %d: %w", line, err)
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return res, fmt.Errorf("read ack for line %d: %w", line, err)
		}
		var ack ws.Ack
		if err := json.Unmarshal(msg, &ack); err != nil {
			return res, fmt.Errorf("decode ack for line %d: %w", line, err)
		}
		res.Sent++
		if !ack.Ok {
			res.Rejected++
			log.Warn().Int("line", line).Str("game_id", ack.GameID).Str("error", ack.Error).Msg("snapshot_rejected")
		} else {
			log.Debug().Int("line", line).Str("game_id", ack.GameID).Str("shoe", ack.ActiveShoe).Msg("snapshot_acked")
		}

		if delay > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read snapshots: %w", err)
	}
	return res, nil
}
