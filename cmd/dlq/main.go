// cmd/dlq: inspects the price recalculation dead letter queue and moves
// entries back to the live queue once the cause is fixed.
// Uso: go run ./cmd/dlq [-reencolar N]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"servivent/internal/config"
	"servivent/internal/infra"
	"servivent/internal/worker"

	"github.com/rs/zerolog/log"
)

func main() {
	n := flag.Int("reencolar", 0, "cantidad de trabajos a devolver a la cola (0 solo informa)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *n > 0 {
		moved, err := worker.Reencolar(ctx, rdb, worker.QueuePrecios, *n)
		if err != nil {
			log.Fatal().Err(err).Int("movidos", moved).Msg("reencolar failed")
		}
		log.Info().Int("movidos", moved).Str("queue", worker.QueuePrecios).Msg("dlq: jobs requeued")
	}

	pending, err := worker.DLQLength(ctx, rdb, worker.QueuePrecios)
	if err != nil {
		log.Fatal().Err(err).Msg("dlq length failed")
	}
	fmt.Fprintf(os.Stdout, "%s%s  %d\n", worker.DLQPrefix, worker.QueuePrecios, pending)
}
