// Command labelcompose composes shipping labels from the command line and
// manages the shared catalog and queue of the worker.
//
// Usage:
//
//	labelcompose process [-o out.pdf] [-catalog produtos.yaml] [-outdir dir] <input>...
//	labelcompose demo
//	labelcompose catalog show [-codes]
//	labelcompose catalog import [-replace] <file>...
//	labelcompose enqueue <input> <output>
//	labelcompose status [<jobId>]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/labelcompose-worker/internal/config"
	"github.com/adverant/nexus/labelcompose-worker/internal/logging"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = []command{
	{"process", "process [-o out.pdf] [-catalog file] [-outdir dir] <input>...", runProcess},
	{"demo", "demo", runDemo},
	{"catalog", "catalog show [-codes] | catalog import [-replace] <file>...", runCatalog},
	{"enqueue", "enqueue <input> <output>", runEnqueue},
	{"status", "status [<jobId>]", runStatus},
}

// cliEnv carries what every subcommand shares
type cliEnv struct {
	cfg    *config.Config
	logger *logging.Logger
}

func main() {
	if err := godotenv.Load(".env.labelcompose"); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to read .env.labelcompose: %v", err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	env := &cliEnv{
		cfg:    cfg,
		logger: logging.NewLoggerTo(os.Stderr, "labelcompose", logging.ParseLevel(cfg.LogLevel)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, env, os.Args[2:]); err != nil {
			env.logger.Error("Command failed", "command", name, "error", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  labelcompose %s\n", c.usage)
	}
}

// redisClient opens and pings the Redis instance of the configuration
func (e *cliEnv) redisClient(ctx context.Context) (*redis.Client, error) {
	opt, err := redis.ParseURL(e.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
