// Command mediafactoryd runs the pipeline daemon with settings taken from the
// environment, for service managers that cannot pass CLI flags.
package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"mediafactory/internal/config"
	"mediafactory/internal/daemonrun"
)

func main() {
	_ = godotenv.Load()

	cfg, _, _, err := config.Load(strings.TrimSpace(os.Getenv("MEDIAFACTORY_CONFIG")))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, optionsFromEnv(os.Getenv)); err != nil {
		log.Fatalf("daemon: %v", err)
	}
}

func optionsFromEnv(getenv func(string) string) daemonrun.Options {
	opts := daemonrun.Options{
		LogLevel:   strings.TrimSpace(getenv("MEDIAFACTORY_LOG_LEVEL")),
		DisableAPI: parseBool(getenv("MEDIAFACTORY_DISABLE_API")),
	}
	if n, err := strconv.Atoi(strings.TrimSpace(getenv("MEDIAFACTORY_WORKERS"))); err == nil && n > 0 {
		opts.Workers = n
	}
	return opts
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}
