// fetch-models downloads the on-device model artifacts ahead of first
// use, so the main binary never blocks on a cold start.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mindwell-app/speechcore/internal/config"
	"github.com/mindwell-app/speechcore/internal/models"
)

func main() {
	dir := flag.String("dir", config.DefaultModelsDir(), "models directory")
	kind := flag.String("kind", "all", "which models to fetch: stt, tts, chat, or all")
	list := flag.Bool("list", false, "list available models and exit")
	flag.Parse()

	fetcher, err := models.NewFetcher(*dir)
	if err != nil {
		log.Fatalf("models dir: %v", err)
	}
	fetcher.SetProgress(os.Stdout)

	if *list {
		for _, m := range models.Catalog {
			status := " "
			if fetcher.Present(m) {
				status = "x"
			}
			fmt.Printf("[%s] %-22s %-6s %s (%.0f MB)\n", status, m.ID, m.Kind, m.Name, float64(m.Size)/(1024*1024))
		}
		return
	}

	var wanted []models.ModelInfo
	switch *kind {
	case "all":
		wanted = models.Catalog
	case "stt", "tts", "chat":
		wanted = models.ByKind(models.Kind(*kind))
	default:
		log.Fatalf("unknown -kind %q (expected stt, tts, chat, or all)", *kind)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, m := range wanted {
		path, err := fetcher.Fetch(ctx, m)
		if err != nil {
			log.Fatalf("fetching %s: %v", m.ID, err)
		}
		fmt.Printf("  %s ready at %s\n", m.ID, path)
	}
}
