package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindwell-app/speechcore/internal/audio"
	"github.com/mindwell-app/speechcore/internal/chat"
	"github.com/mindwell-app/speechcore/internal/config"
	"github.com/mindwell-app/speechcore/internal/listener"
	"github.com/mindwell-app/speechcore/internal/models"
	"github.com/mindwell-app/speechcore/internal/stt"
	"github.com/mindwell-app/speechcore/internal/tts"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/speechcore/config.yaml)")
	say := flag.String("say", "", "synthesize this text to a WAV file and exit")
	sayOut := flag.String("out", "speech.wav", "output file for -say")
	withChat := flag.Bool("chat", false, "send each utterance to the local chat model and print its reply")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	setupLogging(cfg.LogLevel)

	fetcher, err := models.NewFetcher(cfg.Models.Dir)
	if err != nil {
		log.Fatalf("models: %v", err)
	}
	fetcher.SetProgress(os.Stdout)

	if *say != "" {
		if err := runSay(cfg, fetcher, *say, *sayOut); err != nil {
			log.Fatalf("say: %v", err)
		}
		return
	}

	if err := runListen(cfg, fetcher, *withChat); err != nil {
		log.Fatalf("listen: %v", err)
	}
}

// runListen wires the full pipeline: model download, recognizer,
// microphone, listener loop.
func runListen(cfg *config.Config, fetcher *models.Fetcher, withChat bool) error {
	info, ok := models.Get(cfg.Models.STTModel)
	if !ok {
		return fmt.Errorf("unknown stt model %q", cfg.Models.STTModel)
	}
	if _, err := fetcher.Fetch(context.Background(), info); err != nil {
		return err
	}
	paths, err := fetcher.Resolve(info)
	if err != nil {
		return err
	}

	log.Println("Loading speech model...")
	loadStart := time.Now()
	recognizer := stt.New(stt.Config{
		Encoder:    paths.Encoder,
		Decoder:    paths.Decoder,
		Joiner:     paths.Joiner,
		Tokens:     paths.Tokens,
		SampleRate: int(cfg.Audio.SampleRate),
	})
	if err := recognizer.Initialize(); err != nil {
		return err
	}
	defer recognizer.Close()
	log.Printf("Model loaded in %s", time.Since(loadStart).Round(time.Millisecond))

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		return fmt.Errorf("microphone: %w (check microphone permissions)", err)
	}

	l := listener.New(listener.Config{
		SampleRate:   int(cfg.Audio.SampleRate),
		QueueDepth:   cfg.Listener.QueueDepth,
		PrerollMs:    cfg.Listener.PrerollMs,
		MaxSegmentMs: cfg.Listener.MaxSegmentMs,
		VAD: listener.VADConfig{
			EnergyThreshold: cfg.Listener.EnergyThreshold,
			MinSpeechMs:     cfg.Listener.MinSpeechMs,
			MinSilenceMs:    cfg.Listener.MinSilenceMs,
		},
	}, recorder, recognizer)

	if err := l.Initialize(); err != nil {
		recorder.Close()
		return err
	}
	// From here the listener owns the recorder; Close releases it.
	defer l.Close()

	utterances, err := l.Listen()
	if err != nil {
		return err
	}

	var completer *chat.Completer
	if withChat {
		completer = chat.New(chat.Config{
			BaseURL:     cfg.Chat.BaseURL,
			Model:       cfg.Chat.Model,
			MaxTokens:   cfg.Chat.MaxTokens,
			Temperature: cfg.Chat.Temperature,
			Timeout:     time.Duration(cfg.Chat.TimeoutSec) * time.Second,
		})
		if err := completer.Initialize(); err != nil {
			return err
		}
		defer completer.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Listening. Speak into the microphone; Ctrl+C to quit.")

	for {
		select {
		case u, ok := <-utterances:
			if !ok {
				return nil
			}
			log.Printf("[%.1fs] %s", u.Duration.Seconds(), u.Text)

			if completer != nil {
				reply, err := completer.Generate(context.Background(), u.Text)
				if err != nil {
					log.Printf("ERROR: chat reply failed: %v", err)
					continue
				}
				log.Printf("  -> %s", reply)
			}

		case sig := <-sigCh:
			log.Printf("Received %s, shutting down...", sig)
			return l.Close()
		}
	}
}

// runSay synthesizes text to a WAV file.
func runSay(cfg *config.Config, fetcher *models.Fetcher, text, outPath string) error {
	info, ok := models.Get(cfg.Models.TTSModel)
	if !ok {
		return fmt.Errorf("unknown tts model %q", cfg.Models.TTSModel)
	}
	if _, err := fetcher.Fetch(context.Background(), info); err != nil {
		return err
	}
	paths, err := fetcher.Resolve(info)
	if err != nil {
		return err
	}

	synth := tts.New(tts.Config{
		Model:   paths.Model,
		Tokens:  paths.Tokens,
		DataDir: paths.Dir,
	})
	if err := synth.Initialize(); err != nil {
		return err
	}
	defer synth.Close()

	audioOut, err := synth.Synthesize(text, 0, 1.0)
	if err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tts.WriteWAV(f, audioOut); err != nil {
		return err
	}
	log.Printf("Wrote %s (%.1fs at %dHz)", outPath, audioOut.Duration().Seconds(), audioOut.SampleRate)
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// setupLogging sets the process-wide slog level.
func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
