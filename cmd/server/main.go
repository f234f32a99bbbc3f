package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"manaforge.ai/internal/catalogs"
	"manaforge.ai/internal/config"
	"manaforge.ai/internal/genai"
	"manaforge.ai/internal/persistence/docstore"
	"manaforge.ai/internal/persistence/eventlog"
	"manaforge.ai/internal/session"
	"manaforge.ai/internal/transport/ws"
	"manaforge.ai/internal/tuning"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		dataDir      = flag.String("data", "", "runtime data directory (default: MANAFORGE_DATA_DIR)")
		storeKind    = flag.String("store", "", "document store: file or sqlite (default: MANAFORGE_STORE)")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (optional)")
		catalogsPath = flag.String("catalogs", "", "path to catalogs yaml (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if v := strings.TrimSpace(*dataDir); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(*storeKind); v != "" {
		cfg.Store = v
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	cat := catalogs.Default()
	if p := strings.TrimSpace(*catalogsPath); p != "" {
		if cat, err = catalogs.Load(p); err != nil {
			logger.Fatalf("load catalogs: %v", err)
		}
	}

	store, err := docstore.Open(cfg.Store, cfg.StorePath(), logger)
	if err != nil {
		logger.Fatalf("open %s store: %v", cfg.Store, err)
	}
	defer store.Close()

	if cfg.OpenAIAPIKey == "" {
		logger.Printf("MANAFORGE_OPENAI_API_KEY is empty; backend calls will fail")
	}
	backend := genai.NewRetrying(genai.NewOpenAI(genai.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		TextModel:  cfg.TextModel,
		ImageModel: cfg.ImageModel,
	}), genai.RetryPolicy{
		Attempts:  tune.Backend.RetryAttempts,
		BaseDelay: time.Duration(tune.Backend.RetryBaseDelayMs) * time.Millisecond,
	}, logger)

	storyLog := eventlog.NewStoryLogger(cfg.DataDir)
	defer storyLog.Close()

	var rnd session.Rand
	if cfg.Seed != 0 {
		rnd = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	}

	ctx, cancel := signalContext()
	defer cancel()

	sess := session.New(session.Config{
		Store:    store,
		Backend:  backend,
		Tuning:   tune,
		Catalogs: cat,
		Rand:     rnd,
		Sink:     storyLog,
		Logger:   logger,
	})
	if err := sess.Load(ctx); err != nil {
		logger.Fatalf("load session: %v", err)
	}

	wsSrv := ws.NewServer(sess, cat, tune.Digest(), logger)
	mux := newMux(httpDeps{
		sess:    sess,
		ws:      wsSrv,
		dataDir: cfg.DataDir,
		admin:   cfg.EnableAdminHTTP,
		pprof:   cfg.EnablePprof,
		log:     logger,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (store=%s data=%s)", *addr, cfg.Store, cfg.DataDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
