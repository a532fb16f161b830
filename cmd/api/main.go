package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mintgate.org/internal/authz"
	"mintgate.org/internal/config"
	"mintgate.org/internal/httpapi"
	"mintgate.org/internal/obs"
	"mintgate.org/internal/sale"
	"mintgate.org/internal/store/pg"
	"mintgate.org/internal/stream"
	"mintgate.org/internal/token"
)

var (
	version = "0.3.1"
	commit  = "dev" // set via -ldflags at build time
)

func main() {
	// .env is optional; real deployments set the variables directly
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	key, err := authz.ParsePublicKey(cfg.AuthorityKey)
	if err != nil {
		log.Fatalf("authority key: %v", err)
	}
	authority, err := authz.NewAuthority(key)
	if err != nil {
		log.Fatalf("authority: %v", err)
	}

	tokens := token.NewInMemory()
	metadata := token.NewMetadata(cfg.BaseURI)

	var journal *pg.Journal
	if cfg.PGDSN != "" {
		journal, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
	}

	engineCfg := sale.Config{
		Owner:     cfg.Owner,
		Authority: authority,
		Whitelist: cfg.Whitelist,
		Public:    cfg.Public,
		MaxTotal:  cfg.MaxTotal,
		Tokens:    tokens,
		Metadata:  metadata,
	}
	if journal != nil {
		engineCfg.Journal = journal
	}
	engine, err := sale.NewEngine(engineCfg)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	if journal != nil {
		if err := restoreFromJournal(engine, tokens, journal); err != nil {
			log.Fatalf("recover: %v", err)
		}
	}

	st := stream.New()

	var probe httpapi.ReadyProbe
	if journal != nil {
		probe.DB = journal.DB()
	}
	api := httpapi.New(probe, version, engine, tokens, metadata, st)
	obs.SetReady(true)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting mintgate-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if journal != nil {
		_ = journal.Close()
	}
	log.Println("Stopped")
}

// restoreFromJournal restores the sale snapshot and replays receipts so token
// ownership matches what was sold before the restart.
func restoreFromJournal(engine *sale.Engine, tokens *token.InMemory, journal *pg.Journal) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	state, ok, err := journal.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := engine.Restore(state); err != nil {
		return err
	}
	return journal.ReplayReceipts(ctx, func(r sale.Receipt) error {
		for _, id := range r.TokenIDs() {
			if err := tokens.Mint(id, r.Buyer); err != nil {
				return err
			}
		}
		return nil
	})
}
