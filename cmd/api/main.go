package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"paygate/internal/cache"
	"paygate/internal/config"
	"paygate/internal/db"
	"paygate/internal/events"
	"paygate/internal/facilitator"
	"paygate/internal/gate"
	internalhttp "paygate/internal/http"
	"paygate/internal/models"
	"paygate/internal/pricing"
	"paygate/internal/provisioning"
	"paygate/internal/resolver"
	"paygate/internal/store"
	"paygate/internal/watcher"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	price, err := pricing.ParsePrice(cfg.Payment.Price)
	if err != nil {
		log.Fatalf("invalid payment.price: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var journal *store.Store
	if cfg.DB.DSN != "" {
		pool, err := db.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer pool.Close()
		journal = store.New(pool)
	} else {
		log.Printf("journal disabled: db.dsn is empty")
	}

	ttl := time.Duration(cfg.Payment.TTLMinutes) * time.Minute
	addressCache := cache.New(ttl)
	defer addressCache.Stop()

	provisioner := provisioning.NewClient(
		cfg.Provisioning.Endpoint,
		cfg.Provisioning.APIKey,
		time.Duration(cfg.Provisioning.TimeoutSeconds)*time.Second,
	)

	tokens, err := facilitator.NewTokenSource(cfg.Facilitator.KeyID, cfg.Facilitator.PrivateKeyPEM)
	if err != nil {
		log.Fatalf("facilitator token source failed: %v", err)
	}

	hooks := &events.Hooks{}
	hooks.OnVerify(nil, nil, func(ctx context.Context, ev events.Event) {
		log.Printf("verify failed network=%s payTo=%s: %v", ev.Network, ev.PayTo, ev.Err)
	})
	hooks.OnSettle(nil, nil, func(ctx context.Context, ev events.Event) {
		log.Printf("settle failed network=%s payTo=%s: %v", ev.Network, ev.PayTo, ev.Err)
	})
	if journal != nil {
		hooks.OnSettle(nil, func(ctx context.Context, ev events.Event) {
			jctx, jcancel := context.WithTimeout(ctx, 5*time.Second)
			defer jcancel()
			rec := models.SettlementRecord{
				ID:        uuid.NewString(),
				TxHash:    ev.Transaction,
				Network:   ev.Network,
				Payer:     ev.Payer,
				PayTo:     ev.PayTo,
				Amount:    ev.Amount,
				Status:    "settled",
				CreatedAt: ev.At,
			}
			if err := journal.InsertSettlement(jctx, rec); err != nil {
				log.Printf("journal settlement failed: %v", err)
			}
		}, nil)
	}

	facilitatorClient := facilitator.NewClient(
		cfg.Facilitator.BaseURL,
		tokens,
		time.Duration(cfg.Facilitator.TimeoutSeconds)*time.Second,
		hooks,
	)

	res := &resolver.Resolver{
		Cache:       addressCache,
		Provisioner: provisioner,
		Price:       price,
	}
	if journal != nil {
		res.Journal = journal
	}

	schemes := gate.Registry{}
	for _, opt := range cfg.Payment.Options {
		schemes[opt.Network] = &gate.ExactScheme{
			Option:      opt,
			Resolver:    res,
			Facilitator: facilitatorClient,
			Description: cfg.Resource.Description,
			MimeType:    cfg.Resource.MimeType,
			TTLSeconds:  int(ttl.Seconds()),
		}
	}
	g := &gate.Gate{Schemes: schemes, Options: cfg.Payment.Options}

	if journal != nil && cfg.Facilitator.WSEndpoint != "" {
		w := &watcher.Watcher{Endpoint: cfg.Facilitator.WSEndpoint, Journal: journal}
		go w.Run(ctx)
	}

	h := internalhttp.NewHandler(journal, cfg.Resource.Description)
	srv := internalhttp.NewServer(h, g)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s (price=%s, options=%d)", cfg.Server.Addr, price, len(cfg.Payment.Options))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	ctxShutdown, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
