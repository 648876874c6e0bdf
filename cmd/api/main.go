package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/audit"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/auth"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/config"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/httpapi"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/obs"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/phi"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/record"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/store/pg"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Missing key material must keep the service down, not degrade it.
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cipher, err := phi.NewCipher([]byte(cfg.PHIMasterKey))
	if err != nil {
		log.Fatalf("phi cipher: %v", err)
	}
	codec := phi.NewCodec(cipher)

	// Postgres when a DSN is configured, in-memory stores otherwise. The
	// in-memory mode exists for demos and loses everything on restart.
	var (
		authStore   auth.Store
		recordStore record.Store
		auditStore  audit.Store
		pgStore     *pg.Store
	)
	if cfg.PGDSN != "" {
		pgStore, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		authStore = pgStore.Principals
		recordStore = pgStore.Recordings
		auditStore = pgStore.Audit
	} else {
		log.Printf("CARDIOAI_PG_DSN is empty; using in-memory stores")
		authStore = auth.NewMemStore()
		recordStore = record.NewMemStore()
		auditStore = audit.NewMemStore()
	}

	authSvc, err := auth.NewService(authStore, []byte(cfg.AuthSecret),
		auth.WithIssuer("cardioai"),
		auth.WithTokenTTL(cfg.TokenTTL),
		auth.WithBcryptCost(cfg.BcryptCost),
		auth.WithLoginPolicy(cfg.LoginMaxAttempts, cfg.LockWindow),
		auth.WithLockoutHook(obs.IncLockout),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	recordSvc, err := record.NewService(recordStore, codec)
	if err != nil {
		log.Fatalf("record service: %v", err)
	}

	st := stream.New()
	interceptor, err := audit.NewInterceptor(auditStore,
		audit.WithPublisher(func(e audit.Entry) { st.Publish(stream.FromEntry(e)) }),
	)
	if err != nil {
		log.Fatalf("audit interceptor: %v", err)
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := authSvc.EnsureAccount(ctx, cfg.AdminEmail, cfg.AdminPassword, "Administrator", auth.RoleAdmin); err != nil {
			cancel()
			log.Fatalf("bootstrap admin: %v", err)
		}
		cancel()
	}

	rp := httpapi.ReadyProbe{}
	if pgStore != nil {
		rp.DB = pgStore.DB()
	}
	api := httpapi.New(rp, version, authSvc, recordSvc, auditStore, interceptor, st)
	api.ConfigureLimits(cfg.MaxBodyBytes, cfg.RateBurst, cfg.RatePerSecond)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("starting cardioai-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("stopped")
}
