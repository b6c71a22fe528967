package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rostersync/internal/audit"
	auditkafka "rostersync/internal/audit/kafka"
	"rostersync/internal/authority"
	authoritycache "rostersync/internal/authority/cache"
	"rostersync/internal/authority/httpsource"
	authoritystore "rostersync/internal/authority/store"
	"rostersync/internal/conversion"
	conversionhandler "rostersync/internal/conversion/handler"
	"rostersync/internal/fieldcrypt"
	"rostersync/internal/member/identity"
	memberstore "rostersync/internal/member/store"
	participationhandler "rostersync/internal/participation/handler"
	participationservice "rostersync/internal/participation/service"
	recordstore "rostersync/internal/participation/store"
	"rostersync/internal/platform/config"
	"rostersync/internal/platform/httpserver"
	"rostersync/internal/platform/logger"
	"rostersync/internal/platform/metrics"
	"rostersync/internal/platform/postgres"
	platformredis "rostersync/internal/platform/redis"
	"rostersync/internal/roster"
	rosterhandler "rostersync/internal/roster/handler"
	"rostersync/internal/staffauth"
	ledgerhandler "rostersync/internal/syncledger/handler"
	ledgerstore "rostersync/internal/syncledger/store"
	httptransport "rostersync/internal/transport/http"
)

// main wires dependencies explicitly and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirrorDB, err := postgres.Open(ctx, cfg.MirrorDSN)
	if err != nil {
		log.Error("mirror database unavailable", "error", err)
		os.Exit(1)
	}
	defer mirrorDB.Close()

	authorityPool, err := authoritystore.Connect(ctx, cfg.AuthorityDSN)
	if err != nil {
		log.Error("authority database unavailable", "error", err)
		os.Exit(1)
	}
	defer authorityPool.Close()
	upstream := authoritystore.NewPostgres(authorityPool)

	// Roster reads can come from the authority's HTTP API when configured,
	// otherwise straight from its database.
	var source authority.RosterSource = upstream
	if cfg.AuthorityURL != "" {
		source = httpsource.New(cfg.AuthorityURL)
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		source = authoritycache.New(source, redisClient.Client, config.RosterCacheTTL, log)
	}

	var publisher audit.Publisher = audit.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	codec := fieldcrypt.New(cfg.CryptoSecret,
		fieldcrypt.WithLogger(log),
		fieldcrypt.WithFailOpenHook(m.CryptoFailOpen.Inc),
	)

	members := memberstore.NewPostgres(mirrorDB)
	records := recordstore.NewPostgres(mirrorDB)
	ledger := ledgerstore.NewPostgres(mirrorDB)
	resolver := identity.New(members, codec, log)

	rosterService := roster.New(source, members, resolver, codec, ledger,
		roster.WithLogger(log),
		roster.WithMetrics(m),
		roster.WithAuditPublisher(publisher),
	)
	participationService := participationservice.New(source, records, members, resolver, ledger,
		participationservice.WithLogger(log),
		participationservice.WithMetrics(m),
		participationservice.WithAuditPublisher(publisher),
	)
	conversionService := conversion.New(upstream, newMirrorPostgresTx(mirrorDB), codec, ledger,
		conversion.WithLogger(log),
		conversion.WithMetrics(m),
		conversion.WithAuditPublisher(publisher),
	)

	jwt := staffauth.NewService(cfg.JWTSigningKey, "rostersync", "rostersync-staff")
	validator := staffauth.NewMiddlewareAdapter(jwt)

	router := httptransport.NewRouter(log, m,
		rosterhandler.New(rosterService, log, validator, cfg.APIKeyHash),
		participationhandler.New(participationService, log, validator),
		conversionhandler.New(conversionService, log, validator),
		ledgerhandler.New(ledger, log, validator),
	)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting rostersync", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
