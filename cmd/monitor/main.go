// Command monitor is the loan-watch core: it starts the price oracle,
// the in-process event bus, the alert engine, the risk-tier scanner,
// the dashboard WebSocket feed, and every optional export sink
// (MySQL, Redis, NATS, Kafka), then blocks until told to shut down.
//
// Grounded on the teacher's cmd/simulation/main.go lifecycle: build
// every component up front, wire subscriptions, start goroutines, and
// tear everything down in reverse order on SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"loanwatch.io/pkg/alertengine"
	"loanwatch.io/pkg/audit"
	"loanwatch.io/pkg/bus"
	"loanwatch.io/pkg/config"
	"loanwatch.io/pkg/dashboard"
	"loanwatch.io/pkg/loan"
	"loanwatch.io/pkg/metrics"
	"loanwatch.io/pkg/notify"
	"loanwatch.io/pkg/price"
	"loanwatch.io/pkg/riskscan"
	"loanwatch.io/pkg/sysevent"
)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	config.LoadDotEnv()
	cfg := config.FromEnv()

	if err := loan.InitIDNode(cfg.SnowflakeNodeID); err != nil {
		log.Fatalf("init snowflake node: %v", err)
	}

	m := metrics.New()

	// -------------------------------------------------------------------
	// 1. Store (C6): MySQL if configured, otherwise an in-process store.
	// -------------------------------------------------------------------
	store, closeStore := buildStore(cfg)
	defer closeStore()

	var redisCache *loan.RedisCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		redisCache = loan.NewRedisCache(rdb)
		log.Printf("✅ Redis cache connected: %s", cfg.RedisAddr)
	}

	// -------------------------------------------------------------------
	// 2. Event bus (C5).
	// -------------------------------------------------------------------
	b := bus.New()

	var natsBridge *bus.NatsBridge
	if cfg.NatsURL != "" {
		var err error
		natsBridge, err = bus.NewNatsBridge(cfg.NatsURL, b)
		if err != nil {
			log.Fatalf("connect nats bridge: %v", err)
		}
		defer natsBridge.Close()
		log.Printf("✅ NATS bridge connected: %s", cfg.NatsURL)
	}

	var exporter *audit.Exporter
	if cfg.KafkaEnabled {
		var err error
		auditCfg := audit.DefaultConfig(cfg.KafkaBrokers)
		auditCfg.Topic = cfg.KafkaTopic
		exporter, err = audit.NewExporter(auditCfg)
		if err != nil {
			log.Fatalf("start kafka exporter: %v", err)
		}
		defer exporter.Close()
		log.Printf("✅ Kafka audit exporter started: %v", cfg.KafkaBrokers)
	}

	// -------------------------------------------------------------------
	// 3. Price oracle (C1-C3): sources feed the aggregator, which
	// publishes validated updates and degraded/circuit-breaker events
	// to the bus on cfg.PricePollInterval.
	// -------------------------------------------------------------------
	oracle := price.NewOracle(b, price.Config{
		TWAPWindowSeconds: cfg.TWAPWindowSeconds,
		CircuitBreakerPct: cfg.CircuitBreakerPct,
		MinSources:        cfg.MinSources,
		PricePollInterval: cfg.PricePollInterval,
	})

	b.OnPriceUpdate(func(update price.Update) {
		store.SetLastPrice(update)
		m.LastPrice.Set(update.Price)
		m.LastTWAP5m.Set(update.TWAP5m)
		m.PriceUpdatesTotal.WithLabelValues(string(update.Confidence)).Inc()
		for name, fresh := range oracle.SourceHealth() {
			stale := 0.0
			if !fresh {
				stale = 1.0
			}
			m.SourceStale.WithLabelValues(name).Set(stale)
		}
		if redisCache != nil {
			if err := redisCache.SetLastPrice(context.Background(), update); err != nil {
				log.Printf("[monitor] redis cache write failed: %v", err)
			}
		}
	})
	b.OnSourceTick(func(source string, tickPrice float64, timestampMs int64) {
		m.SourceTicksTotal.WithLabelValues(source).Inc()
	})

	// -------------------------------------------------------------------
	// 4. Notification sender: NATS-backed if configured, else logged
	// directly to the process log.
	// -------------------------------------------------------------------
	var sender notify.Sender = notify.LoggingSender{}
	if cfg.NatsURL != "" {
		natsSender, err := notify.NewNatsSender(cfg.NatsURL, "loanwatch.notify")
		if err != nil {
			log.Fatalf("start nats notify sender: %v", err)
		}
		defer natsSender.Close()
		sender = natsSender
	}

	// -------------------------------------------------------------------
	// 5. Alert engine (C4): edge-triggered crossing detection over
	// every price:update, with an optional Redis claim guard.
	// -------------------------------------------------------------------
	var claimer alertengine.Claimer
	if redisCache != nil {
		claimer = redisCache
	}
	engine := alertengine.New(store, sender, b, claimer)
	b.OnPriceUpdate(engine.OnPriceUpdate)

	b.OnSystemEvent(func(evt sysevent.Event) {
		if evt.Type == sysevent.CircuitBreaker {
			m.CircuitBreakerTrips.Inc()
		}
		if evt.Type == sysevent.SourceDegraded {
			m.SourceDegradedTotal.Inc()
		}
		if evt.Type == sysevent.AlertTriggered {
			if payload, ok := evt.Payload.(sysevent.AlertTriggeredPayload); ok {
				m.AlertsTriggered.WithLabelValues(string(payload.Kind)).Inc()
			}
		}
		if exporter != nil {
			if err := exporter.Export(evt); err != nil {
				log.Printf("[monitor] audit export failed: %v", err)
			}
		}
	})

	// -------------------------------------------------------------------
	// 6. Risk-tier scanner: periodic presentation-only classification
	// of every loan against the last published price.
	// -------------------------------------------------------------------
	scanner := riskscan.New(store, riskscan.DefaultScanInterval)

	// -------------------------------------------------------------------
	// 7. Dashboard: WebSocket rebroadcast of price:update, plus metrics.
	// -------------------------------------------------------------------
	broadcaster := dashboard.New()
	b.OnPriceUpdate(broadcaster.OnPriceUpdate)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", broadcaster.ServeWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/risk", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if token := r.URL.Query().Get("token"); token != "" {
			snap, ok := scanner.Snapshot(token)
			if !ok {
				http.Error(w, "no risk snapshot for token", http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(snap)
			return
		}
		json.NewEncoder(w).Encode(scanner.All())
	})
	httpServer := &http.Server{Addr: cfg.DashboardAddr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle.Start()
	defer oracle.Stop()
	log.Println("✅ Price Oracle Started")

	scanner.Start(ctx)
	defer scanner.Stop()
	log.Println("✅ Risk Scanner Started")

	go func() {
		log.Printf("✅ Dashboard listening on %s", cfg.DashboardAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[monitor] dashboard server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func buildStore(cfg config.Config) (loan.Store, func()) {
	if cfg.MySQLDSN == "" {
		return loan.NewMemoryStore(), func() {}
	}

	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("connect mysql: %v", err)
	}
	mysqlStore := loan.NewMySQLStore(db)
	if err := mysqlStore.Migrate(context.Background()); err != nil {
		log.Fatalf("migrate mysql schema: %v", err)
	}
	log.Printf("✅ MySQL store connected")
	return mysqlStore, func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
