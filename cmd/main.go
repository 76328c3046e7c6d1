package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xV8/orderbuddy-main/internal/agent"
	"github.com/0xV8/orderbuddy-main/internal/api"
	"github.com/0xV8/orderbuddy-main/internal/config"
	"github.com/0xV8/orderbuddy-main/internal/dispatch"
	"github.com/0xV8/orderbuddy-main/internal/guard"
	"github.com/0xV8/orderbuddy-main/internal/kafka"
	"github.com/0xV8/orderbuddy-main/internal/logger"
	"github.com/0xV8/orderbuddy-main/internal/model"
	"github.com/0xV8/orderbuddy-main/internal/printer"
	"github.com/0xV8/orderbuddy-main/internal/raster"
	"github.com/0xV8/orderbuddy-main/internal/receipt"
	"github.com/0xV8/orderbuddy-main/internal/telemetry"
)

const (
	appName    = "OrderBuddy Print Agent"
	appVersion = "1.0.0"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configFile := pflag.StringP("config", "c", "config/config.json", "path to the JSON config file")
	showVersion := pflag.BoolP("version", "v", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(appName, appVersion)
		return
	}

	if err := run(*configFile); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, model.ContextAppName, appName)
	ctx = context.WithValue(ctx, model.ContextAppVersion, appVersion)

	// 1. Load Configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()
	log.Info("configuration loaded",
		zap.String("version", appVersion),
		zap.String("api_url", cfg.ApiUrl),
		zap.String("ws_url", cfg.WsUrl),
		zap.String("guard", cfg.Guard.Backend))

	// 2. Print guard
	g, closeGuard, err := newGuard(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeGuard()

	// 3. Printer pool and formatters
	pool := printer.NewPool(printer.Config{
		ConnectTimeout: cfg.Printer.ConnectTimeout.D(),
		WriteTimeout:   cfg.Printer.WriteTimeout.D(),
		IdleTimeout:    cfg.Printer.IdleTimeout.D(),
		SettleDelay:    cfg.Printer.SettleDelay.D(),
		QueueSize:      cfg.Printer.QueueSize,
	}, log.Named("printer"))

	text, err := receipt.NewFormatter(receipt.Options{
		Columns:  cfg.Receipt.Columns,
		CodePage: cfg.Receipt.CodePage,
		Currency: cfg.Receipt.Currency,
		Brand:    cfg.Receipt.Brand,
		MenuURL:  cfg.Receipt.MenuURL,
		Location: cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("receipt: %w", err)
	}

	policy, err := dispatch.ParsePolicy(cfg.Guard.Policy)
	if err != nil {
		return err
	}

	// 4. Telemetry
	reporter, closeTelemetry := newReporter(cfg, log)

	opts := []dispatch.Option{
		dispatch.WithLogger(log.Named("dispatch")),
		dispatch.WithReporter(reporter),
		dispatch.WithRetries(cfg.Printer.Retries),
		dispatch.WithRetryBase(cfg.Printer.RetryBase.D()),
		dispatch.WithPolicy(policy),
	}
	if cfg.Raster.Enabled {
		rf, err := newRasterFormatter(cfg, text, log)
		if err != nil {
			return err
		}
		opts = append(opts, dispatch.WithFormatter(model.PrinterTypeRaster, rf))
	}
	d := dispatch.New(g, pool, text, opts...)

	// 5. Start triggers
	grp, gctx := errgroup.WithContext(ctx)
	triggers := 0

	if cfg.HTTPAddr != "" {
		triggers++
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewRouter(api.NewPrintHandler(d, api.DefaultProbeTimeout), log.Named("http"), 60*time.Second),
			ReadHeaderTimeout: 10 * time.Second,
		}
		grp.Go(func() error {
			log.Info("starting http", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		grp.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if cfg.Kafka.Brokers != "" {
		triggers++
		consumer := kafka.NewConsumer(kafka.NewReader(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}), d, log.Named("kafka"))
		log.Info("kafka consumer starting", zap.String("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
		grp.Go(func() error { return consumer.Run(gctx) })
	}

	agents := startAgents(gctx, grp, cfg, d, log)
	triggers += agents

	if triggers == 0 {
		log.Warn("no trigger configured (http, kafka or websocket printers), exiting")
		stop()
	} else {
		log.Info("system running", zap.Int("websocket_printers", agents))
	}

	err = grp.Wait()
	log.Info("shutting down")

	// 6. Drain printers and telemetry
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if perr := pool.Close(sctx); perr != nil {
		log.Warn("printer pool did not drain", zap.Error(perr))
	}
	closeTelemetry(sctx)
	return err
}

func newGuard(ctx context.Context, cfg *config.Config, log *zap.Logger) (guard.Guard, func(), error) {
	if cfg.Guard.Backend == "redis" {
		client, err := guard.ConnectRedis(ctx, cfg.Guard.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis guard: %w", err)
		}
		log.Info("print guard backed by redis", zap.Duration("window", cfg.Guard.Window.D()))
		closeClient := func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close failed", zap.Error(err))
			}
		}
		return guard.NewRedis(client, cfg.Guard.Window.D(), cfg.Guard.KeyPrefix), closeClient, nil
	}
	log.Info("print guard in memory", zap.Duration("window", cfg.Guard.Window.D()))
	return guard.NewMemory(
		guard.WithWindow(cfg.Guard.Window.D()),
		guard.WithMaxEntries(cfg.Guard.MaxEntries),
		guard.WithLogger(log.Named("guard")),
	), func() {}, nil
}

func newReporter(cfg *config.Config, log *zap.Logger) (telemetry.Reporter, func(context.Context)) {
	reporters := []telemetry.Reporter{telemetry.Log{Logger: log.Named("telemetry")}}
	var closers []func(context.Context)

	if cfg.Telemetry.URL != "" {
		h := telemetry.NewHTTP(cfg.Telemetry.URL, cfg.APIKey, cfg.Telemetry.QueueSize, log.Named("telemetry"))
		reporters = append(reporters, h)
		closers = append(closers, func(ctx context.Context) {
			if err := h.Close(ctx); err != nil {
				log.Warn("telemetry did not drain", zap.Error(err))
			}
		})
	}
	if cfg.Kafka.Brokers != "" && cfg.Kafka.EventsTopic != "" {
		k := telemetry.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, log.Named("telemetry"))
		reporters = append(reporters, k)
		closers = append(closers, func(context.Context) {
			if err := k.Close(); err != nil {
				log.Warn("telemetry writer close failed", zap.Error(err))
			}
		})
	}

	closeAll := func(ctx context.Context) {
		for _, c := range closers {
			c(ctx)
		}
	}
	return telemetry.Multi{Reporters: reporters, Logger: log}, closeAll
}

func newRasterFormatter(cfg *config.Config, text *receipt.Formatter, log *zap.Logger) (*raster.Formatter, error) {
	chrome := cfg.Raster.ChromePath
	if chrome == "" {
		path, ok := raster.FindChrome()
		if !ok {
			return nil, errors.New("raster printing needs Chrome or Chromium, none found")
		}
		chrome = path
	}
	log.Info("raster printing enabled", zap.String("chrome", chrome), zap.String("version", raster.ChromeVersion(chrome)))
	return raster.NewFormatter(text, raster.Chrome{ExecPath: chrome}, raster.Config{
		Width:        cfg.Raster.Width,
		TemplatePath: cfg.Raster.TemplatePath,
	})
}

// startAgents runs one websocket agent per enabled printer that has an
// agent key, registering printers that have none yet.
func startAgents(ctx context.Context, grp *errgroup.Group, cfg *config.Config, d agent.Dispatcher, log *zap.Logger) int {
	if cfg.WsUrl == "" || cfg.APIKey == "" {
		return 0
	}

	printers, err := config.LoadPrinters(cfg.PrintersFile)
	if err != nil {
		log.Warn("error loading printers, starting fresh", zap.Error(err))
	}
	dirty := false
	if len(printers) == 0 {
		remote, err := agent.ListPrinters(ctx, cfg.ApiUrl, cfg.APIKey)
		if err != nil {
			log.Warn("could not fetch printers from server", zap.Error(err))
		}
		printers, dirty = remote, len(remote) > 0
	}

	for i := range printers {
		if printers[i].AgentKey != "" || !printers[i].IsEnabled {
			continue
		}
		if err := agent.Register(ctx, cfg.ApiUrl, cfg.APIKey, &printers[i]); err != nil {
			log.Warn("failed to register printer", zap.String("printer", printers[i].Label()), zap.Error(err))
			continue
		}
		log.Info("printer registered", zap.String("printer", printers[i].Label()))
		dirty = true
	}
	if dirty {
		if err := config.SavePrinters(cfg.PrintersFile, printers); err != nil {
			log.Warn("failed to save printers", zap.Error(err))
		}
	}

	active := 0
	for _, p := range printers {
		if p.AgentKey == "" || !p.IsEnabled {
			continue
		}
		active++
		a := agent.New(p, cfg.WsUrl, cfg.APIKey, cfg.ReconnectDelay.D(), d, log.Named("agent"))
		grp.Go(func() error {
			a.Run(ctx)
			return nil
		})
	}
	return active
}
