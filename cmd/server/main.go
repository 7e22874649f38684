package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"conctree/api/grpcserver"
	"conctree/infra/config"
	"conctree/infra/kafka"
	"conctree/infra/logutil"
	"conctree/infra/outbox"
	"conctree/infra/snapshot"
	"conctree/infra/wal"
	"conctree/jobs/broadcaster"
	"conctree/service"
	"conctree/smr"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			panic(err)
		}
	}

	logger, err := logutil.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// ---------------- Reclamation ----------------

	kind, opts, err := cfg.SchemeOptions()
	if err != nil {
		return err
	}
	opts.Logger = logger
	opts.Metrics = smr.NewMetrics(reg)
	scheme, err := smr.New(kind, opts)
	if err != nil {
		return err
	}
	defer scheme.Close()

	// ---------------- Storage ----------------

	var w *wal.WAL
	if cfg.WAL.Enabled {
		w, err = wal.Open(wal.Config{
			Dir:             cfg.WAL.Dir,
			SegmentSize:     cfg.WAL.SegmentSize,
			SegmentDuration: cfg.WAL.SegmentDuration.Std(),
		}, logger)
		if err != nil {
			return errors.Wrap(err, "wal init failed")
		}
		defer w.Close()
	}

	store, err := snapshot.Open(cfg.Snapshot.Dir, logger)
	if err != nil {
		return errors.Wrap(err, "snapshot store init failed")
	}
	defer store.Close()

	var box *outbox.Outbox
	if cfg.Kafka.Enabled {
		if box, err = outbox.Open(cfg.Outbox.Dir, logger); err != nil {
			return errors.Wrap(err, "outbox init failed")
		}
		defer box.Close()
	}

	// ---------------- Service ----------------

	svcOpts := service.Options{WAL: w, Store: store, Logger: logger}
	if box != nil {
		svcOpts.Events = box
	}
	svc := service.New(scheme, svcOpts)
	if _, err := svc.Restore(); err != nil {
		return errors.Wrap(err, "restore failed")
	}

	var bc *broadcaster.Broadcaster
	if box != nil {
		pub, err := kafka.NewPublisher(cfg.Kafka)
		if err != nil {
			return errors.Wrap(err, "kafka init failed")
		}
		bc = broadcaster.New(box, pub, cfg.Kafka.Interval.Std(), cfg.Kafka.Batch, reg, logger)
		defer bc.Close()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.GRPC.Addr)
	}
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryLogger(logger)))
	grpcserver.Register(grpcSrv, grpcserver.NewServer(svc, logger))

	// ---------------- Background Jobs ----------------

	g, gctx := errgroup.WithContext(ctx)

	reclaimer := smr.NewReclaimer(scheme, cfg.Scheme.CollectInterval.Std(), logger)
	g.Go(func() error {
		reclaimer.Run(gctx)
		return nil
	})

	g.Go(func() error {
		svc.RunSnapshots(gctx, cfg.Snapshot.Interval.Std())
		return nil
	})

	if bc != nil {
		g.Go(func() error {
			bc.Run(gctx)
			return nil
		})
	}

	if cfg.Metrics.Enabled {
		metricsSrv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		logger.Info("conctree server running",
			zap.String("addr", cfg.GRPC.Addr),
			zap.Stringer("scheme", kind),
			zap.Int("entries", svc.Len()))
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcSrv.GracefulStop()
		return nil
	})

	err = g.Wait()

	// ---------------- Shutdown ----------------

	if seq, cpErr := svc.Checkpoint(); cpErr != nil {
		logger.Warn("final checkpoint failed", zap.Error(cpErr))
	} else {
		logger.Info("final checkpoint", zap.Uint64("seq", seq))
	}
	scheme.ForceDispose()
	logger.Info("server stopped", zap.Int("pending", scheme.Pending()))
	return err
}
