package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"

	"github.com/kubesight/kubesight/internal/aggregate"
	"github.com/kubesight/kubesight/internal/cluster"
	"github.com/kubesight/kubesight/internal/config"
	"github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/health"
	"github.com/kubesight/kubesight/internal/kube"
	"github.com/kubesight/kubesight/internal/notify"
	"github.com/kubesight/kubesight/internal/observability"
	"github.com/kubesight/kubesight/internal/profile"
	"github.com/kubesight/kubesight/internal/scheduler"
	"github.com/kubesight/kubesight/internal/store"
	"github.com/kubesight/kubesight/internal/transport"
	"github.com/kubesight/kubesight/pkg/model"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// 1. Load and validate config.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// 2. Create context with signal handling.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	slog.Info("kubesight starting",
		"version", version,
		"instance_id", cfg.InstanceID,
		"kubeconfig", cfg.Kubeconfig,
		"refresh_interval", cfg.RefreshInterval,
	)

	// 3. Create shared infrastructure.
	metrics := observability.NewMetrics()
	errCollector := errors.NewErrorCollector(errors.RealClock{})
	hub := notify.NewHub(metrics)
	views := store.NewViewStore()

	// 4. Load connection profiles and select the initial context.
	factory := profile.KubeFactory{
		Kubeconfig: cfg.Kubeconfig,
		Options: kube.Options{
			QPS:       cfg.QPS,
			Burst:     cfg.Burst,
			Timeout:   cfg.RequestTimeout,
			Wrap:      transport.Instrument(logger, metrics, 2),
			UserAgent: "kubesight/" + version,
		},
	}
	registry := profile.NewRegistry(
		profile.KubeconfigSource{Path: cfg.Kubeconfig},
		profile.NewFileStore(cfg.ProfileStorePath),
		factory,
		profile.WithPublisher(hub),
		profile.WithMetrics(metrics),
	)
	registry.Load()

	initial := cfg.InitialContext
	if initial == "" {
		initial = registry.CurrentContext()
	}
	if initial == "" {
		slog.Warn("no context selected, views stay disconnected until one is", "profiles", len(registry.ProfileNames()))
	} else if err := registry.SwitchContext(initial); err != nil {
		errCollector.Report(toError(err))
		slog.Error("failed to select initial context", "context", initial, "error", err)
	} else {
		registry.SetNamespace(cfg.InitialNamespace)
	}

	// 5. Build the facade and the snapshot engine.
	facade := cluster.New(registry,
		cluster.WithTimeout(cfg.RequestTimeout),
		cluster.WithMetrics(metrics),
		cluster.WithErrorCollector(errCollector),
		cluster.WithPublisher(hub),
	)
	engine := aggregate.NewEngine(facade, registry,
		aggregate.WithHistoryLength(cfg.HistoryLength),
		aggregate.WithMetrics(metrics),
		aggregate.WithErrorCollector(errCollector),
	)

	// 6. Mount one refresh worker per view.
	sup := scheduler.NewSupervisor(views)
	workers := []*scheduler.Worker{
		scheduler.NewWorker("dashboard", func(ctx context.Context) (any, error) {
			return engine.Dashboard(ctx)
		}, cfg.RefreshInterval, scheduler.WithMetrics(metrics)),
	}
	for _, kind := range model.WorkloadKinds {
		workers = append(workers, scheduler.NewWorker("workloads/"+string(kind), func(ctx context.Context) (any, error) {
			return engine.Workloads(ctx, kind, "")
		}, cfg.RefreshInterval, scheduler.WithMetrics(metrics)))
	}
	for _, w := range workers {
		if err := sup.Mount(ctx, w); err != nil {
			slog.Error("failed to mount view", "view", w.Name(), "error", err)
			os.Exit(1)
		}
	}
	sup.Follow(hub)

	// 7. Start HTTP server.
	ready := health.ReadinessFunc(func() bool {
		if _, ok := registry.Selection(); !ok {
			return false
		}
		ok, _ := facade.LastProbe()
		return ok
	})
	httpSrv := health.NewServer(cfg.HTTPPort, metrics, ready, views, hub, errCollector, cfg.DebugEndpoints)
	if err := httpSrv.Start(); err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}

	// 8. Start memory guard. Views nobody refreshed for a while are dropped first.
	staleAfter := 10 * cfg.RefreshInterval
	guard := scheduler.NewMemoryGuard(0.8, 30*time.Second, func(float64) {
		for _, name := range views.Stale(staleAfter) {
			views.Delete(name)
		}
		runtime.GC()
	})
	go guard.Run(ctx)

	<-ctx.Done()
	slog.Info("shutdown signal received")

	// 9. Graceful shutdown.
	sup.StopAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Stop(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	hub.Close()

	slog.Info("kubesight stopped")
}

func toError(err error) errors.Error {
	if e, ok := err.(*errors.Error); ok {
		return *e
	}
	return *errors.Wrap(err, errors.ErrInternal, "main", "startup")
}
