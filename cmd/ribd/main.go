package main

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/ribd/internal/cli"
	"github.com/route-beacon/ribd/internal/community"
	"github.com/route-beacon/ribd/internal/config"
	"github.com/route-beacon/ribd/internal/db"
	ribhttp "github.com/route-beacon/ribd/internal/http"
	"github.com/route-beacon/ribd/internal/kafka"
	"github.com/route-beacon/ribd/internal/logging"
	"github.com/route-beacon/ribd/internal/metaqueue"
	"github.com/route-beacon/ribd/internal/metrics"
	"github.com/route-beacon/ribd/internal/nexthop"
	"github.com/route-beacon/ribd/internal/object"
	"github.com/route-beacon/ribd/internal/rib"
	"github.com/route-beacon/ribd/internal/riberr"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "migrate":
		runMigrate()
	case "maintenance":
		runMaintenance()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: ribd <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve         Start the RIB daemon")
	fmt.Println("  migrate       Run database migrations")
	fmt.Println("  maintenance   Run table-weeding maintenance")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger, err := logging.New(cfg.Service.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func migrationsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "migrations"
	}
	return filepath.Join(filepath.Dir(exe), "migrations")
}

// registerVRFs populates the rib VRF registry from config, always
// including an implicit "default" VRF (id 0) if not explicitly declared.
func registerVRFs(cfg *config.Config, logger *zap.Logger) {
	if _, ok := cfg.VRFs["default"]; !ok {
		if _, err := rib.RegisterVRF(0, "default", "implicit default VRF", 0); err != nil {
			logger.Fatal("failed to register default vrf", zap.Error(err))
		}
	}
	for name, v := range cfg.VRFs {
		if _, err := rib.RegisterVRF(v.ID, name, v.Description, v.FibID); err != nil {
			logger.Fatal("failed to register vrf", zap.String("name", name), zap.Error(err))
		}
	}
}

func runServe() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()
	community.Init()
	defer community.Close()
	registerVRFs(cfg, logger)
	defer rib.Close()

	logger.Info("starting ribd",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("http_listen", cfg.Service.HTTPListen),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	snapshots := db.NewSnapshotWriter(pool, logger.Named("db.snapshot"), true, true)

	tlsCfg, err := cfg.Kafka.BuildTLSConfig()
	if err != nil {
		logger.Fatal("failed to build TLS config", zap.Error(err))
	}
	saslMech := cfg.Kafka.BuildSASLMechanism()

	routeConsumer, err := kafka.NewRouteConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.Routes.GroupID, cfg.Kafka.Routes.Topics,
		cfg.Kafka.ClientID, cfg.Kafka.FetchMaxBytes, tlsCfg, saslMech, logger.Named("kafka.routes"),
	)
	if err != nil {
		logger.Fatal("failed to create route consumer", zap.Error(err))
	}
	defer routeConsumer.Close()

	// The RIB loop: exactly one goroutine owns the rib/object/meta-queue
	// packages. Every other goroutine (Kafka fetch, HTTP handlers)
	// communicates with it by enqueuing a closure, preserving the "no
	// locks on the hot path" guarantee (SPEC_FULL.md §5).
	ribLoop := make(chan func(), 256)

	queue := metaqueue.New(logger.Named("metaqueue"), false)

	go func() {
		handle := func(c context.Context, ev *kafka.RouteEvent) error {
			done := make(chan error, 1)
			ribLoop <- func() { done <- applyRouteEvent(queue, ev) }
			select {
			case err := <-done:
				return err
			case <-c.Done():
				return c.Err()
			}
		}
		routeConsumer.Run(ctx, handle)
	}()

	fibHook := func(node *rib.Node, best *rib.Entry) {
		if best == nil {
			return
		}
		afiLabel := "ip"
		if node.Prefix.Addr().Is6() {
			afiLabel = "ip6"
		}
		metrics.RIBSelectionsTotal.WithLabelValues(fmt.Sprint(best.VRFID), afiLabel).Inc()
		row := &db.SnapshotRow{
			Prefix:   node.Prefix.String(),
			Type:     int16(best.Type),
			Metric:   int64(best.Metric),
			Distance: int16(best.Distance),
			Selected: best.Selected,
			Nexthops: []byte("[]"),
			VRFID:    best.VRFID,
		}
		if _, err := snapshots.FlushBatch(ctx, []*db.SnapshotRow{row}); err != nil {
			logger.Error("snapshot flush failed", zap.Error(err))
		}
	}

	drainTicker := time.NewTicker(time.Duration(cfg.MetaQueue.DrainIntervalMs) * time.Millisecond)
	defer drainTicker.Stop()
	maintTicker := time.NewTicker(time.Duration(cfg.MetaQueue.MaintenanceIntervalS) * time.Second)
	defer maintTicker.Stop()

	go func() {
		for {
			select {
			case fn := <-ribLoop:
				fn()
			case <-drainTicker.C:
				queue.Drain(cfg.MetaQueue.DrainBudget, fibHook)
			case <-maintTicker.C:
				registryWeed(logger)
			case <-ctx.Done():
				return
			}
		}
	}()

	dispatch := func(c context.Context, line string) ribhttp.CLIResult {
		done := make(chan cli.Result, 1)
		ribLoop <- func() {
			vrf := rib.LookupVRF(0)
			done <- cli.Dispatch(vrf, line, logger.Named("cli"))
		}
		select {
		case r := <-done:
			return ribhttp.CLIResult{Code: int(r.Code), Message: r.Message, Deprecated: r.Deprecated}
		case <-c.Done():
			return ribhttp.CLIResult{Code: int(cli.CmdWarning), Message: c.Err().Error()}
		}
	}

	httpServer := ribhttp.NewServer(cfg.Service.HTTPListen, pool, routeConsumer, dispatch, logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("ribd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	cancel()

	logger.Info("ribd stopped")
}

// registryWeed runs rib.WeedTables across every registered VRF; it is
// called from the same goroutine that owns rib/meta-queue state.
func registryWeed(logger *zap.Logger) {
	for _, id := range rib.AllVRFIDs() {
		if vrf := rib.LookupVRF(id); vrf != nil {
			if n := rib.WeedTables(vrf); n > 0 {
				logger.Debug("weeded empty route nodes", zap.Uint32("vrf", id), zap.Int("removed", n))
			}
		}
	}
}

// applyRouteEvent turns one decoded Kafka route event into rib/static
// calls and enqueues the touched node onto the meta-queue. Runs on the
// RIB loop goroutine only.
func applyRouteEvent(queue *metaqueue.Queue, ev *kafka.RouteEvent) error {
	vrf := rib.LookupVRF(ev.VRFID)
	if vrf == nil {
		return fmt.Errorf("route event references unknown vrf %d", ev.VRFID)
	}

	afi := rib.AFIIP
	if ev.AFI == "ip6" {
		afi = rib.AFIIP6
	}
	safi := rib.SAFIUnicast
	if ev.SAFI == "multicast" {
		safi = rib.SAFIMulticast
	}

	prefix, err := parsePrefixField(ev.Prefix)
	if err != nil {
		return riberr.Malformed("ribd.applyRouteEvent", fmt.Errorf("malformed prefix %q: %w", ev.Prefix, err))
	}

	rtype := routeTypeOf(ev.Type)

	if ev.Withdraw {
		node, _, err := rib.RIBDelete(vrf, afi, safi, prefix, rtype)
		if riberr.Is(err, riberr.NotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		queue.Enqueue(node, rib.SubQueue(rtype))
		return nil
	}

	distance := rib.DefaultDistance(rtype)
	if ev.Distance != nil {
		distance = *ev.Distance
	}

	nh, err := nexthopFromEvent(ev)
	if err != nil {
		return riberr.Malformed("ribd.applyRouteEvent", fmt.Errorf("malformed nexthop in route event: %w", err))
	}

	// RIBAdd withdraws any existing same-origin entry in place before
	// installing the replacement, so the prior entry (and the community it
	// may be carrying) has to be captured before the call.
	prior := existingEntry(rib.RIBLookup(vrf, afi, safi, prefix), rtype, vrf.ID)

	node, entry, _, err := rib.RIBAdd(vrf, afi, safi, prefix, rtype, ev.Metric, distance, nh)
	if err != nil {
		return err
	}

	if len(ev.Communities) > 0 {
		com, err := community.StrToCom(strings.Join(ev.Communities, " "))
		if err != nil {
			return fmt.Errorf("malformed community in route event: %w", err)
		}
		if prior != nil && prior.Community != nil {
			if err := object.WithMutable(community.Ctx, &com, func(p *community.Community) {
				community.Merge(p, &prior.Community.Payload)
			}); err != nil {
				return fmt.Errorf("merging route communities: %w", err)
			}
		}
		entry.Community = com
	}

	queue.Enqueue(node, rib.SubQueue(rtype))
	return nil
}

// existingEntry finds node's non-removed candidate for (t, vrfID), if any.
// Used to carry a route's previously attached community forward across an
// implicit withdraw/replace cycle.
func existingEntry(node *rib.Node, t rib.Type, vrfID uint32) *rib.Entry {
	if node == nil {
		return nil
	}
	for _, e := range node.Entries() {
		if e.Type == t && e.VRFID == vrfID && !e.Removed {
			return e
		}
	}
	return nil
}

// nexthopFromEvent builds the single nexthop carried by a route event,
// if any. A route event with neither a gate nor an ifindex installs with
// no resolvable nexthop (e.g. a kernel-origin blackhole).
func nexthopFromEvent(ev *kafka.RouteEvent) (*nexthop.Nexthop, error) {
	if ev.Gate == nil && ev.Ifindex == 0 {
		return nil, nil
	}
	nh := nexthop.New()
	if ev.Ifindex != 0 {
		nh.Ifindex = ev.Ifindex
	}
	if ev.Gate != nil {
		addr, err := netip.ParseAddr(*ev.Gate)
		if err != nil {
			return nil, fmt.Errorf("invalid gate %q: %w", *ev.Gate, err)
		}
		gp := netip.PrefixFrom(addr, addr.BitLen())
		nh.Gate = &gp
	}
	return nh, nil
}

func parsePrefixField(s string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(s); err == nil {
		return p, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func routeTypeOf(s string) rib.Type {
	switch s {
	case "kernel":
		return rib.TypeKernel
	case "connected":
		return rib.TypeConnected
	case "static":
		return rib.TypeStatic
	case "rip":
		return rib.TypeRIP
	case "ripng":
		return rib.TypeRIPng
	case "ospf":
		return rib.TypeOSPF
	case "ospf3":
		return rib.TypeOSPFv3
	case "isis":
		return rib.TypeISIS
	case "ibgp":
		return rib.TypeIBGP
	case "bgp", "ebgp":
		return rib.TypeEBGP
	default:
		return rib.TypeOther
	}
}

func runMigrate() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	logger.Info("running migrations", zap.String("dsn", redactDSN(cfg.Postgres.DSN)))

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrationsDir(), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

func runMaintenance() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	community.Init()
	defer community.Close()
	registerVRFs(cfg, logger)
	defer rib.Close()

	logger.Info("running rib maintenance")
	registryWeed(logger)
	logger.Info("rib maintenance complete")
}

func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		re := regexp.MustCompile(`password\s*=\s*\S+`)
		return re.ReplaceAllString(dsn, "password=***")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
