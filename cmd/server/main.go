package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "econcraft.ai/internal/persistence/log"
	"econcraft.ai/internal/persistence/snapshot"
	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/tuning"
	"econcraft.ai/internal/sim/world"
	"econcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit, catalogs, snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cat, deps, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapDir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	// Read-model index; never affects simulation results.
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cat, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	w, err := world.New(world.WorldConfig{ID: *worldID, Tuning: tune}, cat, deps, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(snapDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d players=%d", filepath.Base(snapshotToLoad), w.CurrentTick(), len(snap.Players))
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	var idxTick world.TickLogger
	var idxAudit world.AuditLogger
	if idx != nil {
		idxTick, idxAudit = idx, idx
	}
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idxTick})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idxAudit})

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.Path(snapDir, snap.Header.Tick)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	enableAdmin := envBool("EC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprof := envBool("EC_ENABLE_PPROF_HTTP", false)
	if !enableAdmin {
		logger.Printf("admin endpoints disabled (EC_ENABLE_ADMIN_HTTP=false)")
	}
	cfg := httpConfig{
		WorldID:     *worldID,
		World:       w,
		WS:          ws.NewServer(w, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)),
		EnableAdmin: enableAdmin,
		EnablePprof: enablePprof,
	}
	if idx != nil {
		cfg.Index = idx
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s tick=%d", *addr, *worldID, w.CurrentTick())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-worldDone
	<-snapDone
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
