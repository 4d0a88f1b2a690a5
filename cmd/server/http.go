package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"econcraft.ai/internal/persistence/indexdb"
	"econcraft.ai/internal/sim/world"
	"econcraft.ai/internal/transport/ws"
)

type httpConfig struct {
	WorldID     string
	World       *world.World
	WS          *ws.Server
	Index       interface{ Stats() indexdb.Stats } // optional
	EnableAdmin bool
	EnablePprof bool
}

func newMux(cfg httpConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, cfg)
	})
	if cfg.EnableAdmin {
		registerAdmin(mux, cfg)
	}
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	if cfg.WS != nil {
		mux.HandleFunc("/v1/ws", cfg.WS.Handler())
	}
	return mux
}

// writeMetrics emits the Prometheus text exposition format.
func writeMetrics(w io.Writer, cfg httpConfig) {
	m := cfg.World.Metrics()
	tick := cfg.World.CurrentTick()
	id := cfg.WorldID

	gauge := func(name, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	}

	gauge("econcraft_world_tick", "Current world tick.")
	fmt.Fprintf(w, "econcraft_world_tick{world=%q} %d\n", id, tick)

	gauge("econcraft_world_players", "Registered players.")
	fmt.Fprintf(w, "econcraft_world_players{world=%q} %d\n", id, m.Players)

	gauge("econcraft_world_clients", "Players with a bound connection.")
	fmt.Fprintf(w, "econcraft_world_clients{world=%q} %d\n", id, m.Clients)

	gauge("econcraft_world_tiles", "Tiles with at least one used slot.")
	fmt.Fprintf(w, "econcraft_world_tiles{world=%q} %d\n", id, m.Tiles)

	paused := 0
	if m.Paused {
		paused = 1
	}
	gauge("econcraft_world_paused", "1 while the simulation is paused.")
	fmt.Fprintf(w, "econcraft_world_paused{world=%q} %d\n", id, paused)

	gauge("econcraft_world_tick_rate_hz", "Target updates per second.")
	fmt.Fprintf(w, "econcraft_world_tick_rate_hz{world=%q} %d\n", id, m.TickRateHz)

	gauge("econcraft_world_avg_period_ms", "Rolling average tick period in milliseconds.")
	fmt.Fprintf(w, "econcraft_world_avg_period_ms{world=%q} %.3f\n", id, m.AvgPeriodMS)

	gauge("econcraft_world_step_ms", "Last tick step duration in milliseconds.")
	fmt.Fprintf(w, "econcraft_world_step_ms{world=%q} %.3f\n", id, m.StepMS)

	gauge("econcraft_world_dirty_caches", "Players whose generation cache is dirty.")
	fmt.Fprintf(w, "econcraft_world_dirty_caches{world=%q} %d\n", id, m.DirtyCaches)

	gauge("econcraft_world_open_offers", "Open trade offers.")
	fmt.Fprintf(w, "econcraft_world_open_offers{world=%q} %d\n", id, m.OpenOffers)

	gauge("econcraft_world_queue_depth", "Channel backlog depth.")
	fmt.Fprintf(w, "econcraft_world_queue_depth{world=%q,queue=%q} %d\n", id, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(w, "econcraft_world_queue_depth{world=%q,queue=%q} %d\n", id, "join", m.QueueDepths.Join)
	fmt.Fprintf(w, "econcraft_world_queue_depth{world=%q,queue=%q} %d\n", id, "leave", m.QueueDepths.Leave)
	fmt.Fprintf(w, "econcraft_world_queue_depth{world=%q,queue=%q} %d\n", id, "attach", m.QueueDepths.Attach)

	if cfg.WS != nil {
		gauge("econcraft_ws_sessions", "Live websocket sessions.")
		fmt.Fprintf(w, "econcraft_ws_sessions{world=%q} %d\n", id, cfg.WS.Sessions())
	}

	if cfg.Index != nil {
		s := cfg.Index.Stats()
		gauge("econcraft_index_queue_depth", "Index writer queue depth.")
		fmt.Fprintf(w, "econcraft_index_queue_depth{world=%q} %d\n", id, s.QueueDepth)
		fmt.Fprintf(w, "# HELP econcraft_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(w, "# TYPE econcraft_index_dropped_total counter\n")
		fmt.Fprintf(w, "econcraft_index_dropped_total{world=%q,kind=%q} %d\n", id, "tick", s.DropTickTotal)
		fmt.Fprintf(w, "econcraft_index_dropped_total{world=%q,kind=%q} %d\n", id, "audit", s.DropAuditTotal)
		fmt.Fprintf(w, "econcraft_index_dropped_total{world=%q,kind=%q} %d\n", id, "snapshot", s.DropSnapshotTotal)
	}
}

// registerAdmin wires local-only control endpoints.
func registerAdmin(mux *http.ServeMux, cfg httpConfig) {
	w := cfg.World

	mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: cfg.WorldID,
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		})
	}))
	mux.HandleFunc("/admin/v1/snapshot", postOnly(func(ctx context.Context, r *http.Request) (any, int, error) {
		tick, err := w.RequestSnapshot(ctx)
		return map[string]any{"tick": tick}, http.StatusServiceUnavailable, err
	}))
	mux.HandleFunc("/admin/v1/pause", postOnly(func(ctx context.Context, r *http.Request) (any, int, error) {
		return nil, http.StatusServiceUnavailable, w.Pause(ctx)
	}))
	mux.HandleFunc("/admin/v1/resume", postOnly(func(ctx context.Context, r *http.Request) (any, int, error) {
		return nil, http.StatusServiceUnavailable, w.Resume(ctx)
	}))
	mux.HandleFunc("/admin/v1/rate", postOnly(func(ctx context.Context, r *http.Request) (any, int, error) {
		hz, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("hz")))
		if err != nil || hz < 1 || hz > 255 {
			return nil, http.StatusBadRequest, fmt.Errorf("hz must be 1..255")
		}
		return map[string]any{"tick_rate_hz": hz}, http.StatusServiceUnavailable, w.SetRate(ctx, uint8(hz))
	}))
	mux.HandleFunc("/admin/v1/players/remove", postOnly(func(ctx context.Context, r *http.Request) (any, int, error) {
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			return nil, http.StatusBadRequest, fmt.Errorf("missing id")
		}
		return map[string]any{"player_id": id}, http.StatusNotFound, w.RemovePlayer(ctx, id)
	}))
}

type adminFunc func(ctx context.Context, r *http.Request) (data any, failStatus int, err error)

func postOnly(fn adminFunc) http.HandlerFunc {
	return loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		data, status, err := fn(ctx, r)
		if err != nil {
			writeJSON(rw, status, map[string]any{"ok": false, "error": err.Error(), "data": data})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "data": data})
	})
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
