package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"buildgrid.ai/internal/persistence/indexdb"
	"buildgrid.ai/internal/sim/world"
)

func newMux(w *world.World, idx *indexdb.SQLiteIndex, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(w.Status())
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, w, idx)
	})

	if envBool("BG_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/destroy", destroyHandler(w))
	} else if logger != nil {
		logger.Printf("admin endpoints disabled (BG_ENABLE_ADMIN_HTTP=false)")
	}
	return mux
}

// destroyHandler removes an entity by registry index without refund.
// POST /admin/v1/destroy?index=N, loopback only.
func destroyHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil || index < 0 {
			http.Error(rw, "bad index", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		ok, err := w.RequestDestroy(ctx, index)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		if !ok {
			rw.WriteHeader(http.StatusNotFound)
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": ok, "index": index})
	}
}

func writeMetrics(rw http.ResponseWriter, w *world.World, idx *indexdb.SQLiteIndex) {
	st := w.Status()
	id := w.ID()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP buildgrid_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE buildgrid_world_tick gauge\n")
	fmt.Fprintf(rw, "buildgrid_world_tick{world=%q} %d\n", id, w.CurrentTick())

	fmt.Fprintf(rw, "# HELP buildgrid_world_clients Current number of connected clients.\n")
	fmt.Fprintf(rw, "# TYPE buildgrid_world_clients gauge\n")
	fmt.Fprintf(rw, "buildgrid_world_clients{world=%q} %d\n", id, st.Clients)

	fmt.Fprintf(rw, "# HELP buildgrid_world_entities Live placed entities.\n")
	fmt.Fprintf(rw, "# TYPE buildgrid_world_entities gauge\n")
	fmt.Fprintf(rw, "buildgrid_world_entities{world=%q} %d\n", id, st.Entities)

	fmt.Fprintf(rw, "# HELP buildgrid_world_zone_cells Buildable zone size in cells.\n")
	fmt.Fprintf(rw, "# TYPE buildgrid_world_zone_cells gauge\n")
	fmt.Fprintf(rw, "buildgrid_world_zone_cells{world=%q} %d\n", id, st.ZoneCount)

	fmt.Fprintf(rw, "# HELP buildgrid_world_kind_entities Live entities by kind.\n")
	fmt.Fprintf(rw, "# TYPE buildgrid_world_kind_entities gauge\n")
	for _, k := range sortedKeys(st.Kinds) {
		fmt.Fprintf(rw, "buildgrid_world_kind_entities{world=%q,kind=%q} %d\n", id, k, st.Kinds[k])
	}

	fmt.Fprintf(rw, "# HELP buildgrid_world_resources Resource balances.\n")
	fmt.Fprintf(rw, "# TYPE buildgrid_world_resources gauge\n")
	for _, k := range sortedKeys(st.Resources) {
		fmt.Fprintf(rw, "buildgrid_world_resources{world=%q,resource=%q} %d\n", id, k, st.Resources[k])
	}

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP buildgrid_index_queue_depth SQLite index queue depth.\n")
	fmt.Fprintf(rw, "# TYPE buildgrid_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "buildgrid_index_queue_depth %d\n", s.QueueDepth)
	fmt.Fprintf(rw, "# HELP buildgrid_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE buildgrid_index_dropped_total counter\n")
	fmt.Fprintf(rw, "buildgrid_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "buildgrid_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
