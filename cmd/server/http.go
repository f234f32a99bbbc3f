package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"manaforge.ai/internal/persistence/snapshot"
	"manaforge.ai/internal/session"
	"manaforge.ai/internal/transport/ws"
)

type httpDeps struct {
	sess    *session.Session
	ws      *ws.Server
	dataDir string
	admin   bool
	pprof   bool
	log     *log.Logger
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d.sess.Info(), d.sess.Stats(), d.ws.Connections())
	})

	if d.admin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(struct {
				Info  session.Info  `json:"info"`
				Stats session.Stats `json:"stats"`
			}{d.sess.Info(), d.sess.Stats()})
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			path, docs, err := writeSessionSnapshot(ctx, d.sess, d.dataDir)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				d.log.Printf("admin snapshot: %v", err)
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path, "documents": docs})
		})
	} else {
		d.log.Printf("admin endpoints disabled (MANAFORGE_ENABLE_ADMIN_HTTP=false)")
	}
	if d.pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", d.ws.Handler())
	return mux
}

func writeSessionSnapshot(ctx context.Context, sess *session.Session, dataDir string) (string, int, error) {
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return "", 0, err
	}
	path := filepath.Join(dataDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.CreatedAt.Unix()))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", 0, err
	}
	return path, snap.Header.Documents, nil
}

// writeMetrics emits the Prometheus text exposition format.
func writeMetrics(w io.Writer, info session.Info, stats session.Stats, clients int64) {
	fmt.Fprintf(w, "# HELP manaforge_worlds Number of worlds in the session.\n")
	fmt.Fprintf(w, "# TYPE manaforge_worlds gauge\n")
	fmt.Fprintf(w, "manaforge_worlds %d\n", len(info.Worlds))

	fmt.Fprintf(w, "# HELP manaforge_story_day Current world-clock day.\n")
	fmt.Fprintf(w, "# TYPE manaforge_story_day gauge\n")
	fmt.Fprintf(w, "manaforge_story_day %d\n", info.Day)

	fmt.Fprintf(w, "# HELP manaforge_clients Current number of connected clients.\n")
	fmt.Fprintf(w, "# TYPE manaforge_clients gauge\n")
	fmt.Fprintf(w, "manaforge_clients %d\n", clients)

	fmt.Fprintf(w, "# HELP manaforge_actions_total Applied actions by type.\n")
	fmt.Fprintf(w, "# TYPE manaforge_actions_total counter\n")
	for _, k := range sortedKeys(stats.Actions) {
		fmt.Fprintf(w, "manaforge_actions_total{action=%q} %d\n", k, stats.Actions[k])
	}

	fmt.Fprintf(w, "# HELP manaforge_action_errors_total Failed actions by error code.\n")
	fmt.Fprintf(w, "# TYPE manaforge_action_errors_total counter\n")
	for _, k := range sortedKeys(stats.Errors) {
		fmt.Fprintf(w, "manaforge_action_errors_total{code=%q} %d\n", k, stats.Errors[k])
	}
}

func sortedKeys(m map[string]uint64) []string {
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
