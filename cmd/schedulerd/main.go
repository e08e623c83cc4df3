// Command schedulerd is a daemon exercising the scheduler core: an HTTP
// API for submitting, running, and inspecting script-driven sequences,
// with OTel tracing/metrics and a BoltDB-backed script store.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ElementAstro/lithium-scheduler/internal/manager"
	"github.com/ElementAstro/lithium-scheduler/internal/ratelimit"
	"github.com/ElementAstro/lithium-scheduler/internal/schedule"
	"github.com/ElementAstro/lithium-scheduler/internal/script"
	"github.com/ElementAstro/lithium-scheduler/internal/sequencer"
	"github.com/ElementAstro/lithium-scheduler/internal/store"
	"github.com/ElementAstro/lithium-scheduler/internal/task"
	"github.com/ElementAstro/lithium-scheduler/internal/telemetry"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// registerNoopHandlers wires the handful of task types the shipped
// templates reference to a trivial, always-succeeding handler. Real
// device/script handlers (camera, mount, focuser, plate-solve, ...) live
// outside this module; the daemon only needs something to execute so the
// HTTP surface is usable end to end.
func registerNoopHandlers(mgr *manager.Manager) {
	types := []string{
		"device_connect", "plate_solve", "auto_focus", "capture_sequence",
		"safety_check", "script_task", "filter_change", "guiding_calibrate",
		"guiding_start",
	}
	for _, typeName := range types {
		typeName := typeName
		mgr.RegisterType(typeName, func(instanceName string, params map[string]any) (*task.Task, error) {
			t := task.New(instanceName, typeName, func(ctx context.Context, params map[string]any, h *task.Handle) error {
				h.LogProgress("running "+typeName, 0.5)
				return nil
			})
			return t, nil
		})
	}
}

func main() {
	service := getenv("LITHIUM_SERVICE_NAME", "schedulerd")
	logger := telemetry.InitLogging(service)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := telemetry.InitTracer(ctx, service)
	shutdownMetrics := telemetry.InitMetrics(ctx, service)

	dbPath := getenv("LITHIUM_STORE_PATH", "./schedulerd.db")
	st, err := store.Open(dbPath)
	if err != nil {
		logger.Error("failed to open script store", "error", err, "path", dbPath)
		os.Exit(1)
	}
	defer st.Close()

	sched := schedule.New()
	sched.Start()
	defer func() {
		stopCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = sched.Stop(stopCtx)
	}()

	// A sequence run can occupy a target's worker pool for minutes; cap how
	// often callers may kick one off so a scripting mistake can't starve the
	// daemon.
	runLimiter := ratelimit.New(4, 0.5, time.Minute, 30)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/v1/templates", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(script.ListTemplateNames())
	})

	mux.HandleFunc("/v1/scripts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var doc script.Document
			if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			if err := script.ValidateSequenceScriptErr(doc); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			name := r.URL.Query().Get("name")
			if name == "" {
				http.Error(w, "name query parameter required", http.StatusBadRequest)
				return
			}
			if err := st.PutScript(r.Context(), name, doc); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			name := r.URL.Query().Get("name")
			doc, ok, err := st.GetScript(r.Context(), name)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if !ok {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(doc)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/v1/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !runLimiter.Allow() {
			http.Error(w, "too many run requests", http.StatusTooManyRequests)
			return
		}
		name := r.URL.Query().Get("name")
		doc, ok, err := st.GetScript(r.Context(), name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}

		mgr := manager.New()
		registerNoopHandlers(mgr)
		seq := sequencer.New(mgr)

		if _, err := script.CreateSequenceFromScript(seq, doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		runCtx, cancelRun := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancelRun()
		if err := seq.ExecuteSequence(runCtx); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		_ = json.NewEncoder(w).Encode(seq.GetStatistics())
	})

	addr := getenv("LITHIUM_LISTEN_ADDR", ":8080")
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("schedulerd started", "addr", addr, "store", dbPath)
	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	telemetry.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	logger.Info("shutdown complete")
}
