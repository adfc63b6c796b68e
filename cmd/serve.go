package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/revenue-cli/internal/engine"
	"github.com/sells-group/revenue-cli/internal/ingest"
	"github.com/sells-group/revenue-cli/internal/monitoring"
	"github.com/sells-group/revenue-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stored outputs over HTTP",
	Long:  "Read-only API over the output store, plus a rate-limited endpoint to trigger a pipeline run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes over the output store.
func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// One queued pipeline run at a time; triggers beyond that are rejected.
	triggerLimiter := rate.NewLimiter(rate.Every(time.Minute), 1)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/rollups", func(w http.ResponseWriter, req *http.Request) {
		rollups, err := st.ListRollups(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rollups)
	})

	r.Get("/api/retention", func(w http.ResponseWriter, req *http.Request) {
		sum, err := st.GetRetention(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if sum == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no retention summary"})
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})

	r.Get("/api/waterfall", func(w http.ResponseWriter, req *http.Request) {
		facts, err := st.ListWaterfall(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, facts)
	})

	r.Get("/api/snapshots", func(w http.ResponseWriter, req *http.Request) {
		rows, err := st.ListSnapshots(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		limit := 50
		if q := req.URL.Query().Get("limit"); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n > 0 {
				limit = n
			}
		}
		runs, err := st.ListRuns(req.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/metrics", func(w http.ResponseWriter, req *http.Request) {
		hours := 24
		if q := req.URL.Query().Get("hours"); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n > 0 {
				hours = n
			}
		}
		snap, err := monitoring.NewCollector(st).Collect(req.Context(), hours)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Post("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		if !triggerLimiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "a run was triggered recently"})
			return
		}
		go triggerRun(st)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	return r
}

// triggerRun executes the pipeline asynchronously on behalf of the API.
func triggerRun(st store.Store) {
	ctx := context.Background()
	log := zap.L().With(zap.String("component", "serve"))

	inputs, err := ingest.LoadInputs(ctx, cfg.Input.Dir, cfg.Input.AliasesFile)
	if err != nil {
		log.Error("triggered run: load inputs", zap.Error(err))
		return
	}

	lockTimeout := time.Duration(cfg.Engine.LockTimeoutSecs) * time.Second
	if err := st.AcquireRunLock(ctx, lockTimeout); err != nil {
		log.Error("triggered run: acquire lock", zap.Error(err))
		return
	}
	defer st.ReleaseRunLock(ctx) //nolint:errcheck

	run, err := st.StartRun(ctx)
	if err != nil {
		log.Error("triggered run: start", zap.Error(err))
		return
	}
	log = log.With(zap.String("run_id", run.ID))

	eng := engine.New(engine.Options{
		SeatCredit:       cfg.Engine.SeatCredit,
		TrialDays:        cfg.Engine.TrialDays,
		ProjectionMonths: cfg.Engine.ProjectionMonths,
	})
	out, err := eng.Run(ctx, inputs)
	if err != nil {
		log.Error("triggered run failed", zap.Error(err))
		st.FailRun(ctx, run.ID, err.Error()) //nolint:errcheck
		return
	}

	if err := persistOutputs(ctx, st, inputs, out); err != nil {
		log.Error("triggered run: persist", zap.Error(err))
		st.FailRun(ctx, run.ID, err.Error()) //nolint:errcheck
		return
	}

	if err := st.CompleteRun(ctx, run.ID, inputs.TotalRows(), out.RowsOut(), out.Steps); err != nil {
		log.Error("triggered run: complete", zap.Error(err))
		return
	}
	log.Info("triggered run complete", zap.Int("orgs", len(out.Rollups)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
