package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/rankwise/internal/engine"
	"github.com/sells-group/rankwise/internal/metrics"
	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/store"
)

var servePort int

// runner is the orchestrator surface the trigger server needs.
type runner interface {
	Start(ctx context.Context, date time.Time) (*model.RunLogEntry, error)
	Execute(ctx context.Context, entry *model.RunLogEntry, req engine.RunRequest) (*model.RunSummary, error)
}

// runLog reads run-log entries for the status endpoint.
type runLog interface {
	GetRun(ctx context.Context, runID string) (*model.RunLogEntry, error)
}

// triggerServer starts runs in the background. Concurrent triggers for the
// same run date share one run.
type triggerServer struct {
	ctx    context.Context
	runner runner
	log    runLog
	now    func() time.Time

	group  singleflight.Group
	active sync.Map // run date -> run id
	wg     sync.WaitGroup
}

type triggerRequest struct {
	Date         string   `json:"date,omitempty"`
	TenantIDs    []string `json:"tenant_ids,omitempty"`
	ForceMonthly bool     `json:"force_monthly,omitempty"`
}

type triggerResponse struct {
	Status  string `json:"status"`
	RunID   string `json:"run_id"`
	RunDate string `json:"run_date"`
	Joined  bool   `json:"joined"`
}

type triggerResult struct {
	id     string
	joined bool
}

func newTriggerServer(ctx context.Context, r runner, l runLog) *triggerServer {
	return &triggerServer{
		ctx:    ctx,
		runner: r,
		log:    l,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func buildRouter(s *triggerServer, withMetrics bool) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if withMetrics {
		r.Handle("/metrics", metrics.Handler())
	}
	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", s.trigger)
		r.Get("/{id}", s.status)
	})
	return r
}

func (s *triggerServer) trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	date := s.now()
	if req.Date != "" {
		d, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}
	date = model.Day(date)
	key := date.Format(time.DateOnly)

	v, err, shared := s.group.Do(key, func() (any, error) {
		if id, ok := s.active.Load(key); ok {
			return triggerResult{id: id.(string), joined: true}, nil
		}
		entry, err := s.runner.Start(s.ctx, date)
		if err != nil {
			return nil, err
		}
		s.active.Store(key, entry.ID)
		s.wg.Add(1)
		go s.execute(key, entry, engine.RunRequest{
			Date:         date,
			TenantIDs:    req.TenantIDs,
			ForceMonthly: req.ForceMonthly,
		})
		return triggerResult{id: entry.ID}, nil
	})
	if err != nil {
		zap.L().Error("serve: start run", zap.String("run_date", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not start run")
		return
	}

	res := v.(triggerResult)
	writeJSON(w, http.StatusAccepted, triggerResponse{
		Status:  "accepted",
		RunID:   res.id,
		RunDate: key,
		Joined:  res.joined || shared,
	})
}

func (s *triggerServer) execute(key string, entry *model.RunLogEntry, req engine.RunRequest) {
	defer s.wg.Done()
	defer s.active.Delete(key)

	if _, err := s.runner.Execute(s.ctx, entry, req); err != nil {
		zap.L().Error("serve: run failed", zap.String("run_id", entry.ID), zap.String("run_date", key), zap.Error(err))
	}
}

func (s *triggerServer) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.log.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("serve: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read run")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// wait blocks until background runs finish.
func (s *triggerServer) wait() {
	s.wg.Wait()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ts := newTriggerServer(ctx, buildOrchestrator(st), st)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(ts, cfg.Metrics.Enabled),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		ts.wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
