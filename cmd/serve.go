package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ramuks22/project-paystub-analyzer/internal/household"
	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/store"
)

var (
	servePort    int
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for reconciliation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		api := &apiServer{
			store:    st,
			dataDir:  serveDataDir,
			opts:     analysisOptions(cfg),
			loadOpts: loaderOptions(cfg),
			runCtx:   ctx,
		}
		limiter := rate.NewLimiter(rate.Limit(cfg.Server.RatePerSecond), cfg.Server.RateBurst)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.router(limiter),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background()) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", ".", "base directory for filer paths in submitted configs")
	rootCmd.AddCommand(serveCmd)
}

type apiServer struct {
	store    store.Store
	dataDir  string
	opts     household.Options
	loadOpts household.LoaderOptions
	// runCtx outlives individual requests so accepted runs finish after the
	// client disconnects.
	runCtx context.Context
}

func (a *apiServer) router(limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	if limiter != nil {
		r.Use(rateLimit(limiter))
	}

	r.Get("/health", a.handleHealth)
	r.Post("/analyze", a.handleAnalyze)
	r.Post("/runs", a.handleCreateRun)
	r.Get("/runs", a.handleListRuns)
	r.Get("/runs/{runID}", a.handleGetRun)
	r.Get("/runs/{runID}/packages", a.handleListPackages)
	r.Get("/runs/{runID}/packages/{filerID}", a.handleGetPackage)
	return r
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
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

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze reconciles synchronously and returns the result without
// persisting a run.
func (a *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var hh model.HouseholdConfig
	if err := json.NewDecoder(r.Body).Decode(&hh); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := hh.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	load := household.Loader(a.dataDir, a.loadOpts)
	result, err := household.Run(r.Context(), &hh, load, a.opts)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *apiServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var hh model.HouseholdConfig
	if err := json.NewDecoder(r.Body).Decode(&hh); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := hh.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := a.store.CreateRun(r.Context(), hh)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create run")
		return
	}

	go a.executeRun(run.ID, hh)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID,
		"status": string(model.RunStatusQueued),
	})
}

// executeRun drives one accepted run to completion on the server context.
func (a *apiServer) executeRun(runID string, hh model.HouseholdConfig) {
	ctx := a.runCtx
	log := zap.L().With(zap.String("run_id", runID))

	if err := a.store.UpdateRunStatus(ctx, runID, model.RunStatusRunning); err != nil {
		log.Error("run status update failed", zap.Error(err))
		return
	}

	load := household.Loader(a.dataDir, a.loadOpts)
	result, err := household.Run(ctx, &hh, load, a.opts)
	if err != nil {
		if failErr := a.store.FailRun(ctx, runID, err.Error()); failErr != nil {
			log.Error("fail run", zap.Error(failErr))
		}
		log.Error("run failed", zap.Error(err))
		return
	}

	if err := a.store.UpdateRunResult(ctx, runID, result); err != nil {
		log.Error("save result", zap.Error(err))
		return
	}
	if err := a.store.SavePackages(ctx, runID, result.Packages); err != nil {
		log.Error("save packages", zap.Error(err))
		return
	}
	log.Info("run complete",
		zap.Int("packages", len(result.Packages)),
		zap.Int("failures", len(result.Failures)),
	)
}

func (a *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
	}
	if s := r.URL.Query().Get("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		filter.TaxYear = year
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	runs, err := a.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *apiServer) handleListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := a.store.ListPackages(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list packages")
		return
	}
	if pkgs == nil {
		pkgs = []*model.FilingPackage{}
	}
	writeJSON(w, http.StatusOK, pkgs)
}

func (a *apiServer) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := a.store.GetPackage(r.Context(), chi.URLParam(r, "runID"), chi.URLParam(r, "filerID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get package")
		return
	}
	if pkg == nil {
		writeError(w, http.StatusNotFound, "package not found")
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}
