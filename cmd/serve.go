package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/dams"
	"github.com/sells-group/watershed-cli/internal/metrics"
	"github.com/sells-group/watershed-cli/internal/model"
	"github.com/sells-group/watershed-cli/internal/pipeline"
)

const (
	// maxBatchDams caps POST /v1/resolve/batch bodies.
	maxBatchDams = 1000

	maxResolveBytes = 64 << 10
	maxBatchBytes   = 1 << 20
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve single-dam resolution over HTTP",
	Long:  "Loads the region snapshot once and answers POST /v1/resolve requests against it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyResolveFlags(cmd, cfg)
		pcfg, err := pipelineConfig(cfg)
		if err != nil {
			return err
		}

		snapshot, err := loadSnapshot(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "serve: load snapshot")
		}

		m := metrics.New()
		orch, err := pipeline.New(snapshot, pcfg, pipeline.WithMetrics(m))
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(orch, m, cfg.Server.AllowedOrigins),
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

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("method", pcfg.Method.String()),
			zap.String("region", cfg.HydroSHEDS.Region),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	addResolveFlags(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type damRequest struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Lon  *float64 `json:"lon"`
	Lat  *float64 `json:"lat"`
}

func (r damRequest) toDam() (model.Dam, error) {
	if r.Lon == nil || r.Lat == nil {
		return model.Dam{}, eris.New("lon and lat are required")
	}
	d := model.Dam{
		ID:   dams.NormalizeID(r.ID),
		Name: dams.NormalizeName(r.Name),
		Lon:  *r.Lon,
		Lat:  *r.Lat,
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := dams.Validate([]model.Dam{d}); err != nil {
		return model.Dam{}, err
	}
	return d, nil
}

type resolveResponse struct {
	Dam     model.Dam        `json:"dam"`
	Method  string           `json:"method"`
	Snapped *geojson.Feature `json:"snapped"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Stage model.Stage `json:"stage,omitempty"`
}

// newRouter builds the HTTP API around a loaded orchestrator.
func newRouter(orch *pipeline.Orchestrator, m *metrics.Metrics, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", func(w http.ResponseWriter, req *http.Request) {
			var body damRequest
			if !decodeBody(w, req, maxResolveBytes, &body) {
				return
			}
			d, err := body.toDam()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}

			res, err := orch.ResolveDam(req.Context(), d)
			if err != nil {
				writeStageError(w, d.ID, err)
				return
			}
			writeJSON(w, http.StatusOK, resolveResponse{
				Dam:     res,
				Method:  orch.Config().Method.String(),
				Snapped: snappedFeature(res.ID, res.Lon, res.Lat, *res.Snapped),
			})
		})

		r.Post("/resolve/batch", func(w http.ResponseWriter, req *http.Request) {
			var body []damRequest
			if !decodeBody(w, req, maxBatchBytes, &body) {
				return
			}
			if len(body) == 0 || len(body) > maxBatchDams {
				writeJSON(w, http.StatusBadRequest, errorResponse{
					Error: fmt.Sprintf("batch must hold 1 to %d dams", maxBatchDams),
				})
				return
			}
			input := make([]model.Dam, 0, len(body))
			for i, b := range body {
				d, err := b.toDam()
				if err != nil {
					writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("dam %d: %v", i, err)})
					return
				}
				input = append(input, d)
			}
			if err := dams.Validate(input); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}

			result, err := orch.Run(req.Context(), input)
			if err != nil {
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, result)
		})
	})

	return r
}

// decodeBody reads at most limit bytes of JSON into v and writes the error
// response itself when that fails.
func decodeBody(w http.ResponseWriter, req *http.Request, limit int64, v any) bool {
	req.Body = http.MaxBytesReader(w, req.Body, limit)
	err := json.NewDecoder(req.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	return false
}

func writeStageError(w http.ResponseWriter, damID string, err error) {
	var se *model.StageError
	if !errors.As(err, &se) {
		zap.L().Error("serve: resolve failed", zap.String("dam_id", damID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: se.Err.Error(), Stage: se.Stage})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
