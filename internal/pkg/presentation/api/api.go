package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/varasto-io/rfid-tracking/internal/pkg/application/tracking"
	"github.com/varasto-io/rfid-tracking/internal/pkg/application/webevents"
	"github.com/varasto-io/rfid-tracking/pkg/types"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("rfid-tracking/api")

const defaultSummaryWindow = 5 * time.Minute

func RegisterHandlers(ctx context.Context, router *chi.Mux, svc tracking.Tracking, we webevents.WebEvents) (*chi.Mux, error) {
	log := logging.GetFromContext(ctx)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Route("/rfid", func(r chi.Router) {
		r.Post("/read", readHandler(log, svc))
		r.Post("/connect", connectHandler(log, svc))
		r.Get("/live_summary", liveSummaryHandler(log, svc))
		r.Delete("/detections", clearDetectionsHandler(log, svc))
	})

	router.Route("/api", func(r chi.Router) {
		r.Get("/dashboard/live-tags", liveTagsHandler(log, svc))
		r.Get("/items/search", itemSearchHandler(log, svc))
		r.Get("/readers/status", readerStatusHandler(log, svc))
		r.Get("/activity-logs", activityLogsHandler(log, svc))
	})

	router.Get("/events", we.Server().ServeHTTP)

	return router, nil
}

func readHandler(log *slog.Logger, svc tracking.Tracking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "ingest-tag-reads")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		batch, result, err := ingest(ctx, r, svc)
		if err != nil {
			writeIngestError(requestLogger, w, batch, err)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Status      string   `json:"status"`
			SavedEPCs   []string `json:"saved_epcs"`
			IgnoredEPCs []string `json:"ignored_epcs"`
		}{
			Status:      "ok",
			SavedEPCs:   result.SavedEPCs,
			IgnoredEPCs: result.IgnoredEPCs,
		})
	}
}

// connectHandler implements the Impinj Speedway Connect flow: process
// the posted reads and reply with the current live summary.
func connectHandler(log *slog.Logger, svc tracking.Tracking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "reader-connect")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		batch, result, err := ingest(ctx, r, svc)
		if err != nil {
			writeIngestError(requestLogger, w, batch, err)
			return
		}

		summaries, err := svc.LiveSummary(ctx, defaultSummaryWindow)
		if err != nil {
			requestLogger.Error("could not produce live summary", "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Status    string   `json:"status"`
			SavedEPCs []string `json:"saved_epcs"`
			Summary   []string `json:"summary"`
		}{
			Status:    "ok",
			SavedEPCs: result.SavedEPCs,
			Summary:   renderSummaries(summaries),
		})
	}
}

func liveSummaryHandler(log *slog.Logger, svc tracking.Tracking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "live-summary")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		window := defaultSummaryWindow
		if m := r.URL.Query().Get("minutes"); m != "" {
			minutes, err := strconv.Atoi(m)
			if err != nil || minutes <= 0 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			window = time.Duration(minutes) * time.Minute
		}

		summaries, err := svc.LiveSummary(ctx, window)
		if err != nil {
			requestLogger.Error("could not produce live summary", "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Summary []string `json:"summary"`
		}{
			Summary: renderSummaries(summaries),
		})
	}
}

func clearDetectionsHandler(log *slog.Logger, svc tracking.Tracking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "clear-detections")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		err = svc.ClearDetections(ctx)
		if err != nil {
			requestLogger.Error("could not clear detections", "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		requestLogger.Info("detection log cleared")

		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
		}{Status: "cleared"})
	}
}

func liveTagsHandler(log *slog.Logger, svc tracking.Tracking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "dashboard-live-tags")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		tags, err := svc.DashboardLiveTags(ctx)
		if err != nil {
			requestLogger.Error("could not build dashboard view", "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Tags []types.DashboardTag `json:"tags"`
		}{Tags: tags})
	}
}

func itemSearchHandler(log *slog.Logger, svc tracking.Tracking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "item-search")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		query := r.URL.Query().Get("q")
		if query == "" {
			writeJSON(w, http.StatusBadRequest, struct {
				Error string `json:"error"`
			}{Error: "missing query 'q'"})
			return
		}

		item, err := svc.SearchItem(ctx, query)
		if errors.Is(err, tracking.ErrItemNotFound) {
			requestLogger.Debug("no item matched query", "query", query)
			writeJSON(w, http.StatusNotFound, struct {
				Found bool `json:"found"`
			}{Found: false})
			return
		}
		if err != nil {
			requestLogger.Error("item search failed", "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Found bool              `json:"found"`
			Item  types.ItemDetails `json:"item"`
		}{Found: true, Item: item})
	}
}

func readerStatusHandler(log *slog.Logger, svc tracking.Tracking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "reader-status")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		readers, err := svc.ReaderStatus(ctx)
		if err != nil {
			requestLogger.Error("could not build reader status view", "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Readers []types.ReaderStatus `json:"readers"`
		}{Readers: readers})
	}
}

func activityLogsHandler(log *slog.Logger, svc tracking.Tracking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "activity-logs")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		from, err := parseDateParam(r, "from")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		to, err := parseDateParam(r, "to")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		logs, err := svc.ActivityLog(ctx, from, to)
		if err != nil {
			requestLogger.Error("could not build activity log", "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Logs []types.ActivityEntry `json:"logs"`
		}{Logs: logs})
	}
}

func ingest(ctx context.Context, r *http.Request, svc tracking.Tracking) (types.ReadBatch, types.IngestResult, error) {
	var batch types.ReadBatch

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return batch, types.IngestResult{}, tracking.ErrInvalidBatch
	}

	err = json.Unmarshal(body, &batch)
	if err != nil {
		return batch, types.IngestResult{}, tracking.ErrInvalidBatch
	}

	result, err := svc.Ingest(ctx, batch)

	return batch, result, err
}

func writeIngestError(log *slog.Logger, w http.ResponseWriter, batch types.ReadBatch, err error) {
	if errors.Is(err, tracking.ErrInvalidBatch) {
		writeJSON(w, http.StatusBadRequest, struct {
			Error string `json:"error"`
		}{Error: "invalid data"})
		return
	}

	if errors.Is(err, tracking.ErrUnknownReader) {
		log.Debug("batch from unknown reader", "mac", batch.MACAddress)
		writeJSON(w, http.StatusNotFound, struct {
			Error string `json:"error"`
		}{Error: "unknown reader MAC address"})
		return
	}

	log.Error("could not ingest tag reads", "err", err.Error())
	w.WriteHeader(http.StatusInternalServerError)
}

func renderSummaries(summaries []types.DetectionSummary) []string {
	return lo.Map(summaries, func(s types.DetectionSummary, _ int) string { return s.String() })
}

func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
