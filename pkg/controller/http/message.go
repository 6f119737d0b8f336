package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/usecase"
)

const maxPrefetchBody = 4096

type listMessagesResponse struct {
	ChannelID string            `json:"channel_id"`
	Start     string            `json:"start"`
	End       string            `json:"end"`
	Messages  []messageResponse `json:"messages"`
}

// listMessagesHandler serves GET /api/channels/{channelID}/messages?start=&end=
func listMessagesHandler(uc *usecase.MessageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		channelID := chi.URLParam(r, "channelID")
		start := r.URL.Query().Get("start")
		end := r.URL.Query().Get("end")

		if start == "" || end == "" {
			writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "start and end parameters required"})
			return
		}

		msgs, err := uc.LoadMessages(ctx, channelID, start, end)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		// Parsing cannot fail here, LoadMessages already accepted the range
		dr, _ := model.ParseDateRange(start, end)
		resp := listMessagesResponse{
			ChannelID: channelID,
			Start:     model.FormatTimestamp(dr.Start),
			End:       model.FormatTimestamp(dr.End),
			Messages:  make([]messageResponse, len(msgs)),
		}
		for i, msg := range msgs {
			resp.Messages[i] = toMessageResponse(msg)
		}

		writeJSON(ctx, w, http.StatusOK, resp)
	}
}

type prefetchRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type prefetchResponse struct {
	JobID string `json:"job_id"`
}

// prefetchHandler serves POST /api/channels/{channelID}/prefetch with body {"start","end"}
func prefetchHandler(uc *usecase.MessageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		channelID := chi.URLParam(r, "channelID")

		var req prefetchRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPrefetchBody)).Decode(&req); err != nil {
			writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: goerr.Wrap(err, "invalid request body").Error()})
			return
		}

		jobID, err := uc.Prefetch(ctx, channelID, req.Start, req.End)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusAccepted, prefetchResponse{JobID: jobID})
	}
}

// snapshotHandler serves GET /api/cache
func snapshotHandler(uc *usecase.MessageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, uc.Snapshot())
	}
}

// clearHandler serves DELETE /api/cache
func clearHandler(uc *usecase.MessageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc.Clear(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

// statsHandler serves GET /api/cache/stats
func statsHandler(uc *usecase.MessageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, uc.Stats())
	}
}
