package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/domain/types"
	"github.com/secmon-lab/kioku/pkg/utils/errutil"
	"github.com/secmon-lab/kioku/pkg/utils/safe"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to encode JSON response"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	safe.Write(ctx, w, append(raw, '\n'))
}

// statusCodeOf maps the error taxonomy to HTTP status codes
func statusCodeOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidDateFormat),
		errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, types.ErrInvalidChannelID):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrBackingSource):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers client errors with a JSON body; server side errors go through errutil
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := statusCodeOf(err)
	if code < http.StatusInternalServerError {
		writeJSON(ctx, w, code, errorResponse{Error: err.Error()})
		return
	}
	errutil.HandleHTTP(ctx, w, err, code)
}

type messageResponse struct {
	ID          string             `json:"id,omitempty"`
	Author      string             `json:"author"`
	Body        string             `json:"body"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
	SentAt      string             `json:"sent_at,omitempty"`
}

func toMessageResponse(msg *model.Message) messageResponse {
	resp := messageResponse{
		ID:          msg.ID,
		Author:      msg.Author,
		Body:        msg.Body,
		Attachments: msg.Attachments,
	}
	if msg.HasSentAt() {
		resp.SentAt = model.FormatTimestamp(msg.SentAt)
	}
	return resp
}
