package selectslot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"branchbooker/api"
	"branchbooker/pkg/response"
	"branchbooker/pkg/sl"
)

type SlotSelector interface {
	SelectSlot(ctx context.Context, sessionID string, req *api.SelectRequest) (*api.Session, error)
}

type Request struct {
	api.SelectRequest
}

type Response struct {
	response.Response
	Session *api.Session `json:"session,omitempty"`
}

func New(log *slog.Logger, selector SlotSelector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.selectslot.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessionID := chi.URLParam(r, "id")

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		session, err := selector.SelectSlot(r.Context(), sessionID, &req.SelectRequest)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("session not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "session not found"))
			return
		}

		if errors.Is(err, response.ErrBadClock) {
			log.Error("Malformed slot time", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "start and end must be HH:mm"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("submit in flight")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "a submit is in flight"))
			return
		}

		if errors.Is(err, response.ErrSlotNotAvailable) {
			log.Error("slot is not available")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.SLOT_NOT_AVAILABLE), "slot is not available"))
			return
		}

		if errors.Is(err, response.ErrFetch) {
			log.Error("No availability loaded", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.FETCH_FAILED), "no availability loaded"))
			return
		}

		if err != nil {
			log.Error("Failed to select slot", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to select slot"))
			return
		}

		log.Info("Slot selected", slog.Any("selection", session.Selection))

		render.JSON(w, r, Response{
			Session: session,
		})
	}
}
