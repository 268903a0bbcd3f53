package close

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"branchbooker/pkg/response"
	"branchbooker/pkg/sl"
)

type SessionCloser interface {
	CloseSession(ctx context.Context, sessionID string) error
}

func New(log *slog.Logger, closer SessionCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.close.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessionID := chi.URLParam(r, "id")

		err := closer.CloseSession(r.Context(), sessionID)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("session not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "session not found"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("submit in flight")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "a submit is in flight"))
			return
		}

		if err != nil {
			log.Error("Failed to close session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to close session"))
			return
		}

		log.Info("Session closed", slog.String("session_id", sessionID))

		w.WriteHeader(http.StatusNoContent)
	}
}
