package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"branchbooker/api"
	"branchbooker/pkg/response"
	"branchbooker/pkg/sl"
)

type SessionStarter interface {
	StartSession(ctx context.Context, req *api.CreateSessionRequest) (*api.Session, error)
}

type Request struct {
	api.CreateSessionRequest
}

type Response struct {
	response.Response
	Session *api.Session `json:"session,omitempty"`
}

func New(log *slog.Logger, starter SessionStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.create.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		session, err := starter.StartSession(r.Context(), &req.CreateSessionRequest)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("Invalid session request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "branch_id and a valid date are required"))
			return
		}

		if errors.Is(err, response.ErrFetch) {
			log.Error("Failed to load availability", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error(string(response.FETCH_FAILED), "failed to load availability"))
			return
		}

		if err != nil {
			log.Error("Failed to start session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to start session"))
			return
		}

		log.Info("Session started", slog.String("session_id", session.SessionID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Session: session,
		})
	}
}
