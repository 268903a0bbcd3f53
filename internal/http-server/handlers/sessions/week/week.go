package week

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

type WeekChanger interface {
	ChangeWeek(ctx context.Context, sessionID string, req *api.WeekRequest) (*api.Session, error)
}

type Request struct {
	api.WeekRequest
}

type Response struct {
	response.Response
	Session *api.Session `json:"session,omitempty"`
}

func New(log *slog.Logger, changer WeekChanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.week.New"

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

		session, err := changer.ChangeWeek(r.Context(), sessionID, &req.WeekRequest)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("session not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "session not found"))
			return
		}

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("Invalid week request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "action must be next, prev or set with a valid date"))
			return
		}

		if errors.Is(err, response.ErrFetch) {
			log.Error("Failed to load availability", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error(string(response.FETCH_FAILED), "failed to load availability"))
			return
		}

		if err != nil {
			log.Error("Failed to change week", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to change week"))
			return
		}

		log.Info("Week changed", slog.String("week_start", session.WeekStart))

		render.JSON(w, r, Response{
			Session: session,
		})
	}
}
