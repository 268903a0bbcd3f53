package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"branchbooker/api"
	"branchbooker/pkg/response"
	"branchbooker/pkg/sl"
)

type GridBuilder interface {
	WeekGrid(ctx context.Context, branchID int64, date string) (*api.WeekGrid, error)
}

type Response struct {
	response.Response
	Grid *api.WeekGrid `json:"grid,omitempty"`
}

func New(log *slog.Logger, builder GridBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		branchID, err := strconv.ParseInt(chi.URLParam(r, "branchID"), 10, 64)
		if err != nil {
			log.Error("Invalid branch id", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid branch id"))
			return
		}

		date := r.URL.Query().Get("date")

		grid, err := builder.WeekGrid(r.Context(), branchID, date)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("Invalid date", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid date"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("branch not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "branch not found"))
			return
		}

		if err != nil {
			log.Error("Failed to build week grid", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error(string(response.FETCH_FAILED), "failed to load availability"))
			return
		}

		log.Info("Week grid built",
			slog.Int64("branch_id", branchID),
			slog.String("week_start", grid.WeekStart),
		)

		render.JSON(w, r, Response{
			Grid: grid,
		})
	}
}
