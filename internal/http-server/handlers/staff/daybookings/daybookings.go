package daybookings

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"branchbooker/api"
	"branchbooker/pkg/response"
	"branchbooker/pkg/sl"
)

type DayLister interface {
	DayBookings(ctx context.Context, token string, branchID int64, date string) ([]api.DayBooking, error)
}

type Response struct {
	response.Response
	Bookings []api.DayBooking `json:"bookings"`
}

func New(log *slog.Logger, lister DayLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.staff.daybookings.New"

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

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			log.Error("missing bearer token")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "authorization required"))
			return
		}

		bookings, err := lister.DayBookings(r.Context(), token, branchID, date)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("Invalid date", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "date must be yyyy-MM-dd"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("branch not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "branch not found"))
			return
		}

		if err != nil {
			log.Error("Failed to list day bookings", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error(string(response.FETCH_FAILED), "failed to list bookings"))
			return
		}

		log.Info("Day bookings retrieved",
			slog.Int64("branch_id", branchID),
			slog.String("date", date),
			slog.Int("count", len(bookings)),
		)

		render.JSON(w, r, Response{
			Bookings: bookings,
		})
	}
}
