package submit

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

type BookingSubmitter interface {
	SubmitBooking(ctx context.Context, sessionID string, req *api.SubmitRequest, idempotencyKey string) (*api.Booking, error)
}

type Request struct {
	api.SubmitRequest
}

type Response struct {
	response.Response
	Booking *api.Booking `json:"booking,omitempty"`
}

func New(log *slog.Logger, submitter BookingSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.submit.New"

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

		idempotencyKey := r.Header.Get("Idempotency-Key")

		booking, err := submitter.SubmitBooking(r.Context(), sessionID, &req.SubmitRequest, idempotencyKey)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("session not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "session not found"))
			return
		}

		if errors.Is(err, response.ErrValidation) {
			log.Error("Draft validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), "name and a valid email are required"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("submit already in flight")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "a submit is already in flight"))
			return
		}

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("No slot selected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "no slot selected"))
			return
		}

		if errors.Is(err, response.ErrSlotNotAvailable) {
			log.Error("slot is not available")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.SLOT_NOT_AVAILABLE), "slot is no longer available"))
			return
		}

		if err != nil {
			log.Error("Failed to submit booking", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to submit booking"))
			return
		}

		log.Info("Booking confirmed", slog.Int64("appointment_id", booking.AppointmentID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Booking: booking,
		})
	}
}
