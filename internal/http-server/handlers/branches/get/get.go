package get

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"branchbooker/api"
	"branchbooker/pkg/response"
	"branchbooker/pkg/sl"
)

type BranchLister interface {
	Branches(ctx context.Context) ([]api.Branch, error)
}

type Response struct {
	response.Response
	Branches []api.Branch `json:"branches"`
}

func New(log *slog.Logger, lister BranchLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.branches.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		branches, err := lister.Branches(r.Context())
		if err != nil {
			log.Error("Failed to list branches", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error(string(response.FETCH_FAILED), "failed to list branches"))
			return
		}

		log.Info("Branches retrieved", slog.Int("count", len(branches)))

		render.JSON(w, r, Response{
			Branches: branches,
		})
	}
}
