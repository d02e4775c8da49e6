package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"parley/parley/controllers"
	httputils "parley/parley/utils/http"
	"parley/parley/utils/types"
)

func AuthRoutes(ctrl *controllers.AuthController) chi.Router {
	r := chi.NewRouter()
	r.Post("/verify", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.VerifyRequest
		if err := httputils.DecodeJSON(r, &req); err != nil {
			return nil, 0, err
		}
		resp, err := ctrl.Verify(r.Context(), req)
		if err != nil {
			return nil, 0, err
		}
		return resp, http.StatusOK, nil
	}))
	return r
}
