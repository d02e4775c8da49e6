package routes

import (
	"net/http"

	"parley/parley/middlewares"
	"parley/parley/services/auth"
	"parley/parley/utils/apperr"
	httputils "parley/parley/utils/http"
)

// generic wrapper to reduce boilerplate
func handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			httputils.WriteError(w, r, err)
			return
		}
		httputils.WriteJSON(w, status, res)
	}
}

func identity(r *http.Request) (auth.Identity, error) {
	id, ok := middlewares.IdentityFrom(r.Context())
	if !ok {
		return auth.Identity{}, apperr.New(apperr.Unauthenticated, "No token provided. Please login.")
	}
	return id, nil
}
