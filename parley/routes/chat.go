package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"parley/parley/controllers"
	"parley/parley/middlewares"
	"parley/parley/services/auth"
	httputils "parley/parley/utils/http"
	"parley/parley/utils/types"
)

func ChatRoutes(ctrl *controllers.ChatController, tokens *auth.TokenManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(tokens))

		// POST /api/chatbot : ask a question
		gr.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
			user, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			var req types.ChatRequest
			if err := httputils.DecodeJSON(r, &req); err != nil {
				return nil, 0, err
			}
			resp, err := ctrl.Chat(r.Context(), user, req)
			if err != nil {
				return nil, 0, err
			}
			return resp, http.StatusOK, nil
		}))

		gr.Get("/history/{sessionId}", handleJSON(func(r *http.Request) (any, int, error) {
			user, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			resp, err := ctrl.History(r.Context(), user, chi.URLParam(r, "sessionId"))
			if err != nil {
				return nil, 0, err
			}
			return resp, http.StatusOK, nil
		}))

		gr.Get("/sessions", handleJSON(func(r *http.Request) (any, int, error) {
			user, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			resp, err := ctrl.Sessions(r.Context(), user)
			if err != nil {
				return nil, 0, err
			}
			return resp, http.StatusOK, nil
		}))

		gr.Delete("/history/{sessionId}", handleJSON(func(r *http.Request) (any, int, error) {
			user, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			resp, err := ctrl.DeleteSession(r.Context(), user, chi.URLParam(r, "sessionId"))
			if err != nil {
				return nil, 0, err
			}
			return resp, http.StatusOK, nil
		}))
	})
	return r
}
