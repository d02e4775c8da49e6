package controllers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"parley/parley/services/auth"
	"parley/parley/services/llm"
	"parley/parley/sources/psql/dao"
	"parley/parley/sources/psql/models"
	"parley/parley/utils/apperr"
	"parley/parley/utils/logging"
	"parley/parley/utils/metrics"
	"parley/parley/utils/types"
)

// TranscriptStore is implemented by dao.TranscriptDAO.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID, userID string, turns ...models.Turn) error
	Read(ctx context.Context, sessionID, userID string) ([]models.Turn, error)
	List(ctx context.Context, userID string, limit int) ([]models.Transcript, error)
	Delete(ctx context.Context, sessionID, userID string) error
}

type ChatController struct {
	store   TranscriptStore
	gateway llm.Gateway
}

func NewChatController(store TranscriptStore, gateway llm.Gateway) *ChatController {
	return &ChatController{store: store, gateway: gateway}
}

// Chat answers one question and, when a session id is given, records the exchange.
// Nothing is persisted unless the model produced a reply.
func (c *ChatController) Chat(ctx context.Context, user auth.Identity, req types.ChatRequest) (types.ChatResponse, error) {
	if strings.TrimSpace(req.Queries) == "" {
		metrics.ChatTurnsTotal.WithLabelValues("bad_request").Inc()
		return types.ChatResponse{}, apperr.New(apperr.BadRequest, "Queries are required.")
	}

	// once the model is called the turn finishes even if the client goes away
	ctx = context.WithoutCancel(ctx)

	reply, err := c.gateway.Complete(ctx, req.Queries)
	if err != nil {
		metrics.ChatTurnsTotal.WithLabelValues("upstream_error").Inc()
		if apperr.KindOf(err) != apperr.UpstreamError {
			err = apperr.Wrap(apperr.UpstreamError, "Internal Server Error", err)
		}
		return types.ChatResponse{}, err
	}

	if req.SessionID != "" {
		err := c.store.Append(ctx, req.SessionID, user.UID,
			models.Turn{Role: models.RoleUser, Content: req.Queries},
			models.Turn{Role: models.RoleAssistant, Content: reply},
		)
		if err != nil {
			metrics.ChatTurnsTotal.WithLabelValues("store_error").Inc()
			return types.ChatResponse{}, apperr.Wrap(apperr.StoreError, "Internal Server Error", err)
		}
	}

	metrics.ChatTurnsTotal.WithLabelValues("replied").Inc()
	logging.AppLogger.Info("chat turn replied",
		zap.String("uid", user.UID),
		zap.String("session_id", req.SessionID),
		zap.Bool("persisted", req.SessionID != ""),
	)
	return types.ChatResponse{Reply: reply}, nil
}

func (c *ChatController) History(ctx context.Context, user auth.Identity, sessionID string) (types.HistoryResponse, error) {
	turns, err := c.store.Read(ctx, sessionID, user.UID)
	if err != nil {
		return types.HistoryResponse{}, apperr.Wrap(apperr.StoreError, "Failed to fetch chat history", err)
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return types.HistoryResponse{Messages: turns}, nil
}

func (c *ChatController) Sessions(ctx context.Context, user auth.Identity) (types.SessionsResponse, error) {
	transcripts, err := c.store.List(ctx, user.UID, dao.MaxListedSessions)
	if err != nil {
		return types.SessionsResponse{}, apperr.Wrap(apperr.StoreError, "Failed to fetch sessions", err)
	}
	sessions := make([]types.SessionSummary, 0, len(transcripts))
	for _, t := range transcripts {
		messages := t.Turns
		if messages == nil {
			messages = []models.Turn{}
		}
		sessions = append(sessions, types.SessionSummary{
			ID:        t.ID.String(),
			SessionID: t.SessionID,
			CreatedAt: t.CreatedAt,
			Messages:  messages,
		})
	}
	return types.SessionsResponse{Sessions: sessions}, nil
}

func (c *ChatController) DeleteSession(ctx context.Context, user auth.Identity, sessionID string) (types.DeleteResponse, error) {
	if err := c.store.Delete(ctx, sessionID, user.UID); err != nil {
		return types.DeleteResponse{}, apperr.Wrap(apperr.StoreError, "Failed to delete chat", err)
	}
	logging.AppLogger.Info("chat deleted", zap.String("uid", user.UID), zap.String("session_id", sessionID))
	return types.DeleteResponse{Success: true, Message: "Chat deleted successfully"}, nil
}
