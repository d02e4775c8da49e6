package types

import (
	"time"

	"parley/parley/sources/psql/models"
)

type ChatRequest struct {
	Queries   string `json:"queries"`
	SessionID string `json:"sessionId,omitempty"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type HistoryResponse struct {
	Messages []models.Turn `json:"messages"`
}

// SessionSummary is one entry of the session picker.
type SessionSummary struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	CreatedAt time.Time     `json:"createdAt"`
	Messages  []models.Turn `json:"messages"`
}

type SessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
