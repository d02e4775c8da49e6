package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Transcript is the per-session document header. Turns hold its messages.
type Transcript struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID string    `json:"sessionId" gorm:"type:varchar(255);not null;uniqueIndex:idx_transcripts_session_user,priority:1"`
	UserID    string    `json:"-" gorm:"type:varchar(255);not null;uniqueIndex:idx_transcripts_session_user,priority:2;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
	Turns     []Turn    `json:"messages" gorm:"foreignKey:TranscriptID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Transcript) TableName() string {
	return "transcripts"
}

// Turn is one message. ID order is conversation order.
type Turn struct {
	ID           uint64    `json:"-" gorm:"primaryKey;autoIncrement"`
	TranscriptID uuid.UUID `json:"-" gorm:"type:uuid;not null;index"`
	Role         string    `json:"role" gorm:"type:varchar(16);not null"`
	Content      string    `json:"content" gorm:"type:text;not null"`
	Timestamp    time.Time `json:"timestamp" gorm:"not null"`
}

func (Turn) TableName() string {
	return "transcript_turns"
}
