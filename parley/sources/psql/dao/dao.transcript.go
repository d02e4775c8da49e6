package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parley/parley/sources/psql/models"
	"parley/parley/utils/logging"
	"parley/parley/utils/metrics"
)

// MaxListedSessions caps List.
const MaxListedSessions = 50

var ErrInvalidTurn = errors.New("invalid turn")

type TranscriptDAO struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewTranscriptDAO(db *gorm.DB) *TranscriptDAO {
	return &TranscriptDAO{DB: db, now: time.Now}
}

// WithClock replaces the time source used for timestamps.
func (dao *TranscriptDAO) WithClock(now func() time.Time) *TranscriptDAO {
	dao.now = now
	return dao
}

func (dao *TranscriptDAO) scoped(tx *gorm.DB, sessionID, userID string) *gorm.DB {
	return tx.Model(&models.Transcript{}).Where("session_id = ? AND user_id = ?", sessionID, userID)
}

// Append adds turns to the {sessionID, userID} transcript, creating it on first write.
// The header upsert and the turn inserts share one transaction.
func (dao *TranscriptDAO) Append(ctx context.Context, sessionID, userID string, turns ...models.Turn) (err error) {
	defer logging.LogDuration(ctx, "transcript_append")()
	defer func() { metrics.StoreOp("append", err) }()

	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidTurn)
	}
	for _, t := range turns {
		if t.Role != models.RoleUser && t.Role != models.RoleAssistant {
			return fmt.Errorf("%w: role %q", ErrInvalidTurn, t.Role)
		}
		if strings.TrimSpace(t.Content) == "" {
			return fmt.Errorf("%w: empty content", ErrInvalidTurn)
		}
	}

	now := dao.now().UTC()
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		header := models.Transcript{
			ID:        uuid.New(),
			SessionID: sessionID,
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": now}),
		}).Create(&header).Error
		if err != nil {
			return fmt.Errorf("upsert transcript: %w", err)
		}

		var stored models.Transcript
		if err := dao.scoped(tx, sessionID, userID).Select("id").Take(&stored).Error; err != nil {
			return fmt.Errorf("load transcript id: %w", err)
		}
		if len(turns) == 0 {
			return nil
		}

		rows := make([]models.Turn, len(turns))
		for i, t := range turns {
			rows[i] = models.Turn{
				TranscriptID: stored.ID,
				Role:         t.Role,
				Content:      t.Content,
				Timestamp:    t.Timestamp,
			}
			if rows[i].Timestamp.IsZero() {
				rows[i].Timestamp = now
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert turns: %w", err)
		}
		return nil
	})
}

// Read returns the ordered turns, or an empty slice when no transcript matches.
func (dao *TranscriptDAO) Read(ctx context.Context, sessionID, userID string) (turns []models.Turn, err error) {
	defer logging.LogDuration(ctx, "transcript_read")()
	defer func() { metrics.StoreOp("read", err) }()

	db := dao.DB.WithContext(ctx)
	err = db.
		Where("transcript_id IN (?)", dao.scoped(db, sessionID, userID).Select("id")).
		Order("id ASC").
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return turns, nil
}

// List returns up to limit of the user's transcripts, newest first, with their turns.
func (dao *TranscriptDAO) List(ctx context.Context, userID string, limit int) (transcripts []models.Transcript, err error) {
	defer logging.LogDuration(ctx, "transcript_list")()
	defer func() { metrics.StoreOp("list", err) }()

	if limit <= 0 || limit > MaxListedSessions {
		limit = MaxListedSessions
	}
	err = dao.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Preload("Turns", orderedTurns).
		Find(&transcripts).Error
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return withTurns(transcripts), nil
}

// Delete removes the transcript if present. Deleting nothing is not an error.
func (dao *TranscriptDAO) Delete(ctx context.Context, sessionID, userID string) (err error) {
	defer logging.LogDuration(ctx, "transcript_delete")()
	defer func() { metrics.StoreOp("delete", err) }()

	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := dao.scoped(tx, sessionID, userID).Select("id")
		if err := tx.Where("transcript_id IN (?)", ids).Delete(&models.Turn{}).Error; err != nil {
			return fmt.Errorf("delete turns: %w", err)
		}
		if err := tx.Where("session_id = ? AND user_id = ?", sessionID, userID).Delete(&models.Transcript{}).Error; err != nil {
			return fmt.Errorf("delete transcript: %w", err)
		}
		return nil
	})
}

// ListExpired returns up to limit transcripts created before cutoff, oldest first.
func (dao *TranscriptDAO) ListExpired(ctx context.Context, cutoff time.Time, limit int) (transcripts []models.Transcript, err error) {
	defer func() { metrics.StoreOp("list_expired", err) }()

	err = dao.DB.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Preload("Turns", orderedTurns).
		Find(&transcripts).Error
	if err != nil {
		return nil, fmt.Errorf("list expired transcripts: %w", err)
	}
	return withTurns(transcripts), nil
}

func (dao *TranscriptDAO) DeleteByID(ctx context.Context, id uuid.UUID) (err error) {
	defer func() { metrics.StoreOp("delete_by_id", err) }()

	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("transcript_id = ?", id).Delete(&models.Turn{}).Error; err != nil {
			return fmt.Errorf("delete turns: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Transcript{}).Error; err != nil {
			return fmt.Errorf("delete transcript: %w", err)
		}
		return nil
	})
}

func orderedTurns(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func withTurns(transcripts []models.Transcript) []models.Transcript {
	if transcripts == nil {
		return []models.Transcript{}
	}
	for i := range transcripts {
		if transcripts[i].Turns == nil {
			transcripts[i].Turns = []models.Turn{}
		}
	}
	return transcripts
}
