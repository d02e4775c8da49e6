package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"parley/parley/config"
	"parley/parley/sources/psql/models"
	"parley/parley/utils/logging"
)

type MinIOClient struct {
	client *minio.Client
	bucket string
}

// ArchivedTranscript is the JSON document written for each expired transcript.
type ArchivedTranscript struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"sessionId"`
	UserID     string        `json:"userId"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	ArchivedAt time.Time     `json:"archivedAt"`
	Messages   []models.Turn `json:"messages"`
}

func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	bucket := cfg.MinIOBucket
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		logging.AppLogger.Info("created archive bucket", zap.String("bucket", bucket))
	}
	return &MinIOClient{client: client, bucket: bucket}, nil
}

// ObjectKey places a transcript at transcripts/<user>/<session>-<id>.json.
func ObjectKey(t models.Transcript) string {
	name := fmt.Sprintf("%s-%s.json", url.PathEscape(t.SessionID), t.ID)
	return path.Join("transcripts", url.PathEscape(t.UserID), name)
}

func EncodeTranscript(t models.Transcript, archivedAt time.Time) ([]byte, error) {
	return json.Marshal(ArchivedTranscript{
		ID:         t.ID.String(),
		SessionID:  t.SessionID,
		UserID:     t.UserID,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		ArchivedAt: archivedAt,
		Messages:   t.Turns,
	})
}

func (m *MinIOClient) ArchiveTranscript(ctx context.Context, t models.Transcript) (string, error) {
	defer logging.LogDuration(ctx, "archive_transcript")()

	data, err := EncodeTranscript(t, time.Now().UTC())
	if err != nil {
		return "", err
	}
	key := ObjectKey(t)
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}
