package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

// ImportReportStore keeps finished import reports for later retrieval.
type ImportReportStore interface {
	Save(ctx context.Context, report *models.ImportReport) error
	Get(ctx context.Context, id string) (*models.ImportReport, error)
}

// RedisImportReportStore stores reports as JSON strings that expire after ttl.
type RedisImportReportStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisImportReportStore(client redis.Cmdable, ttl time.Duration) *RedisImportReportStore {
	return &RedisImportReportStore{client: client, ttl: ttl}
}

func reportKey(id string) string {
	return fmt.Sprintf("checkout_import:report:%s", id)
}

func (s *RedisImportReportStore) Save(ctx context.Context, report *models.ImportReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, reportKey(report.ID), data, s.ttl).Err()
}

func (s *RedisImportReportStore) Get(ctx context.Context, id string) (*models.ImportReport, error) {
	data, err := s.client.Get(ctx, reportKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	var report models.ImportReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
