package decrypt

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrMissingGUID is returned by Record for an empty guid.
var ErrMissingGUID = errors.New("missing guid")

// Service records and lists decrypt reports.
type Service struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a new decrypt Service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, now: time.Now, logger: logger}
}

// Record appends a report for guid.
func (s *Service) Record(ctx context.Context, guid, sourceIP string) (*Report, error) {
	if strings.TrimSpace(guid) == "" {
		return nil, ErrMissingGUID
	}
	r := &Report{GUID: guid, ReceivedAt: s.now().UTC(), SourceIP: sourceIP}
	if err := s.store.Append(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("decrypt reported", zap.String("guid", guid), zap.String("source_ip", sourceIP))
	return r, nil
}

// List returns every stored report, oldest first.
func (s *Service) List(ctx context.Context) ([]*Report, error) {
	return s.store.List(ctx)
}
