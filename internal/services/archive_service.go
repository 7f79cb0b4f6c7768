package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ballot-engine/internal/aggregation"
	"ballot-engine/internal/domain/poll"
	"ballot-engine/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStore is the slice of object storage the archiver needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
}

// PollArchive is the document written when a poll closes.
type PollArchive struct {
	Poll        *poll.Poll                   `json:"poll"`
	Results     *poll.Results                `json:"results"`
	LiveResults []aggregation.ChoiceCount    `json:"live_results"`
	Snapshots   []aggregation.SnapshotRecord `json:"snapshots"`
	Anomalies   []aggregation.Anomaly        `json:"anomalies"`
	Trends      []aggregation.Trend          `json:"trends"`
	ArchivedAt  time.Time                    `json:"archived_at"`
}

type ArchiveService struct {
	store  ObjectStore
	tally  *TallyService
	engine *aggregation.Engine
	clock  func() time.Time
	logger *logger.Logger
}

func NewArchiveService(store ObjectStore, tally *TallyService, engine *aggregation.Engine, l *logger.Logger) *ArchiveService {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &ArchiveService{store: store, tally: tally, engine: engine, clock: time.Now, logger: l}
}

func ArchiveKey(pollID uuid.UUID) string {
	return fmt.Sprintf("archives/polls/%s.json", pollID)
}

// Archive exports the final ledger results and the snapshot history of a poll.
func (s *ArchiveService) Archive(ctx context.Context, pollID uuid.UUID) error {
	p, err := s.tally.polls.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	results, err := s.tally.Results(ctx, pollID)
	if err != nil {
		return err
	}

	history := s.engine.History(pollID)
	snaps := make([]aggregation.SnapshotRecord, 0, len(history))
	for _, h := range history {
		snaps = append(snaps, h.Record())
	}
	doc := PollArchive{
		Poll:        p,
		Results:     results,
		LiveResults: s.engine.Results(pollID),
		Snapshots:   snaps,
		Anomalies:   s.engine.DetectAnomalies(pollID),
		Trends:      s.engine.DetectTrends(pollID),
		ArchivedAt:  s.clock().UTC(),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := s.store.PutObject(ctx, ArchiveKey(pollID), "application/json", body); err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}

	s.logger.FromContext(ctx).Logger.Info("poll archived",
		zap.String("poll_id", pollID.String()),
		zap.Int("snapshots", len(snaps)),
		zap.Int64("ballots", results.TotalBallots),
	)
	return nil
}
