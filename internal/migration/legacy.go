package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocomet/rider-service/internal/domain/document"
	"github.com/gocomet/rider-service/internal/domain/rider"
	"github.com/gocomet/rider-service/pkg/blobstore"
	"github.com/gocomet/rider-service/pkg/logger"
)

const maxAttempts = 3

// Report summarises one legacy document pass. Orphans counts stored files of
// dropped legacy records and Deleted the ones actually removed.
type Report struct {
	Scanned  int `json:"scanned"`
	Migrated int `json:"migrated"`
	Moved    int `json:"moved"`
	Failed   int `json:"failed"`
	Orphans  int `json:"orphans"`
	Deleted  int `json:"deleted"`
}

// LegacyDocuments rewrites profiles still carrying drivingLicense or nationalId
// records onto the current catalog. Running it again is a no-op.
type LegacyDocuments struct {
	repo   rider.Repository
	blobs  blobstore.Store
	logger *logger.Logger
	now    func() time.Time
}

// NewLegacyDocuments creates the migration. Files of dropped records are
// deleted from blobs once the rewrite is stored; a nil blobs only counts them.
func NewLegacyDocuments(repo rider.Repository, blobs blobstore.Store, log *logger.Logger) *LegacyDocuments {
	if log == nil {
		log = logger.NewNop()
	}
	return &LegacyDocuments{
		repo:   repo,
		blobs:  blobs,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run walks every profile. With dryRun set nothing is written and the report
// counts what would change. Per-profile failures are logged and counted; only
// a failing walk aborts the run.
func (m *LegacyDocuments) Run(ctx context.Context, dryRun bool) (Report, error) {
	var report Report

	err := m.repo.ForEach(ctx, func(p *rider.Profile) error {
		report.Scanned++
		if !p.Documents.HasLegacy() {
			return nil
		}

		if dryRun {
			moved, orphaned := p.Documents.MigrateLegacy()
			report.Migrated++
			report.Moved += len(moved)
			report.Orphans += len(orphaned)
			m.logger.Info("Would migrate legacy documents",
				logger.UserID(p.UserID),
				logger.Any("moved", moved),
				logger.Int("orphans", len(orphaned)),
			)
			return nil
		}

		moved, orphaned, err := m.migrate(ctx, p)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			report.Failed++
			m.logger.Error("Failed to migrate legacy documents",
				logger.UserID(p.UserID),
				logger.Err(err),
			)
			return nil
		}
		report.Migrated++
		report.Moved += len(moved)
		report.Orphans += len(orphaned)
		report.Deleted += m.deleteOrphans(ctx, p.UserID, orphaned)
		m.logger.Info("Migrated legacy documents",
			logger.UserID(p.UserID),
			logger.Any("moved", moved),
			logger.Int("orphans", len(orphaned)),
		)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("legacy document migration aborted: %w", err)
	}

	m.logger.Info("Legacy document migration finished",
		logger.Bool("dry_run", dryRun),
		logger.Int("scanned", report.Scanned),
		logger.Int("migrated", report.Migrated),
		logger.Int("moved", report.Moved),
		logger.Int("failed", report.Failed),
		logger.Int("orphans", report.Orphans),
		logger.Int("deleted", report.Deleted),
	)
	return report, nil
}

// migrate applies the rewrite, re-reading the profile when a concurrent write got there first
func (m *LegacyDocuments) migrate(ctx context.Context, p *rider.Profile) ([]document.Type, []document.BlobRef, error) {
	for attempt := 1; ; attempt++ {
		moved, orphaned := p.Documents.MigrateLegacy()
		p.Normalize(m.now())

		err := m.repo.Update(ctx, p)
		if err == nil {
			return moved, orphaned, nil
		}
		if !errors.Is(err, rider.ErrVersionConflict) || attempt == maxAttempts {
			return nil, nil, err
		}

		fresh, err := m.repo.GetByUserID(ctx, p.UserID)
		if err != nil {
			return nil, nil, err
		}
		if !fresh.Documents.HasLegacy() {
			return nil, nil, nil
		}
		p = fresh
	}
}

// deleteOrphans removes files no record points at any more and returns how many
// are gone. Failures are logged; the profile rewrite already stands.
func (m *LegacyDocuments) deleteOrphans(ctx context.Context, userID string, orphaned []document.BlobRef) int {
	if m.blobs == nil {
		return 0
	}
	deleted := 0
	for _, ref := range orphaned {
		err := m.blobs.Delete(ctx, ref.PublicID, ref.ResourceType)
		if err == nil || errors.Is(err, blobstore.ErrNotFound) {
			deleted++
			continue
		}
		m.logger.Warn("Failed to delete dropped legacy document blob",
			logger.UserID(userID),
			logger.String("public_id", ref.PublicID),
			logger.Err(err),
		)
	}
	return deleted
}
