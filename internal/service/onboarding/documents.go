package onboarding

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocomet/rider-service/internal/domain/document"
	"github.com/gocomet/rider-service/internal/domain/rider"
	"github.com/gocomet/rider-service/pkg/blobstore"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
	"github.com/gocomet/rider-service/pkg/events"
	"github.com/gocomet/rider-service/pkg/logger"
	"github.com/gocomet/rider-service/pkg/websocket"
)

const (
	resourceImage = "image"
	resourceRaw   = "raw"
)

// UploadRequest is one document file waiting on local disk
type UploadRequest struct {
	DocumentType string
	LocalPath    string
	Metadata     document.Metadata
}

// UploadDocument stores the file and moves the document into review.
// Locks and metadata are checked before anything is written to the blob store;
// the replaced blob is deleted in the background.
func (s *Service) UploadDocument(ctx context.Context, actor document.Actor, userID string, req UploadRequest) (document.Record, error) {
	if !actor.IsAdmin() && actor.ID != userID {
		return document.Record{}, apperrors.Forbidden("cannot upload documents for another rider", nil)
	}
	docType, err := document.ParseType(req.DocumentType)
	if err != nil {
		return document.Record{}, apperrors.NotFound("unknown document type: "+req.DocumentType, err)
	}
	if strings.TrimSpace(req.LocalPath) == "" {
		return document.Record{}, apperrors.Validation("a file is required", document.ErrMissingBlob)
	}

	current, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return document.Record{}, err
	}
	if err := s.dryRunUpload(current, docType, req.Metadata); err != nil {
		return document.Record{}, translate(err)
	}

	obj, err := s.blobs.Upload(ctx, req.LocalPath, path.Join(s.config.BlobFolder, userID, string(docType)), resourceTypeOf(req.LocalPath))
	if err != nil {
		return document.Record{}, apperrors.Storage("failed to store document: "+err.Error(), err)
	}
	blob := document.BlobRef{URL: obj.URL, PublicID: obj.PublicID, Format: obj.Format, ResourceType: obj.ResourceType}

	var previous *document.BlobRef
	p, err := s.mutate(ctx, "upload_document", userID, true, func(p *rider.Profile, now time.Time) error {
		prev, err := p.UploadDocument(docType, blob, req.Metadata, now)
		previous = prev
		return err
	})
	if err != nil {
		s.deleteBlobAsync(userID, &blob)
		return document.Record{}, err
	}
	s.deleteBlobAsync(userID, previous)

	rec := *p.Documents.Get(docType)
	s.logger.Info("Rider document uploaded",
		logger.UserID(userID),
		logger.DocumentType(string(docType)),
		logger.String("status", string(rec.Status)),
	)
	s.metrics.RecordDocumentUploaded(string(docType))

	if rec.Status == document.StatusPending {
		msg := websocket.Message{
			Type: "document_uploaded",
			Data: map[string]interface{}{"userId": userID, "documentType": docType},
		}
		s.notifier.BroadcastToType("admin", msg)
	}
	s.notifier.PublishToWatchers(userID, websocket.Message{Type: "document_updated", Data: rec})
	s.publish(ctx, events.TopicDocumentUploaded, userID, map[string]interface{}{
		"documentType": docType,
		"status":       rec.Status,
	})
	return rec, nil
}

// VerifyDocument approves a pending document
func (s *Service) VerifyDocument(ctx context.Context, actor document.Actor, userID, documentType string) (document.Record, error) {
	return s.review(ctx, actor, userID, documentType, "verified", events.TopicDocumentVerified,
		func(p *rider.Profile, t document.Type, now time.Time) error {
			return p.VerifyDocument(t, actor, now)
		})
}

// RejectDocument sends a pending document back with a reason
func (s *Service) RejectDocument(ctx context.Context, actor document.Actor, userID, documentType, reason string) (document.Record, error) {
	if strings.TrimSpace(reason) == "" {
		return document.Record{}, translate(document.ErrRejectionReasonRequired)
	}
	return s.review(ctx, actor, userID, documentType, "rejected", events.TopicDocumentRejected,
		func(p *rider.Profile, t document.Type, now time.Time) error {
			return p.RejectDocument(t, actor, reason)
		})
}

func (s *Service) review(ctx context.Context, actor document.Actor, userID, documentType, verdict, topic string,
	apply func(p *rider.Profile, t document.Type, now time.Time) error) (document.Record, error) {
	if !actor.IsAdmin() {
		return document.Record{}, translate(document.ErrAdminRequired)
	}
	docType, err := document.ParseType(documentType)
	if err != nil {
		return document.Record{}, apperrors.NotFound("unknown document type: "+documentType, err)
	}

	p, err := s.mutate(ctx, "review_document", userID, false, func(p *rider.Profile, now time.Time) error {
		return apply(p, docType, now)
	})
	if err != nil {
		return document.Record{}, err
	}

	rec := *p.Documents.Get(docType)
	s.logger.Info("Rider document reviewed",
		logger.UserID(userID),
		logger.DocumentType(string(docType)),
		logger.String("verdict", verdict),
		logger.String("admin_id", actor.ID),
	)
	s.metrics.RecordDocumentReviewed(string(docType), verdict)

	s.notifier.SendToUser(userID, websocket.Message{
		Type: "document_" + verdict,
		Data: map[string]interface{}{
			"documentType":    docType,
			"rejectionReason": rec.RejectionReason,
			"allVerified":     p.Documents.AllRequiredVerified(),
		},
	})
	s.notifier.PublishToWatchers(userID, websocket.Message{Type: "document_updated", Data: rec})
	s.publish(ctx, topic, userID, map[string]interface{}{
		"documentType":    docType,
		"reviewedBy":      actor.ID,
		"rejectionReason": rec.RejectionReason,
	})
	return rec, nil
}

// dryRunUpload applies the upload to a copy of the record so lock and metadata
// errors surface before the file is stored
func (s *Service) dryRunUpload(p *rider.Profile, t document.Type, meta document.Metadata) error {
	rec, err := p.Document(t)
	if err != nil {
		return err
	}
	trial := *rec
	placeholder := document.BlobRef{URL: "pending://upload", PublicID: "pending"}
	_, err = document.Upload(&trial, placeholder, meta, s.now())
	return err
}

// deleteBlobAsync removes a blob on a background goroutine. Failures are logged only.
func (s *Service) deleteBlobAsync(userID string, blob *document.BlobRef) {
	if blob == nil || blob.PublicID == "" {
		return
	}
	ref := *blob
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.BlobDeleteTimeout)
		defer cancel()

		err := s.blobs.Delete(ctx, ref.PublicID, ref.ResourceType)
		if err == nil || errors.Is(err, blobstore.ErrNotFound) {
			return
		}
		s.metrics.RecordBlobDeleteFailure()
		s.logger.Warn("Failed to delete replaced document blob",
			logger.UserID(userID),
			logger.String("public_id", ref.PublicID),
			logger.Err(err),
		)
	}()
}

func resourceTypeOf(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".pdf", ".doc", ".docx":
		return resourceRaw
	}
	return resourceImage
}
