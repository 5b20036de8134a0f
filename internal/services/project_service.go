package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fieldquote/backend/internal/cache"
	"fieldquote/backend/internal/config"
	"fieldquote/backend/internal/db"
	"fieldquote/backend/internal/diff"
	"fieldquote/backend/internal/ledger"
	"fieldquote/backend/internal/models"
	"fieldquote/backend/internal/notify"
	"fieldquote/backend/internal/storage"
)

// IProjectService manages materialized projects: partial updates, the
// append-only payment ledger, and site image attachments. Projects are never
// created here; only an accepted quotation materializes one.
type IProjectService interface {
	FindByID(ctx context.Context, projectID string) (*models.Project, error)
	List(ctx context.Context, limit, offset int64) ([]models.Project, error)
	Update(ctx context.Context, actorID, projectID string, patch *models.ProjectPatch) (*models.Project, string, error)
	Delete(ctx context.Context, actorID, projectID string) error
	AttachImage(ctx context.Context, actorID, projectID string, data []byte, filename string) (*models.SiteImage, error)
	RemoveImage(ctx context.Context, actorID, projectID, key string) error
}

// projectService implements IProjectService.
type projectService struct {
	db       *mongo.Database
	runner   db.TxnRunner
	store    storage.ObjectStore
	notifier Notifier
	cleanup  CleanupQueue
	rdb      *redis.Client
	cfg      *config.Config
}

// NewProjectService creates a new ProjectService.
func NewProjectService(database *mongo.Database, runner db.TxnRunner, store storage.ObjectStore, notifier Notifier, cleanup CleanupQueue, rdb *redis.Client, cfg *config.Config) IProjectService {
	return &projectService{
		db:       database,
		runner:   runner,
		store:    store,
		notifier: notifier,
		cleanup:  cleanup,
		rdb:      rdb,
		cfg:      cfg,
	}
}

// FindByID returns the project with the given id, excluding soft deleted ones.
func (s *projectService) FindByID(ctx context.Context, projectID string) (*models.Project, error) {
	var p models.Project
	err := s.db.Collection(projectsCollection).
		FindOne(ctx, bson.M{"project_id": projectID, "deleted": false}).
		Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find project %s: %w", projectID, err)
	}
	return &p, nil
}

// List returns a page of live projects, newest first. A non-positive limit
// returns everything.
func (s *projectService) List(ctx context.Context, limit, offset int64) ([]models.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if offset > 0 {
		opts.SetSkip(offset)
	}
	cursor, err := s.db.Collection(projectsCollection).Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer cursor.Close(ctx)

	var projects []models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}

// Update applies a partial update to a project, optionally recording one new
// payment. The payment runs through the ledger's overpayment guard against
// the transaction's snapshot of the ledger: a rejected payment aborts the
// entire patch, including unrelated field edits carried in the same request.
// The project's invoice is kept in sync inside the same transaction.
func (s *projectService) Update(ctx context.Context, actorID, projectID string, patch *models.ProjectPatch) (*models.Project, string, error) {
	if patch == nil {
		return nil, "", &ValidationError{Field: "patch", Reason: "empty request body"}
	}
	if patch.NewPayment != nil && patch.NewPayment.Amount <= 0 {
		return nil, "", &ValidationError{Field: "new_payment.amount", Reason: "must be positive"}
	}

	// The read, the diff and the overpayment guard all run inside the
	// transaction, so a retry after a write conflict reconciles against the
	// ledger a concurrent transaction just committed instead of replaying a
	// stale summary.
	var updated models.Project
	var payment *models.Payment
	var invoiceToken string
	txnErr := runTxn(ctx, s.runner, s.cfg.TxnMaxRetries, func(sc context.Context) error {
		invoiceToken = ""
		payment = nil

		var existing models.Project
		err := s.db.Collection(projectsCollection).
			FindOne(sc, bson.M{"project_id": projectID, "deleted": false}).
			Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to find project %s: %w", projectID, err)
		}

		delta := diff.Project(&existing, patch)
		descriptions := append([]string{}, delta.Descriptions...)

		var summary ledger.Summary
		if patch.NewPayment != nil {
			p := *patch.NewPayment
			if p.Date.IsZero() {
				p.Date = time.Now().UTC()
			}
			summary, err = ledger.Reconcile(existing.GrandTotal, existing.PaymentHistory, &p)
			if err != nil {
				return err
			}
			payment = &p
			descriptions = append(descriptions, fmt.Sprintf("Payment of %.2f received", p.Amount))
		}

		if len(descriptions) == 0 {
			return ErrNoChanges
		}

		updated = existing
		applyProjectPatch(&updated, patch)
		updated.UpdatedAt = time.Now().UTC()
		if payment != nil {
			updated.PaymentHistory = append(updated.PaymentHistory, *payment)
			updated.AmountDue = summary.AmountDue
			updated.Status = summary.Status
		}

		entry := models.NewAuditEntry(actorID, descriptions)
		updated.History = append(updated.History, *entry)

		set := bson.M{
			"client_name":    updated.ClientName,
			"client_address": updated.ClientAddress,
			"client_phone":   updated.ClientPhone,
			"note":           updated.Note,
			"extra_work":     updated.ExtraWork,
			"amount_due":     updated.AmountDue,
			"status":         updated.Status,
			"updated_at":     updated.UpdatedAt,
		}
		push := bson.M{"history": entry}
		if payment != nil {
			push["payment_history"] = payment
		}

		res, err := s.db.Collection(projectsCollection).UpdateOne(sc,
			bson.M{"project_id": projectID, "deleted": false},
			bson.M{"$set": set, "$push": push},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}

		var invoice models.Invoice
		if err := s.db.Collection(invoicesCollection).
			FindOne(sc, bson.M{"project_id": projectID, "deleted": false}).
			Decode(&invoice); err != nil {
			return fmt.Errorf("failed to load invoice for project %s: %w", projectID, err)
		}
		invoiceToken = invoice.AccessToken

		invSet := bson.M{
			"client_name":    updated.ClientName,
			"client_address": updated.ClientAddress,
			"client_phone":   updated.ClientPhone,
			"amount_due":     updated.AmountDue,
			"status":         updated.Status,
			"updated_at":     updated.UpdatedAt,
		}
		_, err = s.db.Collection(invoicesCollection).UpdateOne(sc,
			bson.M{"invoice_id": invoice.InvoiceID},
			bson.M{"$set": invSet, "$push": push},
		)
		return err
	})
	if txnErr != nil {
		return nil, "", txnErr
	}

	if invoiceToken != "" {
		cache.Invalidate(ctx, s.rdb, cache.Key("invoice", invoiceToken))
	}

	var warning string
	if payment != nil {
		vars := map[string]string{
			"client_name": updated.ClientName,
			"amount":      fmt.Sprintf("%.2f", payment.Amount),
			"amount_due":  fmt.Sprintf("%.2f", updated.AmountDue),
		}
		body := fmt.Sprintf("Hi %s, we have received your payment of %.2f. Remaining balance: %.2f.", updated.ClientName, payment.Amount, updated.AmountDue)
		warning = s.notifyClient(ctx, updated.ClientPhone, notify.ActionPaymentReceived, body, vars)
	} else {
		vars := map[string]string{
			"client_name": updated.ClientName,
			"project_id":  projectID,
		}
		body := fmt.Sprintf("Hi %s, there is an update on your project %s.", updated.ClientName, projectID)
		warning = s.notifyClient(ctx, updated.ClientPhone, notify.ActionProjectUpdated, body, vars)
	}

	return &updated, warning, nil
}

// Delete soft-deletes a project and its invoice, leaving the originating
// quotation in place. Deletions are recorded in the top-level audit log and
// the project's site images are handed to the cleanup queue after commit.
func (s *projectService) Delete(ctx context.Context, actorID, projectID string) error {
	if _, err := s.FindByID(ctx, projectID); err != nil {
		return err
	}

	now := time.Now().UTC()
	var imageKeys []string
	var invoiceToken string
	txnErr := runTxn(ctx, s.runner, s.cfg.TxnMaxRetries, func(sc context.Context) error {
		imageKeys = imageKeys[:0]
		invoiceToken = ""

		var project models.Project
		err := s.db.Collection(projectsCollection).
			FindOne(sc, bson.M{"project_id": projectID, "deleted": false}).
			Decode(&project)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return err
		}
		if _, err := s.db.Collection(projectsCollection).UpdateOne(sc,
			bson.M{"project_id": projectID},
			bson.M{"$set": bson.M{"deleted": true, "updated_at": now}},
		); err != nil {
			return err
		}
		for _, img := range project.SiteImages {
			imageKeys = append(imageKeys, img.Key)
		}
		logs := []interface{}{
			models.AuditLogEntry{At: now, ActorID: actorID, Action: "project_deleted", Ref: projectID},
		}

		var invoice models.Invoice
		ierr := s.db.Collection(invoicesCollection).
			FindOne(sc, bson.M{"project_id": projectID, "deleted": false}).
			Decode(&invoice)
		if ierr == nil {
			if _, err := s.db.Collection(invoicesCollection).UpdateOne(sc,
				bson.M{"invoice_id": invoice.InvoiceID},
				bson.M{"$set": bson.M{"deleted": true, "updated_at": now}},
			); err != nil {
				return err
			}
			logs = append(logs, models.AuditLogEntry{At: now, ActorID: actorID, Action: "invoice_deleted", Ref: invoice.InvoiceID})
			invoiceToken = invoice.AccessToken
		} else if !errors.Is(ierr, mongo.ErrNoDocuments) {
			return ierr
		}

		_, err = s.db.Collection(auditLogCollection).InsertMany(sc, logs)
		return err
	})
	if txnErr != nil {
		return txnErr
	}

	if invoiceToken != "" {
		cache.Invalidate(ctx, s.rdb, cache.Key("invoice", invoiceToken))
	}
	if s.cleanup != nil && len(imageKeys) > 0 {
		if err := s.cleanup.EnqueueImageCleanup(ctx, imageKeys, projectID); err != nil {
			log.Printf("WARN: failed to schedule image cleanup for %s: %v", projectID, err)
		}
	}
	return nil
}

// AttachImage uploads a site photo to the object store and links it to the
// project. The upload happens first; if the database write then fails, the
// fresh object is deleted again on a best-effort basis.
func (s *projectService) AttachImage(ctx context.Context, actorID, projectID string, data []byte, filename string) (*models.SiteImage, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Field: "image", Reason: "empty upload"}
	}
	if _, err := s.FindByID(ctx, projectID); err != nil {
		return nil, err
	}

	img, err := s.store.Upload(ctx, data, fmt.Sprintf("projects/%s", projectID), filename)
	if err != nil {
		return nil, fmt.Errorf("failed to upload site image: %w", err)
	}

	entry := models.NewAuditEntry(actorID, []string{fmt.Sprintf("Site image added: %s", filename)})
	now := time.Now().UTC()
	txnErr := runTxn(ctx, s.runner, s.cfg.TxnMaxRetries, func(sc context.Context) error {
		res, err := s.db.Collection(projectsCollection).UpdateOne(sc,
			bson.M{"project_id": projectID, "deleted": false},
			bson.M{
				"$push": bson.M{"site_images": img, "history": entry},
				"$set":  bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
	if txnErr != nil {
		if delErr := s.store.Delete(ctx, img.Key); delErr != nil {
			log.Printf("WARN: failed to remove unlinked image %s: %v", img.Key, delErr)
		}
		return nil, txnErr
	}

	return &img, nil
}

// RemoveImage unlinks a site photo from the project and hands the stored
// object to the cleanup queue.
func (s *projectService) RemoveImage(ctx context.Context, actorID, projectID, key string) error {
	project, err := s.FindByID(ctx, projectID)
	if err != nil {
		return err
	}
	found := false
	for _, img := range project.SiteImages {
		if img.Key == key {
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}

	entry := models.NewAuditEntry(actorID, []string{"Site image removed"})
	now := time.Now().UTC()
	txnErr := runTxn(ctx, s.runner, s.cfg.TxnMaxRetries, func(sc context.Context) error {
		res, err := s.db.Collection(projectsCollection).UpdateOne(sc,
			bson.M{"project_id": projectID, "deleted": false},
			bson.M{
				"$pull": bson.M{"site_images": bson.M{"key": key}},
				"$push": bson.M{"history": entry},
				"$set":  bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
	if txnErr != nil {
		return txnErr
	}

	if s.cleanup != nil {
		if err := s.cleanup.EnqueueImageCleanup(ctx, []string{key}, projectID); err != nil {
			log.Printf("WARN: failed to schedule image cleanup for %s: %v", projectID, err)
		}
	}
	return nil
}

// notifyClient sends a post-commit notification and converts any failure
// into a warning for the response.
func (s *projectService) notifyClient(ctx context.Context, recipient string, action notify.Action, body string, vars map[string]string) string {
	if s.notifier == nil || recipient == "" {
		return ""
	}
	if _, err := s.notifier.Send(ctx, recipient, action, body, vars); err != nil {
		log.Printf("WARN: %s notification to %s failed: %v", action, recipient, err)
		return fmt.Sprintf("saved, but the client notification could not be delivered: %v", err)
	}
	return ""
}

func applyProjectPatch(p *models.Project, patch *models.ProjectPatch) {
	if patch.ClientName != nil {
		p.ClientName = *patch.ClientName
	}
	if patch.ClientAddress != nil {
		p.ClientAddress = *patch.ClientAddress
	}
	if patch.ClientPhone != nil {
		p.ClientPhone = *patch.ClientPhone
	}
	if patch.Note != nil {
		p.Note = *patch.Note
	}
	if patch.ExtraWork != nil {
		p.ExtraWork = *patch.ExtraWork
	}
}
