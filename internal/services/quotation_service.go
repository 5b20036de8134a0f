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
	"fieldquote/backend/internal/utils"
)

const (
	quotationsCollection = "quotations"
	projectsCollection   = "projects"
	invoicesCollection   = "invoices"
	auditLogCollection   = "audit_log"
)

// Counter names.
const (
	counterQuotation = "quotation"
	counterProject   = "project"
	counterInvoice   = "invoice"
)

// IQuotationService coordinates the quotation lifecycle: creation, partial
// updates with audit trails, acceptance transitions that materialize (or
// re-sync) the project and invoice, and soft deletion with cascade.
//
// Mutating operations return a warning string alongside the result: the
// database work has committed, but a post-commit side effect (the client
// notification) failed. A non-empty warning is not an error.
type IQuotationService interface {
	Create(ctx context.Context, actorID string, input *models.QuotationInput) (*models.Quotation, string, error)
	FindByNumber(ctx context.Context, number string) (*models.Quotation, error)
	List(ctx context.Context, limit, offset int64) ([]models.Quotation, error)
	Update(ctx context.Context, actorID, number string, patch *models.QuotationPatch) (*models.Quotation, string, error)
	Delete(ctx context.Context, actorID, number string) error
}

// quotationService implements IQuotationService.
type quotationService struct {
	db       *mongo.Database
	runner   db.TxnRunner
	counters ICounterService
	notifier Notifier
	cleanup  CleanupQueue
	rdb      *redis.Client
	cfg      *config.Config
}

// NewQuotationService creates a new QuotationService.
func NewQuotationService(database *mongo.Database, runner db.TxnRunner, counters ICounterService, notifier Notifier, cleanup CleanupQueue, rdb *redis.Client, cfg *config.Config) IQuotationService {
	return &quotationService{
		db:       database,
		runner:   runner,
		counters: counters,
		notifier: notifier,
		cleanup:  cleanup,
		rdb:      rdb,
		cfg:      cfg,
	}
}

// Create validates the input, assigns the next quotation number and inserts
// the quotation in the pending state with its first history entry.
func (s *quotationService) Create(ctx context.Context, actorID string, input *models.QuotationInput) (*models.Quotation, string, error) {
	if err := validateQuotationInput(input); err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	q := &models.Quotation{
		ClientName:      input.ClientName,
		ClientAddress:   input.ClientAddress,
		ClientPhone:     input.ClientPhone,
		Date:            input.Date,
		Items:           input.Items,
		Subtotal:        input.Subtotal,
		Discount:        input.Discount,
		GrandTotal:      input.GrandTotal,
		Terms:           input.Terms,
		Note:            input.Note,
		AcceptanceState: models.AcceptancePending,
		History:         []models.AuditEntry{*models.NewAuditEntry(actorID, []string{"Quotation created"})},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if q.Date.IsZero() {
		q.Date = now
	}

	// A duplicate key on the quotation number means the counter raced another
	// writer; each retry pulls a fresh number.
	err := db.Try(func() error {
		seq, err := s.counters.Next(ctx, counterQuotation)
		if err != nil {
			return err
		}
		q.QuotationNumber = utils.FormatDocNumber(utils.PrefixQuotation, seq)
		_, err = s.db.Collection(quotationsCollection).InsertOne(ctx, q)
		return err
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create quotation: %w", err)
	}

	vars := map[string]string{
		"client_name":      q.ClientName,
		"quotation_number": q.QuotationNumber,
		"grand_total":      fmt.Sprintf("%.2f", q.GrandTotal),
	}
	body := fmt.Sprintf("Hi %s, your quotation %s for %.2f is ready for review.", q.ClientName, q.QuotationNumber, q.GrandTotal)
	warning := s.notifyClient(ctx, q.ClientPhone, notify.ActionQuotationCreated, body, vars)

	return q, warning, nil
}

// FindByNumber returns the quotation with the given number, excluding soft
// deleted ones.
func (s *quotationService) FindByNumber(ctx context.Context, number string) (*models.Quotation, error) {
	var q models.Quotation
	err := s.db.Collection(quotationsCollection).
		FindOne(ctx, bson.M{"quotation_number": number, "deleted": false}).
		Decode(&q)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find quotation %s: %w", number, err)
	}
	return &q, nil
}

// List returns a page of live quotations, newest first. A non-positive limit
// returns everything.
func (s *quotationService) List(ctx context.Context, limit, offset int64) ([]models.Quotation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if offset > 0 {
		opts.SetSkip(offset)
	}
	cursor, err := s.db.Collection(quotationsCollection).Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotations: %w", err)
	}
	defer cursor.Close(ctx)

	var quotations []models.Quotation
	if err := cursor.All(ctx, &quotations); err != nil {
		return nil, fmt.Errorf("failed to decode quotations: %w", err)
	}
	return quotations, nil
}

// Update applies a partial update to a quotation. The changes are diffed
// against the stored document; a patch that changes nothing is rejected with
// ErrNoChanges and leaves no trace in the history.
//
// Acceptance transitions ride along: an acceptance_state carried in the
// patch always wins, so edits submitted together with an explicit accept
// keep the quotation accepted and re-sync the mirror in the same call, while
// a substantive edit without one drops an accepted or rejected quotation
// back to pending. A transition to accepted materializes the project and
// invoice exactly once; re-accepting an already materialized quotation
// re-syncs the mirrored fields instead, preserving the payment ledger.
func (s *quotationService) Update(ctx context.Context, actorID, number string, patch *models.QuotationPatch) (*models.Quotation, string, error) {
	if patch == nil {
		return nil, "", &ValidationError{Field: "patch", Reason: "empty request body"}
	}
	if patch.AcceptanceState != nil && !patch.AcceptanceState.Valid() {
		return nil, "", &ValidationError{Field: "acceptance_state", Reason: fmt.Sprintf("unknown state %q", *patch.AcceptanceState)}
	}

	explicit := patch.AcceptanceState != nil

	// The read, the diff and the state resolution all run inside the
	// transaction, so a retry after a write conflict recomputes against the
	// current snapshot instead of replaying stale field values.
	outerCtx := ctx
	var updated models.Quotation
	var newState models.AcceptanceState
	var transition bool
	var invoiceToken string
	txnErr := runTxn(ctx, s.runner, s.cfg.TxnMaxRetries, func(sc context.Context) error {
		invoiceToken = ""
		transition = false

		var existing models.Quotation
		err := s.db.Collection(quotationsCollection).
			FindOne(sc, bson.M{"quotation_number": number, "deleted": false}).
			Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to find quotation %s: %w", number, err)
		}

		delta := diff.Quotation(&existing, patch)

		newState = existing.AcceptanceState
		descriptions := append([]string{}, delta.Descriptions...)
		switch {
		case explicit && *patch.AcceptanceState != existing.AcceptanceState:
			newState = *patch.AcceptanceState
			transition = true
			switch newState {
			case models.AcceptanceAccepted:
				descriptions = append(descriptions, "Quotation accepted")
			case models.AcceptanceRejected:
				descriptions = append(descriptions, "Quotation rejected")
			default:
				descriptions = append(descriptions, "Acceptance reset to pending")
			}
		case explicit && newState == models.AcceptanceAccepted && !delta.Empty():
			// Edits riding along with an explicit re-accept keep the
			// quotation accepted; the mirror is re-synced below.
			descriptions = append(descriptions, "Quotation re-accepted")
		case !explicit && !delta.Empty() && existing.AcceptanceState != models.AcceptancePending:
			newState = models.AcceptancePending
			descriptions = append(descriptions, "Acceptance reset to pending, awaiting client confirmation")
		}

		if len(descriptions) == 0 {
			return ErrNoChanges
		}

		updated = existing
		applyQuotationPatch(&updated, patch)
		updated.AcceptanceState = newState
		updated.UpdatedAt = time.Now().UTC()

		entry := models.NewAuditEntry(actorID, descriptions)
		updated.History = append(updated.History, *entry)

		set := bson.M{
			"client_name":      updated.ClientName,
			"client_address":   updated.ClientAddress,
			"client_phone":     updated.ClientPhone,
			"date":             updated.Date,
			"items":            updated.Items,
			"subtotal":         updated.Subtotal,
			"discount":         updated.Discount,
			"grand_total":      updated.GrandTotal,
			"terms":            updated.Terms,
			"note":             updated.Note,
			"acceptance_state": updated.AcceptanceState,
			"updated_at":       updated.UpdatedAt,
		}

		res, err := s.db.Collection(quotationsCollection).UpdateOne(sc,
			bson.M{"quotation_number": number, "deleted": false},
			bson.M{"$set": set, "$push": bson.M{"history": entry}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}

		if !(explicit && newState == models.AcceptanceAccepted) {
			return nil
		}

		// The existence check runs inside the transaction: a concurrent
		// acceptance that wins the race makes this one retry and take the
		// re-sync path instead, so materialization happens exactly once.
		var project models.Project
		err = s.db.Collection(projectsCollection).
			FindOne(sc, bson.M{"quotation_number": number, "deleted": false}).
			Decode(&project)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return s.materialize(sc, outerCtx, &updated, actorID)
		}
		if err != nil {
			return err
		}
		return s.resyncProject(sc, &project, &updated, actorID, &invoiceToken)
	})
	if txnErr != nil {
		return nil, "", txnErr
	}

	if invoiceToken != "" {
		cache.Invalidate(ctx, s.rdb, cache.Key("invoice", invoiceToken))
	}

	action := notify.ActionQuotationUpdated
	vars := map[string]string{
		"client_name":      updated.ClientName,
		"quotation_number": number,
	}
	body := fmt.Sprintf("Hi %s, your quotation %s has been updated. Please review the changes.", updated.ClientName, number)
	switch {
	case explicit && newState == models.AcceptanceAccepted:
		action = notify.ActionQuotationAccepted
		vars["grand_total"] = fmt.Sprintf("%.2f", updated.GrandTotal)
		body = fmt.Sprintf("Hi %s, thank you for accepting quotation %s for %.2f. We will be in touch to schedule the work.", updated.ClientName, number, updated.GrandTotal)
	case transition && newState == models.AcceptanceRejected:
		action = notify.ActionQuotationRejected
		body = fmt.Sprintf("Hi %s, quotation %s has been marked as declined. Let us know if anything should be revised.", updated.ClientName, number)
	}
	warning := s.notifyClient(ctx, updated.ClientPhone, action, body, vars)

	return &updated, warning, nil
}

// Delete soft-deletes a quotation and cascades to its project and invoice.
// Deletions are recorded in the top-level audit log, since the documents'
// own histories go with them. Orphaned site images are handed to the cleanup
// queue after commit.
func (s *quotationService) Delete(ctx context.Context, actorID, number string) error {
	if _, err := s.FindByNumber(ctx, number); err != nil {
		return err
	}

	now := time.Now().UTC()
	var imageKeys []string
	var invoiceToken string
	txnErr := runTxn(ctx, s.runner, s.cfg.TxnMaxRetries, func(sc context.Context) error {
		imageKeys = imageKeys[:0]
		invoiceToken = ""

		res, err := s.db.Collection(quotationsCollection).UpdateOne(sc,
			bson.M{"quotation_number": number, "deleted": false},
			bson.M{"$set": bson.M{"deleted": true, "updated_at": now}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		logs := []interface{}{
			models.AuditLogEntry{At: now, ActorID: actorID, Action: "quotation_deleted", Ref: number},
		}

		var project models.Project
		err = s.db.Collection(projectsCollection).
			FindOne(sc, bson.M{"quotation_number": number, "deleted": false}).
			Decode(&project)
		if err == nil {
			if _, err := s.db.Collection(projectsCollection).UpdateOne(sc,
				bson.M{"project_id": project.ProjectID},
				bson.M{"$set": bson.M{"deleted": true, "updated_at": now}},
			); err != nil {
				return err
			}
			logs = append(logs, models.AuditLogEntry{At: now, ActorID: actorID, Action: "project_deleted", Ref: project.ProjectID})
			for _, img := range project.SiteImages {
				imageKeys = append(imageKeys, img.Key)
			}

			var invoice models.Invoice
			ierr := s.db.Collection(invoicesCollection).
				FindOne(sc, bson.M{"project_id": project.ProjectID, "deleted": false}).
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
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
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
		if err := s.cleanup.EnqueueImageCleanup(ctx, imageKeys, number); err != nil {
			log.Printf("WARN: failed to schedule image cleanup for %s: %v", number, err)
		}
	}
	return nil
}

// materialize creates the project and invoice for a freshly accepted
// quotation. Counters are incremented with the outer context, outside the
// transaction session: an aborted transaction must not hand the same number
// to the next attempt.
func (s *quotationService) materialize(sc, outerCtx context.Context, q *models.Quotation, actorID string) error {
	projSeq, err := s.counters.Next(outerCtx, counterProject)
	if err != nil {
		return err
	}
	invSeq, err := s.counters.Next(outerCtx, counterInvoice)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	project := models.Project{
		ProjectID:       utils.FormatDocNumber(utils.PrefixProject, projSeq),
		QuotationNumber: q.QuotationNumber,
		ClientName:      q.ClientName,
		ClientAddress:   q.ClientAddress,
		ClientPhone:     q.ClientPhone,
		Items:           q.Items,
		Subtotal:        q.Subtotal,
		Discount:        q.Discount,
		GrandTotal:      q.GrandTotal,
		Terms:           q.Terms,
		Note:            q.Note,
		ExtraWork:       []models.ExtraWorkItem{},
		PaymentHistory:  []models.Payment{},
		SiteImages:      []models.SiteImage{},
		AmountDue:       q.GrandTotal,
		Status:          models.ProjectOngoing,
		History: []models.AuditEntry{
			*models.NewAuditEntry(actorID, []string{fmt.Sprintf("Project created from quotation %s", q.QuotationNumber)}),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.Collection(projectsCollection).InsertOne(sc, project); err != nil {
		return fmt.Errorf("failed to create project for %s: %w", q.QuotationNumber, err)
	}

	invoice := models.Invoice{
		InvoiceID:       utils.FormatDocNumber(utils.PrefixInvoice, invSeq),
		ProjectID:       project.ProjectID,
		QuotationNumber: q.QuotationNumber,
		AccessToken:     utils.NewAccessToken(),
		ClientName:      q.ClientName,
		ClientAddress:   q.ClientAddress,
		ClientPhone:     q.ClientPhone,
		Items:           q.Items,
		Subtotal:        q.Subtotal,
		Discount:        q.Discount,
		GrandTotal:      q.GrandTotal,
		Terms:           q.Terms,
		PaymentHistory:  []models.Payment{},
		AmountDue:       q.GrandTotal,
		Status:          models.ProjectOngoing,
		History: []models.AuditEntry{
			*models.NewAuditEntry(actorID, []string{fmt.Sprintf("Invoice created for project %s", project.ProjectID)}),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.Collection(invoicesCollection).InsertOne(sc, invoice); err != nil {
		return fmt.Errorf("failed to create invoice for %s: %w", project.ProjectID, err)
	}
	return nil
}

// resyncProject refreshes the mirrored fields of an existing project (and its
// invoice) from a re-accepted quotation. The payment ledger is preserved and
// reconciled against the new grand total; payments already recorded exceeding
// it abort the whole update.
func (s *quotationService) resyncProject(sc context.Context, project *models.Project, q *models.Quotation, actorID string, invoiceToken *string) error {
	summary, err := ledger.Reconcile(q.GrandTotal, project.PaymentHistory, nil)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := models.NewAuditEntry(actorID, []string{fmt.Sprintf("Re-synced from quotation %s", q.QuotationNumber)})

	mirror := bson.M{
		"client_name":    q.ClientName,
		"client_address": q.ClientAddress,
		"client_phone":   q.ClientPhone,
		"items":          q.Items,
		"subtotal":       q.Subtotal,
		"discount":       q.Discount,
		"grand_total":    q.GrandTotal,
		"terms":          q.Terms,
		"amount_due":     summary.AmountDue,
		"status":         summary.Status,
		"updated_at":     now,
	}

	if _, err := s.db.Collection(projectsCollection).UpdateOne(sc,
		bson.M{"project_id": project.ProjectID},
		bson.M{"$set": mirror, "$push": bson.M{"history": entry}},
	); err != nil {
		return fmt.Errorf("failed to re-sync project %s: %w", project.ProjectID, err)
	}

	var invoice models.Invoice
	if err := s.db.Collection(invoicesCollection).
		FindOne(sc, bson.M{"project_id": project.ProjectID, "deleted": false}).
		Decode(&invoice); err != nil {
		return fmt.Errorf("failed to load invoice for project %s: %w", project.ProjectID, err)
	}
	*invoiceToken = invoice.AccessToken

	if _, err := s.db.Collection(invoicesCollection).UpdateOne(sc,
		bson.M{"invoice_id": invoice.InvoiceID},
		bson.M{"$set": mirror, "$push": bson.M{"history": entry}},
	); err != nil {
		return fmt.Errorf("failed to re-sync invoice %s: %w", invoice.InvoiceID, err)
	}
	return nil
}

// notifyClient sends a post-commit notification and converts any failure
// into a warning for the response. A debounced skip is silent.
func (s *quotationService) notifyClient(ctx context.Context, recipient string, action notify.Action, body string, vars map[string]string) string {
	if s.notifier == nil || recipient == "" {
		return ""
	}
	if _, err := s.notifier.Send(ctx, recipient, action, body, vars); err != nil {
		log.Printf("WARN: %s notification to %s failed: %v", action, recipient, err)
		return fmt.Sprintf("saved, but the client notification could not be delivered: %v", err)
	}
	return ""
}

func applyQuotationPatch(q *models.Quotation, patch *models.QuotationPatch) {
	if patch.ClientName != nil {
		q.ClientName = *patch.ClientName
	}
	if patch.ClientAddress != nil {
		q.ClientAddress = *patch.ClientAddress
	}
	if patch.ClientPhone != nil {
		q.ClientPhone = *patch.ClientPhone
	}
	if patch.Date != nil {
		q.Date = *patch.Date
	}
	if patch.Items != nil {
		q.Items = *patch.Items
	}
	if patch.Subtotal != nil {
		q.Subtotal = *patch.Subtotal
	}
	if patch.Discount != nil {
		q.Discount = *patch.Discount
	}
	if patch.GrandTotal != nil {
		q.GrandTotal = *patch.GrandTotal
	}
	if patch.Terms != nil {
		q.Terms = *patch.Terms
	}
	if patch.Note != nil {
		q.Note = *patch.Note
	}
}

func validateQuotationInput(input *models.QuotationInput) error {
	if input == nil {
		return &ValidationError{Field: "body", Reason: "empty request body"}
	}
	if input.ClientName == "" {
		return &ValidationError{Field: "client_name", Reason: "required"}
	}
	if len(input.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one line item is required"}
	}
	for i, it := range input.Items {
		if it.Description == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].description", i), Reason: "required"}
		}
		if it.Rate < 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].rate", i), Reason: "must not be negative"}
		}
	}
	if input.Discount < 0 {
		return &ValidationError{Field: "discount", Reason: "must not be negative"}
	}
	if input.GrandTotal < 0 {
		return &ValidationError{Field: "grand_total", Reason: "must not be negative"}
	}
	return nil
}
