package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fieldquote/backend/internal/cache"
	"fieldquote/backend/internal/config"
	"fieldquote/backend/internal/models"
)

// IInvoiceService provides read access to invoices. Invoices are written only
// as mirrors of quotation and project changes, never directly.
type IInvoiceService interface {
	// FindByAccessToken is the unauthenticated client-facing lookup. An
	// unknown token yields ErrNotFound with no hint whether it ever existed.
	FindByAccessToken(ctx context.Context, token string) (*models.Invoice, error)
	FindByProjectID(ctx context.Context, projectID string) (*models.Invoice, error)
	List(ctx context.Context, limit, offset int64) ([]models.Invoice, error)
}

// invoiceService implements IInvoiceService.
type invoiceService struct {
	db  *mongo.Database
	rdb *redis.Client
	cfg *config.Config
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(database *mongo.Database, rdb *redis.Client, cfg *config.Config) IInvoiceService {
	return &invoiceService{db: database, rdb: rdb, cfg: cfg}
}

// FindByAccessToken looks up the invoice behind a share token, caching hits
// briefly. The cache entry is invalidated by every write that touches the
// invoice, so clients see payments reflected promptly.
func (s *invoiceService) FindByAccessToken(ctx context.Context, token string) (*models.Invoice, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	inv, err := cache.GetOrLoad(ctx, s.rdb, cache.Key("invoice", token), s.cfg.GetCacheTTL,
		func(ctx context.Context) (models.Invoice, error) {
			var inv models.Invoice
			err := s.db.Collection(invoicesCollection).
				FindOne(ctx, bson.M{"access_token": token, "deleted": false}).
				Decode(&inv)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.Invoice{}, ErrNotFound
			}
			return inv, err
		})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find invoice by token: %w", err)
	}
	return &inv, nil
}

// FindByProjectID returns the invoice mirroring the given project.
func (s *invoiceService) FindByProjectID(ctx context.Context, projectID string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.Collection(invoicesCollection).
		FindOne(ctx, bson.M{"project_id": projectID, "deleted": false}).
		Decode(&inv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find invoice for project %s: %w", projectID, err)
	}
	return &inv, nil
}

// List returns a page of live invoices, newest first. A non-positive limit
// returns everything.
func (s *invoiceService) List(ctx context.Context, limit, offset int64) ([]models.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if offset > 0 {
		opts.SetSkip(offset)
	}
	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("failed to decode invoices: %w", err)
	}
	return invoices, nil
}
