package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fieldquote/backend/internal/config"
	"fieldquote/backend/internal/db"
	"fieldquote/backend/internal/models"
	"fieldquote/backend/internal/notify"
)

var testMongoURI string

func init() {
	godotenv.Load()
	testMongoURI = os.Getenv("MONGO_URI_TEST")
	if testMongoURI == "" {
		testMongoURI = "mongodb://localhost:27017"
	}
}

func setupTestDB(t *testing.T, dbName string) *mongo.Database {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(testMongoURI))
	require.NoError(t, err, "Failed to connect to MongoDB")
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("MongoDB not reachable at %s: %v", testMongoURI, err)
	}
	database := client.Database(dbName)
	for _, coll := range []string{quotationsCollection, projectsCollection, invoicesCollection, auditLogCollection, countersCollection} {
		_ = database.Collection(coll).Drop(context.Background())
	}
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})
	return database
}

func testConfig() *config.Config {
	return &config.Config{
		TxnMaxRetries: 2,
		GetCacheTTL:   time.Minute,
	}
}

// --- Fakes ---

type notifyCall struct {
	Recipient string
	Action    notify.Action
	Body      string
	Vars      map[string]string
}

// recordingNotifier records sends and optionally fails them all.
type recordingNotifier struct {
	mu       sync.Mutex
	calls    []notifyCall
	failWith error
}

func (n *recordingNotifier) Send(ctx context.Context, recipient string, action notify.Action, body string, vars map[string]string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{Recipient: recipient, Action: action, Body: body, Vars: vars})
	if n.failWith != nil {
		return false, n.failWith
	}
	return true, nil
}

func (n *recordingNotifier) lastCall(t *testing.T) notifyCall {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.calls, "expected at least one notification")
	return n.calls[len(n.calls)-1]
}

// recordingQueue records image cleanup enqueues.
type recordingQueue struct {
	mu   sync.Mutex
	keys [][]string
	refs []string
}

func (q *recordingQueue) EnqueueImageCleanup(ctx context.Context, keys []string, ref string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append(q.keys, keys)
	q.refs = append(q.refs, ref)
	return nil
}

// conflictOnceRunner simulates a write conflict: the first attempt runs
// mutate in place of a concurrent transaction committing first, then fails
// with a transient label so the caller retries against the new state.
type conflictOnceRunner struct {
	attempts int
	mutate   func(ctx context.Context)
}

func (r *conflictOnceRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	r.attempts++
	if r.attempts == 1 {
		if r.mutate != nil {
			r.mutate(ctx)
		}
		return mongo.CommandError{Code: 112, Labels: []string{"TransientTransactionError"}}
	}
	return fn(ctx)
}

// fakeStore is an in-memory object store recording uploads and deletions.
type fakeStore struct {
	mu       sync.Mutex
	uploads  int
	deleted  []string
	uploaded []string
}

func (s *fakeStore) Upload(ctx context.Context, data []byte, folder, filename string) (models.SiteImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	key := fmt.Sprintf("%s/%d_%s", folder, s.uploads, filename)
	s.uploaded = append(s.uploaded, key)
	return models.SiteImage{Key: key, URL: "local://" + key}, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

// testEnv bundles the services under test with their observable fakes.
type testEnv struct {
	db         *mongo.Database
	quotations IQuotationService
	projects   IProjectService
	invoices   IInvoiceService
	notifier   *recordingNotifier
	queue      *recordingQueue
	store      *fakeStore
}

func setupServices(t *testing.T, dbName string) *testEnv {
	t.Helper()
	database := setupTestDB(t, dbName)
	cfg := testConfig()
	notifier := &recordingNotifier{}
	queue := &recordingQueue{}
	store := &fakeStore{}
	counters := NewCounterService(database)

	return &testEnv{
		db:         database,
		quotations: NewQuotationService(database, db.NoTxn, counters, notifier, queue, nil, cfg),
		projects:   NewProjectService(database, db.NoTxn, store, notifier, queue, nil, cfg),
		invoices:   NewInvoiceService(database, nil, cfg),
		notifier:   notifier,
		queue:      queue,
		store:      store,
	}
}

func sampleInput() *models.QuotationInput {
	return &models.QuotationInput{
		ClientName:    "Asha Verma",
		ClientAddress: "12 Lake Road",
		ClientPhone:   "+919876543210",
		Items: []models.LineItem{
			{Description: "Interior painting", Area: "1200 sqft", Rate: 12},
			{Description: "Ceiling repair", Rate: 80},
		},
		Subtotal:   15000,
		Discount:   500,
		GrandTotal: 14500,
		Terms:      []string{"50% advance", "Balance on completion"},
	}
}
