package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"fieldquote/backend/internal/ledger"
	"fieldquote/backend/internal/models"
	"fieldquote/backend/internal/notify"
)

// materializeProject creates a quotation and accepts it, yielding PRJ00001.
func materializeProject(t *testing.T, env *testEnv) *models.Project {
	t.Helper()
	ctx := context.Background()
	q, _, err := env.quotations.Create(ctx, testActor, sampleInput())
	require.NoError(t, err)
	_, _, err = env.quotations.Update(ctx, testActor, q.QuotationNumber, acceptPatch())
	require.NoError(t, err)
	project, err := env.projects.FindByID(ctx, "PRJ00001")
	require.NoError(t, err)
	return project
}

func TestProjectPaymentReconciles(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_payment")
	ctx := context.Background()
	project := materializeProject(t, env)

	updated, warning, err := env.projects.Update(ctx, testActor, project.ProjectID, &models.ProjectPatch{
		NewPayment: &models.Payment{Amount: 4500, Note: "advance"},
	})
	require.NoError(t, err)
	assert.Empty(t, warning)
	require.Len(t, updated.PaymentHistory, 1)
	assert.Equal(t, 10000.0, updated.AmountDue)
	assert.Equal(t, models.ProjectOngoing, updated.Status)

	last := updated.History[len(updated.History)-1]
	assert.Contains(t, last.Changes, "Payment of 4500.00 received")

	// Invoice mirrors the ledger in the same write.
	invoice, err := env.invoices.FindByProjectID(ctx, project.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, invoice.AmountDue)
	require.Len(t, invoice.PaymentHistory, 1)

	call := env.notifier.lastCall(t)
	assert.Equal(t, notify.ActionPaymentReceived, call.Action)
	assert.Equal(t, "4500.00", call.Vars["amount"])
}

func TestProjectExactSettlementCompletes(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_settle")
	ctx := context.Background()
	project := materializeProject(t, env)

	_, _, err := env.projects.Update(ctx, testActor, project.ProjectID, &models.ProjectPatch{
		NewPayment: &models.Payment{Amount: 10000},
	})
	require.NoError(t, err)

	updated, _, err := env.projects.Update(ctx, testActor, project.ProjectID, &models.ProjectPatch{
		NewPayment: &models.Payment{Amount: 4500},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, updated.AmountDue)
	assert.Equal(t, models.ProjectCompleted, updated.Status)

	invoice, err := env.invoices.FindByProjectID(ctx, project.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectCompleted, invoice.Status)
}

func TestProjectOverpaymentRejectsWholePatch(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_overpay")
	ctx := context.Background()
	project := materializeProject(t, env)

	// A patch carrying both a field edit and an overpayment: nothing applies.
	note := "should not stick"
	_, _, err := env.projects.Update(ctx, testActor, project.ProjectID, &models.ProjectPatch{
		Note:       &note,
		NewPayment: &models.Payment{Amount: 20000},
	})

	var opErr *ledger.OverpaymentError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, 14500.0, opErr.GrandTotal)

	reloaded, err := env.projects.FindByID(ctx, project.ProjectID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Note)
	assert.Empty(t, reloaded.PaymentHistory)
	assert.Len(t, reloaded.History, 1, "rejected patch must not append history")
}

func TestProjectPaymentGuardRecomputesOnRetry(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_conflict")
	ctx := context.Background()
	project := materializeProject(t, env)

	// Another operator's payment commits between this call's first attempt
	// and its retry. 10000 + 6000 exceeds the 14500 total, so the retried
	// guard must now reject what the first attempt would have allowed.
	runner := &conflictOnceRunner{mutate: func(mctx context.Context) {
		_, err := env.db.Collection(projectsCollection).UpdateOne(mctx,
			bson.M{"project_id": project.ProjectID},
			bson.M{
				"$push": bson.M{"payment_history": models.Payment{Amount: 10000, Date: time.Now().UTC()}},
				"$set":  bson.M{"amount_due": 4500.0},
			})
		require.NoError(t, err)
	}}
	svc := NewProjectService(env.db, runner.Run, env.store, env.notifier, env.queue, nil, testConfig())

	_, _, err := svc.Update(ctx, testActor, project.ProjectID, &models.ProjectPatch{
		NewPayment: &models.Payment{Amount: 6000},
	})

	var opErr *ledger.OverpaymentError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, 2, runner.attempts)

	reloaded, err := env.projects.FindByID(ctx, project.ProjectID)
	require.NoError(t, err)
	require.Len(t, reloaded.PaymentHistory, 1, "only the concurrent payment may remain")
	assert.Equal(t, 4500.0, reloaded.AmountDue)
}

func TestProjectNonPositivePaymentRejected(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_zero")
	ctx := context.Background()
	project := materializeProject(t, env)

	_, _, err := env.projects.Update(ctx, testActor, project.ProjectID, &models.ProjectPatch{
		NewPayment: &models.Payment{Amount: 0},
	})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
}

func TestProjectFieldUpdate(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_fields")
	ctx := context.Background()
	project := materializeProject(t, env)

	extra := []models.ExtraWorkItem{{Description: "Waterproofing patch", Amount: 1500}}
	updated, _, err := env.projects.Update(ctx, testActor, project.ProjectID, &models.ProjectPatch{
		ExtraWork: &extra,
	})
	require.NoError(t, err)
	require.Len(t, updated.ExtraWork, 1)

	last := updated.History[len(updated.History)-1]
	assert.Contains(t, last.Changes, "New extra work added: Waterproofing patch")

	call := env.notifier.lastCall(t)
	assert.Equal(t, notify.ActionProjectUpdated, call.Action)
}

func TestProjectNoChanges(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_noop")
	ctx := context.Background()
	project := materializeProject(t, env)

	name := project.ClientName
	_, _, err := env.projects.Update(ctx, testActor, project.ProjectID, &models.ProjectPatch{
		ClientName: &name,
	})
	assert.ErrorIs(t, err, ErrNoChanges)
}

func TestProjectAttachAndRemoveImage(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_images")
	ctx := context.Background()
	project := materializeProject(t, env)

	img, err := env.projects.AttachImage(ctx, testActor, project.ProjectID, []byte("jpegdata"), "site.jpg")
	require.NoError(t, err)
	assert.NotEmpty(t, img.Key)

	withImage, err := env.projects.FindByID(ctx, project.ProjectID)
	require.NoError(t, err)
	require.Len(t, withImage.SiteImages, 1)
	assert.Equal(t, img.Key, withImage.SiteImages[0].Key)

	require.NoError(t, env.projects.RemoveImage(ctx, testActor, project.ProjectID, img.Key))

	withoutImage, err := env.projects.FindByID(ctx, project.ProjectID)
	require.NoError(t, err)
	assert.Empty(t, withoutImage.SiteImages)

	// The stored object goes to the cleanup queue, not a synchronous delete.
	require.Len(t, env.queue.keys, 1)
	assert.Equal(t, []string{img.Key}, env.queue.keys[0])
}

func TestProjectDeleteCascadesInvoice(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_delete")
	ctx := context.Background()
	project := materializeProject(t, env)

	img, err := env.projects.AttachImage(ctx, testActor, project.ProjectID, []byte("jpegdata"), "site.jpg")
	require.NoError(t, err)

	require.NoError(t, env.projects.Delete(ctx, testActor, project.ProjectID))

	_, err = env.projects.FindByID(ctx, project.ProjectID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.invoices.FindByProjectID(ctx, project.ProjectID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The quotation outlives its project.
	q, err := env.quotations.FindByNumber(ctx, project.QuotationNumber)
	require.NoError(t, err)
	assert.Equal(t, models.AcceptanceAccepted, q.AcceptanceState)

	count, err := env.db.Collection(auditLogCollection).CountDocuments(ctx, bson.M{
		"actor_id": testActor,
		"action":   bson.M{"$in": []string{"project_deleted", "invoice_deleted"}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.Len(t, env.queue.keys, 1)
	assert.Equal(t, []string{img.Key}, env.queue.keys[0])
	assert.Equal(t, project.ProjectID, env.queue.refs[0])
}

func TestProjectDeleteUnknownID(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_delete_missing")
	err := env.projects.Delete(context.Background(), testActor, "PRJ99999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectRemoveUnknownImage(t *testing.T) {
	env := setupServices(t, "fieldquote_test_p_image_missing")
	ctx := context.Background()
	project := materializeProject(t, env)

	err := env.projects.RemoveImage(ctx, testActor, project.ProjectID, "projects/PRJ00001/nope.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvoiceUnknownTokenNotFound(t *testing.T) {
	env := setupServices(t, "fieldquote_test_i_token")
	ctx := context.Background()
	materializeProject(t, env)

	_, err := env.invoices.FindByAccessToken(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
