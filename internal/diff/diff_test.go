package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldquote/backend/internal/models"
)

func strPtr(s string) *string        { return &s }
func f64Ptr(f float64) *float64      { return &f }
func timePtr(t time.Time) *time.Time { return &t }

func baseQuotation() *models.Quotation {
	return &models.Quotation{
		QuotationNumber: "QT00001",
		ClientName:      "Asha Verma",
		ClientAddress:   "12 Lake Road",
		ClientPhone:     "+919876543210",
		Date:            time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
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

func TestQuotationEmptyPatchIsNoOp(t *testing.T) {
	d := Quotation(baseQuotation(), &models.QuotationPatch{})
	assert.True(t, d.Empty())
}

func TestQuotationEqualValuesAreNoOp(t *testing.T) {
	q := baseQuotation()
	patch := &models.QuotationPatch{
		ClientName: strPtr(q.ClientName),
		GrandTotal: f64Ptr(q.GrandTotal),
		Items:      &q.Items,
		Terms:      &q.Terms,
	}
	d := Quotation(q, patch)
	assert.True(t, d.Empty(), "presence with equal value must not count as a change")
}

func TestQuotationScalarChange(t *testing.T) {
	q := baseQuotation()
	patch := &models.QuotationPatch{ClientName: strPtr("Asha V. Sharma")}

	d := Quotation(q, patch)
	require.Len(t, d.Descriptions, 1)
	assert.Equal(t, `Client name changed from "Asha Verma" to "Asha V. Sharma"`, d.Descriptions[0])
	assert.True(t, d.ChangedFields["client_name"])
}

func TestQuotationAmountAndDateChanges(t *testing.T) {
	q := baseQuotation()
	patch := &models.QuotationPatch{
		GrandTotal: f64Ptr(13000),
		Date:       timePtr(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)),
	}

	d := Quotation(q, patch)
	require.Len(t, d.Descriptions, 2)
	assert.Contains(t, d.Descriptions, "Grand total changed from 14500.00 to 13000.00")
	assert.Contains(t, d.Descriptions, "Quotation date changed from 2025-06-01 to 2025-06-15")
}

func TestQuotationItemReorderIsNotAChange(t *testing.T) {
	q := baseQuotation()
	reordered := []models.LineItem{q.Items[1], q.Items[0]}
	patch := &models.QuotationPatch{Items: &reordered}

	d := Quotation(q, patch)
	assert.True(t, d.Empty())
}

func TestQuotationItemAddAndRemove(t *testing.T) {
	q := baseQuotation()
	items := []models.LineItem{
		q.Items[0],
		{Description: "Exterior texture", Area: "800 sqft", Rate: 18},
	}
	patch := &models.QuotationPatch{Items: &items}

	d := Quotation(q, patch)
	require.Len(t, d.Descriptions, 2)
	assert.Equal(t, "New item added: Exterior texture (800 sqft @ 18.00)", d.Descriptions[0])
	assert.Equal(t, "Item removed: Ceiling repair (@ 80.00)", d.Descriptions[1])
}

func TestQuotationTermChanges(t *testing.T) {
	q := baseQuotation()
	terms := []string{"50% advance", "Balance within 7 days"}
	patch := &models.QuotationPatch{Terms: &terms}

	d := Quotation(q, patch)
	require.Len(t, d.Descriptions, 2)
	assert.Equal(t, `New term added: "Balance within 7 days"`, d.Descriptions[0])
	assert.Equal(t, `Term removed: "Balance on completion"`, d.Descriptions[1])
}

func TestQuotationScalarChangesPrecedeCollectionChanges(t *testing.T) {
	q := baseQuotation()
	items := append([]models.LineItem{}, q.Items...)
	items = append(items, models.LineItem{Description: "Primer coat", Rate: 5})
	patch := &models.QuotationPatch{
		Note:  strPtr("Client prefers weekend work"),
		Items: &items,
	}

	d := Quotation(q, patch)
	require.Len(t, d.Descriptions, 2)
	assert.Contains(t, d.Descriptions[0], "Note changed")
	assert.Contains(t, d.Descriptions[1], "New item added")
}

func TestQuotationAcceptanceStateIsNotDiffed(t *testing.T) {
	q := baseQuotation()
	q.AcceptanceState = models.AcceptancePending
	accepted := models.AcceptanceAccepted
	patch := &models.QuotationPatch{AcceptanceState: &accepted}

	d := Quotation(q, patch)
	assert.True(t, d.Empty(), "acceptance transitions are the coordinator's concern")
}

func TestProjectDiff(t *testing.T) {
	p := &models.Project{
		ProjectID:  "PRJ00001",
		ClientName: "Asha Verma",
		ExtraWork:  []models.ExtraWorkItem{{Description: "Balcony grill painting", Amount: 900}},
	}
	extra := []models.ExtraWorkItem{
		{Description: "Balcony grill painting", Amount: 900},
		{Description: "Waterproofing patch", Amount: 1500},
	}
	patch := &models.ProjectPatch{
		ClientName: strPtr("Asha V. Sharma"),
		ExtraWork:  &extra,
	}

	d := Project(p, patch)
	require.Len(t, d.Descriptions, 2)
	assert.Contains(t, d.Descriptions[0], "Client name changed")
	assert.Equal(t, "New extra work added: Waterproofing patch", d.Descriptions[1])
}

func TestProjectPaymentIsNotDiffed(t *testing.T) {
	p := &models.Project{ProjectID: "PRJ00001", GrandTotal: 1000}
	patch := &models.ProjectPatch{NewPayment: &models.Payment{Amount: 500}}

	d := Project(p, patch)
	assert.True(t, d.Empty(), "payments go through the ledger, not the differ")
}
