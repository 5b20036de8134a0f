package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownAction(t *testing.T) {
	r := DefaultRegistry()
	tpl, err := r.Resolve(ActionQuotationCreated, map[string]string{
		"client_name":      "Asha",
		"quotation_number": "QT00001",
		"grand_total":      "14500.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "quotation_created_v1", tpl.ID)
}

func TestResolveUnknownAction(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.Resolve(Action("something_else"), nil)

	var ntErr *NoTemplateError
	require.True(t, errors.As(err, &ntErr))
	assert.Equal(t, Action("something_else"), ntErr.Action)
}

func TestResolveMissingVariables(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.Resolve(ActionPaymentReceived, map[string]string{"client_name": "Asha"})

	var ntErr *NoTemplateError
	require.True(t, errors.As(err, &ntErr))
	assert.ElementsMatch(t, []string{"amount", "amount_due"}, ntErr.Missing)
}

func TestEveryActionHasATemplate(t *testing.T) {
	r := DefaultRegistry()
	for _, action := range []Action{
		ActionQuotationCreated,
		ActionQuotationUpdated,
		ActionQuotationAccepted,
		ActionQuotationRejected,
		ActionProjectUpdated,
		ActionPaymentReceived,
	} {
		_, ok := r[action]
		assert.True(t, ok, "action %s has no template", action)
	}
}
