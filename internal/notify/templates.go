package notify

// Action identifies the kind of client notification being sent. It is part
// of the debounce lock key and selects the provider template for recipients
// outside the session window.
type Action string

const (
	ActionQuotationCreated  Action = "quotation_created"
	ActionQuotationUpdated  Action = "quotation_updated"
	ActionQuotationAccepted Action = "quotation_accepted"
	ActionQuotationRejected Action = "quotation_rejected"
	ActionProjectUpdated    Action = "project_updated"
	ActionPaymentReceived   Action = "payment_received"
)

// Template describes a pre-approved provider message template and the
// variables it requires.
type Template struct {
	ID       string
	Required []string
}

// TemplateRegistry maps actions to their provider templates. Store-and-forward
// channels restrict unsolicited free-form messages outside an active session,
// so every action that may reach a cold recipient needs an entry here.
type TemplateRegistry map[Action]Template

// DefaultRegistry returns the registry for the stock notification actions.
func DefaultRegistry() TemplateRegistry {
	return TemplateRegistry{
		ActionQuotationCreated:  {ID: "quotation_created_v1", Required: []string{"client_name", "quotation_number", "grand_total"}},
		ActionQuotationUpdated:  {ID: "quotation_updated_v1", Required: []string{"client_name", "quotation_number"}},
		ActionQuotationAccepted: {ID: "quotation_accepted_v1", Required: []string{"client_name", "quotation_number", "grand_total"}},
		ActionQuotationRejected: {ID: "quotation_rejected_v1", Required: []string{"client_name", "quotation_number"}},
		ActionProjectUpdated:    {ID: "project_updated_v1", Required: []string{"client_name", "project_id"}},
		ActionPaymentReceived:   {ID: "payment_received_v1", Required: []string{"client_name", "amount", "amount_due"}},
	}
}

// Resolve returns the template for an action, verifying that all required
// variables are bound. Fails with *NoTemplateError otherwise.
func (r TemplateRegistry) Resolve(action Action, vars map[string]string) (Template, error) {
	tpl, ok := r[action]
	if !ok {
		return Template{}, &NoTemplateError{Action: action}
	}
	var missing []string
	for _, name := range tpl.Required {
		if _, bound := vars[name]; !bound {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Template{}, &NoTemplateError{Action: action, Missing: missing}
	}
	return tpl, nil
}
