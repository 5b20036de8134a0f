package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invoice is the client-facing financial mirror of a project, reachable
// without authentication via its opaque access token. The invoice never
// originates a payment: its ledger fields are always a function of the
// project's, kept in sync inside the same transaction that changes them.
type Invoice struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	InvoiceID       string             `bson:"invoice_id" json:"invoice_id"`
	ProjectID       string             `bson:"project_id" json:"project_id"`
	QuotationNumber string             `bson:"quotation_number" json:"quotation_number"`
	AccessToken     string             `bson:"access_token" json:"-"`
	ClientName      string             `bson:"client_name" json:"client_name"`
	ClientAddress   string             `bson:"client_address" json:"client_address"`
	ClientPhone     string             `bson:"client_phone" json:"client_phone"`
	Items           []LineItem         `bson:"items" json:"items"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	Discount        float64            `bson:"discount" json:"discount"`
	GrandTotal      float64            `bson:"grand_total" json:"grand_total"`
	Terms           []string           `bson:"terms" json:"terms"`
	PaymentHistory  []Payment          `bson:"payment_history" json:"payment_history"`
	AmountDue       float64            `bson:"amount_due" json:"amount_due"`
	Status          string             `bson:"status" json:"status"`
	History         []AuditEntry       `bson:"history" json:"history"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
	Deleted         bool               `bson:"deleted" json:"-"`
}
