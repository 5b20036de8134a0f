package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project statuses are derived, never set directly: a project is completed
// exactly when its amount due has reached zero.
const (
	ProjectOngoing   = "ongoing"
	ProjectCompleted = "completed"
)

// Payment is one entry in a project's payment ledger. Payments are
// append-only; a correction is a new entry, never an edit.
type Payment struct {
	Amount float64   `bson:"amount" json:"amount"`
	Date   time.Time `bson:"date" json:"date"`
	Note   string    `bson:"note,omitempty" json:"note,omitempty"`
}

// ExtraWorkItem records work agreed after the quotation was accepted.
type ExtraWorkItem struct {
	Description string  `bson:"description" json:"description"`
	Amount      float64 `bson:"amount,omitempty" json:"amount,omitempty"`
	Note        string  `bson:"note,omitempty" json:"note,omitempty"`
}

// SiteImage references an uploaded photo in the object store. Images are
// identified by their store key when diffing.
type SiteImage struct {
	Key string `bson:"key" json:"key"`
	URL string `bson:"url" json:"url"`
}

// Project is the materialized engagement created when a quotation is first
// accepted. Client, item and financial fields are a copy taken at acceptance
// time, re-synced only when the quotation is re-accepted.
type Project struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ProjectID       string             `bson:"project_id" json:"project_id"`
	QuotationNumber string             `bson:"quotation_number" json:"quotation_number"`
	ClientName      string             `bson:"client_name" json:"client_name"`
	ClientAddress   string             `bson:"client_address" json:"client_address"`
	ClientPhone     string             `bson:"client_phone" json:"client_phone"`
	Items           []LineItem         `bson:"items" json:"items"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	Discount        float64            `bson:"discount" json:"discount"`
	GrandTotal      float64            `bson:"grand_total" json:"grand_total"`
	Terms           []string           `bson:"terms" json:"terms"`
	Note            string             `bson:"note,omitempty" json:"note,omitempty"`
	ExtraWork       []ExtraWorkItem    `bson:"extra_work" json:"extra_work"`
	PaymentHistory  []Payment          `bson:"payment_history" json:"payment_history"`
	SiteImages      []SiteImage        `bson:"site_images" json:"site_images"`
	AmountDue       float64            `bson:"amount_due" json:"amount_due"`
	Status          string             `bson:"status" json:"status"`
	History         []AuditEntry       `bson:"history" json:"history"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
	Deleted         bool               `bson:"deleted" json:"-"`
}

// ProjectPatch carries a partial update to a project. NewPayment, when set,
// goes through the ledger's overpayment guard before anything is applied.
type ProjectPatch struct {
	ClientName    *string          `json:"client_name,omitempty"`
	ClientAddress *string          `json:"client_address,omitempty"`
	ClientPhone   *string          `json:"client_phone,omitempty"`
	Note          *string          `json:"note,omitempty"`
	ExtraWork     *[]ExtraWorkItem `json:"extra_work,omitempty"`
	NewPayment    *Payment         `json:"new_payment,omitempty"`
}
