package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AcceptanceState tracks where a quotation sits in its offer lifecycle.
// Accepted and rejected are re-enterable: any substantive edit drops the
// quotation back to pending and re-requires client acceptance.
type AcceptanceState string

const (
	AcceptancePending  AcceptanceState = "pending"
	AcceptanceAccepted AcceptanceState = "accepted"
	AcceptanceRejected AcceptanceState = "rejected"
)

// Valid reports whether s is one of the known acceptance states.
func (s AcceptanceState) Valid() bool {
	switch s {
	case AcceptancePending, AcceptanceAccepted, AcceptanceRejected:
		return true
	}
	return false
}

// LineItem is a single priced line on a quotation (and, mirrored, on the
// project and invoice). Line items are compared by full tuple equality when
// diffing, so all fields are plain scalars.
type LineItem struct {
	Description string  `bson:"description" json:"description"`
	Area        string  `bson:"area,omitempty" json:"area,omitempty"`
	Rate        float64 `bson:"rate" json:"rate"`
	Total       float64 `bson:"total,omitempty" json:"total,omitempty"`
	Note        string  `bson:"note,omitempty" json:"note,omitempty"`
}

// Quotation is a proposed price offer to a client.
type Quotation struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	QuotationNumber string             `bson:"quotation_number" json:"quotation_number"`
	ClientName      string             `bson:"client_name" json:"client_name"`
	ClientAddress   string             `bson:"client_address" json:"client_address"`
	ClientPhone     string             `bson:"client_phone" json:"client_phone"`
	Date            time.Time          `bson:"date" json:"date"`
	Items           []LineItem         `bson:"items" json:"items"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	Discount        float64            `bson:"discount" json:"discount"`
	GrandTotal      float64            `bson:"grand_total" json:"grand_total"`
	Terms           []string           `bson:"terms" json:"terms"`
	Note            string             `bson:"note,omitempty" json:"note,omitempty"`
	AcceptanceState AcceptanceState    `bson:"acceptance_state" json:"acceptance_state"`
	History         []AuditEntry       `bson:"history" json:"history"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
	Deleted         bool               `bson:"deleted" json:"-"`
}

// QuotationInput is the payload for creating a quotation. The quotation
// number, acceptance state and history are server-assigned, never client
// supplied.
type QuotationInput struct {
	ClientName    string     `json:"client_name"`
	ClientAddress string     `json:"client_address"`
	ClientPhone   string     `json:"client_phone"`
	Date          time.Time  `json:"date"`
	Items         []LineItem `json:"items"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	GrandTotal    float64    `json:"grand_total"`
	Terms         []string   `json:"terms"`
	Note          string     `json:"note"`
}

// QuotationPatch carries a partial update to a quotation. Nil fields mean
// "leave unchanged"; presence with an equal value is still a no-op for that
// field (the differ compares by value, not presence).
type QuotationPatch struct {
	ClientName      *string          `json:"client_name,omitempty"`
	ClientAddress   *string          `json:"client_address,omitempty"`
	ClientPhone     *string          `json:"client_phone,omitempty"`
	Date            *time.Time       `json:"date,omitempty"`
	Items           *[]LineItem      `json:"items,omitempty"`
	Subtotal        *float64         `json:"subtotal,omitempty"`
	Discount        *float64         `json:"discount,omitempty"`
	GrandTotal      *float64         `json:"grand_total,omitempty"`
	Terms           *[]string        `json:"terms,omitempty"`
	Note            *string          `json:"note,omitempty"`
	AcceptanceState *AcceptanceState `json:"acceptance_state,omitempty"`
}
