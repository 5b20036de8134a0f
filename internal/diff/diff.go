// Package diff computes field-level deltas between a stored document and an
// incoming partial update. It is pure: no I/O, deterministic output for the
// same pair of snapshots. Descriptions are ordered scalar changes first (in
// declaration order), then collection additions, then collection removals.
package diff

import (
	"fmt"
	"time"

	"fieldquote/backend/internal/models"
)

// Delta is the result of comparing a document against a patch: the set of
// fields whose stored value would actually change, plus one human-readable
// description per change for the audit trail.
type Delta struct {
	ChangedFields map[string]bool
	Descriptions  []string
}

func newDelta() Delta {
	return Delta{ChangedFields: map[string]bool{}}
}

// Empty reports whether the patch is a no-op against the existing document.
func (d Delta) Empty() bool {
	return len(d.Descriptions) == 0
}

func (d *Delta) add(field, description string) {
	d.ChangedFields[field] = true
	d.Descriptions = append(d.Descriptions, description)
}

// Quotation compares an existing quotation against a patch. The acceptance
// state is deliberately excluded: the lifecycle coordinator owns acceptance
// transitions and records them separately.
func Quotation(existing *models.Quotation, patch *models.QuotationPatch) Delta {
	d := newDelta()

	diffString(&d, "client_name", "Client name", existing.ClientName, patch.ClientName)
	diffString(&d, "client_address", "Client address", existing.ClientAddress, patch.ClientAddress)
	diffString(&d, "client_phone", "Client phone", existing.ClientPhone, patch.ClientPhone)
	diffDate(&d, "date", "Quotation date", existing.Date, patch.Date)
	diffAmount(&d, "subtotal", "Subtotal", existing.Subtotal, patch.Subtotal)
	diffAmount(&d, "discount", "Discount", existing.Discount, patch.Discount)
	diffAmount(&d, "grand_total", "Grand total", existing.GrandTotal, patch.GrandTotal)
	diffString(&d, "note", "Note", existing.Note, patch.Note)

	if patch.Items != nil {
		added, removed := setDifference(*patch.Items, existing.Items)
		for _, it := range added {
			d.add("items", fmt.Sprintf("New item added: %s", describeItem(it)))
		}
		for _, it := range removed {
			d.add("items", fmt.Sprintf("Item removed: %s", describeItem(it)))
		}
	}
	if patch.Terms != nil {
		added, removed := setDifference(*patch.Terms, existing.Terms)
		for _, t := range added {
			d.add("terms", fmt.Sprintf("New term added: %q", t))
		}
		for _, t := range removed {
			d.add("terms", fmt.Sprintf("Term removed: %q", t))
		}
	}

	return d
}

// Project compares an existing project against a patch. Payments are not
// diffed here; they are append-only ledger entries handled by the coordinator
// through the payment ledger.
func Project(existing *models.Project, patch *models.ProjectPatch) Delta {
	d := newDelta()

	diffString(&d, "client_name", "Client name", existing.ClientName, patch.ClientName)
	diffString(&d, "client_address", "Client address", existing.ClientAddress, patch.ClientAddress)
	diffString(&d, "client_phone", "Client phone", existing.ClientPhone, patch.ClientPhone)
	diffString(&d, "note", "Note", existing.Note, patch.Note)

	if patch.ExtraWork != nil {
		added, removed := setDifference(*patch.ExtraWork, existing.ExtraWork)
		for _, w := range added {
			d.add("extra_work", fmt.Sprintf("New extra work added: %s", w.Description))
		}
		for _, w := range removed {
			d.add("extra_work", fmt.Sprintf("Extra work removed: %s", w.Description))
		}
	}

	return d
}

func diffString(d *Delta, field, label, existing string, incoming *string) {
	if incoming == nil || *incoming == existing {
		return
	}
	d.add(field, fmt.Sprintf("%s changed from %q to %q", label, existing, *incoming))
}

func diffAmount(d *Delta, field, label string, existing float64, incoming *float64) {
	if incoming == nil || *incoming == existing {
		return
	}
	d.add(field, fmt.Sprintf("%s changed from %.2f to %.2f", label, existing, *incoming))
}

func diffDate(d *Delta, field, label string, existing time.Time, incoming *time.Time) {
	if incoming == nil || incoming.Equal(existing) {
		return
	}
	d.add(field, fmt.Sprintf("%s changed from %s to %s",
		label, existing.Format("2006-01-02"), incoming.Format("2006-01-02")))
}

// setDifference compares two slices as sets by structural equality and
// returns the elements only present in incoming (added) and only present in
// existing (removed). A pure reordering yields two empty slices.
func setDifference[T comparable](incoming, existing []T) (added, removed []T) {
	inExisting := make(map[T]int, len(existing))
	for _, e := range existing {
		inExisting[e]++
	}
	inIncoming := make(map[T]int, len(incoming))
	for _, e := range incoming {
		inIncoming[e]++
	}
	for _, e := range incoming {
		if inExisting[e] == 0 {
			added = append(added, e)
		}
	}
	for _, e := range existing {
		if inIncoming[e] == 0 {
			removed = append(removed, e)
		}
	}
	return added, removed
}

func describeItem(it models.LineItem) string {
	if it.Area != "" {
		return fmt.Sprintf("%s (%s @ %.2f)", it.Description, it.Area, it.Rate)
	}
	return fmt.Sprintf("%s (@ %.2f)", it.Description, it.Rate)
}
