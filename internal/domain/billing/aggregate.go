package billing

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// PatientGroup is the per-patient billing summary shown on the billing
// dashboard.
type PatientGroup struct {
	PatientID         uuid.UUID  `json:"patient_id"`
	Invoices          []*Invoice `json:"invoices"`
	TotalAmount       float64    `json:"total_amount"`
	TotalPaid         float64    `json:"total_paid"`
	UnpaidAmount      float64    `json:"unpaid_amount"`
	InvoiceCount      int        `json:"invoice_count"`
	LatestInvoiceDate time.Time  `json:"latest_invoice_date"`
	Status            string     `json:"status"`
}

// GroupByPatient folds a flat invoice list into one group per distinct
// patient in a single pass. The sum of group totals always equals the sum
// of invoice totals.
func GroupByPatient(invoices []*Invoice) map[uuid.UUID]*PatientGroup {
	groups := make(map[uuid.UUID]*PatientGroup)
	for _, inv := range invoices {
		g, ok := groups[inv.PatientID]
		if !ok {
			g = &PatientGroup{PatientID: inv.PatientID}
			groups[inv.PatientID] = g
		}
		g.Invoices = append(g.Invoices, inv)
		g.TotalAmount += inv.TotalAmount
		g.TotalPaid += inv.PaidAmount
		g.UnpaidAmount += inv.TotalAmount - inv.PaidAmount
		g.InvoiceCount++
		if inv.InvoiceDate.After(g.LatestInvoiceDate) {
			g.LatestInvoiceDate = inv.InvoiceDate
		}
	}
	for _, g := range groups {
		g.Status = ClassifyGroup(g)
	}
	return groups
}

// ClassifyGroup derives the group's settlement status. The Paid comparison
// is exact; floating-point amounts are not rounded first.
func ClassifyGroup(g *PatientGroup) string {
	switch {
	case g.TotalPaid == 0:
		return StatusUnpaid
	case g.TotalPaid >= g.TotalAmount:
		return StatusPaid
	default:
		return StatusPartiallyPaid
	}
}

// SortedGroups flattens a group map into a stable slice ordered by latest
// invoice date, newest first.
func SortedGroups(groups map[uuid.UUID]*PatientGroup) []*PatientGroup {
	out := make([]*PatientGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LatestInvoiceDate.Equal(out[j].LatestInvoiceDate) {
			return out[i].LatestInvoiceDate.After(out[j].LatestInvoiceDate)
		}
		return out[i].PatientID.String() < out[j].PatientID.String()
	})
	return out
}

// TodayRevenue sums payments recorded on the given calendar day. No
// payment-status filter is applied; the payments table models completed
// transactions only. Payments with an unusable date are silently excluded.
func TodayRevenue(payments []*Payment, today time.Time) float64 {
	key := DayKey(today)
	if key == "" {
		return 0
	}
	var total float64
	for _, p := range payments {
		if DayKey(p.PaymentDate) == key {
			total += p.Amount
		}
	}
	return total
}
