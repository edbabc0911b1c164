package views

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/jrsteele09/revalytiq-client/api"
)

const (
	placeholder   = "..."
	dayLayout     = "2006-01-02"
	createdLayout = "2006-01-02 15:04:05"
)

// FormatAmount renders an order amount with two decimals. Anything that is not a
// finite number renders as $0.00.
func FormatAmount(a api.Amount) string {
	return fmt.Sprintf("$%.2f", a.Float())
}

// KPICard is one labelled figure of the KPI row.
type KPICard struct {
	Label string
	Value string
}

// KPICards renders the KPI row; values are placeholders until the summary arrives.
func KPICards(k *api.KPISummary) []KPICard {
	if k == nil {
		return []KPICard{{"Revenue", placeholder}, {"Orders", placeholder}, {"AOV", placeholder}}
	}
	return []KPICard{
		{Label: "Revenue", Value: fmt.Sprintf("$%.2f", k.Revenue)},
		{Label: "Orders", Value: strconv.Itoa(k.Orders)},
		{Label: "AOV", Value: "$" + strconv.FormatFloat(k.AOV, 'f', -1, 64)},
	}
}

// OrderRow is an order ready for the orders table.
type OrderRow struct {
	ID       int64
	Customer string
	Amount   string
	Status   string
	Created  string
}

// OrderRows formats orders for display, created times in loc.
func OrderRows(orders []api.Order, loc *time.Location) []OrderRow {
	rows := make([]OrderRow, 0, len(orders))
	for _, o := range orders {
		created := o.CreatedAt
		if t, ok := o.Created(); ok {
			created = t.In(loc).Format(createdLayout)
		}
		rows = append(rows, OrderRow{
			ID:       o.ID,
			Customer: o.Customer,
			Amount:   FormatAmount(o.Amount),
			Status:   o.Status,
			Created:  created,
		})
	}
	return rows
}

// RevenuePoint is the revenue of one calendar day.
type RevenuePoint struct {
	Day   string
	Total float64
}

// RevenueSeries sums order amounts per calendar day in loc, ordered by day. Orders
// with a non-finite amount or an unreadable timestamp are skipped.
func RevenueSeries(orders []api.Order, loc *time.Location) []RevenuePoint {
	buckets := make(map[string]float64)
	for _, o := range orders {
		amount, ok := o.Amount.Finite()
		if !ok {
			continue
		}
		created, ok := o.Created()
		if !ok {
			continue
		}
		buckets[created.In(loc).Format(dayLayout)] += amount
	}

	points := make([]RevenuePoint, 0, len(buckets))
	for day, total := range buckets {
		points = append(points, RevenuePoint{Day: day, Total: roundCents(total)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
