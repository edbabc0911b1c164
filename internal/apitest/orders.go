package apitest

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"time"
)

const (
	StatusPaid     = "paid"
	StatusPending  = "pending"
	StatusRefunded = "refunded"

	defaultKPIWindow = 30 * 24 * time.Hour
)

// Order mirrors the backend's order serializer; amounts are decimal strings.
type Order struct {
	ID        int64     `json:"id"`
	Customer  string    `json:"customer"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// KPIs is the summary the KPI endpoint returns.
type KPIs struct {
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
	AOV     float64 `json:"aov"`
}

type orderRepo struct {
	mu     sync.RWMutex
	orders []Order
}

func newOrderRepo(orders []Order) *orderRepo {
	return &orderRepo{orders: append([]Order(nil), orders...)}
}

// List returns all orders, newest first.
func (r *orderRepo) List() []Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]Order(nil), r.orders...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// KPIs aggregates paid orders created in [start, end).
func (r *orderRepo) KPIs(start, end time.Time) KPIs {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var k KPIs
	for _, o := range r.orders {
		if o.Status != StatusPaid || o.CreatedAt.Before(start) || !o.CreatedAt.Before(end) {
			continue
		}
		amount, err := strconv.ParseFloat(o.Amount, 64)
		if err != nil {
			continue
		}
		k.Revenue += amount
		k.Orders++
	}
	k.Revenue = math.Round(k.Revenue*100) / 100
	if k.Orders > 0 {
		k.AOV = math.Round(k.Revenue/float64(k.Orders)*100) / 100
	}
	return k
}

// DemoOrders builds a deterministic set of orders spread over the days before now.
func DemoOrders(now time.Time) []Order {
	customers := []string{"Acme Corp", "Globex", "Initech", "Umbrella", "Stark Industries", "Wayne Enterprises"}
	statuses := []string{StatusPaid, StatusPaid, StatusPending, StatusPaid, StatusRefunded}

	orders := make([]Order, 0, 24)
	for i := 0; i < 24; i++ {
		cents := 1999 + (i*7919)%48000
		orders = append(orders, Order{
			ID:        int64(i + 1),
			Customer:  customers[i%len(customers)],
			Amount:    strconv.FormatFloat(float64(cents)/100, 'f', 2, 64),
			Status:    statuses[i%len(statuses)],
			CreatedAt: now.Add(-time.Duration(i) * 26 * time.Hour).UTC().Truncate(time.Second),
		})
	}
	return orders
}

// parseRange reads the start/end query values. Missing or unreadable bounds fall
// back to the last 30 days.
func parseRange(startRaw, endRaw string, now time.Time) (time.Time, time.Time) {
	start := now.Add(-defaultKPIWindow)
	end := now
	if t, ok := parseBound(startRaw); ok {
		start = t
	}
	if t, ok := parseBound(endRaw); ok {
		end = t
	}
	return start, end
}

func parseBound(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
