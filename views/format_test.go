package views_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jrsteele09/revalytiq-client/api"
	"github.com/jrsteele09/revalytiq-client/views"
	"github.com/stretchr/testify/require"
)

func amount(t *testing.T, raw string) api.Amount {
	t.Helper()
	var a api.Amount
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	return a
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "$123.46", views.FormatAmount(amount(t, `"123.456"`)))
	require.Equal(t, "$10.00", views.FormatAmount(amount(t, `10`)))
	require.Equal(t, "$0.00", views.FormatAmount(amount(t, `"not a number"`)))
	require.Equal(t, "$0.00", views.FormatAmount(amount(t, `"NaN"`)))
}

func TestKPICards(t *testing.T) {
	require.Equal(t, []views.KPICard{{Label: "Revenue", Value: "..."}, {Label: "Orders", Value: "..."}, {Label: "AOV", Value: "..."}}, views.KPICards(nil))
	require.Equal(t, []views.KPICard{
		{Label: "Revenue", Value: "$1234.50"},
		{Label: "Orders", Value: "10"},
		{Label: "AOV", Value: "$123.45"},
	}, views.KPICards(&api.KPISummary{Revenue: 1234.5, Orders: 10, AOV: 123.45}))
}

func TestRevenueSeries(t *testing.T) {
	orders := []api.Order{
		{ID: 1, Amount: amount(t, `"10.10"`), CreatedAt: "2025-03-02T09:00:00Z"},
		{ID: 2, Amount: amount(t, `5`), CreatedAt: "2025-03-01T23:30:00Z"},
		{ID: 3, Amount: amount(t, `"2.20"`), CreatedAt: "2025-03-02T18:00:00Z"},
		{ID: 4, Amount: amount(t, `"oops"`), CreatedAt: "2025-03-02T18:00:00Z"},
		{ID: 5, Amount: amount(t, `1`), CreatedAt: "yesterday"},
	}

	require.Equal(t, []views.RevenuePoint{
		{Day: "2025-03-01", Total: 5},
		{Day: "2025-03-02", Total: 12.3},
	}, views.RevenueSeries(orders, time.UTC))

	// buckets follow the viewer's calendar day
	tokyo := time.FixedZone("JST", 9*60*60)
	require.Equal(t, []views.RevenuePoint{
		{Day: "2025-03-02", Total: 15.1},
		{Day: "2025-03-03", Total: 2.2},
	}, views.RevenueSeries(orders, tokyo))
}
