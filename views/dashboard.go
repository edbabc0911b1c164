package views

import (
	"context"
	"time"

	"github.com/jrsteele09/revalytiq-client/api"
	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
	"golang.org/x/sync/errgroup"
)

const (
	msgLoadFailed    = "Failed to load data. Please refresh."
	msgDataRefreshed = "Data refreshed"
)

// DashboardData is everything the dashboard shows. Whatever loaded is kept when the
// other request fails.
type DashboardData struct {
	KPIs    *api.KPISummary
	Cards   []KPICard
	Orders  []OrderRow
	Revenue []RevenuePoint
	Error   string
	Notice  string
}

// DashboardOptions tune a dashboard load.
type DashboardOptions struct {
	Range    api.KPIRange
	Location *time.Location // defaults to time.Local
}

// Dashboard loads KPIs and orders concurrently once the guard allows it. When
// the session turns out to be over, the store is cleared and the decision
// redirects to the login page.
func (p *Pages) Dashboard(ctx context.Context, opts DashboardOptions) (Decision, *DashboardData) {
	decision := Guard(p.store.Current())
	if decision.Kind != DecisionAllow {
		return decision, nil
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	var (
		kpis              *api.KPISummary
		orders            *api.OrdersPayload
		kpiErr, ordersErr error
		g                 errgroup.Group
	)
	g.Go(func() error {
		kpis, kpiErr = p.backend.FetchKPIs(ctx, opts.Range)
		return nil
	})
	g.Go(func() error {
		orders, ordersErr = p.backend.FetchOrders(ctx)
		return nil
	})
	_ = g.Wait()

	// Either fetch may carry the session end, whichever failed first.
	err := clienterrors.Join(kpiErr, ordersErr)
	if clienterrors.Is(err, clienterrors.ErrSessionEnded) {
		p.logger.Info().Err(err).Msg("session ended while loading dashboard")
		p.store.Clear()
		return Guard(p.store.Current()), nil
	}

	data := &DashboardData{
		KPIs:    kpis,
		Cards:   KPICards(kpis),
		Orders:  OrderRows(orders.Rows(), loc),
		Revenue: RevenueSeries(orders.Rows(), loc),
	}
	if err != nil {
		p.logger.Warn().Err(err).Msg("dashboard load failed")
		data.Error = msgLoadFailed
	}
	return decision, data
}

// RefreshDashboard reloads the dashboard and confirms it with a notice.
func (p *Pages) RefreshDashboard(ctx context.Context, opts DashboardOptions) (Decision, *DashboardData) {
	decision, data := p.Dashboard(ctx, opts)
	if data != nil && data.Error == "" {
		data.Notice = msgDataRefreshed
	}
	return decision, data
}
