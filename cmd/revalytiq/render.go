package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jrsteele09/revalytiq-client/views"
)

const barWidth = 40

func renderDashboard(out io.Writer, username string, data *views.DashboardData) {
	fmt.Fprintf(out, "Signed in as %s\n\n", username)

	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	for _, card := range data.Cards {
		fmt.Fprintf(tw, "%s\t", card.Label)
	}
	fmt.Fprintln(tw)
	for _, card := range data.Cards {
		fmt.Fprintf(tw, "%s\t", card.Value)
	}
	fmt.Fprintln(tw)
	tw.Flush()

	if len(data.Revenue) > 0 {
		fmt.Fprintln(out, "\nRevenue")
		renderRevenue(out, data.Revenue)
	}

	fmt.Fprintln(out, "\nOrders")
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCustomer\tAmount\tStatus\tCreated")
	for _, o := range data.Orders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.ID, o.Customer, o.Amount, o.Status, o.Created)
	}
	tw.Flush()
	fmt.Fprintln(out)
}

func renderRevenue(out io.Writer, points []views.RevenuePoint) {
	peak := 0.0
	for _, p := range points {
		peak = max(peak, p.Total)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, p := range points {
		width := 0
		if peak > 0 {
			width = int(p.Total / peak * barWidth)
		}
		fmt.Fprintf(tw, "%s\t%s\t$%.2f\n", p.Day, strings.Repeat("#", width), p.Total)
	}
	tw.Flush()
}
