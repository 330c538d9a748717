package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/view"
	"diesel-manager-web/internal/web"
)

func consumptionTable(items []backend.Consumption) view.Table {
	return view.NewTable(
		[]string{"Date", "Employee", "Plate", "Vehicle type", "Quantity (L)", "Meter reading", "Rented"},
		items,
		func(r backend.Consumption) []string {
			rented := "No"
			if r.IsRented {
				rented = "Yes"
			}
			return []string{
				r.CreatedAt.Format("2006-01-02 15:04"), r.EmployeeNumber, r.PlateNumber, r.VehicleType,
				qty(r.Quantity), qty(r.MeterReading), rented,
			}
		})
}

func receivingTable(items []backend.Receiving) view.Table {
	return view.NewTable(
		[]string{"Date", "Receipt", "Supplier", "Tank", "Quantity (L)", "Received by"},
		items,
		func(r backend.Receiving) []string {
			return []string{
				r.CreatedAt.Format("2006-01-02 15:04"), r.ReceiptNumber, r.SupplierID, r.TankID,
				qty(r.Quantity), r.EmployeeName,
			}
		})
}

// Dashboard renders stock levels and the latest activity. A failing summary
// still renders the page with a banner.
func (h *Handler) Dashboard(c *gin.Context) {
	summary, err := h.client(c).DashboardSummary(c.Request.Context())
	if h.expired(c, err, false) {
		return
	}
	p := h.page(c, "Dashboard", gin.H{
		"Summary":     summary,
		"Consumption": web.ListPage{Table: consumptionTable(summary.RecentConsumption)},
		"Receiving":   web.ListPage{Table: receivingTable(summary.RecentReceiving)},
	})
	if err != nil {
		log.WithError(err).Warn("failed to load dashboard summary")
		p.Flash = &web.Flash{Kind: "error", Text: gateway.UserMessage(err, "Failed to load dashboard")}
	}
	c.HTML(http.StatusOK, "dashboard.html", p)
}
