package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/export"
	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/parse"
	"diesel-manager-web/internal/view"
	"diesel-manager-web/internal/web"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func reportTable(rows []backend.ReportRow) view.Table {
	return view.NewTable(
		[]string{"Date", "Kind", "Reference", "Plate", "Vehicle type", "Tank", "Quantity (L)"},
		rows,
		func(r backend.ReportRow) []string {
			return []string{
				r.Date.Format(parse.DateLayout), r.Kind, r.Reference, r.PlateNumber, r.VehicleType, r.TankName, qty(r.Quantity),
			}
		})
}

// reportRange reads from/to with the month-to-date default.
func reportRange(c *gin.Context) (string, string, error) {
	from, to, err := parse.DateRange(c.Query("from"), c.Query("to"), time.Now().UTC())
	if err != nil {
		return c.Query("from"), c.Query("to"), err
	}
	return from.Format(parse.DateLayout), to.Format(parse.DateLayout), nil
}

// Reports renders the activity report for a date range, filtered and paged
// locally.
func (h *Handler) Reports(c *gin.Context) {
	from, to, err := reportRange(c)
	data := gin.H{"From": from, "To": to, "List": web.ListPage{}, "Error": "", "TotalConsumed": 0.0, "TotalReceived": 0.0}
	if err != nil {
		data["Error"] = err.Error()
		c.HTML(http.StatusBadRequest, "reports.html", h.page(c, "Reports", data))
		return
	}

	report, err := h.client(c).Report(c.Request.Context(), from, to)
	if err != nil {
		if h.expired(c, err, false) {
			return
		}
		log.WithError(err).Warn("failed to load report")
		data["Error"] = gateway.UserMessage(err, "Failed to load the report")
		c.HTML(http.StatusOK, "reports.html", h.page(c, "Reports", data))
		return
	}

	search := c.Query("q")
	rows := view.Filter(report.Rows, func(r backend.ReportRow) bool {
		return view.Contains(search, r.Kind, r.Reference, r.PlateNumber, r.VehicleType, r.TankName)
	})
	pg := view.PageFromQuery(c.Request.URL.Query()).WithTotal(len(rows))
	start, end := pg.Bounds(len(rows))

	data["List"] = web.ListPage{
		Table:  reportTable(rows[start:end]),
		Links:  pg.Links(c.Request.URL.Path, c.Request.URL.Query()),
		Search: search,
		Total:  len(rows),
	}
	data["TotalConsumed"] = report.TotalConsumed
	data["TotalReceived"] = report.TotalReceived
	c.HTML(http.StatusOK, "reports.html", h.page(c, "Reports", data))
}

// ExportReport streams the report as an Excel workbook.
func (h *Handler) ExportReport(c *gin.Context) {
	from, to, err := reportRange(c)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.client(c).Report(c.Request.Context(), from, to)
	if err != nil {
		h.failPage(c, "Reports", err, "Failed to load the report")
		return
	}
	var buf bytes.Buffer
	if err := export.WriteReport(&buf, report); err != nil {
		log.WithError(err).Error("failed to build report workbook")
		c.String(http.StatusInternalServerError, "Failed to export the report")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="diesel-report-%s-%s.xlsx"`, from, to))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
