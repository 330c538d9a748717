package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/export"
	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/parse"
	"diesel-manager-web/internal/view"
)

func (h *Handler) renderInvoices(c *gin.Context, status int, req backend.GenerateInvoiceRequest, formErr string) {
	pg := view.PageFromQuery(c.Request.URL.Query())
	list, err := h.client(c).Invoices(c.Request.Context(), pg.Page, pg.Limit)
	if err != nil {
		h.failPage(c, "Invoices", err, "Failed to load invoices")
		return
	}
	pg = pg.WithTotal(list.Total)
	c.HTML(status, "invoices.html", h.page(c, "Invoices", gin.H{
		"Invoices": list.Items,
		"Links":    pg.Links(c.Request.URL.Path, c.Request.URL.Query()),
		"Request":  req,
		"Error":    formErr,
	}))
}

// Invoices lists invoices with the generation form.
func (h *Handler) Invoices(c *gin.Context) {
	h.renderInvoices(c, http.StatusOK, backend.GenerateInvoiceRequest{}, "")
}

// GenerateInvoice bills a plate for a period and opens the new invoice.
func (h *Handler) GenerateInvoice(c *gin.Context) {
	req := backend.GenerateInvoiceRequest{
		BillTo:      strings.TrimSpace(c.PostForm("bill_to")),
		PlateNumber: strings.TrimSpace(c.PostForm("plate_number")),
		From:        c.PostForm("from"),
		To:          c.PostForm("to"),
	}
	price, err := parse.Number(c.PostForm("unit_price"))
	switch {
	case req.BillTo == "" || req.PlateNumber == "":
		h.renderInvoices(c, http.StatusBadRequest, req, "Bill to and plate number are required")
		return
	case err != nil || price <= 0:
		h.renderInvoices(c, http.StatusBadRequest, req, "Unit price must be greater than zero")
		return
	}
	req.UnitPrice = price
	if _, _, err := parse.DateRange(req.From, req.To, timeNow()); err != nil {
		h.renderInvoices(c, http.StatusBadRequest, req, err.Error())
		return
	}

	inv, err := h.client(c).GenerateInvoice(c.Request.Context(), req)
	if err != nil {
		if h.expired(c, err, false) {
			return
		}
		log.WithError(err).Warn("invoice generation failed")
		h.renderInvoices(c, http.StatusOK, req, gateway.UserMessage(err, "Failed to generate the invoice"))
		return
	}
	handle, _ := current(c)
	h.purgeCache(handle.ID())
	c.Redirect(http.StatusSeeOther, "/invoice/"+inv.ID)
}

// Invoice renders one invoice.
func (h *Handler) Invoice(c *gin.Context) {
	inv, err := h.client(c).Invoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failPage(c, "Invoice", err, "Failed to load the invoice")
		return
	}
	c.HTML(http.StatusOK, "invoice.html", h.page(c, "Invoice "+inv.InvoiceNumber, inv))
}

// InvoicePDF prints the invoice. Without a working Chromium the printable
// HTML is served instead.
func (h *Handler) InvoicePDF(c *gin.Context) {
	inv, err := h.client(c).Invoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failPage(c, "Invoice", err, "Failed to load the invoice")
		return
	}
	pdf, err := h.pdf.Render(c.Request.Context(), inv)
	if err != nil {
		log.WithError(err).WithField("invoice", inv.InvoiceNumber).Warn("pdf rendering failed; serving html")
		html, herr := export.InvoiceHTML(inv)
		if herr != nil {
			c.String(http.StatusInternalServerError, "Failed to render the invoice")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, inv.InvoiceNumber))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
