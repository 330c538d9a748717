package backendstub

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/model"
	"diesel-manager-web/internal/parse"
)

const maxUpload = 10 << 20

func positive(s string) (float64, bool) {
	n, err := parse.Number(s)
	return n, err == nil && n > 0
}

func (s *Server) tankLocked(id string) (*backend.Tank, bool) {
	for i := range s.tanks {
		if s.tanks[i].ID == id {
			return &s.tanks[i], true
		}
	}
	return nil, false
}

func (s *Server) countPhoto(c *gin.Context) {
	if _, err := c.FormFile("photo"); err == nil {
		s.Photos++
	}
}

func (s *Server) createConsumption(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUpload); err != nil {
		fail(c, http.StatusBadRequest, "Expected multipart form data")
		return
	}
	qty, valid := positive(c.PostForm("quantity"))
	if !valid {
		fail(c, http.StatusBadRequest, "Quantity must be greater than zero")
		return
	}
	reading, valid := positive(c.PostForm("meter_reading"))
	if !valid {
		fail(c, http.StatusBadRequest, "Meter reading must be greater than zero")
		return
	}
	jobs := c.PostFormArray("job_numbers")
	if len(jobs) == 0 {
		fail(c, http.StatusBadRequest, "At least one job is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tank, found := s.tankLocked(c.PostForm("tank_id"))
	if !found {
		fail(c, http.StatusBadRequest, "Unknown tank")
		return
	}
	if tank.CurrentLevel < qty {
		fail(c, http.StatusUnprocessableEntity, fmt.Sprintf("Insufficient diesel in %s", tank.Name))
		return
	}
	tank.CurrentLevel -= qty
	s.countPhoto(c)

	now := time.Now().UTC()
	rec := backend.Consumption{
		ID:             fmt.Sprintf("c%d", len(s.consumption)+1),
		EmployeeNumber: c.PostForm("employee_number"),
		EmployeeName:   c.PostForm("employee_name"),
		PlateNumber:    c.PostForm("plate_number"),
		VehicleType:    c.PostForm("vehicle_type"),
		Quantity:       qty,
		MeterReading:   reading,
		TankID:         tank.ID,
		JobNumbers:     jobs,
		OtherLocation:  c.PostForm("other_location"),
		IsRented:       c.PostForm("is_rented") == "true",
		CreatedAt:      now,
	}
	s.consumption = append(s.consumption, rec)
	s.record(actor(c), "create", "diesel_consumption", rec.ID, fmt.Sprintf("%.2f L for %s", qty, rec.PlateNumber), now)
	ok(c, http.StatusCreated, rec)
}

func (s *Server) createReceiving(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUpload); err != nil {
		fail(c, http.StatusBadRequest, "Expected multipart form data")
		return
	}
	qty, valid := positive(c.PostForm("quantity"))
	if !valid {
		fail(c, http.StatusBadRequest, "Quantity must be greater than zero")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tank, found := s.tankLocked(c.PostForm("tank_id"))
	if !found {
		fail(c, http.StatusBadRequest, "Unknown tank")
		return
	}
	if tank.CurrentLevel+qty > tank.Capacity {
		fail(c, http.StatusUnprocessableEntity, fmt.Sprintf("Delivery exceeds the capacity of %s", tank.Name))
		return
	}
	receipt := c.PostForm("receipt_number")
	for _, r := range s.receiving {
		if r.ReceiptNumber == receipt {
			fail(c, http.StatusConflict, "Receipt number already used")
			return
		}
	}
	tank.CurrentLevel += qty
	s.countPhoto(c)
	s.receiptSeq++

	now := time.Now().UTC()
	rec := backend.Receiving{
		ID:             fmt.Sprintf("r%d", len(s.receiving)+1),
		ReceiptNumber:  receipt,
		SupplierID:     c.PostForm("supplier_id"),
		TankID:         tank.ID,
		Quantity:       qty,
		EmployeeNumber: c.PostForm("employee_number"),
		EmployeeName:   c.PostForm("employee_name"),
		CreatedAt:      now,
	}
	s.receiving = append(s.receiving, rec)
	s.record(actor(c), "create", "diesel_receiving", rec.ID, fmt.Sprintf("%.2f L into %s", qty, tank.Name), now)
	ok(c, http.StatusCreated, rec)
}

func (s *Server) nextReceipt(c *gin.Context) {
	s.mu.Lock()
	n := s.receiptSeq + 1
	s.mu.Unlock()
	ok(c, http.StatusOK, gin.H{"receipt_number": fmt.Sprintf("RCV-%04d", n)})
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func lastN[T any](items []T, n int) []T {
	out := make([]T, 0, n)
	for i := len(items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, items[i])
	}
	return out
}

func (s *Server) dashboard(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	sum := backend.DashboardSummary{
		Tanks:             append([]backend.Tank(nil), s.tanks...),
		RecentConsumption: lastN(s.consumption, 5),
		RecentReceiving:   lastN(s.receiving, 5),
	}
	for _, t := range s.tanks {
		sum.TotalStock += t.CurrentLevel
	}
	for _, r := range s.consumption {
		if sameDay(r.CreatedAt, now) {
			sum.ConsumedToday += r.Quantity
		}
	}
	for _, r := range s.receiving {
		if sameDay(r.CreatedAt, now) {
			sum.ReceivedToday += r.Quantity
		}
	}
	ok(c, http.StatusOK, sum)
}

func (s *Server) report(c *gin.Context) {
	from, to, err := parse.DateRange(c.Query("from"), c.Query("to"), time.Now().UTC())
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	end := to.AddDate(0, 0, 1)
	in := func(t time.Time) bool { return !t.Before(from) && t.Before(end) }

	s.mu.Lock()
	defer s.mu.Unlock()
	rep := backend.Report{From: from.Format(parse.DateLayout), To: to.Format(parse.DateLayout), Rows: []backend.ReportRow{}}
	tankName := func(id string) string {
		if t, found := s.tankLocked(id); found {
			return t.Name
		}
		return id
	}
	for _, r := range s.consumption {
		if !in(r.CreatedAt) {
			continue
		}
		rep.Rows = append(rep.Rows, backend.ReportRow{
			Date: r.CreatedAt, Kind: "consumption", Reference: r.ID, PlateNumber: r.PlateNumber,
			VehicleType: r.VehicleType, TankName: tankName(r.TankID), Quantity: r.Quantity,
		})
		rep.TotalConsumed += r.Quantity
	}
	for _, r := range s.receiving {
		if !in(r.CreatedAt) {
			continue
		}
		rep.Rows = append(rep.Rows, backend.ReportRow{
			Date: r.CreatedAt, Kind: "receiving", Reference: r.ReceiptNumber,
			TankName: tankName(r.TankID), Quantity: r.Quantity,
		})
		rep.TotalReceived += r.Quantity
	}
	ok(c, http.StatusOK, rep)
}

func (s *Server) invoice(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.ID == c.Param("id") {
			ok(c, http.StatusOK, inv)
			return
		}
	}
	fail(c, http.StatusNotFound, "Invoice not found")
}

func (s *Server) generateInvoice(c *gin.Context) {
	var req backend.GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid invoice request")
		return
	}
	if strings.TrimSpace(req.BillTo) == "" || strings.TrimSpace(req.PlateNumber) == "" || req.UnitPrice <= 0 {
		fail(c, http.StatusBadRequest, "Bill to, plate number and a positive unit price are required")
		return
	}
	from, to, err := parse.DateRange(req.From, req.To, time.Now().UTC())
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	end := to.AddDate(0, 0, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	var qty float64
	for _, r := range s.consumption {
		if strings.EqualFold(r.PlateNumber, req.PlateNumber) && !r.CreatedAt.Before(from) && r.CreatedAt.Before(end) {
			qty += r.Quantity
		}
	}
	if qty == 0 {
		fail(c, http.StatusUnprocessableEntity, "No consumption recorded for this vehicle in the period")
		return
	}
	amount := qty * req.UnitPrice
	now := time.Now().UTC()
	inv := backend.Invoice{
		ID:            strconv.Itoa(len(s.invoices) + 1),
		InvoiceNumber: fmt.Sprintf("INV-%04d", len(s.invoices)+1),
		BillTo:        req.BillTo,
		PeriodFrom:    from.Format(parse.DateLayout),
		PeriodTo:      to.Format(parse.DateLayout),
		Lines: []backend.InvoiceLine{{
			Description: "Diesel for " + req.PlateNumber,
			Quantity:    qty,
			UnitPrice:   req.UnitPrice,
			Amount:      amount,
		}},
		Total:     amount,
		CreatedAt: now,
	}
	s.invoices = append(s.invoices, inv)
	s.record(actor(c), "create", "invoice", inv.ID, inv.InvoiceNumber, now)
	ok(c, http.StatusCreated, inv)
}

func (s *Server) users(c *gin.Context) {
	s.mu.Lock()
	all := make([]backend.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, a.user)
	}
	s.mu.Unlock()
	// page serves the slice reversed, so sort by descending id.
	sort.Slice(all, func(i, j int) bool { return userSeq(all[i].ID) > userSeq(all[j].ID) })
	var mu sync.Mutex
	page(c, &mu, &all)
}

func userSeq(id string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(id, "u"))
	return n
}

func (s *Server) validateUser(in backend.UserInput, create bool) string {
	switch {
	case strings.TrimSpace(in.EmployeeNumber) == "":
		return "Employee number is required"
	case strings.TrimSpace(in.Name) == "":
		return "Name is required"
	case !in.Role.Valid():
		return "Role is invalid"
	case in.MobileNumber != "" && !parse.ValidMobile(in.MobileNumber):
		return "Mobile number must be 11 characters"
	case in.Role == model.RoleSiteIncharge && in.SiteID == "":
		return "Site is required for a site incharge"
	case create && len(in.Password) < 8:
		return "Password must be at least 8 characters"
	}
	return ""
}

func (s *Server) createUser(c *gin.Context) {
	var in backend.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "Invalid user")
		return
	}
	if msg := s.validateUser(in, true); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	hash, err := hashPassword(in.Password, s.cost)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[in.EmployeeNumber]; exists {
		fail(c, http.StatusConflict, "Employee number already registered")
		return
	}
	u := backend.User{
		ID:             fmt.Sprintf("u%d", s.nextUserID),
		EmployeeNumber: in.EmployeeNumber,
		Name:           in.Name,
		Role:           in.Role,
		MobileNumber:   parse.MobileDigits(in.MobileNumber),
		SiteID:         in.SiteID,
	}
	s.nextUserID++
	s.accounts[u.EmployeeNumber] = &account{user: u, hash: hash}
	s.record(actor(c), "create", "user", u.ID, u.EmployeeNumber, time.Now().UTC())
	ok(c, http.StatusCreated, u)
}

func (s *Server) accountByIDLocked(id string) (*account, bool) {
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a, true
		}
	}
	return nil, false
}

func (s *Server) updateUser(c *gin.Context) {
	var in backend.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "Invalid user")
		return
	}
	if msg := s.validateUser(in, false); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = hashPassword(in.Password, s.cost); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.accountByIDLocked(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if in.EmployeeNumber != acc.user.EmployeeNumber {
		if _, taken := s.accounts[in.EmployeeNumber]; taken {
			fail(c, http.StatusConflict, "Employee number already registered")
			return
		}
		delete(s.accounts, acc.user.EmployeeNumber)
		s.accounts[in.EmployeeNumber] = acc
	}
	acc.user.EmployeeNumber = in.EmployeeNumber
	acc.user.Name = in.Name
	acc.user.Role = in.Role
	acc.user.MobileNumber = parse.MobileDigits(in.MobileNumber)
	acc.user.SiteID = in.SiteID
	if hash != "" {
		acc.hash = hash
	}
	s.record(actor(c), "update", "user", acc.user.ID, acc.user.EmployeeNumber, time.Now().UTC())
	ok(c, http.StatusOK, acc.user)
}

func (s *Server) deleteUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.accountByIDLocked(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if acc.user.EmployeeNumber == actor(c) {
		fail(c, http.StatusBadRequest, "You cannot delete your own account")
		return
	}
	delete(s.accounts, acc.user.EmployeeNumber)
	s.record(actor(c), "delete", "user", acc.user.ID, acc.user.EmployeeNumber, time.Now().UTC())
	ok(c, http.StatusOK, nil)
}
