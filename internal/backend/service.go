// Package backend wraps each REST endpoint the web front end uses. Calls
// return the unwrapped data block or the gateway error unchanged.
package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/model"
)

// Service binds the endpoint wrappers to a gateway.
type Service struct {
	gw *gateway.Client
}

// NewService creates a Service over gw.
func NewService(gw *gateway.Client) *Service {
	return &Service{gw: gw}
}

// Login exchanges credentials for tokens. It runs without a session.
func (s *Service) Login(ctx context.Context, employeeNumber, password string) (LoginResult, error) {
	var out LoginResult
	err := s.gw.Do(ctx, nil, gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   gateway.JSON(map[string]string{"employee_number": employeeNumber, "password": password}),
	}, &out)
	return out, err
}

// As returns a Client acting for the session behind tokens.
func (s *Service) As(tokens gateway.TokenSource) *Client {
	return &Client{gw: s.gw, tokens: tokens}
}

// Client issues authenticated calls for one session.
type Client struct {
	gw     *gateway.Client
	tokens gateway.TokenSource
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.gw.Do(ctx, c.tokens, gateway.Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any, out any) error {
	req := gateway.Request{Method: method, Path: path}
	if body != nil {
		req.Body = gateway.JSON(body)
	}
	return c.gw.Do(ctx, c.tokens, req, out)
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// Profile fetches the extended profile of the logged-in user.
func (c *Client) Profile(ctx context.Context) (model.UserProfile, error) {
	var out model.UserProfile
	err := c.get(ctx, "/auth/profile", nil, &out)
	return out, err
}

// Employee looks up name and mobile for an employee number.
func (c *Client) Employee(ctx context.Context, employeeNumber string) (Employee, error) {
	var out Employee
	err := c.get(ctx, "/users/employee/"+url.PathEscape(employeeNumber), nil, &out)
	return out, err
}

// VehicleTypes lists the vehicle type enum.
func (c *Client) VehicleTypes(ctx context.Context) ([]string, error) {
	var out []string
	err := c.get(ctx, "/diesel-consumption/vehicle-types", nil, &out)
	return out, err
}

// VehiclesByType lists vehicles of one type.
func (c *Client) VehiclesByType(ctx context.Context, vehicleType string) ([]Vehicle, error) {
	var out []Vehicle
	err := c.get(ctx, "/diesel-consumption/vehicles/"+url.PathEscape(vehicleType), nil, &out)
	return out, err
}

// VehicleByPlate resolves a plate number to its vehicle.
func (c *Client) VehicleByPlate(ctx context.Context, plate string) (Vehicle, error) {
	var out Vehicle
	err := c.get(ctx, "/diesel-consumption/vehicle/"+url.PathEscape(plate), nil, &out)
	return out, err
}

// ActiveJobs lists jobs open for booking.
func (c *Client) ActiveJobs(ctx context.Context) ([]Job, error) {
	var out []Job
	err := c.get(ctx, "/diesel-consumption/jobs/active", nil, &out)
	return out, err
}

// Operators lists equipment operators.
func (c *Client) Operators(ctx context.Context) ([]Operator, error) {
	var out []Operator
	err := c.get(ctx, "/diesel-consumption/operators", nil, &out)
	return out, err
}

// Tanks lists diesel tanks.
func (c *Client) Tanks(ctx context.Context) ([]Tank, error) {
	var out []Tank
	err := c.get(ctx, "/tanks", nil, &out)
	return out, err
}

// Suppliers lists diesel suppliers.
func (c *Client) Suppliers(ctx context.Context) ([]Supplier, error) {
	var out []Supplier
	err := c.get(ctx, "/suppliers", nil, &out)
	return out, err
}

func (c *Client) create(ctx context.Context, path string, sub Submission, out any) error {
	var files []gateway.File
	if sub.Photo != nil {
		files = append(files, gateway.File{
			Field:       "photo",
			Name:        sub.Photo.Name,
			ContentType: sub.Photo.ContentType,
			Data:        sub.Photo.Data,
		})
	}
	return c.gw.Do(ctx, c.tokens, gateway.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   gateway.Multipart(sub.Fields, files...),
	}, out)
}

// CreateConsumption records a fuel usage event.
func (c *Client) CreateConsumption(ctx context.Context, sub Submission) (Consumption, error) {
	var out Consumption
	err := c.create(ctx, "/diesel-consumption/create", sub, &out)
	return out, err
}

// ListConsumption returns one page of usage records.
func (c *Client) ListConsumption(ctx context.Context, page, limit int) (Page[Consumption], error) {
	var out Page[Consumption]
	err := c.get(ctx, "/diesel-consumption", pageQuery(page, limit), &out)
	return out, err
}

// CreateReceiving records a fuel delivery.
func (c *Client) CreateReceiving(ctx context.Context, sub Submission) (Receiving, error) {
	var out Receiving
	err := c.create(ctx, "/diesel-receiving/create", sub, &out)
	return out, err
}

// ListReceiving returns one page of delivery records.
func (c *Client) ListReceiving(ctx context.Context, page, limit int) (Page[Receiving], error) {
	var out Page[Receiving]
	err := c.get(ctx, "/diesel-receiving", pageQuery(page, limit), &out)
	return out, err
}

// NextReceiptNumber fetches the server-generated receipt sequence.
func (c *Client) NextReceiptNumber(ctx context.Context) (string, error) {
	var out struct {
		ReceiptNumber string `json:"receipt_number"`
	}
	err := c.get(ctx, "/diesel-receiving/next-receipt-number", nil, &out)
	return out.ReceiptNumber, err
}

// DashboardSummary fetches landing page aggregates.
func (c *Client) DashboardSummary(ctx context.Context) (DashboardSummary, error) {
	var out DashboardSummary
	err := c.get(ctx, "/dashboard/summary", nil, &out)
	return out, err
}

// Report fetches the activity report for an inclusive date range
// (YYYY-MM-DD).
func (c *Client) Report(ctx context.Context, from, to string) (Report, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	var out Report
	err := c.get(ctx, "/reports", q, &out)
	return out, err
}

// Invoices returns one page of invoices.
func (c *Client) Invoices(ctx context.Context, page, limit int) (Page[Invoice], error) {
	var out Page[Invoice]
	err := c.get(ctx, "/invoices", pageQuery(page, limit), &out)
	return out, err
}

// Invoice fetches one invoice.
func (c *Client) Invoice(ctx context.Context, id string) (Invoice, error) {
	var out Invoice
	err := c.get(ctx, "/invoices/"+url.PathEscape(id), nil, &out)
	return out, err
}

// GenerateInvoice asks the backend to create an invoice.
func (c *Client) GenerateInvoice(ctx context.Context, req GenerateInvoiceRequest) (Invoice, error) {
	var out Invoice
	err := c.send(ctx, http.MethodPost, "/invoices/generate", req, &out)
	return out, err
}

// AuditLogs returns one page of the audit trail.
func (c *Client) AuditLogs(ctx context.Context, page, limit int) (Page[AuditLog], error) {
	var out Page[AuditLog]
	err := c.get(ctx, "/audit-logs", pageQuery(page, limit), &out)
	return out, err
}

// Users returns one page of accounts.
func (c *Client) Users(ctx context.Context, page, limit int) (Page[User], error) {
	var out Page[User]
	err := c.get(ctx, "/users", pageQuery(page, limit), &out)
	return out, err
}

// CreateUser adds an account.
func (c *Client) CreateUser(ctx context.Context, in UserInput) (User, error) {
	var out User
	err := c.send(ctx, http.MethodPost, "/users", in, &out)
	return out, err
}

// UpdateUser changes an account.
func (c *Client) UpdateUser(ctx context.Context, id string, in UserInput) (User, error) {
	var out User
	err := c.send(ctx, http.MethodPut, "/users/"+url.PathEscape(id), in, &out)
	return out, err
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

// AuthenticationOptions requests a WebAuthn challenge.
func (c *Client) AuthenticationOptions(ctx context.Context) (AuthenticationOptions, error) {
	var out AuthenticationOptions
	err := c.get(ctx, "/auth/generate-authentication-options", nil, &out)
	return out, err
}

// VerifyAuthentication submits a WebAuthn assertion.
func (c *Client) VerifyAuthentication(ctx context.Context, a Assertion) (bool, error) {
	var out Verification
	err := c.send(ctx, http.MethodPost, "/auth/verify-authentication-response", a, &out)
	return out.Verified, err
}
