package backend

import (
	"net/url"
	"time"

	"diesel-manager-web/internal/model"
)

// LoginResult is the data block of a successful POST /auth/login.
type LoginResult struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         model.UserSummary `json:"user"`
}

// Employee is the autofill record for an employee number.
type Employee struct {
	EmployeeNumber string     `json:"employee_number"`
	Name           string     `json:"name"`
	MobileNumber   string     `json:"mobile_number"`
	Role           model.Role `json:"role"`
}

// Vehicle is a fleet vehicle.
type Vehicle struct {
	ID          string `json:"id"`
	PlateNumber string `json:"plate_number"`
	VehicleType string `json:"vehicle_type"`
	Make        string `json:"make"`
	Model       string `json:"model"`
}

// Job is an active job a consumption can be booked against.
type Job struct {
	ID        string `json:"id"`
	JobNumber string `json:"job_number"`
	Location  string `json:"location"`
}

// Operator is an equipment operator.
type Operator struct {
	ID             string `json:"id"`
	EmployeeNumber string `json:"employee_number"`
	Name           string `json:"name"`
}

// Tank is a diesel storage tank.
type Tank struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	SiteID       string  `json:"site_id"`
	Capacity     float64 `json:"capacity"`
	CurrentLevel float64 `json:"current_level"`
}

// Supplier delivers diesel.
type Supplier struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Consumption is one recorded fuel usage event.
type Consumption struct {
	ID             string    `json:"id"`
	EmployeeNumber string    `json:"employee_number"`
	EmployeeName   string    `json:"employee_name"`
	PlateNumber    string    `json:"plate_number"`
	VehicleType    string    `json:"vehicle_type"`
	Quantity       float64   `json:"quantity"`
	MeterReading   float64   `json:"meter_reading"`
	TankID         string    `json:"tank_id"`
	JobNumbers     []string  `json:"job_numbers"`
	OtherLocation  string    `json:"other_location,omitempty"`
	IsRented       bool      `json:"is_rented"`
	CreatedAt      time.Time `json:"created_at"`
}

// Receiving is one recorded fuel delivery.
type Receiving struct {
	ID             string    `json:"id"`
	ReceiptNumber  string    `json:"receipt_number"`
	SupplierID     string    `json:"supplier_id"`
	TankID         string    `json:"tank_id"`
	Quantity       float64   `json:"quantity"`
	EmployeeNumber string    `json:"employee_number"`
	EmployeeName   string    `json:"employee_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Page is one page of a paginated list endpoint.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// DashboardSummary aggregates stock and activity for the landing page.
type DashboardSummary struct {
	TotalStock        float64       `json:"total_stock"`
	ReceivedToday     float64       `json:"received_today"`
	ConsumedToday     float64       `json:"consumed_today"`
	Tanks             []Tank        `json:"tanks"`
	RecentConsumption []Consumption `json:"recent_consumption"`
	RecentReceiving   []Receiving   `json:"recent_receiving"`
}

// ReportRow is one line of the consumption/receiving report.
type ReportRow struct {
	Date        time.Time `json:"date"`
	Kind        string    `json:"kind"`
	Reference   string    `json:"reference"`
	PlateNumber string    `json:"plate_number"`
	VehicleType string    `json:"vehicle_type"`
	TankName    string    `json:"tank_name"`
	Quantity    float64   `json:"quantity"`
}

// Report covers a date range.
type Report struct {
	From          string      `json:"from"`
	To            string      `json:"to"`
	Rows          []ReportRow `json:"rows"`
	TotalConsumed float64     `json:"total_consumed"`
	TotalReceived float64     `json:"total_received"`
}

// InvoiceLine is one billed line of an invoice.
type InvoiceLine struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// Invoice bills a supplier or rental client for a period.
type Invoice struct {
	ID            string        `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	BillTo        string        `json:"bill_to"`
	PeriodFrom    string        `json:"period_from"`
	PeriodTo      string        `json:"period_to"`
	Lines         []InvoiceLine `json:"lines"`
	Total         float64       `json:"total"`
	CreatedAt     time.Time     `json:"created_at"`
}

// GenerateInvoiceRequest asks the backend to bill a plate for a period.
type GenerateInvoiceRequest struct {
	BillTo      string  `json:"bill_to"`
	PlateNumber string  `json:"plate_number"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	UnitPrice   float64 `json:"unit_price"`
}

// AuditLog is one audit trail entry.
type AuditLog struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a managed account.
type User struct {
	ID             string     `json:"id"`
	EmployeeNumber string     `json:"employee_number"`
	Name           string     `json:"name"`
	Role           model.Role `json:"role"`
	MobileNumber   string     `json:"mobile_number"`
	SiteID         string     `json:"site_id"`
}

// UserInput creates or updates a user. An empty password leaves it unchanged
// on update.
type UserInput struct {
	EmployeeNumber string     `json:"employee_number"`
	Name           string     `json:"name"`
	Role           model.Role `json:"role"`
	MobileNumber   string     `json:"mobile_number"`
	SiteID         string     `json:"site_id,omitempty"`
	Password       string     `json:"password,omitempty"`
}

// AllowedCredential names a credential the authenticator may use.
type AllowedCredential struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// AuthenticationOptions is the WebAuthn request challenge. Challenge is
// base64url encoded.
type AuthenticationOptions struct {
	Challenge        string              `json:"challenge"`
	RPID             string              `json:"rpId"`
	Timeout          int                 `json:"timeout"`
	UserVerification string              `json:"userVerification"`
	AllowCredentials []AllowedCredential `json:"allowCredentials"`
}

// AssertionResponse is the authenticator's signed answer.
type AssertionResponse struct {
	ClientDataJSON    string `json:"clientDataJSON"`
	AuthenticatorData string `json:"authenticatorData"`
	Signature         string `json:"signature"`
	UserHandle        string `json:"userHandle,omitempty"`
}

// Assertion is posted for verification.
type Assertion struct {
	ID       string            `json:"id"`
	RawID    string            `json:"rawId"`
	Type     string            `json:"type"`
	Response AssertionResponse `json:"response"`
}

// Verification is the backend's verdict on an assertion.
type Verification struct {
	Verified bool `json:"verified"`
}

// Photo is an image attached to a submission.
type Photo struct {
	Name        string
	ContentType string
	Data        []byte
}

// Submission is a composed create payload. Fields carry repeated values for
// multi-select inputs.
type Submission struct {
	Fields url.Values
	Photo  *Photo
}
