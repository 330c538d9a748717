package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/model"
)

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error)  { return string(s), nil }
func (s staticTokens) RefreshToken(context.Context) (string, error) { return "", nil }
func (s staticTokens) UpdateToken(context.Context, string) error    { return nil }
func (s staticTokens) ClearAuth(context.Context) error              { return nil }

// recorder captures the last request a fake backend received.
type recorder struct {
	method string
	path   string
	query  url.Values
	auth   string
	body   []byte
	form   url.Values
	photo  []byte
}

func newBackend(t *testing.T, data any) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.EscapedPath()
		rec.query = r.URL.Query()
		rec.auth = r.Header.Get("Authorization")
		if r.MultipartForm == nil && r.Header.Get("Content-Type") != "application/json" && r.Method == http.MethodPost {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				rec.form = r.MultipartForm.Value
				if f, _, err := r.FormFile("photo"); err == nil {
					rec.photo, _ = io.ReadAll(f)
					f.Close()
				}
			}
		} else {
			rec.body, _ = io.ReadAll(r.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": data})
	}))
	t.Cleanup(server.Close)
	return NewService(gateway.New(server.URL, time.Second, "")), rec
}

func TestLogin(t *testing.T) {
	svc, rec := newBackend(t, map[string]any{
		"accessToken":  "a",
		"refreshToken": "r",
		"user":         map[string]any{"id": "1", "employee_number": "E1", "name": "Ali", "role": "driver"},
	})

	res, err := svc.Login(context.Background(), "E1", "secret")
	require.NoError(t, err)
	assert.Equal(t, "a", res.AccessToken)
	assert.Equal(t, model.RoleDriver, res.User.Role)
	assert.Equal(t, "/auth/login", rec.path)
	assert.Empty(t, rec.auth)
	assert.JSONEq(t, `{"employee_number":"E1","password":"secret"}`, string(rec.body))
}

func TestClient_GetEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		data      any
		call      func(c *Client) error
		wantPath  string
		wantQuery url.Values
	}{
		{
			name:     "employee lookup escapes path",
			data:     map[string]any{"name": "Ali", "mobile_number": "+97455551234"},
			call:     func(c *Client) error { _, err := c.Employee(context.Background(), "E 1/2"); return err },
			wantPath: "/users/employee/E%201%2F2",
		},
		{
			name:     "vehicles by type",
			data:     []any{},
			call:     func(c *Client) error { _, err := c.VehiclesByType(context.Background(), "Pickup"); return err },
			wantPath: "/diesel-consumption/vehicles/Pickup",
		},
		{
			name:     "plate lookup",
			data:     map[string]any{"plate_number": "RENT-01"},
			call:     func(c *Client) error { _, err := c.VehicleByPlate(context.Background(), "RENT-01"); return err },
			wantPath: "/diesel-consumption/vehicle/RENT-01",
		},
		{
			name:      "consumption page",
			data:      map[string]any{"items": []any{}, "total": 47},
			call:      func(c *Client) error { _, err := c.ListConsumption(context.Background(), 3, 4); return err },
			wantPath:  "/diesel-consumption",
			wantQuery: url.Values{"page": {"3"}, "limit": {"4"}},
		},
		{
			name:      "report range",
			data:      map[string]any{"rows": []any{}},
			call:      func(c *Client) error { _, err := c.Report(context.Background(), "2024-01-01", "2024-01-31"); return err },
			wantPath:  "/reports",
			wantQuery: url.Values{"from": {"2024-01-01"}, "to": {"2024-01-31"}},
		},
		{
			name:     "authentication options",
			data:     map[string]any{"challenge": "abc"},
			call:     func(c *Client) error { _, err := c.AuthenticationOptions(context.Background()); return err },
			wantPath: "/auth/generate-authentication-options",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := newBackend(t, tt.data)
			require.NoError(t, tt.call(svc.As(staticTokens("tok"))))
			assert.Equal(t, http.MethodGet, rec.method)
			assert.Equal(t, tt.wantPath, rec.path)
			assert.Equal(t, "Bearer tok", rec.auth)
			if tt.wantQuery != nil {
				assert.Equal(t, tt.wantQuery, rec.query)
			}
		})
	}
}

func TestClient_NextReceiptNumber(t *testing.T) {
	svc, _ := newBackend(t, map[string]any{"receipt_number": "RCV-0042"})
	n, err := svc.As(staticTokens("tok")).NextReceiptNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RCV-0042", n)
}

func TestClient_CreateConsumptionSendsMultipart(t *testing.T) {
	svc, rec := newBackend(t, map[string]any{"id": "c1", "plate_number": "ABC-42", "quantity": 40})

	out, err := svc.As(staticTokens("tok")).CreateConsumption(context.Background(), Submission{
		Fields: url.Values{"plate_number": {"ABC-42"}, "job_numbers": {"J1", "J2"}},
		Photo:  &Photo{Name: "meter.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", out.ID)
	assert.Equal(t, "/diesel-consumption/create", rec.path)
	assert.Equal(t, []string{"J1", "J2"}, rec.form["job_numbers"])
	assert.Equal(t, []byte("jpeg"), rec.photo)
}

func TestClient_UserCRUDMethods(t *testing.T) {
	svc, rec := newBackend(t, nil)
	c := svc.As(staticTokens("tok"))

	_, err := c.UpdateUser(context.Background(), "u1", UserInput{Name: "Sara", Role: model.RoleOperator})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/users/u1", rec.path)
	assert.JSONEq(t, `{"employee_number":"","name":"Sara","role":"operator","mobile_number":""}`, string(rec.body))

	require.NoError(t, c.DeleteUser(context.Background(), "u1"))
	assert.Equal(t, http.MethodDelete, rec.method)
}

func TestClient_VerifyAuthentication(t *testing.T) {
	svc, rec := newBackend(t, map[string]any{"verified": true})
	ok, err := svc.As(staticTokens("tok")).VerifyAuthentication(context.Background(), Assertion{ID: "cred", Type: "public-key"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/auth/verify-authentication-response", rec.path)
}
