// Package backendstub is an in-memory implementation of the diesel REST
// backend. It backs local development and the end to end tests of the web
// front end.
package backendstub

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/model"
	"diesel-manager-web/internal/view"
)

// BasePath is where the API is mounted.
const BasePath = "/api/v1"

// Options configures a stub server.
type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// BcryptCost defaults to bcrypt.MinCost to keep tests fast.
	BcryptCost int
}

// Server holds the in-memory backend state.
type Server struct {
	tokens *tokenManager
	cost   int

	mu           sync.Mutex
	generation   int
	refreshEpoch int
	accounts     map[string]*account
	nextUserID   int
	vehicles     []backend.Vehicle
	jobs         []backend.Job
	operators    []backend.Operator
	tanks        []backend.Tank
	suppliers    []backend.Supplier
	consumption  []backend.Consumption
	receiving    []backend.Receiving
	invoices     []backend.Invoice
	audit        []backend.AuditLog
	challenges   map[string]bool
	receiptSeq   int

	// Photos counts submissions that carried a photo.
	Photos int
}

// New creates a seeded stub.
func New(opts Options) (*Server, error) {
	if opts.Secret == "" {
		opts.Secret = "stub-secret"
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.BcryptCost <= 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	s := &Server{
		tokens:     &tokenManager{secret: []byte(opts.Secret), accessTTL: opts.AccessTTL, refreshTTL: opts.RefreshTTL},
		cost:       opts.BcryptCost,
		accounts:   make(map[string]*account),
		challenges: make(map[string]bool),
	}
	if err := s.seed(opts.BcryptCost); err != nil {
		return nil, err
	}
	return s, nil
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every token issued so far, so the next
// refresh attempt fails.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.generation++
	s.refreshEpoch++
	s.mu.Unlock()
}

// Consumption returns a copy of the recorded usage events.
func (s *Server) Consumption() []backend.Consumption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Consumption(nil), s.consumption...)
}

// Router builds the gin engine serving the API under BasePath.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group(BasePath)
	api.POST("/auth/login", s.login)
	api.POST("/auth/refresh-token", s.refresh)

	authed := api.Group("")
	authed.Use(s.authenticate)
	{
		authed.GET("/auth/profile", s.profile)
		authed.GET("/auth/generate-authentication-options", s.authOptions)
		authed.POST("/auth/verify-authentication-response", s.verifyAuth)

		authed.GET("/users/employee/:emp", s.employee)
		authed.GET("/diesel-consumption/vehicle-types", s.vehicleTypes)
		authed.GET("/diesel-consumption/vehicles/:type", s.vehiclesByType)
		authed.GET("/diesel-consumption/vehicle/:plate", s.vehicleByPlate)
		authed.GET("/diesel-consumption/jobs/active", func(c *gin.Context) { s.list(c, s.jobs) })
		authed.GET("/diesel-consumption/operators", func(c *gin.Context) { s.list(c, s.operators) })
		authed.GET("/tanks", func(c *gin.Context) { s.list(c, s.tanks) })
		authed.GET("/suppliers", func(c *gin.Context) { s.list(c, s.suppliers) })

		authed.POST("/diesel-consumption/create", s.createConsumption)
		authed.GET("/diesel-consumption", func(c *gin.Context) { page(c, &s.mu, &s.consumption) })
		authed.POST("/diesel-receiving/create", s.createReceiving)
		authed.GET("/diesel-receiving", func(c *gin.Context) { page(c, &s.mu, &s.receiving) })
		authed.GET("/diesel-receiving/next-receipt-number", s.nextReceipt)

		authed.GET("/dashboard/summary", s.dashboard)
		authed.GET("/reports", s.report)

		managers := authed.Group("", s.requireRole(model.RoleAdmin, model.RoleDieselManager))
		managers.GET("/invoices", func(c *gin.Context) { page(c, &s.mu, &s.invoices) })
		managers.GET("/invoices/:id", s.invoice)
		managers.POST("/invoices/generate", s.generateInvoice)

		admins := authed.Group("", s.requireRole(model.RoleAdmin))
		admins.GET("/audit-logs", func(c *gin.Context) { page(c, &s.mu, &s.audit) })
		admins.GET("/users", s.users)
		admins.POST("/users", s.createUser)
		admins.PUT("/users/:id", s.updateUser)
		admins.DELETE("/users/:id", s.deleteUser)
	}
	return r
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"status": "success", "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": msg})
}

const claimsKey = "claims"

func (s *Server) authenticate(c *gin.Context) {
	token, found := bearer(c.GetHeader("Authorization"))
	if !found {
		fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	claims, err := s.tokens.validate(token)
	if err != nil || claims.Refresh {
		fail(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	if claims.Generation != gen {
		fail(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}

func (s *Server) requireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := c.MustGet(claimsKey).(*Claims)
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		fail(c, http.StatusForbidden, "Insufficient permissions")
	}
}

func actor(c *gin.Context) string {
	return c.MustGet(claimsKey).(*Claims).EmployeeNumber
}

func (s *Server) record(who, action, entity, id, details string, at time.Time) {
	s.audit = append(s.audit, backend.AuditLog{
		ID:        strconv.Itoa(len(s.audit) + 1),
		Actor:     who,
		Action:    action,
		Entity:    entity,
		EntityID:  id,
		Details:   details,
		CreatedAt: at,
	})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		EmployeeNumber string `json:"employee_number"`
		Password       string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.EmployeeNumber == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Employee number and password are required")
		return
	}

	s.mu.Lock()
	acc, found := s.accounts[req.EmployeeNumber]
	gen, epoch := s.generation, s.refreshEpoch
	s.mu.Unlock()
	if !found || !checkPassword(req.Password, acc.hash) {
		log.WithField("employee_number", req.EmployeeNumber).Info("stub login rejected")
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	access, err := s.tokens.issue(acc.user.EmployeeNumber, acc.user.Role, false, gen)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	refresh, err := s.tokens.issue(acc.user.EmployeeNumber, acc.user.Role, true, epoch)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusOK, backend.LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User: model.UserSummary{
			ID:             acc.user.ID,
			EmployeeNumber: acc.user.EmployeeNumber,
			Name:           acc.user.Name,
			Role:           acc.user.Role,
		},
	})
}

func (s *Server) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		fail(c, http.StatusBadRequest, "Refresh token is required")
		return
	}
	claims, err := s.tokens.validate(req.RefreshToken)
	if err != nil || !claims.Refresh {
		fail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	s.mu.Lock()
	gen, epoch := s.generation, s.refreshEpoch
	s.mu.Unlock()
	if claims.Generation != epoch {
		fail(c, http.StatusUnauthorized, "Refresh token revoked")
		return
	}
	access, err := s.tokens.issue(claims.EmployeeNumber, claims.Role, false, gen)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"accessToken": access})
}

func (s *Server) profile(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.accounts[actor(c)]
	if !found {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	p := model.UserProfile{
		EmployeeNumber: acc.user.EmployeeNumber,
		Name:           acc.user.Name,
		Role:           acc.user.Role,
		MobileNumber:   acc.user.MobileNumber,
		SiteID:         acc.user.SiteID,
	}
	for _, t := range s.tanks {
		if acc.user.SiteID != "" && t.SiteID == acc.user.SiteID {
			p.Tanks = append(p.Tanks, model.TankRef{ID: t.ID, Name: t.Name})
		}
	}
	ok(c, http.StatusOK, p)
}

func (s *Server) authOptions(c *gin.Context) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		fail(c, http.StatusInternalServerError, "failed to generate challenge")
		return
	}
	challenge := base64.RawURLEncoding.EncodeToString(buf)
	s.mu.Lock()
	s.challenges[challenge] = true
	s.mu.Unlock()
	ok(c, http.StatusOK, backend.AuthenticationOptions{
		Challenge:        challenge,
		RPID:             "localhost",
		Timeout:          60000,
		UserVerification: "required",
	})
}

// verifyAuth accepts an assertion whose client data echoes an outstanding
// challenge. Each challenge verifies once.
func (s *Server) verifyAuth(c *gin.Context) {
	var a backend.Assertion
	if err := c.ShouldBindJSON(&a); err != nil {
		fail(c, http.StatusBadRequest, "Invalid assertion")
		return
	}
	raw, err := decodeAny(a.Response.ClientDataJSON)
	if err != nil {
		ok(c, http.StatusOK, backend.Verification{Verified: false})
		return
	}
	var clientData struct {
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(raw, &clientData); err != nil {
		ok(c, http.StatusOK, backend.Verification{Verified: false})
		return
	}
	s.mu.Lock()
	verified := s.challenges[clientData.Challenge] && a.Response.Signature != ""
	delete(s.challenges, clientData.Challenge)
	s.mu.Unlock()
	ok(c, http.StatusOK, backend.Verification{Verified: verified})
}

func decodeAny(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("not base64")
}

func (s *Server) employee(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.accounts[strings.TrimSpace(c.Param("emp"))]
	if !found {
		fail(c, http.StatusNotFound, "Employee not found")
		return
	}
	ok(c, http.StatusOK, backend.Employee{
		EmployeeNumber: acc.user.EmployeeNumber,
		Name:           acc.user.Name,
		MobileNumber:   acc.user.MobileNumber,
		Role:           acc.user.Role,
	})
}

func (s *Server) vehicleTypes(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var types []string
	for _, v := range s.vehicles {
		if !seen[v.VehicleType] {
			seen[v.VehicleType] = true
			types = append(types, v.VehicleType)
		}
	}
	sort.Strings(types)
	ok(c, http.StatusOK, types)
}

func (s *Server) vehiclesByType(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []backend.Vehicle{}
	for _, v := range s.vehicles {
		if v.VehicleType == c.Param("type") {
			out = append(out, v)
		}
	}
	ok(c, http.StatusOK, out)
}

func (s *Server) vehicleByPlate(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vehicles {
		if strings.EqualFold(v.PlateNumber, c.Param("plate")) {
			ok(c, http.StatusOK, v)
			return
		}
	}
	fail(c, http.StatusNotFound, "Vehicle not found")
}

func (s *Server) list(c *gin.Context, items any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, http.StatusOK, items)
}

// page serves the newest items first. The slice is read under the lock.
func page[T any](c *gin.Context, mu *sync.Mutex, items *[]T) {
	mu.Lock()
	all := make([]T, len(*items))
	for i, it := range *items {
		all[len(*items)-1-i] = it
	}
	mu.Unlock()

	pg := view.PageFromQuery(c.Request.URL.Query())
	start, end := pg.Bounds(len(all))
	ok(c, http.StatusOK, backend.Page[T]{Items: all[start:end], Total: len(all), Page: pg.Page, Limit: pg.Limit})
}
