// Package form drives the fuel usage and receiving entry forms: field state,
// debounced dependent lookups, role-based autofill, validation and the
// submission lifecycle.
package form

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/metrics"
	"diesel-manager-web/internal/model"
	"diesel-manager-web/internal/parse"
)

var (
	ErrBusy            = errors.New("a submission is already in progress")
	ErrInvalid         = errors.New("form has validation errors")
	ErrCaptureRequired = errors.New("signature capture required before submit")
	ErrFieldDisabled   = errors.New("field is read-only")
	ErrUnknownField    = errors.New("unknown field")
	ErrClosed          = errors.New("form engine closed")
)

// Backend is what the engine needs from the REST backend, bound to the
// current session.
type Backend interface {
	Employee(ctx context.Context, employeeNumber string) (backend.Employee, error)
	VehicleByPlate(ctx context.Context, plate string) (backend.Vehicle, error)
	VehicleTypes(ctx context.Context) ([]string, error)
	VehiclesByType(ctx context.Context, vehicleType string) ([]backend.Vehicle, error)
	ActiveJobs(ctx context.Context) ([]backend.Job, error)
	Operators(ctx context.Context) ([]backend.Operator, error)
	Tanks(ctx context.Context) ([]backend.Tank, error)
	Suppliers(ctx context.Context) ([]backend.Supplier, error)
	NextReceiptNumber(ctx context.Context) (string, error)
	CreateConsumption(ctx context.Context, sub backend.Submission) (backend.Consumption, error)
	CreateReceiving(ctx context.Context, sub backend.Submission) (backend.Receiving, error)
}

// Options tunes an engine. Zero values take the defaults.
type Options struct {
	Debounce        time.Duration
	MinLookupLength int
	LookupTimeout   time.Duration
	Rental          RentalPolicy
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 800 * time.Millisecond
	}
	if o.MinLookupLength <= 0 {
		o.MinLookupLength = 3
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = 10 * time.Second
	}
	if o.Rental == nil {
		o.Rental = DefaultRentalPolicy
	}
	return o
}

// Lookups holds the option lists one engine fetched for its dropdowns.
type Lookups struct {
	VehicleTypes   []string           `json:"vehicle_types"`
	Jobs           []backend.Job      `json:"jobs"`
	Operators      []backend.Operator `json:"operators"`
	Suppliers      []backend.Supplier `json:"suppliers"`
	Tanks          []backend.Tank     `json:"tanks"`
	VehiclesByType []backend.Vehicle  `json:"vehicles_by_type"`
	ReceiptNumber  string             `json:"receipt_number"`
}

// BannerKind distinguishes success from error banners.
type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// Banner is the page-level message shown above the form.
type Banner struct {
	Kind BannerKind `json:"kind"`
	Text string     `json:"text"`
}

// trigger describes a field whose edits start a dependent lookup.
type trigger struct {
	field    string
	derived  []string
	debounce bool
	minLen   func(o Options) int
}

var triggers = map[string]trigger{
	FieldEmployeeNumber: {
		field:    FieldEmployeeNumber,
		derived:  []string{FieldEmployeeName, FieldMobileNumber},
		debounce: true,
		minLen:   func(o Options) int { return o.MinLookupLength },
	},
	FieldPlateNumber: {
		field:    FieldPlateNumber,
		derived:  []string{FieldVehicleType},
		debounce: true,
		minLen:   func(o Options) int { return o.MinLookupLength },
	},
	FieldVehicleType: {
		field:  FieldVehicleType,
		minLen: func(Options) int { return 1 },
	},
}

// Engine owns the state of one form instance. All methods are safe for
// concurrent use.
type Engine struct {
	mu      sync.Mutex
	def     Definition
	role    model.Role
	profile *model.UserProfile
	backend Backend
	opts    Options

	values    map[string]string
	multi     map[string][]string
	disabled  map[string]bool
	errors    map[string]string
	submitted bool
	loading   bool
	banner    *Banner
	rented    bool
	photo     *backend.Photo

	captured       bool
	captureToken   string
	captureMessage string

	lookups Lookups
	history ReadingHistory

	// gen is bumped on every edit of a trigger field; lookup responses
	// carrying an older generation are dropped.
	gen map[string]uint64
	// editSeq orders edits; editedAt records the last manual edit per field
	// so a lookup never overwrites a value typed after its trigger.
	editSeq  uint64
	editedAt map[string]uint64

	// clientSeq is the highest client-numbered edit applied per field.
	// Requests from one browser may arrive out of order.
	clientSeq map[string]uint64

	timers *debouncer
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// New creates an engine for def. profile may be nil.
func New(def Definition, role model.Role, profile *model.UserProfile, b Backend, opts Options) *Engine {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		def:       def,
		role:      role,
		profile:   profile,
		backend:   b,
		opts:      opts,
		gen:       make(map[string]uint64),
		editedAt:  make(map[string]uint64),
		clientSeq: make(map[string]uint64),
		timers:    newDebouncer(opts.Debounce),
		ctx:       ctx,
		cancel:    cancel,
	}
	e.resetLocked()
	return e
}

// Definition returns the variant the engine was built for.
func (e *Engine) Definition() Definition { return e.def }

// resetLocked restores initial values, re-applying role autofill. Reading
// history, lookups and the loading flag are left alone.
func (e *Engine) resetLocked() {
	e.values = make(map[string]string, len(e.def.Fields))
	for _, f := range e.def.Fields {
		e.values[f] = ""
	}
	e.multi = make(map[string][]string, len(e.def.MultiFields))
	for _, f := range e.def.MultiFields {
		e.multi[f] = nil
	}
	e.disabled = make(map[string]bool)
	e.errors = make(map[string]string)
	e.submitted = false
	e.rented = false
	e.photo = nil
	e.captured = false
	e.captureToken = ""
	e.captureMessage = ""
	e.lookups.VehiclesByType = nil

	if e.lookups.ReceiptNumber != "" && e.def.hasField(FieldReceiptNumber) {
		e.values[FieldReceiptNumber] = e.lookups.ReceiptNumber
	}
	if e.def.hasField(FieldReceiptNumber) {
		e.disabled[FieldReceiptNumber] = true
	}
	e.applyRoleAutofillLocked()
}

// applyRoleAutofillLocked prefills and locks the identity fields of a site
// incharge from the profile.
func (e *Engine) applyRoleAutofillLocked() {
	if e.role != model.RoleSiteIncharge || e.profile == nil {
		return
	}
	p := e.profile
	fill := map[string]string{
		FieldEmployeeNumber: p.EmployeeNumber,
		FieldEmployeeName:   p.Name,
		FieldMobileNumber:   parse.FormatMobile(p.MobileNumber),
		FieldSiteID:         p.SiteID,
	}
	if tank, ok := p.PrimaryTank(); ok {
		fill[FieldTankID] = tank.ID
	} else {
		fill[FieldTankID] = ""
	}
	for f, v := range fill {
		if !e.def.hasField(f) {
			continue
		}
		e.values[f] = v
		e.disabled[f] = true
	}
}

// Load fetches the option lists for the form. A failing list is logged and
// left empty; Load itself only fails when the session has expired.
func (e *Engine) Load(ctx context.Context) error {
	var (
		next    Lookups
		expired error
	)
	logger := log.WithField("form", e.def.Kind)
	ok := func(what string, err error) bool {
		if err == nil {
			return true
		}
		if errors.Is(err, gateway.ErrSessionExpired) {
			expired = err
		}
		logger.WithError(err).Warnf("failed to load %s", what)
		return false
	}

	switch e.def.Kind {
	case KindUsage:
		if v, err := e.backend.VehicleTypes(ctx); ok("vehicle types", err) {
			next.VehicleTypes = v
		}
		if v, err := e.backend.ActiveJobs(ctx); ok("active jobs", err) {
			next.Jobs = v
		}
		if v, err := e.backend.Operators(ctx); ok("operators", err) {
			next.Operators = v
		}
	case KindReceiving:
		if v, err := e.backend.Suppliers(ctx); ok("suppliers", err) {
			next.Suppliers = v
		}
		if v, err := e.backend.NextReceiptNumber(ctx); ok("next receipt number", err) {
			next.ReceiptNumber = v
		}
	}
	if v, err := e.backend.Tanks(ctx); ok("tanks", err) {
		next.Tanks = v
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	next.VehiclesByType = e.lookups.VehiclesByType
	e.lookups = next
	if next.ReceiptNumber != "" && e.def.hasField(FieldReceiptNumber) {
		e.values[FieldReceiptNumber] = next.ReceiptNumber
	}
	return expired
}

// SetField updates a single-valued field. Editing a trigger field clears its
// derived fields and (re)arms the dependent lookup.
func (e *Engine) SetField(name, value string) error {
	return e.SetFieldSeq(name, value, 0)
}

// SetFieldSeq is SetField for a client that numbers its edits per field. An
// edit numbered at or below the last applied one for the same field is
// dropped without error; seq 0 is always applied.
func (e *Engine) SetFieldSeq(name, value string, seq uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.def.hasField(name) {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if e.disabled[name] {
		return fmt.Errorf("%w: %s", ErrFieldDisabled, name)
	}
	if e.staleLocked(name, seq) {
		return nil
	}

	e.values[name] = value
	e.editSeq++
	e.editedAt[name] = e.editSeq

	if t, ok := triggers[name]; ok {
		for _, d := range t.derived {
			if e.def.hasField(d) && !e.disabled[d] {
				e.values[d] = ""
			}
		}
		switch name {
		case FieldPlateNumber:
			e.rented = false
		case FieldVehicleType:
			e.lookups.VehiclesByType = nil
		}
		e.armLocked(t)
	}
	e.revalidateLocked()
	return nil
}

// SetMulti replaces the selection of a multi-select field.
func (e *Engine) SetMulti(name string, values []string) error {
	return e.SetMultiSeq(name, values, 0)
}

// SetMultiSeq is SetMulti with the ordering rule of SetFieldSeq.
func (e *Engine) SetMultiSeq(name string, values []string, seq uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.def.hasMulti(name) {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if e.staleLocked(name, seq) {
		return nil
	}
	e.multi[name] = append([]string(nil), nonEmpty(values)...)
	e.editSeq++
	e.editedAt[name] = e.editSeq
	e.revalidateLocked()
	return nil
}

// staleLocked reports whether a numbered edit has been overtaken, recording
// it otherwise.
func (e *Engine) staleLocked(name string, seq uint64) bool {
	if seq == 0 {
		return false
	}
	if seq <= e.clientSeq[name] {
		return true
	}
	e.clientSeq[name] = seq
	return false
}

// Blur records a finished edit. A valid meter reading is appended to the
// reading history.
func (e *Engine) Blur(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name != "" && name == e.def.ReadingField {
		if n, err := parse.Number(e.values[name]); err == nil && n > 0 {
			e.history.Append(n)
		}
	}
}

func (e *Engine) revalidateLocked() {
	if e.submitted {
		e.errors = Validate(e.def, e.values, e.multi).Errors
	}
}

// armLocked starts the lookup for t, replacing any pending one.
func (e *Engine) armLocked(t trigger) {
	e.gen[t.field]++
	g := e.gen[t.field]
	fire := func() { e.resolve(t, g) }
	if t.debounce {
		e.timers.schedule(t.field, fire)
		return
	}
	go fire()
}

// resolve runs the lookup for t if generation g is still current and merges
// the response unless a newer edit superseded it. Lookup errors are
// swallowed: the derived fields simply stay empty for manual entry.
func (e *Engine) resolve(t trigger, g uint64) {
	e.mu.Lock()
	if e.closed || e.gen[t.field] != g {
		e.mu.Unlock()
		return
	}
	delete(e.timers.timers, t.field)
	value := strings.TrimSpace(e.values[t.field])
	if utf8.RuneCountInString(value) < t.minLen(e.opts) {
		e.mu.Unlock()
		return
	}
	since := e.editedAt[t.field]
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(e.ctx, e.opts.LookupTimeout)
	defer cancel()

	logger := log.WithFields(log.Fields{"form": e.def.Kind, "field": t.field})
	apply, err := e.lookup(ctx, t.field, value)
	if err != nil {
		logger.WithError(err).Debug("dependent lookup failed")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.gen[t.field] != g {
		logger.Debug("discarding stale lookup response")
		return
	}
	apply(since)
}

// lookup performs the network call for field and returns the merge step to
// run under the lock.
func (e *Engine) lookup(ctx context.Context, field, value string) (func(since uint64), error) {
	switch field {
	case FieldEmployeeNumber:
		emp, err := e.backend.Employee(ctx, value)
		if err != nil {
			return nil, err
		}
		return func(since uint64) {
			e.deriveLocked(FieldEmployeeName, emp.Name, since)
			e.deriveLocked(FieldMobileNumber, parse.FormatMobile(emp.MobileNumber), since)
			e.revalidateLocked()
		}, nil
	case FieldPlateNumber:
		v, err := e.backend.VehicleByPlate(ctx, value)
		if err != nil {
			return nil, err
		}
		plate := v.PlateNumber
		if plate == "" {
			plate = value
		}
		rented := e.opts.Rental(plate)
		return func(since uint64) {
			e.deriveLocked(FieldVehicleType, v.VehicleType, since)
			e.rented = rented
			e.revalidateLocked()
		}, nil
	case FieldVehicleType:
		vs, err := e.backend.VehiclesByType(ctx, value)
		if err != nil {
			return nil, err
		}
		return func(uint64) { e.lookups.VehiclesByType = vs }, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// deriveLocked writes a looked-up value unless the user edited the field
// after the trigger edit that started the lookup.
func (e *Engine) deriveLocked(field, value string, since uint64) {
	if !e.def.hasField(field) || e.disabled[field] {
		return
	}
	if e.editedAt[field] > since {
		return
	}
	e.values[field] = value
}

// AttachPhoto sets the photo sent with the next submission.
func (e *Engine) AttachPhoto(p *backend.Photo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.photo = p
}

// CaptureSucceeded marks the signature capture as done.
func (e *Engine) CaptureSucceeded(token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.captured = token != ""
	e.captureToken = token
	e.captureMessage = ""
}

// CaptureFailed resets the capture state and keeps msg for display. Further
// attempts are allowed.
func (e *Engine) CaptureFailed(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.captured = false
	e.captureToken = ""
	e.captureMessage = msg
}

// CanSubmit reports whether the submit control is enabled.
func (e *Engine) CanSubmit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canSubmitLocked()
}

func (e *Engine) canSubmitLocked() bool {
	return !e.loading && (!e.def.RequiresCapture || e.captured)
}

// Submit validates and posts the form. Validation failures return ErrInvalid
// without any network call. On success the form is reset; on failure the
// values are kept and the banner carries the backend message.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.loading {
		e.mu.Unlock()
		return ErrBusy
	}
	e.submitted = true
	res := Validate(e.def, e.values, e.multi)
	e.errors = res.Errors
	if !res.Valid {
		e.mu.Unlock()
		metrics.ObserveSubmission(string(e.def.Kind), "invalid")
		return ErrInvalid
	}
	if e.def.RequiresCapture && !e.captured {
		e.captureMessage = "Signature is required before submitting"
		e.mu.Unlock()
		return ErrCaptureRequired
	}
	e.loading = true
	e.banner = nil
	sub := e.composeLocked()
	reading := e.values[e.def.ReadingField]
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	err := e.create(ctx, sub)
	if err != nil {
		metrics.ObserveSubmission(string(e.def.Kind), "failed")
		log.WithError(err).WithField("form", e.def.Kind).Warn("submission failed")
		e.mu.Lock()
		e.banner = &Banner{Kind: BannerError, Text: gateway.UserMessage(err, e.def.FailureMessage)}
		e.mu.Unlock()
		return err
	}
	metrics.ObserveSubmission(string(e.def.Kind), "success")

	e.mu.Lock()
	e.timers.stopAll()
	for f := range triggers {
		e.gen[f]++
	}
	e.resetLocked()
	if n, err := parse.Number(reading); err == nil && n > 0 {
		e.history.Append(n)
	}
	e.banner = &Banner{Kind: BannerSuccess, Text: e.def.SuccessMessage}
	e.mu.Unlock()

	if err := e.Load(ctx); err != nil {
		log.WithError(err).Warn("failed to reload lookups after submit")
	}
	return nil
}

func (e *Engine) create(ctx context.Context, sub backend.Submission) error {
	var err error
	switch e.def.Kind {
	case KindUsage:
		_, err = e.backend.CreateConsumption(ctx, sub)
	case KindReceiving:
		_, err = e.backend.CreateReceiving(ctx, sub)
	default:
		err = fmt.Errorf("unsupported form kind %q", e.def.Kind)
	}
	return err
}

// composeLocked builds the create payload from the current state.
func (e *Engine) composeLocked() backend.Submission {
	fields := url.Values{}
	for _, f := range e.def.Fields {
		if f == FieldOtherLocation {
			continue
		}
		if v := strings.TrimSpace(e.values[f]); v != "" {
			fields.Set(f, v)
		}
	}
	for _, f := range e.def.MultiFields {
		for _, v := range e.multi[f] {
			fields.Add(f, v)
		}
	}
	if contains(e.multi[FieldJobNumbers], OtherJob) {
		fields.Set(FieldOtherLocation, strings.TrimSpace(e.values[FieldOtherLocation]))
	}
	if e.def.Kind == KindUsage {
		fields.Set("is_rented", strconv.FormatBool(e.rented))
	}
	if e.captureToken != "" {
		fields.Set("signature_token", e.captureToken)
	}
	var photo *backend.Photo
	if e.photo != nil {
		p := *e.photo
		photo = &p
	}
	return backend.Submission{Fields: fields, Photo: photo}
}

// Reset restores the initial state and cancels pending lookups. Unlike the
// reset after a successful submit, it also forgets banners and the reading
// history.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timers.stopAll()
	for f := range triggers {
		e.gen[f]++
	}
	e.resetLocked()
	e.banner = nil
	e.history.Clear()
}

// Close stops timers and cancels in-flight lookups.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.timers.stopAll()
	e.cancel()
}

// Snapshot is a copy of the engine state for rendering.
type Snapshot struct {
	Kind            Kind                `json:"kind"`
	Variant         string              `json:"variant"`
	Values          map[string]string   `json:"values"`
	Multi           map[string][]string `json:"multi"`
	Errors          map[string]string   `json:"errors"`
	Disabled        map[string]bool     `json:"disabled"`
	Submitted       bool                `json:"submitted"`
	Loading         bool                `json:"loading"`
	Banner          *Banner             `json:"banner,omitempty"`
	Rented          bool                `json:"rented"`
	HasPhoto        bool                `json:"has_photo"`
	RequiresCapture bool                `json:"requires_capture"`
	Captured        bool                `json:"captured"`
	CaptureMessage  string              `json:"capture_message,omitempty"`
	CanSubmit       bool                `json:"can_submit"`
	PreviousReading *float64            `json:"previous_reading,omitempty"`
	History         []float64           `json:"history"`
	Lookups         Lookups             `json:"lookups"`
}

// Snapshot returns the current state. Field errors are only included once
// the form has been submitted.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Kind:            e.def.Kind,
		Variant:         e.def.Variant,
		Values:          make(map[string]string, len(e.values)),
		Multi:           make(map[string][]string, len(e.multi)),
		Errors:          map[string]string{},
		Disabled:        make(map[string]bool, len(e.disabled)),
		Submitted:       e.submitted,
		Loading:         e.loading,
		Rented:          e.rented,
		HasPhoto:        e.photo != nil,
		RequiresCapture: e.def.RequiresCapture,
		Captured:        e.captured,
		CaptureMessage:  e.captureMessage,
		CanSubmit:       e.canSubmitLocked(),
		History:         e.history.All(),
		Lookups:         e.lookups,
	}
	for k, v := range e.values {
		s.Values[k] = v
	}
	for k, v := range e.multi {
		s.Multi[k] = append([]string(nil), v...)
	}
	for k, v := range e.disabled {
		s.Disabled[k] = v
	}
	if e.submitted {
		for k, v := range e.errors {
			s.Errors[k] = v
		}
	}
	if e.banner != nil {
		b := *e.banner
		s.Banner = &b
	}
	if prev, ok := e.history.Previous(); ok {
		s.PreviousReading = &prev
	}
	return s
}
