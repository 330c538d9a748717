package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/model"
)

// fakeBackend records calls; unset Func fields return zero values.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string][]string
	subs  []backend.Submission

	EmployeeFunc          func(ctx context.Context, n string) (backend.Employee, error)
	VehicleByPlateFunc    func(ctx context.Context, plate string) (backend.Vehicle, error)
	VehiclesByTypeFunc    func(ctx context.Context, t string) ([]backend.Vehicle, error)
	CreateConsumptionFunc func(ctx context.Context, sub backend.Submission) (backend.Consumption, error)
	CreateReceivingFunc   func(ctx context.Context, sub backend.Submission) (backend.Receiving, error)
	TanksFunc             func(ctx context.Context) ([]backend.Tank, error)
}

func (f *fakeBackend) record(name, arg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string][]string)
	}
	f.calls[name] = append(f.calls[name], arg)
}

func (f *fakeBackend) Calls(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls[name]...)
}

func (f *fakeBackend) Employee(ctx context.Context, n string) (backend.Employee, error) {
	f.record("Employee", n)
	if f.EmployeeFunc != nil {
		return f.EmployeeFunc(ctx, n)
	}
	return backend.Employee{}, nil
}

func (f *fakeBackend) VehicleByPlate(ctx context.Context, plate string) (backend.Vehicle, error) {
	f.record("VehicleByPlate", plate)
	if f.VehicleByPlateFunc != nil {
		return f.VehicleByPlateFunc(ctx, plate)
	}
	return backend.Vehicle{}, nil
}

func (f *fakeBackend) VehicleTypes(context.Context) ([]string, error) {
	f.record("VehicleTypes", "")
	return []string{"Pickup", "Excavator"}, nil
}

func (f *fakeBackend) VehiclesByType(ctx context.Context, t string) ([]backend.Vehicle, error) {
	f.record("VehiclesByType", t)
	if f.VehiclesByTypeFunc != nil {
		return f.VehiclesByTypeFunc(ctx, t)
	}
	return nil, nil
}

func (f *fakeBackend) ActiveJobs(context.Context) ([]backend.Job, error) {
	f.record("ActiveJobs", "")
	return []backend.Job{{ID: "1", JobNumber: "J1"}}, nil
}

func (f *fakeBackend) Operators(context.Context) ([]backend.Operator, error) {
	f.record("Operators", "")
	return nil, errors.New("operators unavailable")
}

func (f *fakeBackend) Tanks(ctx context.Context) ([]backend.Tank, error) {
	f.record("Tanks", "")
	if f.TanksFunc != nil {
		return f.TanksFunc(ctx)
	}
	return []backend.Tank{{ID: "t1", Name: "Main"}}, nil
}

func (f *fakeBackend) Suppliers(context.Context) ([]backend.Supplier, error) {
	f.record("Suppliers", "")
	return []backend.Supplier{{ID: "s1", Name: "QatarFuel"}}, nil
}

func (f *fakeBackend) NextReceiptNumber(context.Context) (string, error) {
	f.record("NextReceiptNumber", "")
	return "RCV-0001", nil
}

func (f *fakeBackend) CreateConsumption(ctx context.Context, sub backend.Submission) (backend.Consumption, error) {
	f.record("CreateConsumption", sub.Fields.Encode())
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	if f.CreateConsumptionFunc != nil {
		return f.CreateConsumptionFunc(ctx, sub)
	}
	return backend.Consumption{ID: "c1"}, nil
}

func (f *fakeBackend) CreateReceiving(ctx context.Context, sub backend.Submission) (backend.Receiving, error) {
	f.record("CreateReceiving", sub.Fields.Encode())
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	if f.CreateReceivingFunc != nil {
		return f.CreateReceivingFunc(ctx, sub)
	}
	return backend.Receiving{ID: "r1"}, nil
}

const testDebounce = 30 * time.Millisecond

func newTestEngine(def Definition, role model.Role, profile *model.UserProfile, b Backend) *Engine {
	return New(def, role, profile, b, Options{Debounce: testDebounce})
}

// setAll applies values in definition order, so a trigger field is always
// edited before the fields it derives.
func setAll(t *testing.T, e *Engine, values map[string]string) {
	t.Helper()
	for _, f := range e.Definition().Fields {
		if v, ok := values[f]; ok {
			require.NoError(t, e.SetField(f, v))
		}
	}
}

func fillGeneric(t *testing.T, e *Engine) {
	t.Helper()
	setAll(t, e, map[string]string{
		FieldEmployeeNumber: "E100",
		FieldTankID:         "t1",
		FieldPlateNumber:    "ABC-42",
		FieldVehicleType:    "Pickup",
		FieldQuantity:       "40",
		FieldMeterReading:   "12000",
	})
	require.NoError(t, e.SetMulti(FieldJobNumbers, []string{"J1"}))
}

func TestEngine_RapidEditsIssueSingleLookup(t *testing.T) {
	fb := &fakeBackend{
		EmployeeFunc: func(_ context.Context, n string) (backend.Employee, error) {
			return backend.Employee{Name: "Ali " + n, MobileNumber: "97455551234"}, nil
		},
	}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	for _, v := range []string{"E", "E1", "E10", "E100"} {
		require.NoError(t, e.SetField(FieldEmployeeNumber, v))
	}

	assert.Eventually(t, func() bool {
		return e.Snapshot().Values[FieldEmployeeName] == "Ali E100"
	}, time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDebounce)

	assert.Equal(t, []string{"E100"}, fb.Calls("Employee"))
	assert.Equal(t, "+974 5555 1234", e.Snapshot().Values[FieldMobileNumber])
}

func TestEngine_OutOfOrderEditsKeepLatest(t *testing.T) {
	fb := &fakeBackend{
		VehicleByPlateFunc: func(_ context.Context, plate string) (backend.Vehicle, error) {
			return backend.Vehicle{PlateNumber: plate, VehicleType: "Pickup"}, nil
		},
	}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	// The edit numbered 2 arrives before the one numbered 1.
	require.NoError(t, e.SetFieldSeq(FieldPlateNumber, "ABC12", 2))
	require.NoError(t, e.SetFieldSeq(FieldPlateNumber, "ABC1", 1))
	require.NoError(t, e.SetFieldSeq(FieldPlateNumber, "ABC0", 2))
	assert.Equal(t, "ABC12", e.Snapshot().Values[FieldPlateNumber])

	assert.Eventually(t, func() bool {
		return e.Snapshot().Values[FieldVehicleType] == "Pickup"
	}, time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, []string{"ABC12"}, fb.Calls("VehicleByPlate"))

	require.NoError(t, e.SetMultiSeq(FieldJobNumbers, []string{"J1", "J2"}, 5))
	require.NoError(t, e.SetMultiSeq(FieldJobNumbers, []string{"J1"}, 4))
	assert.Equal(t, []string{"J1", "J2"}, e.Snapshot().Multi[FieldJobNumbers])

	// Unnumbered edits always apply.
	require.NoError(t, e.SetField(FieldPlateNumber, "XYZ-9"))
	assert.Equal(t, "XYZ-9", e.Snapshot().Values[FieldPlateNumber])
}

func TestEngine_ShortTriggerValueSkipsLookup(t *testing.T) {
	fb := &fakeBackend{}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	require.NoError(t, e.SetField(FieldPlateNumber, "AB"))
	time.Sleep(4 * testDebounce)

	assert.Empty(t, fb.Calls("VehicleByPlate"))
}

func TestEngine_PlateLookupDerivesTypeAndRental(t *testing.T) {
	fb := &fakeBackend{
		VehicleByPlateFunc: func(_ context.Context, plate string) (backend.Vehicle, error) {
			return backend.Vehicle{PlateNumber: plate, VehicleType: "Excavator"}, nil
		},
	}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	require.NoError(t, e.SetField(FieldPlateNumber, "RENT-01"))
	assert.Eventually(t, func() bool {
		return e.Snapshot().Values[FieldVehicleType] == "Excavator"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, e.Snapshot().Rented)

	// editing the trigger blanks derived state immediately
	require.NoError(t, e.SetField(FieldPlateNumber, "ABC-4"))
	snap := e.Snapshot()
	assert.Empty(t, snap.Values[FieldVehicleType])
	assert.False(t, snap.Rented)

	assert.Eventually(t, func() bool {
		return e.Snapshot().Values[FieldVehicleType] == "Excavator"
	}, time.Second, 5*time.Millisecond)
	assert.False(t, e.Snapshot().Rented)
}

func TestEngine_CustomRentalPolicy(t *testing.T) {
	fb := &fakeBackend{
		VehicleByPlateFunc: func(_ context.Context, plate string) (backend.Vehicle, error) {
			return backend.Vehicle{PlateNumber: plate, VehicleType: "Pickup"}, nil
		},
	}
	e := New(UsageGeneric, model.RoleAdmin, nil, fb, Options{
		Debounce: testDebounce,
		Rental:   func(plate string) bool { return plate == "ABC-42" },
	})
	defer e.Close()

	require.NoError(t, e.SetField(FieldPlateNumber, "ABC-42"))
	assert.Eventually(t, func() bool { return e.Snapshot().Rented }, time.Second, 5*time.Millisecond)
}

func TestEngine_StaleLookupResponseIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fb := &fakeBackend{
		EmployeeFunc: func(_ context.Context, n string) (backend.Employee, error) {
			if n == "E100" {
				close(started)
				<-release
				return backend.Employee{Name: "Alice"}, nil
			}
			return backend.Employee{}, errors.New("not found")
		},
	}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	require.NoError(t, e.SetField(FieldEmployeeNumber, "E100"))
	<-started
	require.NoError(t, e.SetField(FieldEmployeeNumber, "E200"))
	close(release)

	assert.Eventually(t, func() bool { return len(fb.Calls("Employee")) == 2 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		return e.Snapshot().Values[FieldEmployeeName] == "Alice"
	}, 5*testDebounce, 5*time.Millisecond)
	assert.Empty(t, e.Snapshot().Values[FieldEmployeeName])
}

func TestEngine_ManualEditSurvivesLateLookup(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fb := &fakeBackend{
		EmployeeFunc: func(context.Context, string) (backend.Employee, error) {
			close(started)
			<-release
			return backend.Employee{Name: "From backend", MobileNumber: "97455551234"}, nil
		},
	}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	require.NoError(t, e.SetField(FieldEmployeeNumber, "E100"))
	<-started
	require.NoError(t, e.SetField(FieldEmployeeName, "Typed by hand"))
	close(release)

	assert.Eventually(t, func() bool {
		return e.Snapshot().Values[FieldMobileNumber] != ""
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Typed by hand", e.Snapshot().Values[FieldEmployeeName])
}

func TestEngine_VehicleTypeLoadsVehicles(t *testing.T) {
	fb := &fakeBackend{
		VehiclesByTypeFunc: func(_ context.Context, vt string) ([]backend.Vehicle, error) {
			return []backend.Vehicle{{PlateNumber: "P-1", VehicleType: vt}}, nil
		},
	}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	require.NoError(t, e.SetField(FieldVehicleType, "Pickup"))
	assert.Eventually(t, func() bool {
		return len(e.Snapshot().Lookups.VehiclesByType) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_SubmitWithMissingFieldsMakesNoCall(t *testing.T) {
	fb := &fakeBackend{}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	assert.Empty(t, e.Snapshot().Errors, "errors stay hidden before the first submit")

	err := e.Submit(context.Background())
	require.ErrorIs(t, err, ErrInvalid)

	snap := e.Snapshot()
	assert.True(t, snap.Submitted)
	assert.False(t, snap.Loading)
	assert.Contains(t, snap.Errors, FieldPlateNumber)
	assert.Contains(t, snap.Errors, FieldQuantity)
	assert.Empty(t, fb.Calls("CreateConsumption"))

	// errors follow edits once submitted
	require.NoError(t, e.SetField(FieldQuantity, "10"))
	assert.NotContains(t, e.Snapshot().Errors, FieldQuantity)
}

func TestEngine_SuccessfulSubmitResetsAndRecordsReading(t *testing.T) {
	fb := &fakeBackend{}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()
	require.NoError(t, e.Load(context.Background()))

	fillGeneric(t, e)
	require.NoError(t, e.Submit(context.Background()))

	snap := e.Snapshot()
	for _, f := range UsageGeneric.Fields {
		assert.Empty(t, snap.Values[f], f)
	}
	assert.Empty(t, snap.Multi[FieldJobNumbers])
	assert.False(t, snap.Submitted)
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.Banner)
	assert.Equal(t, BannerSuccess, snap.Banner.Kind)
	require.NotNil(t, snap.PreviousReading)
	assert.Equal(t, 12000.0, *snap.PreviousReading)
	assert.Len(t, fb.Calls("Tanks"), 2, "lookups reload after a successful submit")
	assert.Len(t, fb.Calls("CreateConsumption"), 1)
}

func TestEngine_FailedSubmitKeepsValues(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantBanner string
	}{
		{
			name:       "backend message",
			err:        &gateway.APIError{StatusCode: 422, Message: "Tank is empty"},
			wantBanner: "Tank is empty",
		},
		{
			name:       "transport failure falls back",
			err:        errors.New("dial tcp: connection refused"),
			wantBanner: UsageGeneric.FailureMessage,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fb := &fakeBackend{
				CreateConsumptionFunc: func(context.Context, backend.Submission) (backend.Consumption, error) {
					return backend.Consumption{}, tc.err
				},
			}
			e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
			defer e.Close()
			fillGeneric(t, e)

			err := e.Submit(context.Background())
			require.Error(t, err)

			snap := e.Snapshot()
			assert.Equal(t, "ABC-42", snap.Values[FieldPlateNumber])
			assert.Equal(t, "40", snap.Values[FieldQuantity])
			assert.Equal(t, []string{"J1"}, snap.Multi[FieldJobNumbers])
			assert.False(t, snap.Loading)
			require.NotNil(t, snap.Banner)
			assert.Equal(t, BannerError, snap.Banner.Kind)
			assert.Equal(t, tc.wantBanner, snap.Banner.Text)
			assert.Nil(t, snap.PreviousReading)
		})
	}
}

func TestEngine_SecondSubmitWhileLoadingIsRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fb := &fakeBackend{
		CreateConsumptionFunc: func(context.Context, backend.Submission) (backend.Consumption, error) {
			close(entered)
			<-release
			return backend.Consumption{}, nil
		},
	}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()
	fillGeneric(t, e)

	done := make(chan error, 1)
	go func() { done <- e.Submit(context.Background()) }()
	<-entered

	assert.True(t, e.Snapshot().Loading)
	assert.False(t, e.CanSubmit())
	assert.ErrorIs(t, e.Submit(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, e.Snapshot().Loading)
	assert.Len(t, fb.Calls("CreateConsumption"), 1)
}

func TestEngine_SiteInchargeAutofill(t *testing.T) {
	profile := &model.UserProfile{
		EmployeeNumber: "SI-7",
		Name:           "Sara",
		Role:           model.RoleSiteIncharge,
		MobileNumber:   "97466667777",
		SiteID:         "site-3",
		Tanks:          []model.TankRef{{ID: "t9", Name: "Site tank"}},
	}
	fb := &fakeBackend{}
	e := newTestEngine(UsageSiteIncharge, model.RoleSiteIncharge, profile, fb)
	defer e.Close()

	snap := e.Snapshot()
	assert.Equal(t, "SI-7", snap.Values[FieldEmployeeNumber])
	assert.Equal(t, "Sara", snap.Values[FieldEmployeeName])
	assert.Equal(t, "+974 6666 7777", snap.Values[FieldMobileNumber])
	assert.Equal(t, "site-3", snap.Values[FieldSiteID])
	assert.Equal(t, "t9", snap.Values[FieldTankID])
	for _, f := range []string{FieldEmployeeNumber, FieldEmployeeName, FieldMobileNumber, FieldSiteID, FieldTankID} {
		assert.True(t, snap.Disabled[f], f)
	}

	assert.ErrorIs(t, e.SetField(FieldEmployeeNumber, "E999"), ErrFieldDisabled)
	time.Sleep(3 * testDebounce)
	assert.Empty(t, fb.Calls("Employee"), "employee lookup is bypassed")

	// autofill is re-applied by reset
	e.Reset()
	assert.Equal(t, "SI-7", e.Snapshot().Values[FieldEmployeeNumber])
}

func TestEngine_OtherRolesStartEditableAndEmpty(t *testing.T) {
	for _, role := range []model.Role{model.RoleAdmin, model.RoleDriver, model.RoleDieselManager, model.RoleOperator} {
		t.Run(string(role), func(t *testing.T) {
			e := newTestEngine(DefinitionFor(KindUsage, role), role, &model.UserProfile{EmployeeNumber: "X1", Role: role}, &fakeBackend{})
			defer e.Close()
			snap := e.Snapshot()
			assert.Empty(t, snap.Values[FieldEmployeeNumber])
			assert.False(t, snap.Disabled[FieldEmployeeNumber])
		})
	}
}

func TestEngine_CaptureGatesSubmit(t *testing.T) {
	fb := &fakeBackend{}
	e := newTestEngine(UsageDriver, model.RoleDriver, nil, fb)
	defer e.Close()

	assert.False(t, e.CanSubmit())

	values, multi := validDriverValues()
	setAll(t, e, values)
	require.NoError(t, e.SetMulti(FieldJobNumbers, multi[FieldJobNumbers]))

	assert.ErrorIs(t, e.Submit(context.Background()), ErrCaptureRequired)
	assert.Empty(t, fb.Calls("CreateConsumption"))

	e.CaptureFailed("Fingerprint not recognised")
	snap := e.Snapshot()
	assert.False(t, snap.CanSubmit)
	assert.Equal(t, "Fingerprint not recognised", snap.CaptureMessage)

	e.CaptureSucceeded("sig-token")
	assert.True(t, e.CanSubmit())
	assert.Empty(t, e.Snapshot().CaptureMessage)

	require.NoError(t, e.Submit(context.Background()))
	require.Len(t, fb.subs, 1)
	assert.Equal(t, "sig-token", fb.subs[0].Fields.Get("signature_token"))
	assert.False(t, e.CanSubmit(), "a new record needs a new signature")
}

func TestEngine_ComposesConditionalPayload(t *testing.T) {
	fb := &fakeBackend{}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()
	fillGeneric(t, e)
	require.NoError(t, e.SetField(FieldOtherLocation, "North yard"))
	e.AttachPhoto(&backend.Photo{Name: "meter.jpg", ContentType: "image/jpeg", Data: []byte{1}})

	require.NoError(t, e.Submit(context.Background()))
	require.Len(t, fb.subs, 1)
	sub := fb.subs[0]
	assert.Empty(t, sub.Fields.Get(FieldOtherLocation), "location only sent for the other job")
	assert.Equal(t, "false", sub.Fields.Get("is_rented"))
	require.NotNil(t, sub.Photo)
	assert.Equal(t, "meter.jpg", sub.Photo.Name)

	fillGeneric(t, e)
	require.NoError(t, e.SetMulti(FieldJobNumbers, []string{"J1", OtherJob}))
	require.NoError(t, e.SetField(FieldOtherLocation, "North yard"))
	require.NoError(t, e.Submit(context.Background()))
	require.Len(t, fb.subs, 2)
	assert.Equal(t, "North yard", fb.subs[1].Fields.Get(FieldOtherLocation))
	assert.Equal(t, []string{"J1", OtherJob}, fb.subs[1].Fields[FieldJobNumbers])
	assert.Nil(t, fb.subs[1].Photo, "photo is cleared by the success reset")
}

func TestEngine_ReceivingPrefillsReceiptNumber(t *testing.T) {
	fb := &fakeBackend{}
	e := newTestEngine(Receiving, model.RoleDieselManager, nil, fb)
	defer e.Close()

	require.NoError(t, e.Load(context.Background()))
	snap := e.Snapshot()
	assert.Equal(t, "RCV-0001", snap.Values[FieldReceiptNumber])
	assert.True(t, snap.Disabled[FieldReceiptNumber])
	assert.Len(t, snap.Lookups.Suppliers, 1)
	assert.Empty(t, fb.Calls("VehicleTypes"))
}

func TestEngine_LoadToleratesFailingLists(t *testing.T) {
	fb := &fakeBackend{}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	require.NoError(t, e.Load(context.Background()))
	snap := e.Snapshot()
	assert.Empty(t, snap.Lookups.Operators)
	assert.Len(t, snap.Lookups.Jobs, 1)
	assert.Len(t, snap.Lookups.Tanks, 1)
}

func TestEngine_LoadReportsExpiredSession(t *testing.T) {
	fb := &fakeBackend{
		TanksFunc: func(context.Context) ([]backend.Tank, error) {
			return nil, gateway.ErrSessionExpired
		},
	}
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, fb)
	defer e.Close()

	assert.ErrorIs(t, e.Load(context.Background()), gateway.ErrSessionExpired)
}

func TestEngine_BlurAppendsReadingAndResetClears(t *testing.T) {
	e := newTestEngine(UsageGeneric, model.RoleAdmin, nil, &fakeBackend{})
	defer e.Close()

	require.NoError(t, e.SetField(FieldMeterReading, "5100"))
	e.Blur(FieldMeterReading)
	require.NoError(t, e.SetField(FieldMeterReading, "abc"))
	e.Blur(FieldMeterReading)
	e.Blur(FieldQuantity)

	snap := e.Snapshot()
	assert.Equal(t, []float64{5100}, snap.History)

	e.Reset()
	assert.Empty(t, e.Snapshot().History)
	assert.Nil(t, e.Snapshot().PreviousReading)
}

func TestEngine_RejectsUnknownFieldsAndClosedEngine(t *testing.T) {
	e := newTestEngine(Receiving, model.RoleAdmin, nil, &fakeBackend{})
	assert.ErrorIs(t, e.SetField(FieldPlateNumber, "x"), ErrUnknownField)
	assert.ErrorIs(t, e.SetMulti(FieldJobNumbers, []string{"J1"}), ErrUnknownField)

	e.Close()
	assert.ErrorIs(t, e.SetField(FieldQuantity, "1"), ErrClosed)
	assert.ErrorIs(t, e.Submit(context.Background()), ErrClosed)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(time.Minute)
	created := 0
	build := func() *Engine {
		created++
		return newTestEngine(UsageGeneric, model.RoleAdmin, nil, &fakeBackend{})
	}

	e1, isNew := r.GetOrCreate("sid-1", KindUsage, build)
	assert.True(t, isNew)
	e2, isNew := r.GetOrCreate("sid-1", KindUsage, build)
	assert.False(t, isNew)
	assert.Same(t, e1, e2)
	_, _ = r.GetOrCreate("sid-1", KindReceiving, build)
	_, _ = r.GetOrCreate("sid-2", KindUsage, build)
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, r.Len())

	r.Drop("sid-1")
	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("sid-1", KindUsage)
	assert.False(t, ok)
	assert.ErrorIs(t, e1.SetField(FieldQuantity, "1"), ErrClosed, "dropped engines are closed")

	e3, _ := r.Get("sid-2", KindUsage)
	r.Close()
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, e3.SetField(FieldQuantity, "1"), ErrClosed)
}
