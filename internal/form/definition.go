package form

import "diesel-manager-web/internal/model"

// Kind names an entry form page.
type Kind string

const (
	KindUsage     Kind = "usage"
	KindReceiving Kind = "receiving"
)

// ParseKind maps a route segment to a form kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindUsage, KindReceiving:
		return Kind(s), true
	}
	return "", false
}

// Field names shared by the entry forms.
const (
	FieldEmployeeNumber = "employee_number"
	FieldEmployeeName   = "employee_name"
	FieldMobileNumber   = "mobile_number"
	FieldSiteID         = "site_id"
	FieldTankID         = "tank_id"
	FieldPlateNumber    = "plate_number"
	FieldVehicleType    = "vehicle_type"
	FieldOperatorID     = "operator_id"
	FieldJobNumbers     = "job_numbers"
	FieldOtherLocation  = "other_location"
	FieldQuantity       = "quantity"
	FieldMeterReading   = "meter_reading"
	FieldReceiptNumber  = "receipt_number"
	FieldSupplierID     = "supplier_id"
	FieldDeliveryNote   = "delivery_note"
	FieldRemarks        = "remarks"
)

// OtherJob is the job_numbers option that requires an explicit location.
const OtherJob = "other"

var fieldLabels = map[string]string{
	FieldEmployeeNumber: "Employee number",
	FieldEmployeeName:   "Employee name",
	FieldMobileNumber:   "Mobile number",
	FieldSiteID:         "Site",
	FieldTankID:         "Tank",
	FieldPlateNumber:    "Plate number",
	FieldVehicleType:    "Vehicle type",
	FieldOperatorID:     "Operator",
	FieldJobNumbers:     "Job number",
	FieldOtherLocation:  "Other location",
	FieldQuantity:       "Quantity",
	FieldMeterReading:   "Meter reading",
	FieldReceiptNumber:  "Receipt number",
	FieldSupplierID:     "Supplier",
	FieldDeliveryNote:   "Delivery note",
	FieldRemarks:        "Remarks",
}

// Label returns the display label of a field.
func Label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

// Definition is the static shape of one form variant.
type Definition struct {
	Kind    Kind
	Variant string
	// Fields are single-valued inputs, MultiFields multi-selects.
	Fields      []string
	MultiFields []string
	Required    []string
	// Numeric fields must parse to a number greater than zero.
	Numeric []string
	// MobileRule enforces the 11 character mobile number.
	MobileRule bool
	// RequiresCapture keeps submit disabled until a signature capture succeeds.
	RequiresCapture bool
	// ReadingField feeds the reading history.
	ReadingField   string
	SuccessMessage string
	FailureMessage string
}

func (d Definition) hasField(name string) bool {
	for _, f := range d.Fields {
		if f == name {
			return true
		}
	}
	return false
}

func (d Definition) hasMulti(name string) bool {
	for _, f := range d.MultiFields {
		if f == name {
			return true
		}
	}
	return false
}

var usageFields = []string{
	FieldEmployeeNumber, FieldEmployeeName, FieldMobileNumber, FieldSiteID, FieldTankID,
	FieldPlateNumber, FieldVehicleType, FieldOperatorID, FieldOtherLocation,
	FieldQuantity, FieldMeterReading, FieldRemarks,
}

var (
	// UsageDriver is the consumption form as filled by a driver.
	UsageDriver = Definition{
		Kind:        KindUsage,
		Variant:     "driver",
		Fields:      usageFields,
		MultiFields: []string{FieldJobNumbers},
		Required: []string{
			FieldEmployeeNumber, FieldEmployeeName, FieldMobileNumber, FieldTankID,
			FieldPlateNumber, FieldVehicleType, FieldJobNumbers, FieldQuantity, FieldMeterReading,
		},
		Numeric:         []string{FieldQuantity, FieldMeterReading},
		MobileRule:      true,
		RequiresCapture: true,
		ReadingField:    FieldMeterReading,
		SuccessMessage:  "Diesel usage recorded",
		FailureMessage:  "Failed to record diesel usage",
	}

	// UsageSiteIncharge is the consumption form for a site incharge, whose own
	// identity and site come from the profile.
	UsageSiteIncharge = Definition{
		Kind:        KindUsage,
		Variant:     "site-incharge",
		Fields:      usageFields,
		MultiFields: []string{FieldJobNumbers},
		Required: []string{
			FieldEmployeeNumber, FieldEmployeeName, FieldMobileNumber, FieldSiteID, FieldTankID,
			FieldPlateNumber, FieldVehicleType, FieldJobNumbers, FieldQuantity, FieldMeterReading,
		},
		Numeric:         []string{FieldQuantity, FieldMeterReading},
		MobileRule:      true,
		RequiresCapture: true,
		ReadingField:    FieldMeterReading,
		SuccessMessage:  "Diesel usage recorded",
		FailureMessage:  "Failed to record diesel usage",
	}

	// UsageGeneric serves managers, admins and operators.
	UsageGeneric = Definition{
		Kind:        KindUsage,
		Variant:     "generic",
		Fields:      usageFields,
		MultiFields: []string{FieldJobNumbers},
		Required: []string{
			FieldEmployeeNumber, FieldTankID, FieldPlateNumber, FieldVehicleType,
			FieldJobNumbers, FieldQuantity, FieldMeterReading,
		},
		Numeric:        []string{FieldQuantity, FieldMeterReading},
		ReadingField:   FieldMeterReading,
		SuccessMessage: "Diesel usage recorded",
		FailureMessage: "Failed to record diesel usage",
	}

	// Receiving records a delivery into a tank.
	Receiving = Definition{
		Kind:    KindReceiving,
		Variant: "receiving",
		Fields: []string{
			FieldReceiptNumber, FieldSupplierID, FieldTankID, FieldQuantity,
			FieldEmployeeNumber, FieldEmployeeName, FieldMobileNumber, FieldSiteID,
			FieldDeliveryNote, FieldRemarks,
		},
		Required: []string{
			FieldReceiptNumber, FieldSupplierID, FieldTankID, FieldQuantity,
			FieldEmployeeNumber, FieldEmployeeName,
		},
		Numeric:        []string{FieldQuantity},
		SuccessMessage: "Diesel receiving recorded",
		FailureMessage: "Failed to record diesel receiving",
	}
)

// DefinitionFor picks the variant of kind for a role.
func DefinitionFor(kind Kind, role model.Role) Definition {
	if kind == KindReceiving {
		return Receiving
	}
	switch role {
	case model.RoleDriver:
		return UsageDriver
	case model.RoleSiteIncharge:
		return UsageSiteIncharge
	default:
		return UsageGeneric
	}
}
