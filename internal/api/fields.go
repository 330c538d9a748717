package api

import (
	"fmt"

	"diesel-manager-web/internal/form"
	"diesel-manager-web/internal/web"
)

var fieldTypes = map[string]string{
	form.FieldTankID:       "select",
	form.FieldSupplierID:   "select",
	form.FieldOperatorID:   "select",
	form.FieldVehicleType:  "select",
	form.FieldJobNumbers:   "multi",
	form.FieldRemarks:      "textarea",
	form.FieldDeliveryNote: "textarea",
	form.FieldMobileNumber: "tel",
}

func qty(v float64) string { return fmt.Sprintf("%.2f", v) }

func has(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func options(s form.Snapshot, field string) []web.Option {
	var out []web.Option
	switch field {
	case form.FieldTankID:
		for _, t := range s.Lookups.Tanks {
			out = append(out, web.Option{Value: t.ID, Label: t.Name})
		}
	case form.FieldSupplierID:
		for _, sp := range s.Lookups.Suppliers {
			out = append(out, web.Option{Value: sp.ID, Label: sp.Name})
		}
	case form.FieldOperatorID:
		for _, o := range s.Lookups.Operators {
			out = append(out, web.Option{Value: o.ID, Label: o.Name})
		}
	case form.FieldVehicleType:
		for _, v := range s.Lookups.VehicleTypes {
			out = append(out, web.Option{Value: v, Label: v})
		}
	case form.FieldJobNumbers:
		for _, j := range s.Lookups.Jobs {
			out = append(out, web.Option{Value: j.JobNumber, Label: fmt.Sprintf("%s (%s)", j.JobNumber, j.Location)})
		}
		out = append(out, web.Option{Value: form.OtherJob, Label: "Other"})
	}
	return out
}

// formFields lays out the inputs of def in display order with the state of s.
// Selected values missing from the loaded options are kept as an option so a
// prefilled value still renders.
func formFields(def form.Definition, s form.Snapshot) []web.FormField {
	names := append(append([]string(nil), def.Fields...), def.MultiFields...)
	fields := make([]web.FormField, 0, len(names))
	for _, name := range names {
		typ, ok := fieldTypes[name]
		if !ok {
			typ = "text"
		}
		f := web.FormField{
			Name:     name,
			Label:    form.Label(name),
			Type:     typ,
			Options:  options(s, name),
			Value:    s.Values[name],
			Values:   s.Multi[name],
			Required: has(def.Required, name),
			Disabled: s.Disabled[name],
			Error:    s.Errors[name],
		}
		if typ == "select" && f.Value != "" && !hasOption(f.Options, f.Value) {
			f.Options = append(f.Options, web.Option{Value: f.Value, Label: f.Value})
		}
		switch name {
		case form.FieldPlateNumber:
			f.List = "vehicles-by-type"
		case form.FieldOtherLocation:
			f.Hidden = !has(s.Multi[form.FieldJobNumbers], form.OtherJob)
		}
		fields = append(fields, f)
	}
	return fields
}

func hasOption(opts []web.Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}
