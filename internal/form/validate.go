package form

import (
	"strings"

	"diesel-manager-web/internal/parse"
)

// Result is the outcome of Validate.
type Result struct {
	Errors map[string]string `json:"errors"`
	Valid  bool              `json:"valid"`
}

// Validate checks values against def. It has no side effects and never
// touches the network.
func Validate(def Definition, values map[string]string, multi map[string][]string) Result {
	errs := make(map[string]string)

	for _, f := range def.Required {
		if def.hasMulti(f) {
			if len(nonEmpty(multi[f])) == 0 {
				errs[f] = Label(f) + " is required"
			}
			continue
		}
		if strings.TrimSpace(values[f]) == "" {
			errs[f] = Label(f) + " is required"
		}
	}

	for _, f := range def.Numeric {
		if _, ok := errs[f]; ok {
			continue
		}
		if !parse.Positive(values[f]) {
			errs[f] = Label(f) + " must be greater than 0"
		}
	}

	if def.MobileRule {
		if _, ok := errs[FieldMobileNumber]; !ok && !parse.ValidMobile(values[FieldMobileNumber]) {
			errs[FieldMobileNumber] = "Mobile number must be 11 digits (+974 XXXX XXXX)"
		}
	}

	if def.hasMulti(FieldJobNumbers) && contains(multi[FieldJobNumbers], OtherJob) &&
		strings.TrimSpace(values[FieldOtherLocation]) == "" {
		errs[FieldOtherLocation] = Label(FieldOtherLocation) + " is required"
	}

	return Result{Errors: errs, Valid: len(errs) == 0}
}

func nonEmpty(vs []string) []string {
	out := vs[:0:0]
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(vs []string, want string) bool {
	for _, v := range vs {
		if v == want {
			return true
		}
	}
	return false
}
