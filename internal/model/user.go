package model

// TankRef identifies a diesel tank assigned to a site.
type TankRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserSummary is the user block returned by the login endpoint.
type UserSummary struct {
	ID             string `json:"id"`
	EmployeeNumber string `json:"employee_number"`
	Name           string `json:"name"`
	Role           Role   `json:"role"`
}

// UserProfile is the extended profile fetched after login.
type UserProfile struct {
	EmployeeNumber string    `json:"employee_number"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	MobileNumber   string    `json:"mobile_number"`
	SiteID         string    `json:"site_id"`
	Tanks          []TankRef `json:"tanks"`
}

// PrimaryTank returns the first tank assigned to the profile, if any.
func (p UserProfile) PrimaryTank() (TankRef, bool) {
	if len(p.Tanks) == 0 {
		return TankRef{}, false
	}
	return p.Tanks[0], true
}
