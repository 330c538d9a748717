package backendstub

import (
	"fmt"
	"time"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/model"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "diesel123"

type account struct {
	user backend.User
	hash string
}

type seedUser struct {
	emp, name, mobile, site string
	role                    model.Role
}

var seedUsers = []seedUser{
	{emp: "A001", name: "Aisha Admin", mobile: "97455501001", role: model.RoleAdmin},
	{emp: "M001", name: "Mohammed Manager", mobile: "97455501002", role: model.RoleDieselManager},
	{emp: "S001", name: "Sara Incharge", mobile: "97455501003", site: "site-1", role: model.RoleSiteIncharge},
	{emp: "D001", name: "Dinesh Driver", mobile: "97455501004", role: model.RoleDriver},
	{emp: "O001", name: "Omar Operator", mobile: "97455501005", role: model.RoleOperator},
}

func (s *Server) seed(cost int) error {
	for i, u := range seedUsers {
		hash, err := hashPassword(SeedPassword, cost)
		if err != nil {
			return err
		}
		s.accounts[u.emp] = &account{
			user: backend.User{
				ID:             fmt.Sprintf("u%d", i+1),
				EmployeeNumber: u.emp,
				Name:           u.name,
				Role:           u.role,
				MobileNumber:   u.mobile,
				SiteID:         u.site,
			},
			hash: hash,
		}
	}
	s.nextUserID = len(seedUsers) + 1

	s.vehicles = []backend.Vehicle{
		{ID: "v1", PlateNumber: "ABC-123", VehicleType: "Pickup", Make: "Toyota", Model: "Hilux"},
		{ID: "v2", PlateNumber: "RENT-77", VehicleType: "Excavator", Make: "CAT", Model: "320"},
		{ID: "v3", PlateNumber: "R4512", VehicleType: "Loader", Make: "Volvo", Model: "L90"},
		{ID: "v4", PlateNumber: "XYZ-900", VehicleType: "Excavator", Make: "Komatsu", Model: "PC210"},
		{ID: "v5", PlateNumber: "GEN-HIRE-2", VehicleType: "Generator", Make: "Perkins", Model: "P110"},
	}
	s.jobs = []backend.Job{
		{ID: "j1", JobNumber: "JOB-100", Location: "Lusail"},
		{ID: "j2", JobNumber: "JOB-200", Location: "Al Wakra"},
	}
	s.operators = []backend.Operator{
		{ID: "op1", EmployeeNumber: "O001", Name: "Omar Operator"},
	}
	s.tanks = []backend.Tank{
		{ID: "t1", Name: "Main Yard", SiteID: "site-1", Capacity: 20000, CurrentLevel: 12000},
		{ID: "t2", Name: "North Site", SiteID: "site-2", Capacity: 10000, CurrentLevel: 4000},
	}
	s.suppliers = []backend.Supplier{
		{ID: "sp1", Name: "Woqod"},
		{ID: "sp2", Name: "Qatar Fuel Trading"},
	}
	s.record("system", "seed", "users", "", fmt.Sprintf("%d users", len(seedUsers)), time.Now().UTC())
	return nil
}
