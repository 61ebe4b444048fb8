package models

import "github.com/lib/pq"

// InstructorStatus captures instructor availability.
type InstructorStatus string

const (
	InstructorStatusActive   InstructorStatus = "active"
	InstructorStatusInactive InstructorStatus = "inactive"
	InstructorStatusPending  InstructorStatus = "pending"
)

// Instructor represents a driving instructor and their vehicle.
type Instructor struct {
	ID           string           `db:"id" json:"id"`
	CompanyID    string           `db:"company_id" json:"companyId"`
	FullName     string           `db:"full_name" json:"fullName"`
	Gender       Gender           `db:"gender" json:"gender"`
	Status       InstructorStatus `db:"status" json:"status"`
	LicenseTypes pq.StringArray   `db:"license_types" json:"licenseTypes"`
	VehiclePlate *string          `db:"vehicle_plate" json:"vehiclePlate,omitempty"`
	VehicleModel *string          `db:"vehicle_model" json:"vehicleModel,omitempty"`

	// CurrentStudents counts active assignments at roster load time.
	CurrentStudents int `db:"current_students" json:"currentStudents"`
}

// Teaches reports whether the instructor holds any of the requested license types.
func (i Instructor) Teaches(licenseTypes map[string]struct{}) bool {
	for _, lt := range i.LicenseTypes {
		if _, ok := licenseTypes[lt]; ok {
			return true
		}
	}
	return false
}
