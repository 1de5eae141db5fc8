package model

// RegistrationFilter narrows admin registration listings.
type RegistrationFilter struct {
	EventID string
	Search  string
	Page    int
	Limit   int
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// RegistrationListItem is a registration enriched with its event name.
type RegistrationListItem struct {
	Registration
	EventName string `json:"eventName"`
}

// RegistrationPage is a paginated admin listing.
type RegistrationPage struct {
	Items      []RegistrationListItem `json:"data"`
	Pagination Pagination             `json:"pagination"`
}

// DuplicateGroup collects registrations that share an identity field across events.
type DuplicateGroup struct {
	Type          DuplicateReason        `json:"type"`
	Value         string                 `json:"value"`
	Count         int                    `json:"count"`
	Registrations []RegistrationListItem `json:"registrations"`
}

// DuplicateSummary counts duplicate groups by type.
type DuplicateSummary struct {
	TotalDuplicates    int `json:"totalDuplicates"`
	EmailDuplicates    int `json:"emailDuplicates"`
	IDNumberDuplicates int `json:"idNumberDuplicates"`
}

// DuplicateReport is the admin cross-event duplicate scan.
type DuplicateReport struct {
	Groups  []DuplicateGroup `json:"data"`
	Summary DuplicateSummary `json:"summary"`
}

// EventStats is the registration rate for one event.
type EventStats struct {
	EventID          string  `json:"eventId"`
	EventName        string  `json:"eventName"`
	Capacity         int     `json:"capacity"`
	Registrations    int     `json:"registrations"`
	RegistrationRate float64 `json:"registrationRate"`
}

// DailyCount is the number of registrations on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// StatsSummary holds global totals.
type StatsSummary struct {
	TotalRegistrations           int     `json:"totalRegistrations"`
	TotalEvents                  int     `json:"totalEvents"`
	AverageRegistrationsPerEvent float64 `json:"averageRegistrationsPerEvent"`
}

// RegistrationStats is the admin statistics view.
type RegistrationStats struct {
	Summary      StatsSummary   `json:"summary"`
	EventStats   []EventStats   `json:"eventStats"`
	DailyStats   []DailyCount   `json:"dailyStats"`
	AllDateStats map[string]int `json:"allDateStats"`
}

// ExportRow is one flattened registration for JSON/CSV export.
type ExportRow struct {
	RegistrationCode string `json:"registrationCode"`
	EventName        string `json:"eventName"`
	Name             string `json:"name"`
	IDNumber         string `json:"idNumber"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Birthdate        string `json:"birthdate"`
	Gender           string `json:"gender"`
	Address          string `json:"address"`
	RegistrationTime string `json:"registrationTime"`
}

// ExportHeader is the CSV header matching ExportRow field order.
var ExportHeader = []string{
	"registrationCode", "eventName", "name", "idNumber", "email",
	"phone", "birthdate", "gender", "address", "registrationTime",
}

// Record returns the row in ExportHeader order.
func (r ExportRow) Record() []string {
	return []string{
		r.RegistrationCode, r.EventName, r.Name, r.IDNumber, r.Email,
		r.Phone, r.Birthdate, r.Gender, r.Address, r.RegistrationTime,
	}
}
