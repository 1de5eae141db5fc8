// Package model defines the core domain types for the presale registration system.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// CountdownType selects when a pre-registration countdown becomes visible.
type CountdownType string

const (
	CountdownDefault CountdownType = "default"
	CountdownCustom  CountdownType = "custom"
)

// Event is a limited-capacity event that accepts pre-registrations during a
// bounded window and later releases tickets to registrants.
type Event struct {
	ID                    string        `json:"id" yaml:"id"`
	Name                  string        `json:"name" yaml:"name"`
	Description           string        `json:"description" yaml:"description"`
	Capacity              int           `json:"capacity" yaml:"capacity"`
	RegistrationStartTime time.Time     `json:"registrationStartTime" yaml:"registrationStartTime"`
	RegistrationEndTime   time.Time     `json:"registrationEndTime" yaml:"registrationEndTime"`
	SaleStartTime         *time.Time    `json:"saleStartTime,omitempty" yaml:"saleStartTime,omitempty"`
	SaleEndTime           *time.Time    `json:"saleEndTime,omitempty" yaml:"saleEndTime,omitempty"`
	CountdownType         CountdownType `json:"countdownType,omitempty" yaml:"countdownType,omitempty"`
	CountdownStartTime    *time.Time    `json:"countdownStartTime,omitempty" yaml:"countdownStartTime,omitempty"`
	RoundDurationMs       int64         `json:"roundDuration,omitempty" yaml:"roundDuration,omitempty"`
	RoundCapacity         int           `json:"roundCapacity,omitempty" yaml:"roundCapacity,omitempty"`
	CreatedAt             time.Time     `json:"createdAt" yaml:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt" yaml:"updatedAt"`
}

// farFuture bounds release windows that have no explicit end.
var farFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// ReleaseWindow returns the ticket release bounds. ok is false when the event
// has no sale start configured.
func (e *Event) ReleaseWindow() (start, end time.Time, ok bool) {
	if e.SaleStartTime == nil {
		return time.Time{}, time.Time{}, false
	}
	end = farFuture
	if e.SaleEndTime != nil {
		end = *e.SaleEndTime
	}
	return *e.SaleStartTime, end, true
}

// CountdownThreshold is the earliest instant at which a "starts in" countdown
// should be shown for this event.
func (e *Event) CountdownThreshold() time.Time {
	if e.CountdownType == CountdownCustom && e.CountdownStartTime != nil {
		return *e.CountdownStartTime
	}
	return e.RegistrationStartTime
}

// Identity is the (email, national ID) pair a registrant supplies for one event.
type Identity struct {
	Email    string
	IDNumber string
}

// NormalizeEmail canonicalises an email for uniqueness comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeIDNumber canonicalises a national ID number for uniqueness comparisons.
func NormalizeIDNumber(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// UserData is the form payload submitted with a registration. Keys defined
// by admin form fields that have no typed counterpart are kept in Extra and
// written back inline.
type UserData struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	IDNumber  string `json:"idNumber"`
	Phone     string `json:"phone,omitempty"`
	Birthdate string `json:"birthdate,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Address   string `json:"address,omitempty"`

	Extra map[string]any `json:"-"`
}

var userDataKeys = []string{"name", "email", "idNumber", "phone", "birthdate", "gender", "address"}

type userDataFields UserData

func (u UserData) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(userDataFields(u))
	if err != nil || len(u.Extra) == 0 {
		return typed, err
	}

	merged := make(map[string]any, len(u.Extra)+len(userDataKeys))
	for k, v := range u.Extra {
		merged[k] = v
	}
	var fields map[string]any
	if err := json.Unmarshal(typed, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (u *UserData) UnmarshalJSON(data []byte) error {
	var typed userDataFields
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var rest map[string]any
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}
	for k := range rest {
		for _, known := range userDataKeys {
			if strings.EqualFold(k, known) {
				delete(rest, k)
				break
			}
		}
	}

	*u = UserData(typed)
	u.Extra = nil
	if len(rest) > 0 {
		u.Extra = rest
	}
	return nil
}

// Identity extracts the normalised uniqueness key from the payload.
func (u UserData) Identity() Identity {
	return Identity{
		Email:    NormalizeEmail(u.Email),
		IDNumber: NormalizeIDNumber(u.IDNumber),
	}
}

// Registration is the ledger record created exactly once per (event, identity)
// and exactly once per registration code.
type Registration struct {
	EventID          string    `json:"eventId"`
	RegistrationCode string    `json:"registrationCode"`
	UserData         UserData  `json:"userData"`
	RegistrationTime time.Time `json:"registrationTime"`
}

// DuplicateReason names which identity field collided.
type DuplicateReason string

const (
	DuplicateNone     DuplicateReason = ""
	DuplicateEmail    DuplicateReason = "email"
	DuplicateIDNumber DuplicateReason = "idNumber"
)

// MarshalJSON encodes DuplicateNone as null.
func (r DuplicateReason) MarshalJSON() ([]byte, error) {
	if r == DuplicateNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const OrderCompleted OrderStatus = "completed"

// Order records one successful purchase against a registration code.
type Order struct {
	OrderNumber      string      `json:"orderNumber"`
	EventID          string      `json:"eventId"`
	RegistrationCode string      `json:"registrationCode"`
	Quantity         int         `json:"quantity"`
	PurchaseTime     time.Time   `json:"purchaseTime"`
	Status           OrderStatus `json:"status"`
}
