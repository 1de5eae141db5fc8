package model

import "time"

// EventRequest is the payload for creating or updating an event.
type EventRequest struct {
	Name                  string        `json:"name"`
	Description           string        `json:"description"`
	Capacity              int           `json:"capacity"`
	RegistrationStartTime *time.Time    `json:"registrationStartTime"`
	RegistrationEndTime   *time.Time    `json:"registrationEndTime"`
	SaleStartTime         *time.Time    `json:"saleStartTime,omitempty"`
	SaleEndTime           *time.Time    `json:"saleEndTime,omitempty"`
	CountdownType         CountdownType `json:"countdownType,omitempty"`
	CountdownStartTime    *time.Time    `json:"countdownStartTime,omitempty"`
	RoundDurationMs       int64         `json:"roundDuration,omitempty"`
	RoundCapacity         int           `json:"roundCapacity,omitempty"`
}

// CheckDuplicateRequest is the payload for the pre-submission duplicate check.
type CheckDuplicateRequest struct {
	EventID  string `json:"eventId"`
	Email    string `json:"email"`
	IDNumber string `json:"idNumber,omitempty"`
}

// RegisterRequest is the payload for registering for an event.
type RegisterRequest struct {
	EventID          string   `json:"eventId"`
	RegistrationCode string   `json:"registrationCode"`
	UserData         UserData `json:"userData"`
}

// ValidateCodeRequest is the payload for redeeming-code validation.
type ValidateCodeRequest struct {
	EventID          string `json:"eventId"`
	RegistrationCode string `json:"registrationCode"`
}

// PurchaseRequest is the payload for buying tickets with a registration code.
type PurchaseRequest struct {
	EventID          string `json:"eventId"`
	RegistrationCode string `json:"registrationCode"`
	Quantity         int    `json:"quantity"`
}

// CodeOwner is the registrant display data returned for a valid code.
type CodeOwner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DuplicateCheck is the result of a non-mutating identity lookup.
type DuplicateCheck struct {
	IsDuplicate     bool            `json:"isDuplicate"`
	DuplicateReason DuplicateReason `json:"duplicateReason"`
}

// EventView decorates an event with phases computed from authoritative time.
type EventView struct {
	Event
	RegistrationPhase string `json:"registrationPhase"`
	ReleasePhase      string `json:"releasePhase,omitempty"`
}

// Response is the standard JSON envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TimeResponse is returned by the authoritative clock endpoint.
type TimeResponse struct {
	Success bool      `json:"success"`
	Time    time.Time `json:"time"`
}

// CheckDuplicateResponse flattens DuplicateCheck into the envelope.
type CheckDuplicateResponse struct {
	Success bool `json:"success"`
	DuplicateCheck
}

// RegisterResponse acknowledges a successful registration.
type RegisterResponse struct {
	Success          bool   `json:"success"`
	RegistrationCode string `json:"registrationCode"`
}

// PurchaseResponse acknowledges a successful purchase.
type PurchaseResponse struct {
	Success     bool   `json:"success"`
	OrderNumber string `json:"orderNumber"`
}

// RegistrationStatusResponse reports whether the caller registered for an event.
type RegistrationStatusResponse struct {
	Success      bool `json:"success"`
	IsRegistered bool `json:"isRegistered"`
}
