package models

import "time"

// EmergencyType is the category of a reported emergency.
type EmergencyType string

const (
	EmergencyFire       EmergencyType = "fire"
	EmergencyMedical    EmergencyType = "medical"
	EmergencyAssault    EmergencyType = "assault"
	EmergencyCorruption EmergencyType = "corruption"
	EmergencyAccident   EmergencyType = "accident"
	EmergencyCrime      EmergencyType = "crime"
	EmergencyOther      EmergencyType = "other"
)

// EmergencyKind pairs a type with its display label.
type EmergencyKind struct {
	Type  EmergencyType
	Label string
}

// ReportTypes maps the selection digits of the report-emergency screen.
var ReportTypes = map[string]EmergencyKind{
	"1": {Type: EmergencyFire, Label: "Fire"},
	"2": {Type: EmergencyMedical, Label: "Medical"},
	"3": {Type: EmergencyAssault, Label: "Assault"},
	"4": {Type: EmergencyCorruption, Label: "Corruption"},
	"5": {Type: EmergencyAccident, Label: "Accident"},
	"6": {Type: EmergencyOther, Label: "Other"},
}

// GuidanceTypes maps the selection digits of the AI assistance screen.
var GuidanceTypes = map[string]EmergencyType{
	"1": EmergencyFire,
	"2": EmergencyMedical,
	"3": EmergencyAccident,
	"4": EmergencyCrime,
}

// OtherEmergency is used when no selection digit identifies the type.
var OtherEmergency = EmergencyKind{Type: EmergencyOther, Label: "Emergency"}

// User is the reporter attached to an emergency by the backend.
type User struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

// FullName returns "First Last", or "" when both are empty.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Emergency is an emergency record as served by the backend.
type Emergency struct {
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	User        *User      `json:"user,omitempty"`
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Description string     `json:"description"`
	Address     string     `json:"address"`
}

// EmergencyReport is the payload sent when a subscriber submits an emergency.
type EmergencyReport struct {
	PhoneNumber   string        `json:"phoneNumber"`
	EmergencyType EmergencyType `json:"emergencyType"`
	ReferenceID   string        `json:"referenceId"`
	Description   string        `json:"description"`
	Location      string        `json:"location"`
	Status        string        `json:"status"`
	ReportedAt    string        `json:"reportedAt"`
}

// DistressAlert is the payload of a distress trigger.
type DistressAlert struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	Location    string `json:"location"`
}

// Created is the minimal body returned by create-style backend calls.
type Created struct {
	ID string `json:"id"`
}

// Post is a community post (news or event).
type Post struct {
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Author    string     `json:"author"`
	CreatedBy string     `json:"createdBy"`
	Category  string     `json:"category"`
}

// ListFilter holds query parameters for list endpoints.
type ListFilter struct {
	Status   string
	Category string
	Limit    int
	Offset   int
}
