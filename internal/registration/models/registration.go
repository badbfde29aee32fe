// Package models defines the Registration aggregate: one applicant's record
// and its lifecycle state.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a registration. The wire values match the
// labels applicants see while tracking their application.
type Status string

const (
	StatusDraft       Status = "Draft"
	StatusSubmitted   Status = "Submitted"
	StatusUnderReview Status = "Under Review"
	StatusApproved    Status = "Approved"
	StatusRejected    Status = "Rejected"
	StatusWaitlisted  Status = "Waitlisted"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved,
		StatusRejected, StatusWaitlisted:
		return Status(s), true
	default:
		return "", false
	}
}

// DocumentType keys the document map. The uploadable set is fixed; see the
// checklist package for which types gate submission.
type DocumentType string

const (
	DocBirthCertificate  DocumentType = "birthCertificate"
	DocFamilyCard        DocumentType = "familyCard"
	DocPreviousDiploma   DocumentType = "previousDiploma"
	DocPhoto             DocumentType = "photo"
	DocHealthCertificate DocumentType = "healthCertificate"
)

// ParseDocumentType validates a document type string.
func ParseDocumentType(s string) (DocumentType, bool) {
	switch DocumentType(s) {
	case DocBirthCertificate, DocFamilyCard, DocPreviousDiploma, DocPhoto,
		DocHealthCertificate:
		return DocumentType(s), true
	default:
		return "", false
	}
}

// Gender enum for personal data.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Address is the applicant's home address.
type Address struct {
	Street     string `json:"street"`
	Village    string `json:"village,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode,omitempty"`
}

// PersonalData is step one of the intake.
type PersonalData struct {
	FullName    string    `json:"fullName"`
	NickName    string    `json:"nickName,omitempty"`
	Gender      Gender    `json:"gender"`
	BirthPlace  string    `json:"birthPlace"`
	BirthDate   time.Time `json:"birthDate"`
	Religion    string    `json:"religion,omitempty"`
	Address     Address   `json:"address"`
	PhoneNumber string    `json:"phoneNumber"`
	Email       string    `json:"email"`
}

// Parent describes one parent.
type Parent struct {
	Name        string `json:"name"`
	Occupation  string `json:"occupation,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Education   string `json:"education,omitempty"`
}

// Guardian is optional.
type Guardian struct {
	Name         string `json:"name,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
}

// ParentData is step two of the intake.
type ParentData struct {
	Father   Parent   `json:"father"`
	Mother   Parent   `json:"mother"`
	Guardian Guardian `json:"guardian,omitempty"`
}

// PreviousSchool identifies where the applicant studied before.
type PreviousSchool struct {
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	GraduationYear int    `json:"graduationYear,omitempty"`
}

// Achievement is one line on the applicant's record.
type Achievement struct {
	Title string `json:"title"`
	Level string `json:"level,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// AcademicData is step three of the intake.
type AcademicData struct {
	PreviousSchool PreviousSchool `json:"previousSchool"`
	LastGrade      string         `json:"lastGrade"`
	Achievements   []Achievement  `json:"achievements,omitempty"`
}

// Document is a stored upload descriptor. The binary itself lives in the
// blob store under (registration number, document type).
type Document struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	StorageRef   string    `json:"storageRef"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Tracking records workflow timestamps and the reviewing admin.
type Tracking struct {
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy  *uuid.UUID `json:"reviewedBy,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// NotificationState is best-effort delivery bookkeeping. Informational only;
// it never gates workflow behavior.
type NotificationState struct {
	EmailSent  bool       `json:"emailSent"`
	SMSSent    bool       `json:"smsSent"`
	LastSentAt *time.Time `json:"lastSentAt,omitempty"`
}

// Registration is one applicant's record and its lifecycle state.
//
// Invariants:
//   - Number is unique, assigned exactly once at creation, immutable
//   - PersonalData/ParentData/AcademicData mutate only while Status is Draft
//   - Status changes only through workflow operations
//   - Version increments on every persisted update (optimistic concurrency)
type Registration struct {
	ID           uuid.UUID                   `json:"id"`
	Number       string                      `json:"registrationNumber"`
	PersonalData PersonalData                `json:"personalData"`
	ParentData   *ParentData                 `json:"parentData,omitempty"`
	AcademicData *AcademicData               `json:"academicData,omitempty"`
	Documents    map[DocumentType]*Document  `json:"documents"`
	Status       Status                      `json:"status"`
	Tracking     Tracking                    `json:"tracking"`
	Notification NotificationState           `json:"notificationsSent"`
	Version      int64                       `json:"-"`
	CreatedAt    time.Time                   `json:"createdAt"`
}

// New constructs a Draft registration with its allocated number.
func New(id uuid.UUID, number string, personal PersonalData, now time.Time) *Registration {
	return &Registration{
		ID:           id,
		Number:       number,
		PersonalData: personal,
		Documents:    make(map[DocumentType]*Document),
		Status:       StatusDraft,
		Tracking:     Tracking{LastUpdated: now},
		CreatedAt:    now,
	}
}

// IsDraft reports whether the data sections are still mutable.
func (r *Registration) IsDraft() bool {
	return r.Status == StatusDraft
}

// TrackingCode returns the JSON payload clients render as a QR code for
// status tracking at the front desk.
func (r *Registration) TrackingCode() string {
	payload, _ := json.Marshal(map[string]string{
		"registrationNumber": r.Number,
		"studentName":        r.PersonalData.FullName,
		"status":             string(r.Status),
	})
	return string(payload)
}

// Clone returns a deep copy so in-memory stores never hand out aliased state.
func (r *Registration) Clone() *Registration {
	dup := *r
	dup.Documents = make(map[DocumentType]*Document, len(r.Documents))
	for k, v := range r.Documents {
		doc := *v
		dup.Documents[k] = &doc
	}
	if r.ParentData != nil {
		pd := *r.ParentData
		dup.ParentData = &pd
	}
	if r.AcademicData != nil {
		ad := *r.AcademicData
		ad.Achievements = append([]Achievement(nil), r.AcademicData.Achievements...)
		dup.AcademicData = &ad
	}
	if r.Tracking.SubmittedAt != nil {
		t := *r.Tracking.SubmittedAt
		dup.Tracking.SubmittedAt = &t
	}
	if r.Tracking.ReviewedAt != nil {
		t := *r.Tracking.ReviewedAt
		dup.Tracking.ReviewedAt = &t
	}
	if r.Tracking.ReviewedBy != nil {
		id := *r.Tracking.ReviewedBy
		dup.Tracking.ReviewedBy = &id
	}
	if r.Notification.LastSentAt != nil {
		t := *r.Notification.LastSentAt
		dup.Notification.LastSentAt = &t
	}
	return &dup
}
