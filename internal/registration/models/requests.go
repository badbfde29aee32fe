package models

import (
	"strings"
	"time"

	dErrors "admission/pkg/domain-errors"
)

// CreateRequest carries step one: personal data.
type CreateRequest struct {
	PersonalData PersonalData `json:"personalData"`
}

// Normalize trims and lowercases fields the stores index on.
func (r *CreateRequest) Normalize() {
	r.PersonalData.FullName = strings.TrimSpace(r.PersonalData.FullName)
	r.PersonalData.NickName = strings.TrimSpace(r.PersonalData.NickName)
	r.PersonalData.BirthPlace = strings.TrimSpace(r.PersonalData.BirthPlace)
	r.PersonalData.PhoneNumber = strings.TrimSpace(r.PersonalData.PhoneNumber)
	r.PersonalData.Email = strings.ToLower(strings.TrimSpace(r.PersonalData.Email))
	r.PersonalData.Address.Street = strings.TrimSpace(r.PersonalData.Address.Street)
	r.PersonalData.Address.City = strings.TrimSpace(r.PersonalData.Address.City)
}

// Validate returns a field-keyed validation error when required personal
// fields are missing or malformed.
func (r *CreateRequest) Validate() error {
	fields := validatePersonalData(&r.PersonalData)
	if len(fields) > 0 {
		return dErrors.NewValidation("personal data validation failed", fields)
	}
	return nil
}

func validatePersonalData(p *PersonalData) map[string]string {
	fields := map[string]string{}
	if p.FullName == "" {
		fields["personalData.fullName"] = "full name is required"
	}
	if p.Gender != GenderMale && p.Gender != GenderFemale {
		fields["personalData.gender"] = "gender must be Male or Female"
	}
	if p.BirthPlace == "" {
		fields["personalData.birthPlace"] = "birth place is required"
	}
	if p.BirthDate.IsZero() || p.BirthDate.After(time.Now()) {
		fields["personalData.birthDate"] = "birth date must be a past date"
	}
	if p.Address.Street == "" {
		fields["personalData.address.street"] = "street address is required"
	}
	if p.Address.City == "" {
		fields["personalData.address.city"] = "city is required"
	}
	if p.PhoneNumber == "" {
		fields["personalData.phoneNumber"] = "phone number is required"
	}
	if !validEmail(p.Email) {
		fields["personalData.email"] = "email is invalid"
	}
	return fields
}

// ParentDataRequest carries step two.
type ParentDataRequest struct {
	ParentData ParentData `json:"parentData"`
}

func (r *ParentDataRequest) Normalize() {
	r.ParentData.Father.Name = strings.TrimSpace(r.ParentData.Father.Name)
	r.ParentData.Mother.Name = strings.TrimSpace(r.ParentData.Mother.Name)
	r.ParentData.Guardian.Name = strings.TrimSpace(r.ParentData.Guardian.Name)
}

func (r *ParentDataRequest) Validate() error {
	fields := validateParentData(&r.ParentData)
	if len(fields) > 0 {
		return dErrors.NewValidation("parent data validation failed", fields)
	}
	return nil
}

func validateParentData(p *ParentData) map[string]string {
	fields := map[string]string{}
	if p.Father.Name == "" {
		fields["parentData.father.name"] = "father name is required"
	}
	if p.Mother.Name == "" {
		fields["parentData.mother.name"] = "mother name is required"
	}
	return fields
}

// AcademicDataRequest carries step three.
type AcademicDataRequest struct {
	AcademicData AcademicData `json:"academicData"`
}

func (r *AcademicDataRequest) Normalize() {
	r.AcademicData.PreviousSchool.Name = strings.TrimSpace(r.AcademicData.PreviousSchool.Name)
	r.AcademicData.LastGrade = strings.TrimSpace(r.AcademicData.LastGrade)
}

func (r *AcademicDataRequest) Validate() error {
	fields := validateAcademicData(&r.AcademicData)
	if len(fields) > 0 {
		return dErrors.NewValidation("academic data validation failed", fields)
	}
	return nil
}

func validateAcademicData(a *AcademicData) map[string]string {
	fields := map[string]string{}
	if a.PreviousSchool.Name == "" {
		fields["academicData.previousSchool.name"] = "previous school name is required"
	}
	if a.LastGrade == "" {
		fields["academicData.lastGrade"] = "last grade is required"
	}
	return fields
}

// BulkUpdateRequest carries the generic edit of all three sections while the
// registration is still a Draft. Nil sections are left untouched.
type BulkUpdateRequest struct {
	PersonalData *PersonalData `json:"personalData,omitempty"`
	ParentData   *ParentData   `json:"parentData,omitempty"`
	AcademicData *AcademicData `json:"academicData,omitempty"`
}

func (r *BulkUpdateRequest) Normalize() {
	if r.PersonalData != nil {
		cr := CreateRequest{PersonalData: *r.PersonalData}
		cr.Normalize()
		*r.PersonalData = cr.PersonalData
	}
	if r.ParentData != nil {
		pr := ParentDataRequest{ParentData: *r.ParentData}
		pr.Normalize()
		*r.ParentData = pr.ParentData
	}
	if r.AcademicData != nil {
		ar := AcademicDataRequest{AcademicData: *r.AcademicData}
		ar.Normalize()
		*r.AcademicData = ar.AcademicData
	}
}

func (r *BulkUpdateRequest) Validate() error {
	fields := map[string]string{}
	if r.PersonalData != nil {
		for k, v := range validatePersonalData(r.PersonalData) {
			fields[k] = v
		}
	}
	if r.ParentData != nil {
		for k, v := range validateParentData(r.ParentData) {
			fields[k] = v
		}
	}
	if r.AcademicData != nil {
		for k, v := range validateAcademicData(r.AcademicData) {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		return dErrors.NewValidation("registration validation failed", fields)
	}
	return nil
}

// DecideRequest is the admin decision payload.
type DecideRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

func (r *DecideRequest) Normalize() {
	r.Status = strings.TrimSpace(r.Status)
	r.Notes = strings.TrimSpace(r.Notes)
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t")
}
