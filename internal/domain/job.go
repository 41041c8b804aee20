package domain

import (
	"fmt"
	"strings"
	"time"
)

type JobStatus string

const (
	JobDraft     JobStatus = "draft"
	JobPending   JobStatus = "pending"
	JobPosting   JobStatus = "posting"
	JobCompleted JobStatus = "completed"
	JobPartial   JobStatus = "partial"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the job has finished posting.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobPartial || s == JobFailed
}

// SalaryRange is an optional employer-supplied pay band.
type SalaryRange struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency,omitempty"`
}

func (r SalaryRange) String() string {
	cur := r.Currency
	if cur == "" {
		cur = "USD"
	}
	switch {
	case r.Min > 0 && r.Max > 0:
		return fmt.Sprintf("%d - %d %s", r.Min, r.Max, cur)
	case r.Min > 0:
		return fmt.Sprintf("from %d %s", r.Min, cur)
	case r.Max > 0:
		return fmt.Sprintf("up to %d %s", r.Max, cur)
	}
	return ""
}

// Job is one employer-authored listing destined for many boards.
type Job struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Location       string       `json:"location"`
	Company        string       `json:"company"`
	ContactEmail   string       `json:"contactEmail"`
	Salary         *SalaryRange `json:"salary,omitempty"`
	EmploymentType string       `json:"employmentType,omitempty"`
	Department     string       `json:"department,omitempty"`
	Status         JobStatus    `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// FieldValue returns the job content that belongs in a form field of the
// given role. Roles with no job content (submit, other) return "".
func (j Job) FieldValue(role FieldRole) string {
	switch role {
	case RoleTitle:
		return j.Title
	case RoleDescription:
		return j.Description
	case RoleLocation:
		return j.Location
	case RoleCompany:
		return j.Company
	case RoleEmail:
		return j.ContactEmail
	case RoleSalary:
		if j.Salary == nil {
			return ""
		}
		return j.Salary.String()
	}
	return ""
}

// Validate checks the fields every board needs.
func (j Job) Validate() error {
	var missing []string
	if strings.TrimSpace(j.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(j.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(j.Company) == "" {
		missing = append(missing, "company")
	}
	if strings.TrimSpace(j.ContactEmail) == "" {
		missing = append(missing, "contactEmail")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidJob, strings.Join(missing, ", "))
	}
	return nil
}
