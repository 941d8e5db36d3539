package core

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultProfileColor is used when a profile has no color.
const DefaultProfileColor = "#3b82f6"

// DateLayout is the storage and wire format of due dates.
const DateLayout = "2006-01-02"

const maxNameLength = 100

type (
	Address struct {
		Street  string `json:"street"`
		City    string `json:"city"`
		Country string `json:"country"`
	}

	Profile struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Name      string    `json:"name"`
		Address   Address   `json:"address"`
		Color     string    `json:"color"`
		BillCount int       `json:"billCount"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// EBill holds the online account for a bill. Username and Password are
	// sealed before they reach storage.
	EBill struct {
		Link     string `json:"link"`
		Username string `json:"username,omitempty"`
		Password string `json:"password,omitempty"`
	}

	Bill struct {
		ID            string    `json:"id"`
		ProfileID     string    `json:"profileId"`
		UserID        string    `json:"userId"`
		Name          string    `json:"name"`
		DueDay        int       `json:"dueDay,omitempty"`
		EBill         *EBill    `json:"eBill,omitempty"`
		InstanceCount int       `json:"billInstanceCount"`
		CreatedAt     time.Time `json:"createdAt"`
		UpdatedAt     time.Time `json:"updatedAt"`
	}

	// BillInstance is one payable occurrence of a bill. Period holds the
	// stored label; rows written by this service are always "YYYY-MM".
	BillInstance struct {
		ID          string    `json:"id"`
		BillID      string    `json:"billId"`
		UserID      string    `json:"userId"`
		Period      string    `json:"period"`
		Amount      Money     `json:"amount"`
		DueDate     string    `json:"dueDate"`
		Description string    `json:"description,omitempty"`
		IsPaid      bool      `json:"isPaid"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// InstanceView is an instance joined with its bill and profile.
	InstanceView struct {
		BillInstance
		BillName     string `json:"billName"`
		ProfileID    string `json:"profileId"`
		ProfileName  string `json:"profileName"`
		ProfileColor string `json:"profileColor"`
	}
)

// Patches carry optional fields; nil means unchanged.
type (
	ProfilePatch struct {
		Name    *string  `json:"name"`
		Address *Address `json:"address"`
		Color   *string  `json:"color"`
	}

	BillPatch struct {
		Name   *string `json:"name"`
		DueDay *int    `json:"dueDay"`
		EBill  *EBill  `json:"eBill"`
		// RemoveEBill drops the stored e-bill when true.
		RemoveEBill bool `json:"removeEBill"`
	}

	InstancePatch struct {
		Period      *string `json:"period"`
		Amount      *Money  `json:"amount"`
		DueDate     *string `json:"dueDate"`
		Description *string `json:"description"`
		IsPaid      *bool   `json:"isPaid"`
	}
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func ValidateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid(field, "cannot be empty")
	}
	if len(name) > maxNameLength {
		return invalid(field, "too long (max %d characters)", maxNameLength)
	}
	return nil
}

func ValidateColor(color string) error {
	if !colorPattern.MatchString(color) {
		return invalid("color", "must be a hex color like #3b82f6")
	}
	return nil
}

// ValidateDueDay accepts 0 for an unset due day.
func ValidateDueDay(day int) error {
	if day < 0 || day > 31 {
		return invalid("dueDay", "must be 0 (unset) or between 1 and 31")
	}
	return nil
}

// ParseDueDate parses a YYYY-MM-DD date.
func ParseDueDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid("dueDate", "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// ValidateUserAmount rejects amounts below one cent.
func ValidateUserAmount(m Money) error {
	if m.Cents < 1 {
		return invalid("amount", "must be at least 0.01")
	}
	return nil
}

func (a Address) Validate() error {
	if strings.TrimSpace(a.Street) == "" {
		return invalid("address.street", "cannot be empty")
	}
	if strings.TrimSpace(a.City) == "" {
		return invalid("address.city", "cannot be empty")
	}
	if strings.TrimSpace(a.Country) == "" {
		return invalid("address.country", "cannot be empty")
	}
	return nil
}

func (p Profile) Validate() error {
	if err := ValidateName("name", p.Name); err != nil {
		return err
	}
	if err := p.Address.Validate(); err != nil {
		return err
	}
	if p.Color != "" {
		return ValidateColor(p.Color)
	}
	return nil
}

func (e EBill) Validate() error {
	if e.Link == "" {
		return nil
	}
	u, err := url.Parse(e.Link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("eBill.link", "must be an http or https URL")
	}
	return nil
}

func (b Bill) Validate() error {
	if err := ValidateName("name", b.Name); err != nil {
		return err
	}
	if err := ValidateDueDay(b.DueDay); err != nil {
		return err
	}
	if b.EBill != nil {
		return b.EBill.Validate()
	}
	return nil
}

// Validate checks a user-supplied instance. Period must already be
// normalized by the caller or parseable.
func (i BillInstance) Validate() error {
	if _, err := ParsePeriod(i.Period); err != nil {
		return invalid("period", "must be YYYY-MM or \"Month YYYY\"")
	}
	if err := ValidateUserAmount(i.Amount); err != nil {
		return err
	}
	if _, err := ParseDueDate(i.DueDate); err != nil {
		return err
	}
	if len(i.Description) > 500 {
		return invalid("description", "too long (max 500 characters)")
	}
	return nil
}

// MonthlyDescription is the description given to generated instances.
func MonthlyDescription(billName string, p Period) string {
	return billName + "'s monthly instance for " + p.Label()
}
