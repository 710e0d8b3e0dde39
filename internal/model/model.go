package model

import "time"

// Contact is the data structure for a person that we know.
// First name and last name are required, all other fields are optional.
type Contact struct {
	Id                int64        `json:"id"                          db:"id"`
	FirstName         string       `json:"firstName"                   db:"first_name"`
	LastName          string       `json:"lastName"                    db:"last_name"`
	Email             *string      `json:"email,omitempty"             db:"email"`
	PhoneNumber       *string      `json:"phoneNumber,omitempty"       db:"phone_number"`
	Type              *ContactType `json:"type,omitempty"              db:"contact_type"`
	Address           *string      `json:"address,omitempty"           db:"address"`
	DateOfBirth       *Date        `json:"dateOfBirth,omitempty"       db:"date_of_birth"`
	LastContactedDate *Date        `json:"lastContactedDate,omitempty" db:"last_contacted_date"`
	Notes             *string      `json:"notes,omitempty"             db:"notes"`
	CreatedAtUtc      time.Time    `json:"createdAtUtc"                db:"created_at_utc"`
	UpdatedAtUtc      time.Time    `json:"updatedAtUtc"                db:"updated_at_utc"`

	// Version is incremented on every update and guards against lost updates.
	Version int64 `json:"-" db:"version"`
}

// ContactRequest is the body of a create or update call. Server-managed fields like the
// timestamps are not part of it; if a client sends them anyway they are ignored.
type ContactRequest struct {
	Id                *int64       `json:"id"`
	FirstName         string       `json:"firstName"         binding:"required,notblank"`
	LastName          string       `json:"lastName"          binding:"required,notblank"`
	Email             *string      `json:"email"`
	PhoneNumber       *string      `json:"phoneNumber"`
	Type              *ContactType `json:"type"`
	Address           *string      `json:"address"`
	DateOfBirth       *Date        `json:"dateOfBirth"`
	LastContactedDate *Date        `json:"lastContactedDate"`
	Notes             *string      `json:"notes"`
}

// ApplyTo copies all mutable fields of the request onto the contact. Id, timestamps and
// version are left alone.
func (r *ContactRequest) ApplyTo(c *Contact) {
	c.FirstName = r.FirstName
	c.LastName = r.LastName
	c.Email = r.Email
	c.PhoneNumber = r.PhoneNumber
	c.Type = r.Type
	c.Address = r.Address
	c.DateOfBirth = r.DateOfBirth
	c.LastContactedDate = r.LastContactedDate
	c.Notes = r.Notes
}

// UpcomingBirthday is a contact whose next birthday falls into the requested window.
type UpcomingBirthday struct {
	Id           int64  `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	NextBirthday Date   `json:"nextBirthday"`
	UpcomingAge  int    `json:"upcomingAge"`
}

// StaleContact is a contact that has not been reached out to for a while. A nil
// LastContactedDate means the contact was never reached out to.
type StaleContact struct {
	Id                int64  `json:"id"                db:"id"`
	FirstName         string `json:"firstName"         db:"first_name"`
	LastName          string `json:"lastName"          db:"last_name"`
	LastContactedDate *Date  `json:"lastContactedDate" db:"last_contacted_date"`
}
