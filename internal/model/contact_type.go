package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ContactType categorizes a contact.
type ContactType string

const (
	Personal     ContactType = "Personal"
	Professional ContactType = "Professional"
	Family       ContactType = "Family"
	Other        ContactType = "Other"
)

// contactTypes is ordered by ordinal. Clients of the old API sent the ordinal instead of the name.
var contactTypes = []ContactType{Personal, Professional, Family, Other}

// ParseContactType accepts a type name in any letter case or its ordinal.
func ParseContactType(s string) (ContactType, error) {
	s = strings.TrimSpace(s)
	for _, t := range contactTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	if ordinal, err := strconv.Atoi(s); err == nil && ordinal >= 0 && ordinal < len(contactTypes) {
		return contactTypes[ordinal], nil
	}
	return "", fmt.Errorf("invalid contact type %q", s)
}

// UnmarshalJSON implements json.Unmarshaler. Both a string and a number are accepted.
func (t *ContactType) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Errorf("invalid contact type %s", string(data))
	}
	parsed, err := ParseContactType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
