package types

import "strings"

// Address is the shipping snapshot embedded on carts and orders.
// Label is cosmetic; every other field is required at checkout.
type Address struct {
	Label   string `json:"label,omitempty"`
	Line1   string `json:"line1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// IsZero reports whether no address was supplied at all.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Line1) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.State) == "" &&
		strings.TrimSpace(a.Zip) == "" &&
		strings.TrimSpace(a.Country) == ""
}

// MissingFields lists every required field that is empty, in a stable order.
func (a Address) MissingFields() []string {
	missing := []string{}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"line1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"zip", a.Zip},
		{"country", a.Country},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}
