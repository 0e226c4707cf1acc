package model

import "strings"

// Sponsor is a channel the user must join before free generation unlocks.
type Sponsor struct {
	ButtonText   string `json:"button_text"`
	ResourceName string `json:"resource_name"`
	Link         string `json:"link"`
	AvailableNow bool   `json:"available_now"`
	Status       string `json:"status"`
}

func (s Sponsor) Satisfied() bool {
	return strings.EqualFold(strings.TrimSpace(s.Status), "subscribed")
}

type TemplatePrice struct {
	Stars int64
	Uzs   int64
}

// Eligibility is the answer of the check-eligibility call.
type Eligibility struct {
	RequiresPayment bool
	HasFreeCredit   bool
	Subscribed      bool
	Sponsors        []Sponsor
	Price           TemplatePrice
}

// UnsatisfiedSponsors returns the sponsors the user still has to join.
func (e Eligibility) UnsatisfiedSponsors() []Sponsor {
	var out []Sponsor
	for _, s := range e.Sponsors {
		if !s.Satisfied() {
			out = append(out, s)
		}
	}
	return out
}
