package intake

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MaxTextChars = 10000
	MinTextChars = 3
)

type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

// Label is the wording used in the oracle prompt and in quote reports.
func (u Urgency) Label() string {
	switch u {
	case UrgencyUrgent:
		return "Urgent"
	default:
		return "Normal"
	}
}

func (u Urgency) Elevated() bool { return u == UrgencyUrgent }

func ParseUrgency(raw string) (Urgency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "normal":
		return UrgencyNormal, nil
	case "urgent":
		return UrgencyUrgent, nil
	default:
		return "", fmt.Errorf("unknown urgency %q (want normal or urgent)", raw)
	}
}

type ClientType string

const (
	ClientEmployee     ClientType = "individual_employee"
	ClientRetiree      ClientType = "individual_retiree"
	ClientStudent      ClientType = "individual_student"
	ClientSelfEmployed ClientType = "professional_self_employed"
	ClientSME          ClientType = "professional_sme"
	ClientCompany      ClientType = "company"
)

var clientLabels = map[ClientType]string{
	ClientEmployee:     "Particulier - Salarié",
	ClientRetiree:      "Particulier - Retraité",
	ClientStudent:      "Particulier - Étudiant",
	ClientSelfEmployed: "Professionnel - Indépendant",
	ClientSME:          "Professionnel - PME",
	ClientCompany:      "Société",
}

// ClientTypes lists the accepted client categories in display order.
func ClientTypes() []ClientType {
	return []ClientType{ClientEmployee, ClientRetiree, ClientStudent, ClientSelfEmployed, ClientSME, ClientCompany}
}

func (c ClientType) Label() string {
	if l, ok := clientLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseClientType accepts either the stable code or the display label.
func ParseClientType(raw string) (ClientType, error) {
	v := strings.TrimSpace(raw)
	for _, ct := range ClientTypes() {
		if strings.EqualFold(v, string(ct)) || strings.EqualFold(v, ct.Label()) {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown client type %q", raw)
}

type Request struct {
	Text       string     `json:"text"`
	ClientType ClientType `json:"client_type"`
	Urgency    Urgency    `json:"urgency"`
}

var ErrEmptyText = errors.New("problem description is required")

// Normalize trims the free text, fills a missing urgency and rejects unknown enums.
func (r Request) Normalize() (Request, error) {
	r.Text = strings.TrimSpace(r.Text)
	if r.Text == "" {
		return r, ErrEmptyText
	}
	if len([]rune(r.Text)) < MinTextChars {
		return r, fmt.Errorf("problem description is too short (min %d characters)", MinTextChars)
	}
	if len(r.Text) > MaxTextChars {
		return r, fmt.Errorf("problem description is too long (max %d characters)", MaxTextChars)
	}
	ct, err := ParseClientType(string(r.ClientType))
	if err != nil {
		return r, err
	}
	r.ClientType = ct
	u, err := ParseUrgency(string(r.Urgency))
	if err != nil {
		return r, err
	}
	r.Urgency = u
	return r, nil
}
