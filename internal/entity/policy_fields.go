package entity

import "strings"

// FieldName identifies one PolicyFields member.
type FieldName string

const (
	FieldPolicyNumber          FieldName = "policy_number"
	FieldInsuredName           FieldName = "insured_name"
	FieldInsurerName           FieldName = "insurer_name"
	FieldPropertyAddress       FieldName = "property_address"
	FieldEffectiveDate         FieldName = "effective_date"
	FieldExpirationDate        FieldName = "expiration_date"
	FieldDwellingLimit         FieldName = "dwelling_limit"
	FieldPersonalPropertyLimit FieldName = "personal_property_limit"
	FieldLiabilityLimit        FieldName = "liability_limit"
	FieldDeductibleAmount      FieldName = "deductible_amount"
	FieldMortgageeInfo         FieldName = "mortgagee_info"
	FieldAgentInfo             FieldName = "agent_info"
)

// FieldNames lists every field in display order.
var FieldNames = []FieldName{
	FieldPolicyNumber,
	FieldInsuredName,
	FieldInsurerName,
	FieldPropertyAddress,
	FieldEffectiveDate,
	FieldExpirationDate,
	FieldDwellingLimit,
	FieldPersonalPropertyLimit,
	FieldLiabilityLimit,
	FieldDeductibleAmount,
	FieldMortgageeInfo,
	FieldAgentInfo,
}

// Label is the human readable name used in reports and exports.
func (f FieldName) Label() string {
	return strings.ReplaceAll(string(f), "_", " ")
}

// PolicyFields is the structured view of an insurance policy declaration.
// Every member is optional; nil means "not found".
type PolicyFields struct {
	PolicyNumber          *string `json:"policy_number,omitempty"`
	InsuredName           *string `json:"insured_name,omitempty"`
	InsurerName           *string `json:"insurer_name,omitempty"`
	PropertyAddress       *string `json:"property_address,omitempty"`
	EffectiveDate         *string `json:"effective_date,omitempty"`
	ExpirationDate        *string `json:"expiration_date,omitempty"`
	DwellingLimit         *string `json:"dwelling_limit,omitempty"`
	PersonalPropertyLimit *string `json:"personal_property_limit,omitempty"`
	LiabilityLimit        *string `json:"liability_limit,omitempty"`
	DeductibleAmount      *string `json:"deductible_amount,omitempty"`
	MortgageeInfo         *string `json:"mortgagee_info,omitempty"`
	AgentInfo             *string `json:"agent_info,omitempty"`
}

func (p *PolicyFields) slot(name FieldName) **string {
	switch name {
	case FieldPolicyNumber:
		return &p.PolicyNumber
	case FieldInsuredName:
		return &p.InsuredName
	case FieldInsurerName:
		return &p.InsurerName
	case FieldPropertyAddress:
		return &p.PropertyAddress
	case FieldEffectiveDate:
		return &p.EffectiveDate
	case FieldExpirationDate:
		return &p.ExpirationDate
	case FieldDwellingLimit:
		return &p.DwellingLimit
	case FieldPersonalPropertyLimit:
		return &p.PersonalPropertyLimit
	case FieldLiabilityLimit:
		return &p.LiabilityLimit
	case FieldDeductibleAmount:
		return &p.DeductibleAmount
	case FieldMortgageeInfo:
		return &p.MortgageeInfo
	case FieldAgentInfo:
		return &p.AgentInfo
	}
	return nil
}

// Get returns the value of a field, or nil when it is absent or unknown.
func (p *PolicyFields) Get(name FieldName) *string {
	if p == nil {
		return nil
	}
	if s := p.slot(name); s != nil {
		return *s
	}
	return nil
}

// Set stores v under name. Blank values clear the field.
func (p *PolicyFields) Set(name FieldName, v string) {
	s := p.slot(name)
	if s == nil {
		return
	}
	v = strings.TrimSpace(v)
	if v == "" {
		*s = nil
		return
	}
	*s = &v
}

// Has reports whether a field is populated (non-nil and non-blank).
func (p *PolicyFields) Has(name FieldName) bool {
	v := p.Get(name)
	return v != nil && strings.TrimSpace(*v) != ""
}

// Populated returns the names of populated fields in display order.
func (p *PolicyFields) Populated() []FieldName {
	var out []FieldName
	for _, n := range FieldNames {
		if p.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Count returns how many fields are populated.
func (p *PolicyFields) Count() int {
	return len(p.Populated())
}

// Value dereferences a field for display; absent fields render as "".
func (p *PolicyFields) Value(name FieldName) string {
	if v := p.Get(name); v != nil {
		return *v
	}
	return ""
}
