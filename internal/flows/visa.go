package flows

import "github.com/talgya/migration-sim/internal/entropy"

var visaTypes = map[Subtype]string{
	SubtypeEconomic:            "Work Visa",
	SubtypeStudent:             "Student Visa",
	SubtypeFamilyReunification: "Family Visa",
	SubtypeRefugee:             "Refugee Status",
	SubtypeTemporaryWorker:     "Temporary Work Permit",
}

// GeneralVisa is issued to documented subtypes without a dedicated visa.
const GeneralVisa = "General Visa"

// VisaType derives the visa a cohort holds. Undocumented cohorts hold none.
func VisaType(subtype Subtype, status LegalStatus) string {
	if status == LegalUndocumented {
		return ""
	}
	if v, ok := visaTypes[subtype]; ok {
		return v
	}
	return GeneralVisa
}

// DocumentationLevel draws a 0–100 documentation score from the range
// associated with the legal status.
func DocumentationLevel(status LegalStatus, rng entropy.Source) float64 {
	r := rng.Float64()
	switch status {
	case LegalUndocumented:
		return r * 30
	case LegalDocumented:
		return r*30 + 70
	case LegalRefugee:
		return r*40 + 40
	default:
		return r*50 + 50
	}
}
