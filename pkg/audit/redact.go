package audit

import (
	"sort"

	"github.com/NeuralTrust/TrustRail/pkg/pii_entities"
)

// DefaultRedactionEntities covers the identifiers and secrets most
// likely to leak into guardrail reasons and details.
var DefaultRedactionEntities = []pii_entities.Entity{
	pii_entities.StripeKey,
	pii_entities.JWTToken,
	pii_entities.CreditCard,
	pii_entities.Email,
	pii_entities.SSN,
	pii_entities.IPAddress,
	pii_entities.Password,
	pii_entities.APIKey,
	pii_entities.AccessToken,
	pii_entities.PhoneNumber,
}

// Redactor masks sensitive values in audit records before they reach a
// sink. It runs inside the writer goroutine so producers never pay the
// scanning cost.
type Redactor struct {
	entities []pii_entities.Entity
}

// NewRedactor builds a redactor for the given entity types. An empty
// list selects DefaultRedactionEntities. Entities are always applied in
// pii_entities.DetectionOrder regardless of the order given.
func NewRedactor(entities []pii_entities.Entity) *Redactor {
	if len(entities) == 0 {
		entities = DefaultRedactionEntities
	}
	requested := make(map[pii_entities.Entity]bool, len(entities))
	for _, entity := range entities {
		requested[entity] = true
	}
	ordered := make([]pii_entities.Entity, 0, len(entities))
	for _, entity := range pii_entities.DetectionOrder {
		if requested[entity] {
			ordered = append(ordered, entity)
		}
	}
	return &Redactor{entities: ordered}
}

// Apply returns a copy of rec with sensitive values masked and the
// detected entity types listed in Redacted.
func (r *Redactor) Apply(rec Record) Record {
	found := make(map[pii_entities.Entity]bool)
	rec.Reason = r.redactString(rec.Reason, found)
	if len(rec.Details) > 0 {
		details := make(map[string]interface{}, len(rec.Details))
		for key, value := range rec.Details {
			details[key] = r.redactValue(value, found)
		}
		rec.Details = details
	}
	if len(found) > 0 {
		redacted := make([]string, 0, len(found))
		for entity := range found {
			redacted = append(redacted, string(entity))
		}
		sort.Strings(redacted)
		rec.Redacted = redacted
	}
	return rec
}

func (r *Redactor) redactString(s string, found map[pii_entities.Entity]bool) string {
	for _, entity := range r.entities {
		re, ok := pii_entities.Patterns[entity]
		if !ok {
			continue
		}
		if !re.MatchString(s) {
			continue
		}
		found[entity] = true
		s = re.ReplaceAllString(s, pii_entities.MaskFor(entity))
	}
	return s
}

func (r *Redactor) redactValue(v interface{}, found map[pii_entities.Entity]bool) interface{} {
	switch value := v.(type) {
	case string:
		return r.redactString(value, found)
	case []string:
		out := make([]string, len(value))
		for i, s := range value {
			out[i] = r.redactString(s, found)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, item := range value {
			out[i] = r.redactValue(item, found)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for key, item := range value {
			out[key] = r.redactValue(item, found)
		}
		return out
	default:
		return v
	}
}
