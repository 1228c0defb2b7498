// Package pii_entities provides predefined PII (Personally Identifiable
// Information) entity types and their detection patterns. The table is
// shared by the PII guardrail and the audit redactor.
package pii_entities

import "regexp"

// Entity represents a type of sensitive data that can be detected
type Entity string

const (
	// Default is used as a fallback mask
	Default Entity = "default"

	CreditCard   Entity = "credit_card"
	CVV          Entity = "cvv"
	Email        Entity = "email"
	PhoneNumber  Entity = "phone_number"
	SSN          Entity = "ssn"
	IPAddress    Entity = "ip_address"
	IPv6Address  Entity = "ip6_address"
	Password     Entity = "password"
	APIKey       Entity = "api_key"
	AccessToken  Entity = "access_token"
	IBAN         Entity = "iban"
	SwiftBIC     Entity = "swift_bic"
	CryptoWallet Entity = "crypto_wallet"
	JWTToken     Entity = "jwt_token"
	MACAddress   Entity = "mac_address"
	StripeKey    Entity = "stripe_key"
	SpanishDNI   Entity = "spanish_dni"
	SpanishNIE   Entity = "spanish_nie"
	ItalianCF    Entity = "italian_cf"
	BrazilianCPF Entity = "brazilian_cpf"
)

// Patterns contains regex patterns for each entity type
var Patterns = map[Entity]*regexp.Regexp{
	CreditCard:   regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`),
	CVV:          regexp.MustCompile(`(?i)cvv[\s-]*\d{3}`),
	Email:        regexp.MustCompile(`\b[A-Za-z0-9._%+-]+\s*@\s*[A-Za-z0-9.-]+\s*\.\s*[A-Za-z]{2,}\b`),
	SSN:          regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`),
	IPAddress:    regexp.MustCompile(`\b((25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
	IPv6Address:  regexp.MustCompile(`\b(?:[a-fA-F0-9]{1,4}:){1,7}[a-fA-F0-9]{1,4}|\b(?:[a-fA-F0-9]{1,4}:){1,7}:\b`),
	Password:     regexp.MustCompile(`(?i)password[\s]*[=:]\s*\S+`),
	APIKey:       regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?key)[\s]*[=:]\s*\S+`),
	AccessToken:  regexp.MustCompile(`(?i)(access[_-]?token|bearer)[\s]*[=:]\s*\S+`),
	IBAN:         regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{4,30}\b`),
	SwiftBIC:     regexp.MustCompile(`\b[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?\b`),
	PhoneNumber:  regexp.MustCompile(`\b\+\d{1,3}[\s-]?\(?\d{1,4}\)?([\s-]?\d{2,4}){2,3}\b`),
	CryptoWallet: regexp.MustCompile(`\b(bc1|[13])[a-zA-HJ-NP-Z0-9]{25,39}\b|0x[a-fA-F0-9]{40}\b`),
	JWTToken:     regexp.MustCompile(`\beyJ[a-zA-Z0-9-_]+\.eyJ[a-zA-Z0-9-_]+\.[a-zA-Z0-9-_]+\b`),
	MACAddress:   regexp.MustCompile(`\b([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b`),
	StripeKey:    regexp.MustCompile(`(?i)(sk|pk|rk|whsec)_(test|live)_[a-z0-9]{24,}`),
	SpanishDNI:   regexp.MustCompile(`\b\d{8}[A-HJ-NP-TV-Z]\b`),
	SpanishNIE:   regexp.MustCompile(`\b[XYZ]\d{7}[A-HJ-NP-TV-Z]\b`),
	ItalianCF:    regexp.MustCompile(`\b[A-Z]{6}\d{2}[A-Z]\d{2}[A-Z]\d{3}[A-Z]\b`),
	BrazilianCPF: regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`),
}

// DetectionOrder defines the order in which entities should be detected
// (more specific patterns first to avoid false positives)
var DetectionOrder = []Entity{
	StripeKey,
	JWTToken,
	IBAN,
	CreditCard,
	CVV,
	Email,
	SSN,
	IPAddress,
	IPv6Address,
	MACAddress,
	Password,
	APIKey,
	AccessToken,
	SwiftBIC,
	CryptoWallet,
	PhoneNumber,
	SpanishDNI,
	SpanishNIE,
	ItalianCF,
	BrazilianCPF,
}

// DefaultMasks contains default mask values for each entity type
var DefaultMasks = map[Entity]string{
	Default:      "*****",
	CreditCard:   "[MASKED_CC]",
	CVV:          "[MASKED_CVV]",
	Email:        "[MASKED_EMAIL]",
	SSN:          "[MASKED_SSN]",
	IPAddress:    "[MASKED_IP]",
	IPv6Address:  "[MASKED_IP6]",
	Password:     "[MASKED_PASSWORD]",
	APIKey:       "[MASKED_API_KEY]",
	AccessToken:  "[MASKED_TOKEN]",
	IBAN:         "[MASKED_IBAN]",
	SwiftBIC:     "[MASKED_BIC]",
	PhoneNumber:  "[MASKED_PHONE]",
	CryptoWallet: "[MASKED_WALLET]",
	JWTToken:     "[MASKED_JWT]",
	MACAddress:   "[MASKED_MAC]",
	StripeKey:    "[MASKED_STRIPE_KEY]",
	SpanishDNI:   "[MASKED_DNI]",
	SpanishNIE:   "[MASKED_NIE]",
	ItalianCF:    "[MASKED_CF]",
	BrazilianCPF: "[MASKED_CPF]",
}

// MaskFor returns the mask for an entity, falling back to the default.
func MaskFor(entity Entity) string {
	if mask, ok := DefaultMasks[entity]; ok {
		return mask
	}
	return DefaultMasks[Default]
}

// Valid reports whether the entity has a detection pattern.
func Valid(entity Entity) bool {
	_, ok := Patterns[entity]
	return ok
}
