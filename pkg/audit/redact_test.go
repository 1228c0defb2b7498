package audit_test

import (
	"testing"

	"github.com/NeuralTrust/TrustRail/pkg/audit"
	"github.com/NeuralTrust/TrustRail/pkg/pii_entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor_MasksOnlyRequestedEntities(t *testing.T) {
	redactor := audit.NewRedactor([]pii_entities.Entity{pii_entities.Email})

	rec := record("r1")
	rec.Reason = "user jane@example.com sent ssn 123-45-6789"
	got := redactor.Apply(rec)

	assert.Equal(t, "user [MASKED_EMAIL] sent ssn 123-45-6789", got.Reason)
	assert.Equal(t, []string{"email"}, got.Redacted)
}

func TestRedactor_CleanRecordIsUnchanged(t *testing.T) {
	redactor := audit.NewRedactor(nil)

	rec := record("r2")
	rec.Reason = "no findings"
	rec.Details = map[string]interface{}{"score": 0.2, "blocked": false}
	got := redactor.Apply(rec)

	assert.Equal(t, "no findings", got.Reason)
	assert.Equal(t, rec.Details, got.Details)
	assert.Nil(t, got.Redacted)
}

func TestRedactor_NonStringDetailValuesPassThrough(t *testing.T) {
	redactor := audit.NewRedactor(nil)

	rec := record("r3")
	rec.Details = map[string]interface{}{
		"confidence": 87.5,
		"count":      3,
		"token":      "bearer: sk-abc123secret",
	}
	got := redactor.Apply(rec)

	assert.Equal(t, 87.5, got.Details["confidence"])
	assert.Equal(t, 3, got.Details["count"])
	assert.Equal(t, "[MASKED_TOKEN]", got.Details["token"])
	require.Equal(t, []string{"access_token"}, got.Redacted)
}

func TestRedactor_DetectsIBANWhenConfigured(t *testing.T) {
	redactor := audit.NewRedactor([]pii_entities.Entity{
		pii_entities.IBAN,
		pii_entities.CreditCard,
	})

	rec := record("r4")
	rec.Reason = "found ES9121000418450200051332 in message"
	got := redactor.Apply(rec)

	assert.Equal(t, "found [MASKED_IBAN] in message", got.Reason)
	assert.Equal(t, []string{"iban"}, got.Redacted)
}

func TestRedactor_OverlappingPatternsCompose(t *testing.T) {
	redactor := audit.NewRedactor(nil)

	rec := record("r5")
	rec.Reason = "got password: hunter2@example.com"
	got := redactor.Apply(rec)

	// email is masked first, then the whole assignment
	assert.Equal(t, "got [MASKED_PASSWORD]", got.Reason)
	assert.Equal(t, []string{"email", "password"}, got.Redacted)
}
