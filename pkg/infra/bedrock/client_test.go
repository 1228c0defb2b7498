package bedrock

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestCredentials_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		creds   Credentials
		wantErr string
	}{
		{
			name:  "valid static keys",
			creds: Credentials{AccessKey: "AKIA_TEST", SecretKey: "SECRET_TEST", Region: "us-east-1"},
		},
		{
			name:  "valid role",
			creds: Credentials{UseRole: true, RoleARN: "arn:aws:iam::123456789012:role/guard"},
		},
		{
			name:    "role without arn",
			creds:   Credentials{UseRole: true},
			wantErr: "Role ARN",
		},
		{
			name:    "missing access key",
			creds:   Credentials{SecretKey: "SECRET_TEST", Region: "us-east-1"},
			wantErr: "Access key",
		},
		{
			name:    "missing secret key",
			creds:   Credentials{AccessKey: "AKIA_TEST", Region: "us-east-1"},
			wantErr: "Secret key",
		},
		{
			name:    "missing region",
			creds:   Credentials{AccessKey: "AKIA_TEST", SecretKey: "SECRET_TEST"},
			wantErr: "Region",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.creds.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}

func TestApplyGuardrail_UnboundClientErrors(t *testing.T) {
	t.Parallel()

	c, err := NewClient(testLogger())
	require.NoError(t, err)

	_, err = c.ApplyGuardrail(context.Background(), nil)
	assert.ErrorContains(t, err, "client not initialized")
}

func TestBuildClient_LeavesReceiverUnbound(t *testing.T) {
	t.Parallel()

	unbound, err := NewClient(testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	creds := Credentials{AccessKey: "AKIA_TEST", SecretKey: "SECRET_TEST", Region: "us-east-1"}
	bound, err := unbound.BuildClient(ctx, creds)
	require.NoError(t, err)
	assert.NotSame(t, unbound, bound)

	// The unbound client can keep building; it never becomes bound itself.
	_, err = unbound.ApplyGuardrail(ctx, nil)
	assert.ErrorContains(t, err, "client not initialized")
}

func TestBuildClient_EachCallBindsAFreshClient(t *testing.T) {
	t.Parallel()

	c, err := NewClient(testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := c.BuildClient(ctx, Credentials{AccessKey: "AKIA_TEST", SecretKey: "SECRET_TEST", Region: "us-east-1"})
	require.NoError(t, err)
	second, err := c.BuildClient(ctx, Credentials{AccessKey: "AKIA_TEST", SecretKey: "SECRET_TEST", Region: "us-east-2"})
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}
