package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/sirupsen/logrus"
)

// Credentials selects either static keys or STS role assumption.
type Credentials struct {
	AccessKey    string `mapstructure:"aws_access_key"`
	SecretKey    string `mapstructure:"aws_secret_key"`
	Region       string `mapstructure:"aws_region"`
	SessionToken string `mapstructure:"aws_session_token"`
	UseRole      bool   `mapstructure:"use_role"`
	RoleARN      string `mapstructure:"role_arn"`
	SessionName  string `mapstructure:"session_name"`
}

func (c Credentials) Validate() error {
	if c.UseRole {
		if c.RoleARN == "" {
			return fmt.Errorf("aws Role ARN must be specified when using role-based authentication")
		}
		return nil
	}
	if c.AccessKey == "" {
		return fmt.Errorf("aws Access key must be specified when not using role-based authentication")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("aws Secret key must be specified when not using role-based authentication")
	}
	if c.Region == "" {
		return fmt.Errorf("aws Region must be specified when not using role-based authentication")
	}
	return nil
}

//go:generate mockery --name=Client --dir=. --output=./mocks --filename=bedrock_client_mock.go --case=underscore
type Client interface {
	ApplyGuardrail(
		ctx context.Context,
		params *bedrockruntime.ApplyGuardrailInput,
		optFns ...func(*bedrockruntime.Options),
	) (*bedrockruntime.ApplyGuardrailOutput, error)
	BuildClient(ctx context.Context, creds Credentials) (Client, error)
}

type client struct {
	client *bedrockruntime.Client
	logger *logrus.Logger
}

func NewClient(logger *logrus.Logger) (Client, error) {
	return &client{
		logger: logger,
	}, nil
}

// BuildClient returns a client bound to the given credentials. The
// receiver is left untouched so one unbound client can build many.
func (c *client) BuildClient(ctx context.Context, creds Credentials) (Client, error) {
	awsCfg, err := c.loadConfig(ctx, creds)
	if err != nil {
		c.logger.WithError(err).Error("failed to load AWS config")
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &client{
		client: bedrockruntime.NewFromConfig(awsCfg),
		logger: c.logger,
	}, nil
}

func (c *client) loadConfig(ctx context.Context, creds Credentials) (aws.Config, error) {
	if creds.UseRole {
		baseCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(creds.Region))
		if err != nil {
			return aws.Config{}, err
		}
		provider := stscreds.NewAssumeRoleProvider(
			sts.NewFromConfig(baseCfg),
			creds.RoleARN,
			func(o *stscreds.AssumeRoleOptions) {
				if creds.SessionName != "" {
					o.RoleSessionName = creds.SessionName
				}
			},
		)
		baseCfg.Credentials = aws.NewCredentialsCache(provider)
		return baseCfg, nil
	}

	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     creds.AccessKey,
					SecretAccessKey: creds.SecretKey,
					SessionToken:    creds.SessionToken,
				}, nil
			},
		)),
		awsconfig.WithRegion(creds.Region),
	)
}

func (c *client) ApplyGuardrail(
	ctx context.Context,
	params *bedrockruntime.ApplyGuardrailInput,
	optFns ...func(*bedrockruntime.Options),
) (*bedrockruntime.ApplyGuardrailOutput, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not initialized")
	}
	return c.client.ApplyGuardrail(ctx, params, optFns...)
}
