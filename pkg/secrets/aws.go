package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// awsStore keeps credentials in AWS Secrets Manager. Secret names use the
// same logical path as the other backends ("project/environment/database").
type awsStore struct {
	client *secretsmanager.Client
}

func newAWSStore(ctx context.Context) (*awsStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &awsStore{client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (s *awsStore) Name() string { return "aws" }

// Put creates the secret, putting a new version when it already exists.
func (s *awsStore) Put(ctx context.Context, path, value string) error {
	_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(path),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}

	var exists *smtypes.ResourceExistsException
	if !errors.As(err, &exists) {
		return fmt.Errorf("failed to create secret %s: %w", path, err)
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(path),
		SecretString: aws.String(value),
	})
	if err != nil {
		return fmt.Errorf("failed to update secret %s: %w", path, err)
	}
	return nil
}

func (s *awsStore) Get(ctx context.Context, path string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		return "", fmt.Errorf("failed to retrieve secret %s: %w", path, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", path)
	}
	return *result.SecretString, nil
}
