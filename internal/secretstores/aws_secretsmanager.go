package secretstores

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	dserrors "github.com/systmms/credrotate/internal/errors"
	"github.com/systmms/credrotate/internal/logging"
	"github.com/systmms/credrotate/pkg/secretstore"
)

// SecretsManagerClientAPI is the subset of the AWS SDK client the store
// needs, narrowed to an interface so tests can inject a fake.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// AWSSecretsManagerStore implements secretstore.Store against AWS Secrets
// Manager.
type AWSSecretsManagerStore struct {
	client  SecretsManagerClientAPI
	logger  *logging.Logger
	storeId string
	region  string
}

// NewAWSSecretsManagerStore creates a store backed by a live AWS Secrets
// Manager client in the given region.
func NewAWSSecretsManagerStore(ctx context.Context, storeId, region string, logger *logging.Logger) (*AWSSecretsManagerStore, error) {
	if region == "" {
		region = "us-east-1"
	}
	if logger == nil {
		logger = logging.New(false, false)
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, dserrors.ProviderError("aws-secretsmanager", "load config", err)
	}

	return &AWSSecretsManagerStore{
		client:  secretsmanager.NewFromConfig(cfg),
		logger:  logger,
		storeId: storeId,
		region:  region,
	}, nil
}

// NewAWSSecretsManagerStoreWithClient builds a store around an already
// constructed client, for testing.
func NewAWSSecretsManagerStoreWithClient(storeId string, client SecretsManagerClientAPI, logger *logging.Logger) *AWSSecretsManagerStore {
	if logger == nil {
		logger = logging.New(false, false)
	}
	return &AWSSecretsManagerStore{client: client, logger: logger, storeId: storeId}
}

func (s *AWSSecretsManagerStore) GetSecret(name string) (*secretstore.SecretInfo, error) {
	ctx := context.Background()
	resp, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(name)})
	if err != nil {
		if isAWSNotFoundError(err) {
			return nil, nil
		}
		return nil, dserrors.ProviderError("aws-secretsmanager", "describe secret", err)
	}

	info := &secretstore.SecretInfo{
		Name:    name,
		StoreId: s.storeId,
		Enabled: resp.DeletedDate == nil,
	}
	if resp.CreatedDate != nil {
		info.CreatedOn = *resp.CreatedDate
	}
	if resp.LastChangedDate != nil {
		info.UpdatedOn = *resp.LastChangedDate
	} else if resp.CreatedDate != nil {
		info.UpdatedOn = *resp.CreatedDate
	}
	if resp.ARN != nil {
		info.Id = *resp.ARN
	}
	for versionId, stages := range resp.VersionIdsToStages {
		for _, stage := range stages {
			if stage == "AWSCURRENT" {
				info.Version = versionId
			}
		}
	}

	return info, nil
}

func (s *AWSSecretsManagerStore) GetSecretValue(name string) (*string, error) {
	ctx := context.Background()
	resp, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		if isAWSNotFoundError(err) {
			return nil, nil
		}
		return nil, dserrors.ProviderError("aws-secretsmanager", "get secret value", err)
	}
	if resp.SecretString == nil {
		return nil, nil
	}
	return resp.SecretString, nil
}

func (s *AWSSecretsManagerStore) UpdateSecret(name, value string, expiresOn *time.Time, contentType string) (*secretstore.SecretInfo, error) {
	ctx := context.Background()

	putResp, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		if isAWSNotFoundError(err) {
			createResp, createErr := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
				Name:         aws.String(name),
				SecretString: aws.String(value),
			})
			if createErr != nil {
				s.logger.Error("aws secrets manager create secret failed for %s: %v", name, createErr)
				return nil, nil
			}
			return &secretstore.SecretInfo{
				Id:          aws.ToString(createResp.ARN),
				Name:        name,
				StoreId:     s.storeId,
				Enabled:     true,
				ContentType: contentType,
				ExpiresOn:   expiresOn,
				Version:     aws.ToString(createResp.VersionId),
			}, nil
		}
		s.logger.Error("aws secrets manager put secret value failed for %s: %v", name, err)
		return nil, nil
	}

	return &secretstore.SecretInfo{
		Id:          aws.ToString(putResp.ARN),
		Name:        name,
		StoreId:     s.storeId,
		Enabled:     true,
		ContentType: contentType,
		ExpiresOn:   expiresOn,
		Version:     aws.ToString(putResp.VersionId),
	}, nil
}

func isAWSNotFoundError(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}
