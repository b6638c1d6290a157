package secretstores

import (
	"context"
	"fmt"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"

	dserrors "github.com/systmms/credrotate/internal/errors"
	"github.com/systmms/credrotate/internal/logging"
	"github.com/systmms/credrotate/pkg/secretstore"
)

// GCPSecretManagerStore implements secretstore.Store against Google Cloud
// Secret Manager. Secrets are addressed by plain name within a single GCP
// project; versions are always "latest".
type GCPSecretManagerStore struct {
	client    *secretmanager.Client
	logger    *logging.Logger
	storeId   string
	projectID string
}

// NewGCPSecretManagerStore creates a store against a live project.
func NewGCPSecretManagerStore(ctx context.Context, storeId, projectID string, logger *logging.Logger, opts ...option.ClientOption) (*GCPSecretManagerStore, error) {
	if projectID == "" {
		return nil, dserrors.ConfigError{
			Field:      "project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set project_id or GOOGLE_CLOUD_PROJECT",
		}
	}
	if logger == nil {
		logger = logging.New(false, false)
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, dserrors.ProviderError("gcp-secretmanager", "create client", err)
	}

	return &GCPSecretManagerStore{client: client, logger: logger, storeId: storeId, projectID: projectID}, nil
}

func (s *GCPSecretManagerStore) secretName(name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, name)
}

func (s *GCPSecretManagerStore) versionName(name string) string {
	return fmt.Sprintf("%s/versions/latest", s.secretName(name))
}

func (s *GCPSecretManagerStore) GetSecret(name string) (*secretstore.SecretInfo, error) {
	ctx := context.Background()
	resp, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: s.secretName(name)})
	if err != nil {
		if isGCPNotFoundError(err) {
			return nil, nil
		}
		return nil, dserrors.ProviderError("gcp-secretmanager", "get secret", err)
	}

	info := &secretstore.SecretInfo{
		Name:    name,
		StoreId: s.storeId,
		Enabled: true,
	}
	if resp.CreateTime != nil {
		info.CreatedOn = resp.CreateTime.AsTime()
		info.UpdatedOn = info.CreatedOn
	}
	if resp.Labels != nil {
		if expires, ok := resp.Labels["expires-on-unix"]; ok {
			info.Enabled = info.Enabled && expires != ""
		}
		if contentType, ok := resp.Labels["content-type"]; ok {
			info.ContentType = decodeLabel(contentType)
		}
	}
	if expires, ok := resp.Annotations["expires-on"]; ok {
		if t, err := time.Parse(time.RFC3339, expires); err == nil {
			info.ExpiresOn = &t
		}
	}
	info.Id = resp.Name

	return info, nil
}

func (s *GCPSecretManagerStore) GetSecretValue(name string) (*string, error) {
	ctx := context.Background()
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: s.versionName(name)})
	if err != nil {
		if isGCPNotFoundError(err) {
			return nil, nil
		}
		return nil, dserrors.ProviderError("gcp-secretmanager", "access secret version", err)
	}
	if resp.Payload == nil {
		return nil, nil
	}
	value := string(resp.Payload.Data)
	return &value, nil
}

func (s *GCPSecretManagerStore) UpdateSecret(name, value string, expiresOn *time.Time, contentType string) (*secretstore.SecretInfo, error) {
	ctx := context.Background()

	annotations := map[string]string{}
	if expiresOn != nil {
		annotations["expires-on"] = expiresOn.UTC().Format(time.RFC3339)
	}

	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: s.secretName(name)})
	if err != nil {
		if !isGCPNotFoundError(err) {
			s.logger.Error("gcp secret manager get secret failed for %s: %v", name, err)
			return nil, nil
		}
		_, createErr := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: name,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
				Labels:      map[string]string{"content-type": encodeLabel(contentType)},
				Annotations: annotations,
			},
		})
		if createErr != nil {
			s.logger.Error("gcp secret manager create secret failed for %s: %v", name, createErr)
			return nil, nil
		}
	}

	versionResp, err := s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  s.secretName(name),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	})
	if err != nil {
		s.logger.Error("gcp secret manager add secret version failed for %s: %v", name, err)
		return nil, nil
	}

	now := time.Now()
	return &secretstore.SecretInfo{
		Id:          versionResp.Name,
		Name:        name,
		StoreId:     s.storeId,
		Enabled:     true,
		ContentType: contentType,
		ExpiresOn:   expiresOn,
		UpdatedOn:   now,
		CreatedOn:   now,
		Version:     versionResp.Name,
	}, nil
}

func isGCPNotFoundError(err error) bool {
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "not found")
}

// GCP labels only allow lowercase letters, digits, underscores, and
// hyphens. MIME content types contain a slash, so encodeLabel replaces it
// with an underscore and decodeLabel turns the first underscore back into
// a slash.
func encodeLabel(contentType string) string {
	return strings.ReplaceAll(contentType, "/", "_")
}

func decodeLabel(label string) string {
	return strings.Replace(label, "_", "/", 1)
}
