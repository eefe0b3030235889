package secret

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Provider = (*SecretManagerProvider)(nil)

// SecretManagerProvider reads the latest version of a Google Secret Manager
// secret.
type SecretManagerProvider struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerProvider(ctx context.Context, projectID string, opts ...option.ClientOption) (*SecretManagerProvider, error) {
	c, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	return &SecretManagerProvider{client: c, projectID: projectID}, nil
}

// ResourceName expands a short secret name to its latest-version resource name.
// Full resource names pass through.
func ResourceName(projectID, name string) string {
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name
		}
		return name + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, name)
}

func (p *SecretManagerProvider) GetSecret(ctx context.Context, name string) (string, error) {
	if p.projectID == "" && !strings.HasPrefix(name, "projects/") {
		return "", fmt.Errorf("secret %s: PROJECT_ID is required for short names", name)
	}
	resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: ResourceName(p.projectID, name),
	})
	if status.Code(err) == codes.NotFound {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("AccessSecretVersion: %w", err)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (p *SecretManagerProvider) Close() error {
	return p.client.Close()
}
