package artifact

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureBackend mirrors artifact bytes to a Blob Storage container, enabled
// when AZURE_STORAGE_ACCOUNT/AZURE_STORAGE_CONTAINER are configured. It
// generalizes the teacher's own Azure sidecar's role (pushing recorded
// media to Blob Storage) to mirroring frame artifacts.
type AzureBackend struct {
	client    *azblob.Client
	container string
}

// NewAzureBackend authenticates against account using the default Azure
// credential chain and targets container.
func NewAzureBackend(account, container string) (*AzureBackend, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &AzureBackend{client: client, container: container}, nil
}

func (b *AzureBackend) Write(ctx context.Context, path string, data []byte) error {
	_, err := b.client.UploadBuffer(ctx, b.container, path, data, &azblob.UploadBufferOptions{
		AccessTier: nil,
	})
	if err != nil {
		return fmt.Errorf("azure upload %s: %w", path, err)
	}
	return nil
}
