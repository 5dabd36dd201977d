package export

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// ErrMissingAzureURL is returned when no service URL is configured.
var ErrMissingAzureURL = errors.New("azure_service_url is not configured")

// uploadBufferAPI is the part of *azblob.Client the sink uses.
type uploadBufferAPI interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureSink uploads an export as one block blob.
type AzureSink struct {
	client    uploadBufferAPI
	container string
	blob      string
}

// NewAzureSink creates a sink for azblob://container/blob. serviceURL is the
// account URL including a SAS token, e.g.
// https://<account>.blob.core.windows.net/?sv=...
func NewAzureSink(serviceURL, container, blobName string, httpClient *nethttp.Client) (*AzureSink, error) {
	if serviceURL == "" {
		return nil, ErrMissingAzureURL
	}
	if blobName == "" {
		return nil, fmt.Errorf("azblob destination needs a blob name")
	}

	opts := &azblob.ClientOptions{}
	if httpClient != nil {
		opts.ClientOptions = azcore.ClientOptions{Transport: httpClient}
	}
	client, err := azblob.NewClientWithNoCredential(serviceURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &AzureSink{client: client, container: container, blob: blobName}, nil
}

func (s *AzureSink) String() string { return "azblob://" + s.container + "/" + s.blob }

// Put uploads data, replacing any existing blob.
func (s *AzureSink) Put(ctx context.Context, data []byte, contentType string) error {
	_, err := s.client.UploadBuffer(ctx, s.container, s.blob, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			return fmt.Errorf("upload %s: %s (status %d): %w", s, respErr.ErrorCode, respErr.StatusCode, err)
		}
		return fmt.Errorf("upload %s: %w", s, err)
	}
	return nil
}
