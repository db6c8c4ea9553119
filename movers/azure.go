package movers

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/aistore/movefabric/urlutil"
)

func init() {
	Register("azure", func() Mover { return &AzureMover{} })
	Register("abfs", func() Mover { return &AzureMover{} })
}

// AzureMover uploads to an Azure Blob Storage container. The mover set is a
// scheme-keyed open registry, so this backend supplements the explicitly
// listed movers with another cloud backend alongside S3, the same way
// ais/backend/azure.go sits next to ais/backend/aws.go.
type AzureMover struct{}

// account_url (or account_name, from which the URL is derived) and
// account_key are read from Params.Extra to build the SDK credential; the
// container comes from the destination's azure://<container>/<path> host.
func (m *AzureMover) client(p Params) (*azblob.Client, error) {
	accountURL, _ := p.Extra["account_url"].(string)
	accountKey, _ := p.Extra["account_key"].(string)
	accountName, _ := p.Extra["account_name"].(string)
	if accountURL == "" && accountName != "" {
		accountURL = fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	}
	if accountURL == "" {
		return nil, fmt.Errorf("azure: missing account_url/account_name in connection_parameters")
	}
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure: credential: %w", err)
	}
	return azblob.NewClientWithSharedKeyCredential(accountURL, cred, nil)
}

func (m *AzureMover) Copy(ctx context.Context, origin, destination string, p Params) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("azure: parse destination: %w", err)
	}
	container := u.Hostname()
	key := DestPath(u.Path, origin)
	for len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	cl, err := m.client(p)
	if err != nil {
		return "", err
	}
	f, err := os.Open(origin)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := cl.UploadFile(ctx, container, key, f, nil); err != nil {
		return "", fmt.Errorf("azure: upload %s/%s: %w", container, key, err)
	}
	clean := *u
	clean.User = nil
	clean.Path = "/" + key
	return urlutil.Clean(clean.String()), nil
}

func (m *AzureMover) Move(ctx context.Context, origin, destination string, p Params) (string, error) {
	dst, err := m.Copy(ctx, origin, destination, p)
	if err != nil {
		return "", err
	}
	os.Remove(origin)
	return dst, nil
}
