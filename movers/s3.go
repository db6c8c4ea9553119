package movers

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aistore/movefabric/urlutil"
)

func init() {
	Register("s3", func() Mover { return &S3Mover{} })
}

// S3Mover uploads to an S3-compatible bucket. It reads the top-level
// Params.Extra keys endpoint_url, region_name and use_path_style (a bool);
// keys nested under client_kwargs (such as "client_kwargs.endpoint_url"
// from a "__"-flattened INI key) are not read.
type S3Mover struct{}

func (m *S3Mover) client(ctx context.Context, p Params) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if endpoint, ok := p.Extra["endpoint_url"].(string); ok && endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(endpoint))
	}
	if region, ok := p.Extra["region_name"].(string); ok && region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if usePath, ok := p.Extra["use_path_style"].(bool); ok {
			o.UsePathStyle = usePath
		}
	}), nil
}

func (m *S3Mover) Copy(ctx context.Context, origin, destination string, p Params) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("s3: parse destination: %w", err)
	}
	bucket := u.Hostname()
	key := DestPath(u.Path, origin)
	for len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	cl, err := m.client(ctx, p)
	if err != nil {
		return "", err
	}
	f, err := os.Open(origin)
	if err != nil {
		return "", err
	}
	defer f.Close()

	uploader := manager.NewUploader(cl)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %s/%s: %w", bucket, key, err)
	}
	clean := *u
	clean.User = nil
	clean.Path = "/" + key
	return urlutil.Clean(clean.String()), nil
}

func (m *S3Mover) Move(ctx context.Context, origin, destination string, p Params) (string, error) {
	dst, err := m.Copy(ctx, origin, destination, p)
	if err != nil {
		return "", err
	}
	os.Remove(origin)
	return dst, nil
}
