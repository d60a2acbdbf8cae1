// Package token provides durable markers whose existence (and sometimes
// content) records orchestration state. Tokens live at caller-supplied
// paths on local disk or S3.
package token

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
)

// Store is a durable key to presence/content store.
type Store interface {
	// Exists reports whether a token is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Read returns the content of the token at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write records a token at path, creating parents as needed.
	Write(ctx context.Context, path string, content []byte) error

	// Delete removes the token at path. Deleting an absent token is a no-op.
	Delete(ctx context.Context, path string) error
}

// NewStore returns a Store appropriate for the scheme of basePath:
// s3://bucket/... selects the S3 backend, anything else the local
// filesystem backend.
func NewStore(ctx context.Context, basePath string) (Store, error) {
	if strings.HasPrefix(basePath, "s3://") {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewS3Store(s3.NewFromConfig(cfg)), nil
	}
	return NewFileStore(afero.NewOsFs()), nil
}
