package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store retains a named artifact bundle and returns a shareable link to it.
type Store interface {
	Upload(ctx context.Context, name, dir string, files []string) (string, error)
}

// LocalStore keeps artifact bundles on the runner's filesystem. The returned
// file:// link is only meaningful on the runner itself and is never posted
// to pull requests.
type LocalStore struct {
	root string
}

// NewLocalStore ensures the artifact root exists.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Upload bundles the files into <root>/<name>.zip.
func (s *LocalStore) Upload(ctx context.Context, name, dir string, files []string) (string, error) {
	if err := validateBundle(name, files); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, name+".zip")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if err := Bundle(dir, files, f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	return "file://" + abs, nil
}

// S3Store uploads artifact bundles to a bucket and links them with presigned
// GET URLs.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	linkTTL time.Duration
}

// NewS3Store builds a store from ambient AWS credentials.
func NewS3Store(ctx context.Context, bucket, prefix string, linkTTL time.Duration) (*S3Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("artifact bucket cannot be empty")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	if linkTTL <= 0 {
		linkTTL = 72 * time.Hour
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		linkTTL: linkTTL,
	}, nil
}

// Upload bundles the files, puts the zip at <prefix>/<name>.zip and returns
// a presigned download link.
func (s *S3Store) Upload(ctx context.Context, name, dir string, files []string) (string, error) {
	if err := validateBundle(name, files); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := Bundle(dir, files, &buf); err != nil {
		return "", err
	}
	key := name + ".zip"
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	contentType := "application/zip"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload artifact: %w", err)
	}
	signed, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.linkTTL))
	if err != nil {
		return "", fmt.Errorf("presign artifact link: %w", err)
	}
	return signed.URL, nil
}

func validateBundle(name string, files []string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("artifact name %q cannot contain path separators", name)
	}
	if len(files) == 0 {
		return fmt.Errorf("artifact is empty")
	}
	return nil
}
