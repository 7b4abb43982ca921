// Package objectstore puts and deletes objects in S3-compatible storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mx-space/folio/internal/config"
)

// ErrNotConfigured is returned by New when the S3 settings are incomplete.
var ErrNotConfigured = errors.New("incomplete s3 config: bucket, region, access_key_id and secret_access_key are required")

type Store struct {
	client     *s3.Client
	bucket     string
	endpoint   *url.URL
	pathStyle  bool
	publicBase string
}

func New(cfg config.S3Config) (*Store, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	region := strings.TrimSpace(cfg.Region)

	endpoint := strings.TrimSpace(cfg.Endpoint)
	pathStyle := cfg.PathStyle
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", region)
	} else {
		// Custom endpoints (MinIO, R2) generally only route path-style.
		pathStyle = true
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	parsed, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid s3 endpoint: %s", endpoint)
	}

	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(parsed.String()),
		UsePathStyle: pathStyle,
		Credentials: credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(cfg.AccessKeyID), strings.TrimSpace(cfg.SecretAccessKey), ""),
	})
	return &Store{
		client:     client,
		bucket:     strings.TrimSpace(cfg.Bucket),
		endpoint:   parsed,
		pathStyle:  pathStyle,
		publicBase: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
	}, nil
}

// Put uploads body under key and returns the object's public URL.
func (s *Store) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) (string, error) {
	key = NormalizeKey(key)
	if key == "" {
		return "", errors.New("invalid s3 object key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// Delete removes key. Deleting a missing object succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	key = NormalizeKey(key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

// PublicURL is where clients can fetch key.
func (s *Store) PublicURL(key string) string {
	key = NormalizeKey(key)
	if s.publicBase != "" {
		return s.publicBase + "/" + encodeKey(key)
	}
	base := strings.TrimSuffix(s.endpoint.Path, "/")
	if s.pathStyle {
		return s.endpoint.Scheme + "://" + s.endpoint.Host + base + "/" + s.bucket + "/" + encodeKey(key)
	}
	return s.endpoint.Scheme + "://" + s.bucket + "." + s.endpoint.Host + base + "/" + encodeKey(key)
}

// NormalizeKey turns key into a clean slash-separated relative path.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return key
}

func encodeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
