package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"dentaldesk/internal/log"
)

// S3Config holds the S3/Wasabi configuration
type S3Config struct {
	Endpoint        string // S3 endpoint (e.g., s3.wasabisys.com)
	Region          string // Region (e.g., us-east-1)
	Bucket          string // Bucket name
	AccessKeyID     string
	SecretAccessKey string
	Root            string // Root path prefix (e.g., "development" or "production")
	MaxVersions     int    // Max versions to keep (0 or negative means unlimited, default 10)
}

// S3Storage provides S3-compatible document storage.
// Implements the Storage interface.
type S3Storage struct {
	s3Client    *s3.Client
	bucket      string
	root        string
	maxVersions int
}

// Ensure S3Storage implements Storage interface
var _ Storage = (*S3Storage)(nil)

// NewS3Storage creates a new S3-compatible storage client
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	// Custom endpoint resolver for Wasabi and other S3-compatible stores
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			return aws.Endpoint{
				URL:               endpoint,
				SigningRegion:     cfg.Region,
				HostnameImmutable: true,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for Wasabi and many S3-compatible stores
	})

	maxVersions := cfg.MaxVersions
	if maxVersions == 0 {
		maxVersions = 10
	}

	return &S3Storage{
		s3Client:    s3Client,
		bucket:      cfg.Bucket,
		root:        strings.Trim(cfg.Root, "/"),
		maxVersions: maxVersions,
	}, nil
}

// CheckConnection verifies connectivity by checking that the bucket exists
func (s *S3Storage) CheckConnection(ctx context.Context) error {
	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot connect to bucket '%s': %w", s.bucket, err)
	}
	return nil
}

// Key layout:
// /{root}/tenants/{tenant}/{collection}/{id}.json

func (s *S3Storage) documentKey(tenant, collection, id string) string {
	return path.Join(s.root, "tenants", tenant, collection, id+".json")
}

func (s *S3Storage) collectionPrefix(tenant, collection string) string {
	return path.Join(s.root, "tenants", tenant, collection) + "/"
}

// Put stores a JSON document
func (s *S3Storage) Put(ctx context.Context, tenant, collection, id string, content []byte) (*Item, error) {
	key := s.documentKey(tenant, collection, id)

	result, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object: %w", err)
	}

	if s.maxVersions > 0 {
		go s.pruneVersions(context.Background(), key)
	}

	return &Item{
		Key:          key,
		Collection:   collection,
		ID:           id,
		Content:      content,
		ContentType:  "application/json",
		VersionID:    aws.ToString(result.VersionId),
		LastModified: time.Now().UTC(),
		Size:         int64(len(content)),
		ETag:         aws.ToString(result.ETag),
	}, nil
}

// pruneVersions deletes old versions beyond maxVersions
func (s *S3Storage) pruneVersions(ctx context.Context, key string) {
	versions, err := s.s3Client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(key),
	})
	if err != nil {
		log.Error("Failed to list versions for pruning: %v", err)
		return
	}

	// Filter to only versions of this exact key (not prefix matches)
	var objectVersions []types.ObjectVersion
	for _, v := range versions.Versions {
		if aws.ToString(v.Key) == key {
			objectVersions = append(objectVersions, v)
		}
	}

	if len(objectVersions) <= s.maxVersions {
		return
	}

	// Versions are returned newest first, so skip the first maxVersions
	for _, v := range objectVersions[s.maxVersions:] {
		_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket:    aws.String(s.bucket),
			Key:       aws.String(key),
			VersionId: v.VersionId,
		})
		if err != nil {
			log.Error("Failed to delete old version %s: %v", aws.ToString(v.VersionId), err)
		} else {
			log.Debug("Pruned old version %s of %s", aws.ToString(v.VersionId), key)
		}
	}
}

// Get retrieves a document
func (s *S3Storage) Get(ctx context.Context, tenant, collection, id string) (*Item, error) {
	key := s.documentKey(tenant, collection, id)

	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	ct := "application/json"
	if result.ContentType != nil {
		ct = *result.ContentType
	}

	var lastMod time.Time
	if result.LastModified != nil {
		lastMod = *result.LastModified
	}

	return &Item{
		Key:          key,
		Collection:   collection,
		ID:           id,
		Content:      content,
		ContentType:  ct,
		VersionID:    aws.ToString(result.VersionId),
		LastModified: lastMod,
		Size:         int64(len(content)),
		ETag:         aws.ToString(result.ETag),
	}, nil
}

// Delete removes a document
func (s *S3Storage) Delete(ctx context.Context, tenant, collection, id string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.documentKey(tenant, collection, id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List returns every document of a collection with its content
func (s *S3Storage) List(ctx context.Context, tenant, collection string) ([]*Item, error) {
	prefix := s.collectionPrefix(tenant, collection)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}

	var items []*Item
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, prefix)
			// Skip nested prefixes
			if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
				continue
			}

			item, err := s.Get(ctx, tenant, collection, strings.TrimSuffix(name, ".json"))
			if err != nil {
				log.Warn("Skipping unreadable document %s: %v", key, err)
				continue
			}
			items = append(items, item)
		}
	}

	return items, nil
}

// Exists checks if a document exists
func (s *S3Storage) Exists(ctx context.Context, tenant, collection, id string) (bool, error) {
	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.documentKey(tenant, collection, id)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}
