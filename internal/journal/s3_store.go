package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// DefaultPrefix is the key prefix entries are written under.
const DefaultPrefix = "ggprov/journal"

type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps one JSON object per request at <prefix>/<request-id>.json.
type S3Store struct {
	client objectAPI
	bucket string
	prefix string
	sealer Sealer
}

// NewS3Store returns a store writing to bucket. sealer may be nil.
func NewS3Store(client objectAPI, bucket, prefix string, sealer Sealer) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 journal requires a bucket")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix, sealer: sealer}, nil
}

func (s *S3Store) key(requestID string) string {
	return path.Join(s.prefix, requestID+".json")
}

func (s *S3Store) Get(ctx context.Context, requestID string) (*Entry, error) {
	key := s.key(requestID)
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}

	content, err := unseal(ctx, s.sealer, buf.Bytes())
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(content, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse journal entry %s: %w", key, err)
	}
	return &entry, nil
}

func (s *S3Store) Put(ctx context.Context, entry *Entry) error {
	content, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	sealed, err := seal(ctx, s.sealer, content)
	if err != nil {
		return fmt.Errorf("failed to encrypt journal entry: %w", err)
	}

	key := s.key(entry.RequestID)
	input := &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(sealed),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	}
	if s.sealer == nil {
		input.ContentType = aws.String("application/json")
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to write s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
