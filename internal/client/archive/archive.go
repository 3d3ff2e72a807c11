// Package archive exports change sets that are about to be discarded, so a
// purge that loses unsynced work leaves a recoverable copy behind. Payloads
// are JSON, snappy-compressed and sealed with a passphrase-derived key.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/cryptox"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"
	"github.com/google/uuid"
)

var ErrNoPassphrase = errors.New("archive passphrase is not configured")

type Archiver interface {
	// Archive stores set and returns the object key it was written under.
	Archive(ctx context.Context, set *models.ArchivedChangeSet) (string, error)
}

// Nop drops change sets; it is used when no bucket is configured.
type Nop struct{}

func (Nop) Archive(context.Context, *models.ArchivedChangeSet) (string, error) { return "", nil }

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type S3Archiver struct {
	client     objectPutter
	bucket     string
	passphrase []byte
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Archiver builds an archiver over an S3-compatible bucket. Static
// credentials are used when AccessKey is set, otherwise the default chain.
func NewS3Archiver(ctx context.Context, opts S3Options, passphrase string) (*S3Archiver, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Archiver(client, opts.Bucket, passphrase), nil
}

func newS3Archiver(client objectPutter, bucket, passphrase string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, passphrase: []byte(passphrase)}
}

func (a *S3Archiver) Archive(ctx context.Context, set *models.ArchivedChangeSet) (string, error) {
	blob, err := Encode(set, a.passphrase)
	if err != nil {
		return "", err
	}
	key := ObjectKey(set)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"checkout-id": set.CheckoutID,
			"reason":      set.Reason,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive %s: %w", key, err)
	}
	return key, nil
}

// ObjectKey places archives under the device and day they were created.
func ObjectKey(set *models.ArchivedChangeSet) string {
	d := set.CreatedAt
	if d.IsZero() {
		d = time.Now().UTC()
	}
	device := set.DeviceID
	if device == "" {
		device = "unknown"
	}
	return fmt.Sprintf("devices/%s/%d/%02d/%02d/%s.bin", device, d.Year(), d.Month(), d.Day(), uuid.New())
}

func Encode(set *models.ArchivedChangeSet, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrNoPassphrase
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change set: %w", err)
	}
	return cryptox.SealWithPassphrase(snappy.Encode(nil, raw), passphrase)
}

func Decode(blob, passphrase []byte) (*models.ArchivedChangeSet, error) {
	compressed, err := cryptox.OpenWithPassphrase(blob, passphrase)
	if err != nil {
		return nil, err
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress change set: %w", err)
	}
	var set models.ArchivedChangeSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("failed to decode change set: %w", err)
	}
	return &set, nil
}
