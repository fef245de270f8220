// Package backup uploads store snapshots to S3.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/soaringjerry/Vitals/internal/api"
)

const keyPrefix = "vitals/snapshots/"

// S3API is the part of *s3.Client the uploader needs.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	client S3API
	bucket string
	now    func() time.Time
}

func NewS3Uploader(client S3API, bucket string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, errors.New("backup bucket is required")
	}
	return &S3Uploader{client: client, bucket: bucket, now: time.Now}, nil
}

// NewS3UploaderFromEnv uses the default AWS configuration chain. Path-style
// addressing keeps local S3 emulators working.
func NewS3UploaderFromEnv(ctx context.Context, bucket string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	})
	return NewS3Uploader(client, bucket)
}

// Key names the object for a snapshot taken at t.
func Key(t time.Time) string {
	return keyPrefix + t.UTC().Format("20060102T150405Z") + ".json"
}

// Upload takes a snapshot of store and writes it to the bucket, returning the object key.
func (u *S3Uploader) Upload(ctx context.Context, store api.Store) (string, error) {
	snap, err := store.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := Key(u.now())
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(u.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ACL:                  types.ObjectCannedACLPrivate,
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	log.Printf("backup: uploaded %d users, %d progress updates to s3://%s/%s", len(snap.Users), len(snap.ProgressUpdates), u.bucket, key)
	return key, nil
}
