package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore is the subset of the S3 API the uploader needs.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader archives run reports to an object store bucket, one object per
// run, keyed by cluster and timestamp.
type Uploader struct {
	store  ObjectStore
	bucket string
	prefix string
}

// NewUploader creates an Uploader writing under prefix in bucket.
func NewUploader(store ObjectStore, bucket, prefix string) *Uploader {
	return &Uploader{store: store, bucket: bucket, prefix: prefix}
}

// Upload writes the JSON form of the report and returns the object key.
func (u *Uploader) Upload(ctx context.Context, r *RunReport) (string, error) {
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	key := u.objectKey(r)
	_, err := u.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload report to s3://%s/%s: %w", u.bucket, key, err)
	}
	return key, nil
}

func (u *Uploader) objectKey(r *RunReport) string {
	cluster := r.Cluster
	if cluster == "" {
		cluster = "default"
	}
	ts := r.StartedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	key := fmt.Sprintf("%s/%s/%s-%s.json", cluster, ts.Format("2006/01/02"), r.Mode, ts.Format("150405"))
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}
	return key
}
