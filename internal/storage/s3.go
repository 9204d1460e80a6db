package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Exporter copies finished PDFs to an S3 bucket so results survive
// the redis artifact TTL.
type S3Exporter struct {
	uploader   *manager.Uploader
	bucketName string
	prefix     string
}

// NewS3Exporter creates an exporter using the ambient AWS credential chain.
func NewS3Exporter(ctx context.Context, bucketName, prefix string) (*S3Exporter, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg)

	return &S3Exporter{
		uploader:   manager.NewUploader(cli),
		bucketName: bucketName,
		prefix:     prefix,
	}, nil
}

// Export uploads a finished PDF under prefix/jobID/filename and returns
// the object key.
func (e *S3Exporter) Export(ctx context.Context, jobID, filename string, data []byte) (string, error) {
	key := path.Join(e.prefix, jobID, filename)

	_, err := e.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("result upload failed")
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().Str("key", key).Int("size", len(data)).Msg("uploaded result to S3")
	return key, nil
}
