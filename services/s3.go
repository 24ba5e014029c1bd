package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SnapshotKey is where the JSON snapshot of one generation lives in the bucket.
func SnapshotKey(requestID string) string {
	return fmt.Sprintf("generations/%s.json", requestID)
}

type SnapshotStorageProvider interface {
	PutSnapshot(ctx context.Context, objectKey string, body []byte) error
	GetPresignedReadURL(ctx context.Context, objectKey string) (string, error)
}

type R2Options struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

func (o R2Options) Configured() bool {
	return o.AccountID != "" && o.AccessKeyID != "" && o.AccessKeySecret != "" && o.Bucket != ""
}

// AWSService stores generation snapshots in an R2 bucket through the S3 API.
type AWSService struct {
	Client          *s3.Client
	S3PresignClient *s3.PresignClient
	Bucket          string
}

func NewAWSService(ctx context.Context, opts R2Options) (*AWSService, error) {
	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID),
		}, nil
	})
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &AWSService{
		Client:          client,
		S3PresignClient: s3.NewPresignClient(client),
		Bucket:          opts.Bucket,
	}, nil
}

func (awsService *AWSService) PutSnapshot(ctx context.Context, objectKey string, body []byte) error {
	_, err := awsService.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(awsService.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", objectKey, err)
	}
	return nil
}

func (awsService *AWSService) GetPresignedReadURL(ctx context.Context, objectKey string) (string, error) {
	presignedGetRequest, err := awsService.S3PresignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(awsService.Bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(presignedURLExpiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign request: %w", err)
	}
	return presignedGetRequest.URL, nil
}
