package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultS3Region = "us-east-1"

type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3ClientConfig) hasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

func initializeS3Client(cfg S3ClientConfig) (*s3.Client, error) {
	ctx := context.Background()

	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(region)}
	if cfg.hasStaticCredentials() {
		opts = append(opts, aws_config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	// Public buckets can still be read when no credentials are found.
	if !cfg.hasStaticCredentials() {
		if awsCfg.Credentials == nil {
			awsCfg.Credentials = aws.AnonymousCredentials{}
		} else if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
			awsCfg.Credentials = aws.AnonymousCredentials{}
		}
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}
