package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API - 테스트에서 교체 가능한 PutObject 부분
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror - S3 버킷으로 결과물 복제
type S3Mirror struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Mirror - 기본 자격 증명 체인으로 S3 클라이언트 생성
func NewS3Mirror(ctx context.Context, region, bucket string) (*S3Mirror, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3Mirror{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: "hairfit-outputs/",
	}, nil
}

func (m *S3Mirror) Name() string { return "s3" }

// Upload - PutObject 후 s3:// 키 반환
func (m *S3Mirror) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectKey := m.prefix + key
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", m.bucket, objectKey), nil
}
