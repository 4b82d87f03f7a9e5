package services

import (
	"context"
	"fmt"
	"time"

	"maum-baedal-backend/internal/apperrors"
	"maum-baedal-backend/internal/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var allowedAvatarTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// AvatarService issues pre-signed S3 upload URLs for profile images.
type AvatarService struct {
	store    store.Store
	s3Client *s3.Client
	bucket   string
	region   string
}

// AvatarConfig holds the S3 settings for avatar uploads.
type AvatarConfig struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string

	// Endpoint overrides the S3 endpoint for S3-compatible storage.
	Endpoint string
}

// NewAvatarService creates a new avatar service
func NewAvatarService(st store.Store, cfg AvatarConfig) (*AvatarService, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &AvatarService{
		store:    st,
		s3Client: client,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
	}, nil
}

// UploadResponse represents the response with pre-signed URL
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	ImageURL  string `json:"image_url"`
	ExpiresIn int    `json:"expires_in"`
}

// GetUploadURL generates a pre-signed PUT URL for the user's avatar and
// records the resulting public URL on the profile.
func (s *AvatarService) GetUploadURL(ctx context.Context, userID, contentType string) (*UploadResponse, error) {
	ext, ok := allowedAvatarTypes[contentType]
	if !ok {
		return nil, apperrors.Invalid("unsupported image type: " + contentType)
	}

	key := fmt.Sprintf("avatars/%s/%s.%s", userID, uuid.New().String(), ext)

	presignClient := s3.NewPresignClient(s.s3Client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 5 * time.Minute
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	imageURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	if err := s.store.Users().UpdateImage(ctx, userID, imageURL); err != nil {
		return nil, fmt.Errorf("failed to update profile image: %w", err)
	}

	return &UploadResponse{
		UploadURL: request.URL,
		ImageURL:  imageURL,
		ExpiresIn: 300,
	}, nil
}
