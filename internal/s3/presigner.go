package s3

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const uploadURLExpiry = 15 * time.Minute

type Options struct {
	Endpoint     string
	Region       string
	BucketName   string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type FilePresigner struct {
	S3PresignClient *s3.PresignClient
	BucketName      string
	endpoint        string
}

func NewFilePresigner(ctx context.Context, opts Options) (*FilePresigner, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)

	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSuffix(opts.Endpoint, "/")

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &FilePresigner{
		S3PresignClient: s3.NewPresignClient(s3Client),
		BucketName:      opts.BucketName,
		endpoint:        endpoint,
	}, nil
}

func (p *FilePresigner) GeneratePresignedUploadURL(ctx context.Context, objectKey string) (string, error) {
	request, err := p.S3PresignClient.PresignPutObject(
		ctx,
		&s3.PutObjectInput{
			Bucket: aws.String(p.BucketName),
			Key:    aws.String(objectKey),
		},
		func(opts *s3.PresignOptions) {
			opts.Expires = uploadURLExpiry
		},
	)

	if err != nil {
		return "", err
	}

	return request.URL, nil
}

// PresignMealPhotoUpload returns a PUT url for a fresh object under the meal's
// prefix together with the public url the object will have once uploaded.
func (p *FilePresigner) PresignMealPhotoUpload(ctx context.Context, mealID uuid.UUID) (string, string, error) {
	objectKey := MealPhotoKey(mealID, uuid.New())

	uploadURL, err := p.GeneratePresignedUploadURL(ctx, objectKey)
	if err != nil {
		return "", "", err
	}

	return uploadURL, p.endpoint + "/" + p.BucketName + "/" + objectKey, nil
}

func MealPhotoKey(mealID, photoID uuid.UUID) string {
	return "meal-photos/" + mealID.String() + "/" + photoID.String() + ".jpg"
}
