package receipt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config はS3互換ストレージの接続設定。
type S3Config struct {
	// Endpoint が空の場合はAWSの標準エンドポイントを使う。
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicBaseURL は公開URLの接頭辞。空の場合はエンドポイントから組み立てる。
	PublicBaseURL string
	HTTPClient    *http.Client
}

// S3Store はS3互換ストレージへのObjectStore実装。
type S3Store struct {
	client        *s3.Client
	bucket        string
	region        string
	publicBaseURL string
}

// NewS3Store はS3Storeを生成する。Endpointが指定されている場合はパス形式でアクセスする。
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	opts := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(creds),
		config.WithRegion(cfg.Region),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, config.WithHTTPClient(cfg.HTTPClient))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = defaultPublicBaseURL(endpoint, cfg.Bucket, cfg.Region)
	}

	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		publicBaseURL: base,
	}, nil
}

func defaultPublicBaseURL(endpoint, bucket, region string) string {
	if endpoint != "" {
		return endpoint + "/" + bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}

// EnsureBucket はバケットが存在しない場合に作成する。
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}

	slog.Info("receipt bucket created", slog.String("bucket", s.bucket))
	return nil
}

// PutObject はオブジェクトを上書き保存し、公開URLを返す。
func (s *S3Store) PutObject(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("max-age=3600"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// PublicURL はキーに対応する公開URLを返す。
func (s *S3Store) PublicURL(key string) string {
	return s.publicBaseURL + "/" + url.PathEscape(key)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

var _ ObjectStore = (*S3Store)(nil)
