package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"codeverse/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type s3ClientOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ForcePathStyle  bool
}

type remoteS3Store struct {
	client    *s3.Client
	bucket    string
	prefix    string
	probeAddr string
}

func NewS3RemoteStore(cfg config.Config) (RemoteStore, error) {
	bucket := strings.TrimSpace(cfg.RemoteS3Bucket)
	if bucket == "" {
		return nil, errors.New("syncer: missing S3 bucket")
	}
	region := strings.TrimSpace(cfg.RemoteS3Region)
	if region == "" {
		return nil, errors.New("syncer: missing S3 region")
	}
	accessKey := strings.TrimSpace(cfg.RemoteS3AccessKeyID)
	secretKey := strings.TrimSpace(cfg.RemoteS3SecretAccessKey)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("syncer: missing S3 credentials")
	}

	endpoint := strings.TrimSpace(cfg.RemoteS3Endpoint)
	client, err := newS3Client(s3ClientOptions{
		Region:          region,
		Endpoint:        endpoint,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    strings.TrimSpace(cfg.RemoteS3SessionToken),
		ForcePathStyle:  cfg.RemoteS3ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("syncer: create S3 client: %w", err)
	}

	if endpoint == "" {
		endpoint = fmt.Sprintf("s3.%s.amazonaws.com", region)
	}

	return &remoteS3Store{
		client:    client,
		bucket:    bucket,
		prefix:    trimPrefix(cfg.RemoteS3Prefix),
		probeAddr: endpointToProbeAddr(endpoint),
	}, nil
}

func NewR2RemoteStore(cfg config.Config) (RemoteStore, error) {
	bucket := strings.TrimSpace(cfg.RemoteR2Bucket)
	if bucket == "" {
		return nil, errors.New("syncer: missing R2 bucket")
	}
	accessKey := strings.TrimSpace(cfg.RemoteR2AccessKeyID)
	secretKey := strings.TrimSpace(cfg.RemoteR2SecretAccessKey)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("syncer: missing R2 credentials")
	}

	endpoint := strings.TrimSpace(cfg.RemoteR2Endpoint)
	accountID := strings.TrimSpace(cfg.RemoteR2AccountID)
	if endpoint == "" {
		if accountID == "" {
			return nil, errors.New("syncer: missing R2 endpoint or account id")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}

	region := strings.TrimSpace(cfg.RemoteR2Region)
	if region == "" {
		region = "auto"
	}

	client, err := newS3Client(s3ClientOptions{
		Region:          region,
		Endpoint:        endpoint,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		ForcePathStyle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("syncer: create R2 client: %w", err)
	}

	return &remoteS3Store{
		client:    client,
		bucket:    bucket,
		prefix:    trimPrefix(cfg.RemoteR2Prefix),
		probeAddr: endpointToProbeAddr(endpoint),
	}, nil
}

func (s *remoteS3Store) ProbeAddr() string {
	return s.probeAddr
}

func (s *remoteS3Store) PutObject(ctx context.Context, key string, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}

	fullKey := joinPrefix(s.prefix, key)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(fullKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *remoteS3Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	fullKey := joinPrefix(s.prefix, key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

func (s *remoteS3Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := joinPrefix(s.prefix, prefix)
	if strings.HasSuffix(prefix, "/") && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *remoteS3Store) DeleteObject(ctx context.Context, key string) error {
	fullKey := joinPrefix(s.prefix, key)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

var _ RemoteStore = (*remoteS3Store)(nil)

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := strings.ToLower(apiErr.ErrorCode())
		if code == "notfound" || code == "nosuchkey" || code == "404" {
			return true
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "status code: 404") {
		return true
	}
	return false
}

func newS3Client(opts s3ClientOptions) (*s3.Client, error) {
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		return nil, errors.New("syncer: missing S3 region")
	}
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("syncer: missing S3 credentials")
	}

	credentialsProvider := aws.NewCredentialsCache(
		credentials.NewStaticCredentialsProvider(accessKey, secretKey, strings.TrimSpace(opts.SessionToken)),
	)

	awsCfg := aws.Config{
		Region:      region,
		Credentials: credentialsProvider,
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:           endpoint,
					SigningRegion: region,
				}, nil
			}
			return aws.Endpoint{}, fmt.Errorf("syncer: no endpoint for service %s", service)
		})
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.ForcePathStyle
	})

	return client, nil
}

// endpointToProbeAddr 把端点 URL 转成探测用的 host:port。
func endpointToProbeAddr(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := parsed.Host
	if parsed.Port() == "" {
		if parsed.Scheme == "http" {
			host += ":80"
		} else {
			host += ":443"
		}
	}
	return host
}
