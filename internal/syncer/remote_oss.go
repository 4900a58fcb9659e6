package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"codeverse/internal/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

type ossStore struct {
	bucket    *oss.Bucket
	prefix    string
	probeAddr string
}

func NewOSSRemoteStore(cfg config.Config) (RemoteStore, error) {
	endpoint := strings.TrimSpace(cfg.RemoteOSSEndpoint)
	if endpoint == "" {
		return nil, errors.New("syncer: missing OSS endpoint")
	}
	bucketName := strings.TrimSpace(cfg.RemoteOSSBucket)
	if bucketName == "" {
		return nil, errors.New("syncer: missing OSS bucket")
	}
	accessKey := strings.TrimSpace(cfg.RemoteOSSAccessKeyID)
	secretKey := strings.TrimSpace(cfg.RemoteOSSAccessKeySecret)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("syncer: missing OSS credentials")
	}

	client, err := oss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("syncer: create OSS client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("syncer: open OSS bucket: %w", err)
	}

	return &ossStore{
		bucket:    bucket,
		prefix:    trimPrefix(cfg.RemoteOSSPrefix),
		probeAddr: endpointToProbeAddr(endpoint),
	}, nil
}

func (s *ossStore) ProbeAddr() string {
	return s.probeAddr
}

func (s *ossStore) PutObject(ctx context.Context, key string, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}

	fullKey := joinPrefix(s.prefix, key)
	options := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType("application/json"),
	}
	if err := s.bucket.PutObject(fullKey, bytes.NewReader(data), options...); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *ossStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	fullKey := joinPrefix(s.prefix, key)
	body, err := s.bucket.GetObject(fullKey, oss.WithContext(ctx))
	if err != nil {
		if isOSSNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

func (s *ossStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := joinPrefix(s.prefix, prefix)
	if strings.HasSuffix(prefix, "/") && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	var keys []string
	marker := oss.Marker("")
	for {
		result, err := s.bucket.ListObjects(oss.Prefix(fullPrefix), marker, oss.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range result.Objects {
			key := obj.Key
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			keys = append(keys, key)
		}
		if !result.IsTruncated {
			break
		}
		marker = oss.Marker(result.NextMarker)
	}
	return keys, nil
}

func (s *ossStore) DeleteObject(ctx context.Context, key string) error {
	fullKey := joinPrefix(s.prefix, key)
	if err := s.bucket.DeleteObject(fullKey, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

var _ RemoteStore = (*ossStore)(nil)

func isOSSNotFound(err error) bool {
	if err == nil {
		return false
	}
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == 404
	}
	return false
}
