package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"codeverse/internal/config"

	"github.com/tencentyun/cos-go-sdk-v5"
)

type cosStore struct {
	client    *cos.Client
	prefix    string
	probeAddr string
}

func NewCOSRemoteStore(cfg config.Config) (RemoteStore, error) {
	baseURL := strings.TrimSpace(cfg.RemoteCOSBucketURL)
	if baseURL == "" {
		return nil, errors.New("syncer: missing COS bucket URL")
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("syncer: parse COS bucket URL: %w", err)
	}

	secretID := strings.TrimSpace(cfg.RemoteCOSSecretID)
	secretKey := strings.TrimSpace(cfg.RemoteCOSSecretKey)
	if secretID == "" || secretKey == "" {
		return nil, errors.New("syncer: missing COS credentials")
	}

	transport := &cos.AuthorizationTransport{
		SecretID:  secretID,
		SecretKey: secretKey,
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: parsedURL}, &http.Client{Transport: transport})

	return &cosStore{
		client:    client,
		prefix:    trimPrefix(cfg.RemoteCOSPrefix),
		probeAddr: endpointToProbeAddr(baseURL),
	}, nil
}

func (s *cosStore) ProbeAddr() string {
	return s.probeAddr
}

func (s *cosStore) PutObject(ctx context.Context, key string, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}

	fullKey := joinPrefix(s.prefix, key)
	options := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType: "application/json",
		},
	}

	resp, err := s.client.Object.Put(ctx, fullKey, bytes.NewReader(data), options)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *cosStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	fullKey := joinPrefix(s.prefix, key)
	resp, err := s.client.Object.Get(ctx, fullKey, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if cos.IsNotFoundError(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

func (s *cosStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := joinPrefix(s.prefix, prefix)
	if strings.HasSuffix(prefix, "/") && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	var keys []string
	marker := ""
	for {
		result, resp, err := s.client.Bucket.Get(ctx, &cos.BucketGetOptions{
			Prefix: fullPrefix,
			Marker: marker,
		})
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range result.Contents {
			key := obj.Key
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			keys = append(keys, key)
		}
		if !result.IsTruncated {
			break
		}
		marker = result.NextMarker
	}
	return keys, nil
}

func (s *cosStore) DeleteObject(ctx context.Context, key string) error {
	fullKey := joinPrefix(s.prefix, key)
	resp, err := s.client.Object.Delete(ctx, fullKey)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

var _ RemoteStore = (*cosStore)(nil)
