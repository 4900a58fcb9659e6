package syncer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"codeverse/internal/config"
)

const (
	// TypeS3 表示 Amazon S3 或兼容的远端存储。
	TypeS3 = "s3"
	// TypeOSS 表示阿里云 OSS 远端存储。
	TypeOSS = "oss"
	// TypeCOS 表示腾讯云 COS 远端存储。
	TypeCOS = "cos"
	// TypeR2 表示 Cloudflare R2 远端存储。
	TypeR2 = "r2"
)

// ErrObjectNotFound 远端对象不存在。
var ErrObjectNotFound = errors.New("remote object not found")

// RemoteStore 是同步所用远端文档存储的抽象，对象内容是 JSON 文档。
type RemoteStore interface {
	PutObject(ctx context.Context, key string, data []byte) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	// ListKeys 返回指定前缀下的全部对象键
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeleteObject(ctx context.Context, key string) error

	// ProbeAddr 返回可用于连通性探测的 host:port
	ProbeAddr() string
}

// NewRemoteStore 根据配置实例化远端存储；类型为空表示未启用同步。
func NewRemoteStore(cfg config.Config) (RemoteStore, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.RemoteStoreType))
	switch typeName {
	case "":
		return nil, nil
	case TypeS3:
		return NewS3RemoteStore(cfg)
	case TypeR2:
		return NewR2RemoteStore(cfg)
	case TypeOSS:
		return NewOSSRemoteStore(cfg)
	case TypeCOS:
		return NewCOSRemoteStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported remote store type: %s", cfg.RemoteStoreType)
	}
}

// 远端键布局：
//   records/{accountID}/{recordID}.json
//   tombstones/{accountID}/{recordID}.json

func recordPrefix(userID uint) string {
	return fmt.Sprintf("records/%d/", userID)
}

func recordKey(userID uint, recordID string) string {
	return fmt.Sprintf("records/%d/%s.json", userID, recordID)
}

func tombstonePrefix(userID uint) string {
	return fmt.Sprintf("tombstones/%d/", userID)
}

func tombstoneKey(userID uint, recordID string) string {
	return fmt.Sprintf("tombstones/%d/%s.json", userID, recordID)
}

// recordIDFromKey 从对象键中取出记录 ID。
func recordIDFromKey(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, ".json")
}

func joinPrefix(prefix, key string) string {
	cleanPrefix := trimPrefix(prefix)
	if cleanPrefix == "" {
		return strings.TrimLeft(key, "/")
	}
	return path.Join(cleanPrefix, strings.TrimLeft(key, "/"))
}

func trimPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}
