package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	DBType     string `env:"DBType" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DBUser" envDefault:""`
	DBPassword string `env:"DBPassword" envDefault:""`
	DBAddr     string `env:"DBAddr" envDefault:""`
	DBName     string `env:"DBName" envDefault:"codeverse"`
	DBPath     string `env:"DBPath" envDefault:"datas/codeverse.db"`
	DBPort     string `env:"DBPort" envDefault:"3306"`

	// 配额限制
	FreeDailyLimit     int `env:"FREE_DAILY_LIMIT" envDefault:"5"`
	GuestLifetimeLimit int `env:"GUEST_LIFETIME_LIMIT" envDefault:"3"`

	// 输入校验：提交代码的最大字符数
	MaxCodeChars int `env:"MAX_CODE_CHARS" envDefault:"10000"`

	// 诗歌生成服务商
	PoemProvider             string `env:"POEM_PROVIDER" envDefault:"openrouter"`
	PoemModel                string `env:"POEM_MODEL" envDefault:""`
	GenerationTimeoutSeconds int    `env:"GENERATION_TIMEOUT_SECONDS" envDefault:"60"`

	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY" envDefault:""`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:""`
	GeminiAPIKey      string `env:"GEMINI_API_KEY" envDefault:""`
	VolcengineAPIKey  string `env:"VOLCENGINE_API_KEY" envDefault:""`

	// 远端文档存储（同步用），为空则禁用同步
	RemoteStoreType string `env:"REMOTE_STORE_TYPE" envDefault:""`

	// S3 兼容存储配置
	RemoteS3Region          string `env:"REMOTE_S3_REGION"`
	RemoteS3Bucket          string `env:"REMOTE_S3_BUCKET"`
	RemoteS3Prefix          string `env:"REMOTE_S3_PREFIX"`
	RemoteS3Endpoint        string `env:"REMOTE_S3_ENDPOINT"`
	RemoteS3AccessKeyID     string `env:"REMOTE_S3_ACCESS_KEY_ID"`
	RemoteS3SecretAccessKey string `env:"REMOTE_S3_SECRET_ACCESS_KEY"`
	RemoteS3SessionToken    string `env:"REMOTE_S3_SESSION_TOKEN"`
	RemoteS3ForcePathStyle  bool   `env:"REMOTE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// Cloudflare R2 存储配置（走 S3 协议）
	RemoteR2AccountID       string `env:"REMOTE_R2_ACCOUNT_ID"`
	RemoteR2Endpoint        string `env:"REMOTE_R2_ENDPOINT"`
	RemoteR2Region          string `env:"REMOTE_R2_REGION" envDefault:"auto"`
	RemoteR2Bucket          string `env:"REMOTE_R2_BUCKET"`
	RemoteR2Prefix          string `env:"REMOTE_R2_PREFIX"`
	RemoteR2AccessKeyID     string `env:"REMOTE_R2_ACCESS_KEY_ID"`
	RemoteR2SecretAccessKey string `env:"REMOTE_R2_SECRET_ACCESS_KEY"`

	// 阿里云 OSS 存储配置
	RemoteOSSEndpoint        string `env:"REMOTE_OSS_ENDPOINT"`
	RemoteOSSBucket          string `env:"REMOTE_OSS_BUCKET"`
	RemoteOSSPrefix          string `env:"REMOTE_OSS_PREFIX"`
	RemoteOSSAccessKeyID     string `env:"REMOTE_OSS_ACCESS_KEY_ID"`
	RemoteOSSAccessKeySecret string `env:"REMOTE_OSS_ACCESS_KEY_SECRET"`

	// 腾讯云 COS 存储配置
	RemoteCOSBucketURL string `env:"REMOTE_COS_BUCKET_URL"`
	RemoteCOSPrefix    string `env:"REMOTE_COS_PREFIX"`
	RemoteCOSSecretID  string `env:"REMOTE_COS_SECRET_ID"`
	RemoteCOSSecretKey string `env:"REMOTE_COS_SECRET_KEY"`

	// 同步前的连通性探测地址，为空时根据存储端点推导
	SyncProbeAddr           string `env:"SYNC_PROBE_ADDR" envDefault:""`
	SyncProbeTimeoutSeconds int    `env:"SYNC_PROBE_TIMEOUT_SECONDS" envDefault:"3"`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"codeverse"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`
}

func ParseConfig() (Config, error) {
	var Conf Config
	err := env.Parse(&Conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	logrus.Debugf("%#v\n", Conf)
	return Conf, nil
}
