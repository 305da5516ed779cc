package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/internal/util"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscredentials "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageProvider 定义通用存储接口，文件名为单个路径段
type StorageProvider interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error)
	// Open 文件不存在时返回 util.ErrNotFound
	Open(ctx context.Context, filename string) (io.ReadCloser, error)
	// Delete 删除不存在的文件不报错
	Delete(ctx context.Context, filename string) error
	List(ctx context.Context) ([]string, error)
	GetURL(filename string) string
}

// NewStorageProvider 按 storage.type 创建存储实现
func NewStorageProvider(ctx context.Context, cfg *config.StorageConfig) (StorageProvider, error) {
	switch cfg.Type {
	case "", util.StorageLocal:
		return NewLocalStorageProvider(cfg.LocalPath)
	case util.StorageMinio:
		return NewMinioStorageProvider(cfg)
	case util.StorageOSS:
		return NewOSSStorageProvider(cfg)
	case util.StorageS3:
		return NewS3StorageProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

func checkFilename(filename string) error {
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("unsafe storage filename %q", filename)
	}
	return nil
}

func contentTypeOrDefault(contentType string) string {
	if contentType == "" {
		return util.MimeOctetStream
	}
	return contentType
}

// LocalStorageProvider 本地存储实现，目录 0700，文件 0600
type LocalStorageProvider struct {
	Root string
}

func NewLocalStorageProvider(root string) (*LocalStorageProvider, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, err
	}
	return &LocalStorageProvider{Root: root}, nil
}

func (p *LocalStorageProvider) path(filename string) (string, error) {
	if err := checkFilename(filename); err != nil {
		return "", err
	}
	return filepath.Join(p.Root, filename), nil
}

func (p *LocalStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	dst, err := p.path(filename)
	if err != nil {
		return "", err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}

	return p.GetURL(filename), nil
}

func (p *LocalStorageProvider) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	src, err := p.path(filename)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", util.ErrNotFound, filename)
	}
	return f, err
}

func (p *LocalStorageProvider) Delete(ctx context.Context, filename string) error {
	dst, err := p.path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (p *LocalStorageProvider) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.Root)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (p *LocalStorageProvider) GetURL(filename string) string {
	return "/uploads/" + filename
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if err := checkFilename(filename); err != nil {
		return "", err
	}
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, filename, reader, size, minio.PutObjectOptions{
		ContentType: contentTypeOrDefault(contentType),
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *MinioStorageProvider) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	obj, err := p.Client.GetObject(ctx, p.Config.MinioBucket, filename, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject 是惰性的，Stat 才会真正请求
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", util.ErrNotFound, filename)
		}
		return nil, err
	}
	return obj, nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, filename string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, filename, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) List(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range p.Client.ListObjects(ctx, p.Config.MinioBucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		names = append(names, obj.Key)
	}
	sort.Strings(names)
	return names, nil
}

func (p *MinioStorageProvider) GetURL(filename string) string {
	return "/" + p.Config.MinioBucket + "/" + filename
}

// OSSStorageProvider 阿里云OSS存储实现
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Bucket *oss.Bucket
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Bucket: bucket}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if err := checkFilename(filename); err != nil {
		return "", err
	}
	err := p.Bucket.PutObject(filename, reader, oss.ContentType(contentTypeOrDefault(contentType)), oss.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *OSSStorageProvider) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	body, err := p.Bucket.GetObject(filename, oss.WithContext(ctx))
	if err != nil {
		if isOSSNotFound(err) {
			return nil, fmt.Errorf("%w: %s", util.ErrNotFound, filename)
		}
		return nil, err
	}
	return body, nil
}

func isOSSNotFound(err error) bool {
	var serr oss.ServiceError
	if errors.As(err, &serr) {
		return serr.StatusCode == http.StatusNotFound
	}
	var perr *oss.ServiceError
	if errors.As(err, &perr) {
		return perr.StatusCode == http.StatusNotFound
	}
	return false
}

func (p *OSSStorageProvider) Delete(ctx context.Context, filename string) error {
	return p.Bucket.DeleteObject(filename, oss.WithContext(ctx))
}

func (p *OSSStorageProvider) List(ctx context.Context) ([]string, error) {
	var names []string
	token := ""
	for {
		opts := []oss.Option{oss.WithContext(ctx), oss.MaxKeys(1000)}
		if token != "" {
			opts = append(opts, oss.ContinuationToken(token))
		}
		result, err := p.Bucket.ListObjectsV2(opts...)
		if err != nil {
			return nil, err
		}
		for _, obj := range result.Objects {
			names = append(names, obj.Key)
		}
		if !result.IsTruncated {
			break
		}
		token = result.NextContinuationToken
	}
	sort.Strings(names)
	return names, nil
}

func (p *OSSStorageProvider) GetURL(filename string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, filename)
}

// S3StorageProvider S3 及兼容存储实现，S3Endpoint 非空时使用 path-style 访问
type S3StorageProvider struct {
	Config *config.StorageConfig
	Client *s3.Client
}

func NewS3StorageProvider(ctx context.Context, cfg *config.StorageConfig) (*S3StorageProvider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(awscredentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3StorageProvider{Config: cfg, Client: client}, nil
}

func (p *S3StorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if err := checkFilename(filename); err != nil {
		return "", err
	}
	_, err := p.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.Config.S3Bucket),
		Key:           aws.String(filename),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentTypeOrDefault(contentType)),
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *S3StorageProvider) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	out, err := p.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.Config.S3Bucket),
		Key:    aws.String(filename),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", util.ErrNotFound, filename)
		}
		return nil, err
	}
	return out.Body, nil
}

func (p *S3StorageProvider) Delete(ctx context.Context, filename string) error {
	_, err := p.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.Config.S3Bucket),
		Key:    aws.String(filename),
	})
	return err
}

func (p *S3StorageProvider) List(ctx context.Context) ([]string, error) {
	var names []string
	paginator := s3.NewListObjectsV2Paginator(p.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.Config.S3Bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			names = append(names, aws.ToString(obj.Key))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (p *S3StorageProvider) GetURL(filename string) string {
	if p.Config.S3Endpoint != "" {
		return strings.TrimRight(p.Config.S3Endpoint, "/") + "/" + p.Config.S3Bucket + "/" + filename
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.Config.S3Bucket, p.Config.S3Region, filename)
}
