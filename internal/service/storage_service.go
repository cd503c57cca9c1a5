package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"tutor_backend/internal/config"
	"tutor_backend/internal/model"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 定义通用存储接口
type StorageProvider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetURL(key string) string
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Root string
}

func (p *LocalStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *LocalStorageProvider) Delete(ctx context.Context, key string) error {
	return os.Remove(filepath.Join(p.Root, filepath.FromSlash(key)))
}

func (p *LocalStorageProvider) GetURL(key string) string {
	return "/uploads/" + key
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Bucket string
	Client *minio.Client
}

func NewMinioStorageProvider(ctx context.Context, cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &MinioStorageProvider{Bucket: cfg.MinioBucket, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Bucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(key string) string {
	return "/" + p.Bucket + "/" + key
}

// StorageService 存储服务，保存会话消息附件
type StorageService struct {
	Provider StorageProvider
	MaxBytes int64
}

func NewStorageService(ctx context.Context, cfg *config.Config) *StorageService {
	var provider StorageProvider
	if cfg.Storage.Type == util.StorageMinio {
		p, err := NewMinioStorageProvider(ctx, &cfg.Storage)
		if err != nil {
			logger.Log.Warn("MinIO unavailable, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Root: cfg.Storage.LocalPath}
	}

	maxMB := cfg.Storage.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 10
	}
	return &StorageService{Provider: provider, MaxBytes: maxMB << 20}
}

// Upload 上传的原始附件
type Upload struct {
	Name string
	Data []byte
}

// StoreAttachment 校验类型与大小后保存附件，返回消息上记录的元数据
func (s *StorageService) StoreAttachment(ctx context.Context, sessionID string, up Upload) (model.Attachment, error) {
	if s.MaxBytes > 0 && int64(len(up.Data)) > s.MaxBytes {
		return model.Attachment{}, fmt.Errorf("%w: %s exceeds %d bytes", util.ErrInvalidInput, up.Name, s.MaxBytes)
	}
	mimeType, err := util.DetectMimeType(up.Data, util.AllowedAttachmentTypes)
	if err != nil {
		return model.Attachment{}, err
	}

	name := util.SanitizeFilename(up.Name)
	key := path.Join("attachments", sessionID, time.Now().Format("20060102"), model.GenerateUUID()+"-"+name)

	url, err := s.Provider.Upload(ctx, key, bytes.NewReader(up.Data), int64(len(up.Data)), mimeType)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("%w: upload attachment: %v", util.ErrStoreFailure, err)
	}

	return model.Attachment{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(up.Data)),
		Key:      key,
		URL:      url,
	}, nil
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	return s.Provider.Delete(ctx, key)
}
