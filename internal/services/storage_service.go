// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/config"
)

const (
	maxPhotoDimension = 800
	photoJPEGQuality  = 85
)

var ErrUnmanagedFile = errors.New("file is not managed by this storage")

type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type UploadOptions struct {
	Folder       string
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	if config.AWS.AccessKeyID == "" {
		// Local directory served under Storage.PublicPath
		if err := os.MkdirAll(config.Storage.LocalPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
		return &StorageService{config: config}, nil
	}

	// Create AWS session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

// SaveImage validates an uploaded image, normalizes its orientation, shrinks it to fit 800x800 and
// stores it re-encoded as JPEG. EXIF and other metadata do not survive the re-encode.
func (s *StorageService) SaveImage(ctx context.Context, r io.Reader, filename string, options UploadOptions) (*UploadResult, error) {
	// Validate file type
	fileExt := strings.ToLower(filepath.Ext(filename))
	if len(options.AllowedTypes) > 0 && !containsString(options.AllowedTypes, fileExt) {
		return nil, apperr.Validation("photo type %s is not allowed", fileExt)
	}

	// Read at most one byte past the limit so oversize uploads are detected without buffering them
	limit := options.MaxSize
	if limit <= 0 {
		limit = 5 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, apperr.Validation("failed to read photo")
	}
	if int64(len(data)) > limit {
		return nil, apperr.Validation("photo must be at most %d MB", limit/(1024*1024))
	}

	if !isValidImageType(data) {
		return nil, apperr.Validation("photo is not a valid image")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Validation("photo could not be decoded")
	}

	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
	if b := img.Bounds(); b.Dx() > maxPhotoDimension || b.Dy() > maxPhotoDimension {
		img = imaging.Fit(img, maxPhotoDimension, maxPhotoDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: photoJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode photo: %w", err)
	}

	key := s.generateFileName(".jpg", options.Folder)
	return s.SaveBytes(ctx, buf.Bytes(), key, "image/jpeg")
}

// SaveBytes stores data under key and returns its public URL.
func (s *StorageService) SaveBytes(ctx context.Context, data []byte, key, contentType string) (*UploadResult, error) {
	if s.s3Client != nil {
		return s.uploadToS3(ctx, data, key, contentType)
	}
	return s.uploadToLocal(data, key, contentType)
}

func (s *StorageService) uploadToS3(ctx context.Context, fileBytes []byte, key, contentType string) (*UploadResult, error) {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
		ACL:           aws.String("public-read"),
	}

	if _, err := s.s3Client.PutObjectWithContext(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.getS3URL(key),
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) uploadToLocal(fileBytes []byte, key, contentType string) (*UploadResult, error) {
	fullPath, err := s.localPath(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(fullPath, fileBytes, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &UploadResult{
		URL:      strings.TrimRight(s.config.Storage.PublicPath, "/") + "/" + key,
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

// ReadFile loads a managed file by its URL.
func (s *StorageService) ReadFile(ctx context.Context, url string) ([]byte, error) {
	key, ok := s.KeyFromURL(url)
	if !ok {
		return nil, ErrUnmanagedFile
	}

	if s.s3Client != nil {
		out, err := s.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.config.AWS.S3Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read file from S3: %w", err)
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	}

	fullPath, err := s.localPath(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}

func (s *StorageService) DeleteFile(ctx context.Context, key string) error {
	if s.s3Client == nil {
		fullPath, err := s.localPath(key)
		if err != nil {
			return err
		}
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	}

	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}

// DeleteByURL removes the file behind a managed URL. External URLs are left alone and reported
// with deleted=false.
func (s *StorageService) DeleteByURL(ctx context.Context, url string) (bool, error) {
	key, ok := s.KeyFromURL(url)
	if !ok {
		return false, nil
	}
	if err := s.DeleteFile(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// deleteBestEffort is used on cleanup paths where a failure must not mask the caller's result.
func (s *StorageService) deleteBestEffort(ctx context.Context, url, reason string) {
	if url == "" {
		return
	}
	if _, err := s.DeleteByURL(ctx, url); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"url":    url,
			"reason": reason,
		}).Warn("Failed to delete stored file")
	}
}

func (s *StorageService) IsManaged(url string) bool {
	_, ok := s.KeyFromURL(url)
	return ok
}

// KeyFromURL maps a URL produced by this storage back to its key.
func (s *StorageService) KeyFromURL(url string) (string, bool) {
	if url == "" {
		return "", false
	}

	var key string
	switch {
	case s.s3Client != nil && strings.HasPrefix(url, s.s3BaseURL()+"/"):
		key = strings.TrimPrefix(url, s.s3BaseURL()+"/")
	case s.s3Client == nil && strings.HasPrefix(url, strings.TrimRight(s.config.Storage.PublicPath, "/")+"/"):
		key = strings.TrimPrefix(url, strings.TrimRight(s.config.Storage.PublicPath, "/")+"/")
	default:
		return "", false
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned != key || strings.HasPrefix(cleaned, "../") || strings.HasPrefix(cleaned, "/") {
		return "", false
	}
	return cleaned, true
}

func (s *StorageService) localPath(key string) (string, error) {
	root, err := filepath.Abs(s.config.Storage.LocalPath)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.FromSlash(key))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return full, nil
}

func (s *StorageService) GetDefaultUploadOptions(category string) UploadOptions {
	switch category {
	case "nominations":
		return UploadOptions{
			Folder:       "nominations",
			MaxSize:      5 * 1024 * 1024, // 5MB
			AllowedTypes: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
		}
	case "certificates":
		return UploadOptions{
			Folder:       "certificates",
			MaxSize:      10 * 1024 * 1024,
			AllowedTypes: []string{".png"},
		}
	default:
		return UploadOptions{
			Folder:       "general",
			MaxSize:      5 * 1024 * 1024, // 5MB
			AllowedTypes: []string{".jpg", ".jpeg", ".png"},
		}
	}
}

func (s *StorageService) generateFileName(ext, folder string) string {
	id := uuid.New()

	// Create filename with timestamp and UUID
	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, id.String()[:8], ext)

	if folder != "" {
		return fmt.Sprintf("%s/%s", folder, filename)
	}

	return filename
}

func (s *StorageService) s3BaseURL() string {
	if s.config.AWS.CloudFrontURL != "" {
		return strings.TrimRight(s.config.AWS.CloudFrontURL, "/")
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.config.AWS.S3Bucket, s.config.AWS.Region)
}

func (s *StorageService) getS3URL(key string) string {
	return s.s3BaseURL() + "/" + key
}

func isValidImageType(buffer []byte) bool {
	// JPEG
	if len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF {
		return true
	}

	// PNG
	if len(buffer) >= 8 && bytes.Equal(buffer[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}) {
		return true
	}

	// GIF
	if len(buffer) >= 6 && (string(buffer[0:6]) == "GIF87a" || string(buffer[0:6]) == "GIF89a") {
		return true
	}

	// WebP: RIFF....WEBP
	if len(buffer) >= 12 && string(buffer[0:4]) == "RIFF" && string(buffer[8:12]) == "WEBP" {
		return true
	}

	return false
}

// readExifOrientation returns 1 (normal) when the tag is absent or unreadable.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
