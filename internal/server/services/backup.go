package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// S3Settings locate the backup bucket.
type S3Settings struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// RecordLister yields every user record as stored, ciphertext only.
type RecordLister interface {
	ListRecords(ctx context.Context) ([]*models.UserRecord, error)
}

// ObjectPutter is the part of *s3.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Client builds a client for an S3-compatible store such as MinIO.
func NewS3Client(ctx context.Context, st S3Settings) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(st.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			st.AccessKey,
			st.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if st.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(st.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Snapshot is the document written to the bucket. It holds wrapped keys and
// field ciphertexts as they are at rest; restoring it needs the master key
// named by MasterKeyFingerprint.
type Snapshot struct {
	CreatedAt            time.Time            `json:"created_at"`
	MasterKeyFingerprint string               `json:"master_key_fingerprint"`
	Records              []*models.UserRecord `json:"records"`
}

// BackupService uploads ciphertext-only snapshots of the users table.
type BackupService struct {
	records  RecordLister
	s3       ObjectPutter
	bucket   string
	masterFP string
	logger   logging.Logger
	now      func() time.Time
}

func NewBackupService(records RecordLister, client ObjectPutter, bucket, masterFingerprint string, logger logging.Logger) *BackupService {
	return &BackupService{
		records:  records,
		s3:       client,
		bucket:   bucket,
		masterFP: masterFingerprint,
		logger:   logger,
		now:      time.Now,
	}
}

// BackupKey returns a fresh object key of the form
// backups/YYYY/MM/DD/<uuid>.json.
func BackupKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("backups/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), uuid.New())
}

// Run takes one snapshot and returns its object key.
func (s *BackupService) Run(ctx context.Context) (string, error) {
	records, err := s.records.ListRecords(ctx)
	if err != nil {
		return "", fmt.Errorf("list records: %w", err)
	}

	for _, r := range records {
		if len(r.Raw) > 0 {
			s.logger.Warn(ctx, "backing up undecodable columns verbatim", "user_id", r.ID, "columns", len(r.Raw))
		}
	}

	now := s.now()
	body, err := json.Marshal(Snapshot{
		CreatedAt:            now.UTC(),
		MasterKeyFingerprint: s.masterFP,
		Records:              records,
	})
	if err != nil {
		return "", err
	}

	key := BackupKey(now)
	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	s.logger.Info(ctx, "backup uploaded", "bucket", s.bucket, "key", key, "records", len(records))
	return key, nil
}

// Schedule runs the backup on a cron schedule until the returned scheduler
// is stopped. Failures are logged.
func (s *BackupService) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Run(ctx); err != nil {
			s.logger.Error(ctx, "scheduled backup failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("backup schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
