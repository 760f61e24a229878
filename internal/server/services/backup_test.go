package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	records []*models.UserRecord
	err     error
}

func (f *fakeLister) ListRecords(context.Context) ([]*models.UserRecord, error) {
	return f.records, f.err
}

type fakePutter struct {
	mu     sync.Mutex
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakePutter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

var backupKeyRe = regexp.MustCompile(`^backups/2025/03/07/[0-9a-f-]{36}\.json$`)

func TestBackupKey(t *testing.T) {
	k1 := BackupKey(time.Date(2025, 3, 7, 23, 0, 0, 0, time.UTC))
	k2 := BackupKey(time.Date(2025, 3, 7, 23, 0, 0, 0, time.UTC))

	assert.Regexp(t, backupKeyRe, k1)
	assert.NotEqual(t, k1, k2)
}

func TestBackupRun(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{records: []*models.UserRecord{
		{
			ID:             "u1",
			WrappedKey:     []byte{0x01, 0xAA},
			KeyFingerprint: "fp",
			Fields:         map[models.SecretField][]byte{models.AIAPIKey: {0x01, 0xBB}},
			CreatedAt:      created,
			UpdatedAt:      created,
		},
	}}
	putter := &fakePutter{}

	s := NewBackupService(lister, putter, "vault-backups", "master-fp", logging.Nop{})
	s.now = func() time.Time { return time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC) }

	key, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, backupKeyRe, key)

	require.Equal(t, 1, putter.count())
	in := putter.inputs[0]
	assert.Equal(t, "vault-backups", aws.ToString(in.Bucket))
	assert.Equal(t, key, aws.ToString(in.Key))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))
	assert.Equal(t, int64(len(putter.bodies[0])), aws.ToInt64(in.ContentLength))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(putter.bodies[0], &snap))
	assert.Equal(t, "master-fp", snap.MasterKeyFingerprint)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, []byte{0x01, 0xAA}, snap.Records[0].WrappedKey)
	assert.Equal(t, []byte{0x01, 0xBB}, snap.Records[0].Fields[models.AIAPIKey])
}

func TestBackupRun_Errors(t *testing.T) {
	s := NewBackupService(&fakeLister{err: errors.New("db down")}, &fakePutter{}, "b", "fp", logging.Nop{})
	_, err := s.Run(context.Background())
	assert.ErrorContains(t, err, "db down")

	s = NewBackupService(&fakeLister{}, &fakePutter{err: errors.New("access denied")}, "b", "fp", logging.Nop{})
	_, err = s.Run(context.Background())
	assert.ErrorContains(t, err, "access denied")
}

func TestBackupSchedule(t *testing.T) {
	putter := &fakePutter{}
	s := NewBackupService(&fakeLister{}, putter, "b", "fp", logging.Nop{})

	_, err := s.Schedule(context.Background(), "not a schedule")
	assert.Error(t, err)

	c, err := s.Schedule(context.Background(), "@every 1s")
	require.NoError(t, err)
	defer c.Stop()

	assert.Eventually(t, func() bool { return putter.count() > 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestNewS3Client_UsesSettings(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	defer func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	}()

	var gotRegion string
	var opts s3.Options
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		gotRegion = lo.Region
		return aws.Config{Region: lo.Region, Credentials: lo.Credentials}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return s3.NewFromConfig(cfg, optFns...)
	}

	c, err := NewS3Client(context.Background(), S3Settings{
		AccessKey:    "admin",
		SecretKey:    "secretpassword",
		Bucket:       "b",
		Region:       "eu-north-1",
		BaseEndpoint: "http://127.0.0.1:9000",
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "eu-north-1", gotRegion)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err = NewS3Client(context.Background(), S3Settings{})
	assert.ErrorContains(t, err, "no config")
}
