package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/icledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeS3 struct {
	puts        []*s3.PutObjectInput
	bodies      map[string][]byte
	headErr     error
	createCalls int
	putErr      error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.bodies == nil {
		f.bodies = map[string][]byte{}
	}
	f.bodies[aws.ToString(in.Key)] = body
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) CreateBucket(context.Context, *s3.CreateBucketInput, ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createCalls++
	return &s3.CreateBucketOutput{}, nil
}

func TestNewS3Archive_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3Archive(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3Archive(ctx, &config.StorageConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half a key pair returns error", func(t *testing.T) {
		_, err := NewS3Archive(ctx, &config.StorageConfig{Bucket: "b", AccessKeyID: "AKIA"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "set together")
	})

	t.Run("valid config creates archive", func(t *testing.T) {
		archive, err := NewS3Archive(ctx, &config.StorageConfig{
			Bucket:          "icl-reports",
			Region:          "ap-southeast-1",
			Endpoint:        "localhost:9000",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			UsePathStyle:    true,
			Prefix:          "/tax-reports/",
		}, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "tax-reports", archive.prefix)
		assert.Equal(t, "icl-reports", archive.bucket)
	})
}

func TestS3Archive_Archive(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{}
	archive := newS3Archive(client, "icl-reports", "tax-reports")

	rows := [][]string{
		{"invoice", "output_vat"},
		{"IC-202503-0A1B2C3D", "138.60"},
		{"note, with comma", "92.40"},
	}
	location, err := archive.Archive(ctx, "vat-returns/g/2025-03/h.csv", rows)
	require.NoError(t, err)
	assert.Equal(t, "s3://icl-reports/tax-reports/vat-returns/g/2025-03/h.csv", location)

	require.Len(t, client.puts, 1)
	assert.Equal(t, csvContentType, aws.ToString(client.puts[0].ContentType))

	parsed, err := csv.NewReader(bytesReader(client.bodies["tax-reports/vat-returns/g/2025-03/h.csv"])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, rows, parsed)

	t.Run("rejects keys escaping the prefix", func(t *testing.T) {
		for _, key := range []string{"", "  ", "../secrets.csv", "a/../../b.csv"} {
			_, err := archive.Archive(ctx, key, rows)
			assert.Error(t, err, key)
		}
	})

	t.Run("upload failure is reported", func(t *testing.T) {
		client.putErr = errors.New("503 slow down")
		_, err := archive.Archive(ctx, "wht-remittances/x.csv", rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "slow down")
	})
}

func TestS3Archive_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("existing bucket", func(t *testing.T) {
		client := &fakeS3{}
		require.NoError(t, newS3Archive(client, "b", "").EnsureBucket(ctx))
		assert.Zero(t, client.createCalls)
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		client := &fakeS3{headErr: &types.NotFound{}}
		require.NoError(t, newS3Archive(client, "b", "").EnsureBucket(ctx))
		assert.Equal(t, 1, client.createCalls)
	})

	t.Run("other errors surface", func(t *testing.T) {
		client := &fakeS3{headErr: errors.New("access denied")}
		assert.Error(t, newS3Archive(client, "b", "").EnsureBucket(ctx))
		assert.Zero(t, client.createCalls)
	})
}
