package store

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileUploader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	u := &FileUploader{Dir: dir}

	require.NoError(t, u.Upload(ctx, UploadParams{Name: "batch/kiro-ai-1-1024x768.png", Data: []byte("png")}))
	data, err := os.ReadFile(filepath.Join(dir, "batch", "kiro-ai-1-1024x768.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	read, err := u.Read(ctx, "batch/kiro-ai-1-1024x768.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), read)
	_, err = u.Read(ctx, "batch/missing.png")
	require.ErrorIs(t, err, ErrNotFound)

	link, err := u.Link(ctx, "batch/kiro-ai-1-1024x768.png", "kiro-ai-1-1024x768.png")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(filepath.FromSlash(link)))
	assert.Equal(t, "kiro-ai-1-1024x768.png", filepath.Base(link))

	require.NoError(t, u.Release(ctx, []string{"batch/kiro-ai-1-1024x768.png", "batch/missing.png"}))
	_, err = os.Stat(filepath.Join(dir, "batch"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	deletes []*s3.DeleteObjectsInput
	presign []*s3.GetObjectInput
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[aws.ToString(in.Key)] = data
	in.Body = bytes.NewReader(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.presign = append(f.presign, in)
	var o s3.PresignOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3.amazonaws.com/" + aws.ToString(in.Key) + "?X-Amz-Expires=" + o.Expires.String()}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	s := &S3Store{Client: fake, Presign: fake, Bucket: "studio", TTL: time.Hour}

	require.NoError(t, s.Upload(ctx, UploadParams{
		Name:        "b1/kiro-ai-1-1024x768.png",
		Data:        []byte("png"),
		ContentType: "image/png",
		Metadata:    map[string]string{"model": "FLUX.1-schnell"},
	}))
	require.Len(t, fake.puts, 1)
	put := fake.puts[0]
	assert.Equal(t, "studio", aws.ToString(put.Bucket))
	assert.Equal(t, "b1/kiro-ai-1-1024x768.png", aws.ToString(put.Key))
	assert.Equal(t, "image/png", aws.ToString(put.ContentType))
	body, err := io.ReadAll(put.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), body)

	link, err := s.Link(ctx, "b1/kiro-ai-1-1024x768.png", "kiro-ai-1-1024x768.png")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/b1/kiro-ai-1-1024x768.png?X-Amz-Expires=1h0m0s", link)
	assert.Equal(t, `attachment; filename="kiro-ai-1-1024x768.png"`, aws.ToString(fake.presign[0].ResponseContentDisposition))

	_, err = s.Read(ctx, "b1/missing.png")
	require.ErrorIs(t, err, ErrNotFound)
	data, err := s.Read(ctx, "b1/kiro-ai-1-1024x768.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	require.NoError(t, s.Release(ctx, nil))
	assert.Empty(t, fake.deletes)

	require.NoError(t, s.Release(ctx, []string{"b0/a.png", "b0/index.html"}))
	require.Len(t, fake.deletes, 1)
	keys := []string{}
	for _, o := range fake.deletes[0].Delete.Objects {
		keys = append(keys, aws.ToString(o.Key))
	}
	assert.Equal(t, []string{"b0/a.png", "b0/index.html"}, keys)
}

type failingDeletes struct{ fakeS3 }

func (f *failingDeletes) DeleteObjects(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	return &s3.DeleteObjectsOutput{Errors: []s3types.Error{{Key: aws.String("b0/a.png"), Message: aws.String("Access Denied")}}}, nil
}

func TestS3StoreReleaseReportsObjectErrors(t *testing.T) {
	s := &S3Store{Client: &failingDeletes{}, Bucket: "studio"}
	err := s.Release(context.Background(), []string{"b0/a.png"})
	require.EqualError(t, err, "delete b0/a.png: Access Denied")
}

type fakeCloudFront struct {
	in *cloudfront.CreateInvalidationInput
}

func (f *fakeCloudFront) CreateInvalidation(_ context.Context, in *cloudfront.CreateInvalidationInput, _ ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error) {
	f.in = in
	return &cloudfront.CreateInvalidationOutput{}, nil
}

func TestCloudFrontInvalidator(t *testing.T) {
	fake := &fakeCloudFront{}
	i := &CloudFrontInvalidator{Client: fake, Distribution: "E123"}

	require.NoError(t, i.Invalidate(context.Background(), []string{"/b1/index.html"}))
	assert.Equal(t, "E123", aws.ToString(fake.in.DistributionId))
	assert.Equal(t, int32(1), aws.ToInt32(fake.in.InvalidationBatch.Paths.Quantity))
	assert.Equal(t, []string{"/b1/index.html"}, fake.in.InvalidationBatch.Paths.Items)

	assert.NoError(t, NoopInvalidator{}.Invalidate(context.Background(), []string{"/x"}))
}
