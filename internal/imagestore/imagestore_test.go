package imagestore

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataURI(t *testing.T) {
	ref, err := DataURI{}.Put(context.Background(), "t1", []byte("abc"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,YWJj", ref)

	ref, err = DataURI{}.Put(context.Background(), "t1", []byte("abc"), "")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,YWJj", ref)

	_, err = DataURI{}.Put(context.Background(), "t1", nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyImage)

	resolved, err := DataURI{}.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, ref, resolved)
}

type fakeS3 struct {
	key, bucket, contentType string
	body                     []byte
	err                      error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.ToString(in.Key)
	f.bucket = aws.ToString(in.Bucket)
	f.contentType = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	calls   int
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var o s3.PresignOptions
	for _, opt := range opts {
		opt(&o)
	}
	f.expires = o.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.test/" + aws.ToString(in.Key) + "?X-Amz-Signature=abc"}, nil
}

func TestS3_PublicBaseURL(t *testing.T) {
	api := &fakeS3{}
	presign := &fakePresigner{}
	store := NewS3WithClient(api, presign, S3Config{Bucket: "tryons", PublicBaseURL: "https://cdn.test/"})

	ref, err := store.Put(context.Background(), "trial-1", []byte("img"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.test/trials/trial-1.jpg", ref)
	assert.Equal(t, "tryons", api.bucket)
	assert.Equal(t, "trials/trial-1.jpg", api.key)
	assert.Equal(t, "image/jpeg", api.contentType)
	assert.Equal(t, []byte("img"), api.body)

	resolved, err := store.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, ref, resolved)
	assert.Zero(t, presign.calls)
}

func TestS3_PrivateBucketSignsOnRead(t *testing.T) {
	presign := &fakePresigner{}
	store := NewS3WithClient(&fakeS3{}, presign, S3Config{Bucket: "tryons", Prefix: "gen/"})
	ctx := context.Background()

	ref, err := store.Put(ctx, "trial-2", []byte("img"), "")
	require.NoError(t, err)
	assert.Equal(t, "s3://tryons/gen/trial-2.png", ref, "the stored reference never expires")
	assert.Zero(t, presign.calls)

	url, err := store.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.test/gen/trial-2.png?X-Amz-Signature=abc", url)
	assert.Equal(t, time.Hour, presign.expires)

	_, err = store.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 2, presign.calls, "each read gets a fresh signature")

	for _, other := range []string{"", "data:image/png;base64,AA==", "https://cdn.test/x.png", "s3://elsewhere/gen/x.png"} {
		got, err := store.Resolve(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, other, got)
	}

	presign.err = errors.New("no credentials")
	_, err = store.Resolve(ctx, ref)
	assert.ErrorContains(t, err, "no credentials")
}

func TestS3_UploadError(t *testing.T) {
	store := NewS3WithClient(&fakeS3{err: errors.New("access denied")}, &fakePresigner{}, S3Config{Bucket: "b"})

	_, err := store.Put(context.Background(), "t", []byte("img"), "image/png")
	assert.ErrorContains(t, err, "access denied")

	_, err = store.Put(context.Background(), "t", nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyImage)
}
