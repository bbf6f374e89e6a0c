package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	api := &fakeS3{objects: make(map[string][]byte)}
	store := newS3Store(api, S3Config{Bucket: "exports", Prefix: "/approval/"}, zap.NewNop())
	ctx := context.Background()

	location, err := store.Put(ctx, "abc/Leave.zip", strings.NewReader("zip"))
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/approval/abc/Leave.zip", location)
	assert.Contains(t, api.objects, "exports/approval/abc/Leave.zip")

	body, err := store.Open(ctx, location)
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "zip", string(data))

	require.NoError(t, store.Remove(ctx, location))
	assert.Empty(t, api.objects)

	_, err = store.Open(ctx, "s3://other/approval/abc/Leave.zip")
	assert.Error(t, err)
}

func TestS3Store_PutError(t *testing.T) {
	store := newS3Store(&fakeS3{putErr: errors.New("AccessDenied")}, S3Config{Bucket: "exports"}, zap.NewNop())

	_, err := store.Put(context.Background(), "a.zip", strings.NewReader("zip"))
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/zip", contentType("a.zip"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}
