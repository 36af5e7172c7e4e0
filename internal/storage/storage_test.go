package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactsbook/apiserver/config"
)

func TestAvatarKey(t *testing.T) {
	assert.Equal(t, "avatars/alice", AvatarKey("alice"))
}

func TestObjectURL_EscapesSegments(t *testing.T) {
	got := objectURL("http://localhost:9000/", "avatars", "avatars/john doe")
	assert.Equal(t, "http://localhost:9000/avatars/avatars/john%20doe", got)

	got = objectURL("https://b.s3.eu-west-1.amazonaws.com", "", "avatars/alice")
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com/avatars/alice", got)
}

func TestNewMinioClient_Validation(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{})
	require.Error(t, err)

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000"})
	require.Error(t, err)

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.Error(t, err)
}

func TestMinioClient_URL(t *testing.T) {
	client, err := NewMinioClient(config.MinioConfig{
		Endpoint:  "cdn.example.com",
		AccessKey: "a",
		SecretKey: "b",
		Bucket:    "media",
		UseSSL:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/avatars/alice", client.URL(AvatarKey("alice")))
	assert.Equal(t, "media", client.Bucket())
}

func TestS3PublicBase(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:9000/media", s3PublicBase("http://127.0.0.1:9000", "media", "us-east-1"))
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com", s3PublicBase("", "media", "eu-west-1"))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Backend: "ftp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}
