package drive

import (
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestParseS3Credential(t *testing.T) {
	tests := []struct {
		in     string
		key    string
		secret string
		token  string
		ok     bool
	}{
		{"AKIA:secret", "AKIA", "secret", "", true},
		{"AKIA:secret:tok:en", "AKIA", "secret", "tok:en", true},
		{"AKIA", "", "", "", false},
		{":secret", "", "", "", false},
		{"AKIA:", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, secret, token, ok := parseS3Credential(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.secret, secret)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestS3KeyMapping(t *testing.T) {
	assert.Equal(t, "a/b.txt", s3Key("/a/b.txt"))
	assert.Equal(t, "a/b.txt", s3Key("a//b.txt"))
	assert.Equal(t, "b.txt", s3Key("/../b.txt"))
	assert.Equal(t, "", s3Prefix("/"))
	assert.Equal(t, "docs/", s3Prefix("/docs/"))
}

func TestIsS3AuthError(t *testing.T) {
	denied := &smithy.GenericAPIError{Code: "InvalidAccessKeyId", Message: "nope"}
	assert.True(t, isS3AuthError(fmt.Errorf("wrapped: %w", denied)))
	assert.False(t, isS3AuthError(&smithy.GenericAPIError{Code: "SlowDown"}))
	assert.False(t, isS3AuthError(fmt.Errorf("dial tcp: refused")))
	assert.True(t, isS3NotFound(&smithy.GenericAPIError{Code: "NotFound"}))
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(S3Options{})
	assert.Error(t, err)

	d, err := NewS3(S3Options{Bucket: "b"})
	assert.NoError(t, err)
	assert.Equal(t, "us-east-1", d.opts.Region)
}
