package s3

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/benchline/pkg/artifact"
)

type mockAPIError struct {
	code    string
	message string
}

func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: %s", e.code, e.message) }
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

var _ smithy.APIError = (*mockAPIError)(nil)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"empty bucket", Config{}, "bucket name is required"},
		{"minimal", Config{Bucket: "artifacts"}, ""},
		{"explicit creds", Config{Bucket: "artifacts", AccessKeyID: "AKIA", SecretAccessKey: "secret"}, ""},
		{"key without secret", Config{Bucket: "artifacts", AccessKeyID: "AKIA"}, "must be provided together"},
		{"secret without key", Config{Bucket: "artifacts", SecretAccessKey: "secret"}, "must be provided together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWrapError(t *testing.T) {
	p := &Provider{bucket: "artifacts"}
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"typed not found", &types.NotFound{}, artifact.ErrNotFound},
		{"typed no such key", &types.NoSuchKey{}, artifact.ErrNotFound},
		{"typed no such bucket", &types.NoSuchBucket{}, artifact.ErrBucketNotFound},
		{"api access denied", &mockAPIError{code: "AccessDenied"}, artifact.ErrAccessDenied},
		{"api bad key", &mockAPIError{code: "InvalidAccessKeyId"}, artifact.ErrInvalidCredentials},
		{"api throttled", &mockAPIError{code: "SlowDown"}, artifact.ErrThrottled},
		{"api unavailable", &mockAPIError{code: "InternalError"}, artifact.ErrProviderUnavailable},
		{"message 404", errors.New("http 404"), artifact.ErrNotFound},
		{"message 503", errors.New("status 503"), artifact.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.wrapError("Head", "1/2/stage-1/out", tt.err)
			assert.ErrorIs(t, err, tt.want)

			var pe *artifact.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "artifacts", pe.Bucket)
			assert.Equal(t, artifact.ProviderS3, pe.Provider)
		})
	}

	unmapped := p.wrapError("List", "", &mockAPIError{code: "Weird"})
	var pe *artifact.ProviderError
	require.ErrorAs(t, unmapped, &pe)
	assert.Equal(t, "Weird", pe.Err.(smithy.APIError).ErrorCode())
}

func TestClampMaxKeys(t *testing.T) {
	assert.Equal(t, 1000, clampMaxKeys(0, DefaultMaxKeys))
	assert.Equal(t, 50, clampMaxKeys(50, DefaultMaxKeys))
	assert.Equal(t, 200, clampMaxKeys(-1, 200))
	assert.Equal(t, MaxAllowedKeys, clampMaxKeys(5000, DefaultMaxKeys))
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, "eu-west-1", resolveRegion("", "eu-west-1", "us-west-2"))
	assert.Equal(t, "us-west-2", resolveRegion("", "", "us-west-2"))
	assert.Equal(t, DefaultAWSRegion, resolveRegion("", "", ""))
	assert.Equal(t, "", resolveRegion("http://localhost:9000", "", ""))
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "", normalizePrefix("/"))
	assert.Equal(t, "bench/artifacts/", normalizePrefix("/bench/artifacts"))
}

func TestCleanETag(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", cleanETag(`"d41d8cd98f00b204e9800998ecf8427e"`))
}

func TestNew_DetectsRegionOnlyWhenAsked(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	calls := 0
	detect := func(context.Context, aws.Config) string {
		calls++
		return "ap-south-1"
	}

	p, err := newWithDetector(context.Background(), Config{Bucket: "artifacts", DetectRegion: true}, detect)
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", p.client.Options().Region)
	assert.Equal(t, 1, calls)

	p, err = newWithDetector(context.Background(), Config{Bucket: "artifacts"}, detect)
	require.NoError(t, err)
	assert.Equal(t, DefaultAWSRegion, p.client.Options().Region)
	assert.Equal(t, 1, calls)

	p, err = newWithDetector(context.Background(), Config{Bucket: "artifacts", Region: "eu-central-1", DetectRegion: true}, detect)
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", p.client.Options().Region)
	assert.Equal(t, 1, calls)
}
