package s3

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/benchline/pkg/artifact"
)

// Provider implements artifact.Provider on S3.
type Provider struct {
	client  *s3.Client
	bucket  string
	prefix  string
	maxKeys int
}

var _ artifact.Provider = (*Provider)(nil)

// RegionDetector returns the region of the host, or "" when unknown.
type RegionDetector func(ctx context.Context, awsCfg aws.Config) string

// New builds a provider. Keys passed to List and Head are relative to
// cfg.Prefix, and returned keys have it stripped.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	return newWithDetector(ctx, cfg, imdsRegion)
}

func newWithDetector(ctx context.Context, cfg Config, detect RegionDetector) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &artifact.ProviderError{Op: "New", Provider: artifact.ProviderS3, Bucket: cfg.Bucket, Err: err}
	}
	detected := ""
	if cfg.DetectRegion && awsCfg.Region == "" && cfg.Endpoint == "" && detect != nil {
		detected = detect(ctx, awsCfg)
	}
	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region, detected)

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Provider{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  normalizePrefix(cfg.Prefix),
		maxKeys: maxKeys,
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

func imdsRegion(ctx context.Context, awsCfg aws.Config) string {
	out, err := imds.NewFromConfig(awsCfg).GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return ""
	}
	return out.Region
}

func (p *Provider) List(ctx context.Context, opts artifact.ListOptions) (*artifact.ListResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(clampMaxKeys(opts.MaxKeys, p.maxKeys))),
	}
	if full := p.prefix + strings.TrimPrefix(opts.Prefix, "/"); full != "" {
		input.Prefix = aws.String(full)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}

	objects := make([]artifact.ObjectSummary, 0, len(output.Contents))
	for _, obj := range output.Contents {
		objects = append(objects, artifact.ObjectSummary{
			Key:          strings.TrimPrefix(aws.ToString(obj.Key), p.prefix),
			Size:         aws.ToInt64(obj.Size),
			ETag:         cleanETag(aws.ToString(obj.ETag)),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	return &artifact.ListResult{
		Objects:           objects,
		IsTruncated:       aws.ToBool(output.IsTruncated),
		ContinuationToken: aws.ToString(output.NextContinuationToken),
	}, nil
}

func (p *Provider) Head(ctx context.Context, key string) (*artifact.ObjectMeta, error) {
	key = strings.TrimPrefix(key, "/")
	output, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.prefix + key),
	})
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	return &artifact.ObjectMeta{
		ObjectSummary: artifact.ObjectSummary{
			Key:          key,
			Size:         aws.ToInt64(output.ContentLength),
			ETag:         cleanETag(aws.ToString(output.ETag)),
			LastModified: aws.ToTime(output.LastModified),
		},
		ContentType: aws.ToString(output.ContentType),
		Metadata:    output.Metadata,
	}, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (p *Provider) Close() error {
	return nil
}

// wrapError maps S3 failures onto the artifact sentinels.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &artifact.ProviderError{Op: op, Provider: artifact.ProviderS3, Bucket: p.bucket, Key: key, Err: err}

	var (
		notFound     *types.NotFound
		noSuchKey    *types.NoSuchKey
		noSuchBucket *types.NoSuchBucket
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = artifact.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = artifact.ErrBucketNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if mapped := sentinelForCode(apiErr.ErrorCode()); mapped != nil {
			wrapped.Err = mapped
		}
		return wrapped
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404"):
		wrapped.Err = artifact.ErrNotFound
	case strings.Contains(msg, "NoSuchBucket"):
		wrapped.Err = artifact.ErrBucketNotFound
	case strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "403"):
		wrapped.Err = artifact.ErrAccessDenied
	case strings.Contains(msg, "SlowDown") || strings.Contains(msg, "429"):
		wrapped.Err = artifact.ErrThrottled
	case strings.Contains(msg, "ServiceUnavailable") || strings.Contains(msg, "503"):
		wrapped.Err = artifact.ErrProviderUnavailable
	}
	return wrapped
}

func sentinelForCode(code string) error {
	switch code {
	case "NoSuchKey", "NotFound":
		return artifact.ErrNotFound
	case "NoSuchBucket":
		return artifact.ErrBucketNotFound
	case "AccessDenied", "Forbidden":
		return artifact.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return artifact.ErrInvalidCredentials
	case "SlowDown", "Throttling", "RequestLimitExceeded":
		return artifact.ErrThrottled
	case "ServiceUnavailable", "InternalError":
		return artifact.ErrProviderUnavailable
	}
	return nil
}

func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

func clampMaxKeys(requested, providerDefault int) int {
	if requested <= 0 {
		requested = providerDefault
	}
	return min(requested, MaxAllowedKeys)
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// resolveRegion applies the fallbacks after the SDK resolved what it could.
// Custom endpoints never get the AWS default.
func resolveRegion(endpoint, sdkRegion, detected string) string {
	switch {
	case sdkRegion != "":
		return sdkRegion
	case detected != "":
		return detected
	case endpoint == "":
		return DefaultAWSRegion
	}
	return ""
}
