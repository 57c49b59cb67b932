// Package s3 serves artifacts from AWS S3 or an S3-compatible store.
package s3

// Config configures the S3 artifact provider.
//
// Credentials follow the AWS SDK v2 default chain unless AccessKeyID and
// SecretAccessKey are both set. Region resolution order: Region, then
// environment or profile, then (with DetectRegion) the EC2 instance
// metadata service, then us-east-1 for AWS. Stores with a custom Endpoint
// get no default region.
type Config struct {
	// Bucket is required.
	Bucket string

	// Prefix is prepended to every artifact key, e.g. "benchline/artifacts/".
	Prefix string

	Region   string
	Endpoint string
	Profile  string

	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle is needed by most S3-compatible stores.
	ForcePathStyle bool

	// DetectRegion asks the instance metadata service for the region when
	// nothing else set one.
	DetectRegion bool

	// MaxKeys is the default List page size, clamped to 1000.
	MaxKeys int
}

const (
	DefaultMaxKeys   = 1000
	MaxAllowedKeys   = 1000
	DefaultAWSRegion = "us-east-1"
)

func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	return nil
}

// ConfigError is a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}
