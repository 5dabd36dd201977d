package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/itisfoundation/osparc-tables/internal/config"
)

// putObjectAPI is the part of *s3.Client the sink uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads an export as one S3 object.
type S3Sink struct {
	client putObjectAPI
	bucket string
	key    string
}

// NewS3Sink creates a sink for s3://bucket/key. Credentials come from the
// config when both keys are set, otherwise from the default AWS chain.
// A custom endpoint (MinIO, Ceph) switches to path-style addressing.
func NewS3Sink(ctx context.Context, bucket, key string, cfg *config.Config, httpClient *nethttp.Client) (*S3Sink, error) {
	if key == "" {
		return nil, fmt.Errorf("s3 destination needs an object key")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if httpClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(awsHTTPClient(httpClient)))
	}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return &S3Sink{client: client, bucket: bucket, key: key}, nil
}

// awsHTTPClient carries the transport settings of c into an SDK buildable
// client, which AWS_CA_BUNDLE and other SDK options can still extend.
// Wrapped transports (NTLM) are used as they are.
func awsHTTPClient(c *nethttp.Client) awsconfig.HTTPClient {
	tr, ok := c.Transport.(*nethttp.Transport)
	if !ok && c.Transport != nil {
		return c
	}
	b := awshttp.NewBuildableClient()
	if c.Timeout > 0 {
		b = b.WithTimeout(c.Timeout)
	}
	if tr == nil {
		return b
	}
	return b.WithTransportOptions(func(t *nethttp.Transport) {
		t.Proxy = tr.Proxy
		t.ProxyConnectHeader = tr.ProxyConnectHeader.Clone()
		if tr.DialContext != nil {
			t.DialContext = tr.DialContext
		}
		if tr.TLSClientConfig != nil {
			t.TLSClientConfig = tr.TLSClientConfig.Clone()
		}
		t.DisableCompression = tr.DisableCompression
		t.ForceAttemptHTTP2 = tr.ForceAttemptHTTP2
		if tr.TLSNextProto != nil {
			t.TLSNextProto = tr.TLSNextProto
		}
	})
}

func (s *S3Sink) String() string { return "s3://" + s.bucket + "/" + s.key }

// Put uploads data with a single PutObject.
func (s *S3Sink) Put(ctx context.Context, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("upload %s: %s: %s: %w", s, apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
		}
		return fmt.Errorf("upload %s: %w", s, err)
	}
	return nil
}
