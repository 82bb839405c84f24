package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Options configures s3:// fetches.
type S3Options struct {
	// Bucket used when the reference carries no bucket of its own.
	Bucket string
	Region string
	// Static credentials override the default AWS chain when both are set.
	AccessKey string
	SecretKey string
}

func (l *Loader) fetchS3(ctx context.Context, ref string) ([]byte, string, error) {
	bucket, key, err := splitS3Ref(ref, l.s3opts.Bucket)
	if err != nil {
		return nil, "", err
	}

	cli, err := l.s3Client(ctx)
	if err != nil {
		return nil, "", err
	}

	// Size hint via HEAD before pulling the object.
	head, err := cli.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err == nil && head.ContentLength != nil && *head.ContentLength < l.minBytes {
		return nil, "", fmt.Errorf("%w: s3 object %d bytes, need at least %d", ErrTooSmall, *head.ContentLength, l.minBytes)
	}

	buf := manager.NewWriteAtBuffer(nil)
	dl := manager.NewDownloader(cli)
	n, err := dl.Download(ctx, buf, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, "", fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Msg("downloaded s3 source")
	return buf.Bytes(), filepath.Base(key), nil
}

func (l *Loader) s3Client(ctx context.Context) (*s3.Client, error) {
	var opts []func(*awscfg.LoadOptions) error
	if l.s3opts.Region != "" {
		opts = append(opts, awscfg.WithRegion(l.s3opts.Region))
	}
	if l.s3opts.AccessKey != "" && l.s3opts.SecretKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(l.s3opts.AccessKey, l.s3opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// splitS3Ref parses s3://bucket/key, falling back to the configured bucket
// for s3://key-only references.
func splitS3Ref(ref, defaultBucket string) (string, string, error) {
	path := strings.TrimPrefix(ref, "s3://")
	slash := strings.Index(path, "/")
	if slash > 0 {
		return path[:slash], path[slash+1:], nil
	}
	if defaultBucket != "" && path != "" {
		return defaultBucket, path, nil
	}
	return "", "", fmt.Errorf("invalid s3 reference: %s", ref)
}
