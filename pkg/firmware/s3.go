package firmware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/phosphor-rfid/phosphor/pkg/errors"
)

// S3Fetcher downloads firmware images from a public release bucket laid out
// as <prefix>/<variant>/fullimage.elf.
type S3Fetcher struct {
	s3Client *s3.Client
	bucket   string
	prefix   string
}

// NewS3Fetcher creates a fetcher with anonymous credentials; release buckets
// are public.
func NewS3Fetcher(ctx context.Context, bucket, region, prefix string) (*S3Fetcher, error) {
	slog.Info("s3_client_init", "bucket", bucket, "region", region)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	slog.Info("s3_client_created", "bucket", bucket)
	return &S3Fetcher{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

// Fetch downloads the image for variant to dest and logs its SHA256.
func (f *S3Fetcher) Fetch(ctx context.Context, variant, dest string) error {
	if err := ValidateVariant(variant); err != nil {
		return err
	}
	key := fmt.Sprintf("%s/%s/%s", f.prefix, variant, ImageName)
	slog.Info("s3_download_start", "bucket", f.bucket, "s3_key", key)

	result, err := f.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Error("s3_get_object_failed", "s3_key", key, "error", err)
		return errors.Wrap(err, "failed to get object from S3")
	}
	defer result.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		slog.Error("local_file_creation_failed", "path", dest, "error", err)
		return errors.Wrap(err, "failed to create local file")
	}
	defer out.Close()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, hash), io.LimitReader(result.Body, MaxImageSize+1))
	if err != nil {
		slog.Error("s3_download_failed", "s3_key", key, "error", err)
		return errors.Wrap(err, "failed to download file")
	}
	if err := ValidateImageSize(size); err != nil {
		os.Remove(dest)
		return err
	}

	checksum := hex.EncodeToString(hash.Sum(nil))
	slog.Info("s3_download_complete",
		"s3_key", key,
		"size", size,
		"local_path", dest,
		"sha256", checksum[:16]+"...",
	)
	return nil
}

// Exists checks whether the bucket has an image for variant.
func (f *S3Fetcher) Exists(ctx context.Context, variant string) (bool, error) {
	if err := ValidateVariant(variant); err != nil {
		return false, err
	}
	key := fmt.Sprintf("%s/%s/%s", f.prefix, variant, ImageName)
	_, err := f.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if err.Error() == "NotFound" {
			slog.Info("s3_object_not_found", "s3_key", key)
			return false, nil
		}
		slog.Error("s3_head_object_failed", "s3_key", key, "error", err)
		return false, errors.Wrap(err, "failed to check object existence")
	}
	slog.Info("s3_object_exists", "s3_key", key)
	return true, nil
}
