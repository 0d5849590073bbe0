package fetch

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultS3Region = "us-east-1"

// S3Getter is the slice of the S3 client used for downloads.
type S3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ParseS3 splits s3://bucket/key.
func ParseS3(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", errors.Newf(errors.ErrInvalidInput, "not an s3 location: %s", location)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", errors.Newf(errors.ErrInvalidInput, "s3 location has no key: %s", location)
	}
	return u.Host, key, nil
}

func (c *Client) s3Client() S3Getter {
	if c.s3 != nil {
		return c.s3
	}
	region := c.opts.S3Region
	if region == "" {
		region = defaultS3Region
	}
	opts := s3.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
		HTTPClient:  c.http,
	}
	if c.opts.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.opts.S3Endpoint)
		opts.UsePathStyle = true
	}
	c.s3 = s3.New(opts)
	return c.s3
}

func (c *Client) fetchS3(ctx context.Context, location, dest string) error {
	bucket, key, err := ParseS3(location)
	if err != nil {
		return err
	}

	out, err := c.s3Client().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, errors.ErrNetwork, "get %s", location)
	}
	defer func() { _ = out.Body.Close() }()

	part := dest + partSuffix
	f, err := os.Create(part)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "create %s", part)
	}

	name := filepath.Base(dest)
	c.tracker.SubStart("downloading "+name, aws.ToInt64(out.ContentLength), progress.UnitBytes)
	_, copyErr := io.Copy(io.MultiWriter(f, progress.CountingWriter{T: c.tracker}), out.Body)
	closeErr := f.Close()
	c.tracker.SubEnd("")
	if copyErr != nil {
		return errors.Wrapf(copyErr, errors.ErrPartialDownload, "read %s", location)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, errors.ErrFileWrite, "close %s", part)
	}
	if err := os.Rename(part, dest); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "finalize %s", dest)
	}
	return nil
}
