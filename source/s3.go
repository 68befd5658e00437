package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Downloader fetches an S3 object into w.
type Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: %q is not an s3:// URI", ErrInvalidReference, uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs a bucket and a key", ErrInvalidReference, uri)
	}
	return u.Host, key, nil
}

func newDownloader(ctx context.Context, opts Options) (Downloader, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return manager.NewDownloader(s3.NewFromConfig(cfg)), nil
}

// download writes the object to a temporary file and returns its path.
// The caller removes the file.
func download(ctx context.Context, bucket, key string, opts Options) (string, error) {
	downloader := opts.Downloader
	if downloader == nil {
		var err error
		if downloader, err = newDownloader(ctx, opts); err != nil {
			return "", err
		}
	}

	f, err := os.CreateTemp("", "vecbatch-*"+path.Ext(key))
	if err != nil {
		return "", err
	}
	_, err = downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("downloading s3://%s/%s: %w", bucket, key, err)
	}
	return f.Name(), nil
}
