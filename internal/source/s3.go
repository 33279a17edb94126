package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"forumsync/internal/fs"
	"forumsync/internal/importer"
)

// defaultS3Concurrency bounds parallel object downloads.
const defaultS3Concurrency = 4

// S3Client is the subset of the S3 API the source needs.
type S3Client interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// S3Options configure an S3Source.
type S3Options struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint points the client at an S3-compatible store and switches to
	// path-style addressing.
	Endpoint string

	// AccessKeyID and SecretAccessKey override the default credential chain
	// when both are set.
	AccessKeyID     string
	SecretAccessKey string

	Ignore      []string
	Concurrency int
}

// S3Source lists the objects under a bucket prefix as source files. Object
// keys relative to the prefix become file paths.
type S3Source struct {
	client      S3Client
	downloader  *manager.Downloader
	bucket      string
	prefix      string
	ignore      *fs.IgnoreMatcher
	concurrency int
}

// NewS3Source loads the AWS configuration and creates the client.
func NewS3Source(ctx context.Context, opts S3Options) (*S3Source, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3SourceWithClient(client, opts), nil
}

// NewS3SourceWithClient creates a source over an existing client.
func NewS3SourceWithClient(client S3Client, opts S3Options) *S3Source {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultS3Concurrency
	}
	prefix := strings.TrimPrefix(opts.Prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Source{
		client:      client,
		downloader:  manager.NewDownloader(client),
		bucket:      opts.Bucket,
		prefix:      prefix,
		ignore:      fs.NewIgnoreMatcher(opts.Ignore),
		concurrency: concurrency,
	}
}

// ListFiles lists every object under the prefix and downloads the ones not
// ignored. Keys ending in '/' are folder markers and are skipped.
func (s *S3Source) ListFiles(ctx context.Context) ([]importer.SourceFile, error) {
	keys, err := s.listKeys(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]importer.SourceFile, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			content, err := s.download(gctx, key)
			if err != nil {
				return err
			}
			files[i] = importer.SourceFile{
				RelativePath: strings.TrimPrefix(key, s.prefix),
				Content:      content,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *S3Source) listKeys(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, s.prefix)
			if rel == "" || strings.HasSuffix(rel, "/") || s.ignore.MatchTree(rel) {
				continue
			}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3Source) download(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("downloading s3://%s/%s: %w", s.bucket, key, err)
	}
	return buf.Bytes(), nil
}

// Compile-time check that S3Source implements importer.Source
var _ importer.Source = (*S3Source)(nil)
