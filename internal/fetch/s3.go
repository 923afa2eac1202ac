package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"

	"github.com/jcom-dev/htg/internal/tile"
	"github.com/jcom-dev/htg/internal/tileerr"
)

// S3Transport fetches tiles from an S3 bucket laid out as
// {prefix}/{continent}/{identity}.hgt(.gz)?, using the default AWS
// credential chain (§4.4, §6 "S3 source"). Construction mirrors the
// teacher's cmd/seed-geodata S3-restore tooling.
type S3Transport struct {
	Bucket string
	Prefix string
	Gzip   bool
	client *s3.Client
}

// NewS3Transport resolves AWS credentials via config.LoadDefaultConfig
// (environment, shared config, IMDS) for the given region, exactly as
// cmd/seed-geodata does for its own S3 downloads.
func NewS3Transport(ctx context.Context, bucket, prefix, region string, gzipEncoded bool) (*S3Transport, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3Transport{
		Bucket: bucket,
		Prefix: prefix,
		Gzip:   gzipEncoded,
		client: s3.NewFromConfig(cfg),
	}, nil
}

func (t *S3Transport) objectKey(id tile.Identity) (string, error) {
	latFloor, lonFloor, err := id.Floors()
	if err != nil {
		return "", err
	}
	ext := ".hgt"
	if t.Gzip {
		ext = ".hgt.gz"
	}
	return fmt.Sprintf("%s/%s/%s%s", t.Prefix, continentFor(latFloor, lonFloor), id.String(), ext), nil
}

// Fetch implements cache.Fetcher over S3 (§4.4): downloads the object,
// logging its size in humanized bytes before the transfer and the elapsed
// time after it, then places it atomically under dataDir, decompressing if
// the source is gzipped.
func (t *S3Transport) Fetch(ctx context.Context, id tile.Identity, dataDir string) (string, error) {
	key, err := t.objectKey(id)
	if err != nil {
		return "", err
	}

	start := time.Now()
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", tileerr.Wrap(tileerr.DownloadFailed, fmt.Sprintf("get s3://%s/%s", t.Bucket, key), err).WithIdentity(string(id))
	}
	defer out.Body.Close()

	var size uint64
	if out.ContentLength != nil {
		size = uint64(*out.ContentLength)
	}
	slog.Info("fetch: downloading tile from s3",
		"identity", id.String(), "bucket", t.Bucket, "key", key, "size", humanize.Bytes(size))

	var body io.Reader = out.Body
	if t.Gzip {
		gz, err := gzip.NewReader(out.Body)
		if err != nil {
			return "", tileerr.Wrap(tileerr.DownloadFailed, "open gzip stream", err).WithIdentity(string(id))
		}
		defer gz.Close()
		body = gz
	}

	path, err := placeDownload(body, dataDir, id, false)
	if err != nil {
		return "", err
	}

	slog.Info("fetch: downloaded tile from s3",
		"identity", id.String(), "elapsed", time.Since(start).Round(time.Millisecond))
	return path, nil
}
