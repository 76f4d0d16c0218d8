// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client reads upload sources from and writes downloaded renditions to S3.
type S3Client struct {
	s3 *s3.Client
}

func NewS3Client(ctx context.Context, cfgCreds S3Config) (*S3Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfgCreds.Region)}
	if cfgCreds.AccessKey != "" {
		creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfgCreds.AccessKey,
			cfgCreds.SecretKey,
			cfgCreds.AccessToken,
		))
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Options := func(o *s3.Options) {
		if cfgCreds.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfgCreds.EndpointURL)
			o.UsePathStyle = true // needed by most S3-compatible stores
		}
	}

	return &S3Client{
		s3: s3.NewFromConfig(cfg, s3Options),
	}, nil
}

type S3File struct {
	Path string
	Name string
	Size int64
}

// ListFiles walks every page under prefix, skipping zero-byte "folder" placeholders.
func (c *S3Client) ListFiles(ctx context.Context, bucket, prefix string) ([]S3File, error) {
	var files []S3File
	var token *string

	for {
		resp, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			MaxKeys:           aws.Int32(1000),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in S3: %w", err)
		}

		for _, obj := range resp.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || (strings.HasSuffix(key, "/") && aws.ToInt64(obj.Size) == 0) {
				continue
			}
			files = append(files, S3File{
				Path: key,
				Name: strings.TrimPrefix(key, prefix),
				Size: aws.ToInt64(obj.Size),
			})
		}

		if resp.NextContinuationToken == nil || *resp.NextContinuationToken == "" {
			break
		}
		token = resp.NextContinuationToken
	}
	return files, nil
}

func (c *S3Client) Size(ctx context.Context, bucket, key string) (int64, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to stat s3://%s/%s: %w", bucket, key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// GetRange opens bytes [offset, offset+length) of an object.
func (c *S3Client) GetRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	return out.Body, nil
}

/* -------------------- PROGRESS HOOK -------------------- */

type ProgressHook struct {
	OnStart    func(key string, totalBytes int64)                     // once, before the first byte
	OnProgress func(key string, written, totalBytes int64)            // periodically
	OnDone     func(key string, totalBytes int64, took time.Duration) // once, at the end
}

type progressReader struct {
	r          io.Reader
	key        string
	total      int64
	read       int64
	lastEmit   time.Time
	interval   time.Duration
	onProgress func(key string, written, total int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.read += int64(n)
	now := time.Now()
	if pr.onProgress != nil && n > 0 && (pr.read == pr.total || now.Sub(pr.lastEmit) >= pr.interval) {
		pr.onProgress(pr.key, pr.read, pr.total)
		pr.lastEmit = now
	}
	return n, err
}

/* -------------------- UPLOAD -------------------- */

// PutStream writes r to bucket/key with the multipart upload manager.
// total may be -1 when the length is unknown.
func (c *S3Client) PutStream(
	ctx context.Context,
	bucket, key, contentType string,
	r io.Reader,
	total int64,
	hook *ProgressHook,
) error {
	if hook != nil && hook.OnStart != nil {
		hook.OnStart(key, total)
	}

	pr := &progressReader{r: r, key: key, total: total, interval: 250 * time.Millisecond}
	if hook != nil {
		pr.onProgress = hook.OnProgress
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	start := time.Now()
	if _, err := manager.NewUploader(c.s3).Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}
	if hook != nil && hook.OnDone != nil {
		hook.OnDone(key, pr.read, time.Since(start))
	}
	return nil
}
