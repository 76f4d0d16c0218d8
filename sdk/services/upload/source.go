// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/utils"
)

// Source is a random-access byte source for one file of a batch.
type Source interface {
	Name() string
	Size(ctx context.Context) (int64, error)
	// Part returns a reader over [offset, offset+length). If the reader is an io.Closer
	// the caller closes it.
	Part(ctx context.Context, offset, length int64) (io.ReadSeeker, error)
	Close() error
}

/* -------------------- local file -------------------- */

type FileSource struct {
	path string
	name string

	mu sync.Mutex
	f  *os.File
}

func NewFileSource(p string) *FileSource {
	return &FileSource{path: p, name: filepath.Base(p)}
}

func (s *FileSource) Name() string { return s.name }

// Size also opens the file, so an unreadable input fails before any provider call.
func (s *FileSource) Size(context.Context) (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", s.path)
	}
	if _, err := s.open(); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *FileSource) Part(_ context.Context, offset, length int64) (io.ReadSeeker, error) {
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	return io.NewSectionReader(f, offset, length), nil
}

func (s *FileSource) open() (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, err
		}
		s.f = f
	}
	return s.f, nil
}

func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

/* -------------------- S3 object -------------------- */

type S3Source struct {
	client *config.S3Client
	bucket string
	key    string
}

func NewS3Source(client *config.S3Client, bucket, key string) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key}
}

func (s *S3Source) Name() string { return path.Base(s.key) }

func (s *S3Source) Size(ctx context.Context) (int64, error) {
	return s.client.Size(ctx, s.bucket, s.key)
}

func (s *S3Source) Part(ctx context.Context, offset, length int64) (io.ReadSeeker, error) {
	return &rangeReader{ctx: ctx, src: s, offset: offset, length: length}, nil
}

func (s *S3Source) Close() error { return nil }

// rangeReader streams one byte range, reopening the ranged GET after a Seek.
type rangeReader struct {
	ctx    context.Context
	src    *S3Source
	offset int64
	length int64
	pos    int64
	body   io.ReadCloser
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.pos >= r.length {
		return 0, io.EOF
	}
	if r.body == nil {
		body, err := r.src.client.GetRange(r.ctx, r.src.bucket, r.src.key, r.offset+r.pos, r.length-r.pos)
		if err != nil {
			return 0, err
		}
		r.body = body
	}
	if remaining := r.length - r.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.body.Read(p)
	r.pos += int64(n)
	if errors.Is(err, io.EOF) && r.pos < r.length {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (r *rangeReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = r.length + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	if abs != r.pos {
		_ = r.Close()
		r.pos = abs
	}
	return abs, nil
}

func (r *rangeReader) Close() error {
	if r.body == nil {
		return nil
	}
	err := r.body.Close()
	r.body = nil
	return err
}

/* -------------------- input resolution -------------------- */

// ResolveSources expands inputs into sources: directories are walked, doublestar
// globs are matched, s3:// prefixes ending in "/" are listed. Base names must be unique.
func ResolveSources(ctx context.Context, inputs []string, s3c *config.S3Client) ([]Source, error) {
	var sources []Source
	seen := make(map[string]string)

	add := func(input string, src Source) error {
		if prev, dup := seen[src.Name()]; dup {
			return &ValidationError{File: input, Err: fmt.Errorf("duplicate file name %q (also from %s)", src.Name(), prev)}
		}
		seen[src.Name()] = input
		sources = append(sources, src)
		return nil
	}

	for _, in := range inputs {
		p, err := utils.ParsePath(in)
		if err != nil {
			return nil, &ValidationError{File: in, Err: err}
		}

		var found []Source
		switch {
		case p.IsRemote():
			found, err = resolveS3(ctx, s3c, p)
		case strings.ContainsAny(in, "*?[{"):
			found, err = resolveGlob(in)
		default:
			found, err = resolveLocal(in)
		}
		if err != nil {
			return nil, &ValidationError{File: in, Err: err}
		}
		for _, src := range found {
			if err := add(in, src); err != nil {
				return nil, err
			}
		}
	}

	if len(sources) == 0 {
		return nil, &ValidationError{Err: ErrNoFiles}
	}
	return sources, nil
}

func resolveS3(ctx context.Context, s3c *config.S3Client, p *utils.ParsedPath) ([]Source, error) {
	if s3c == nil {
		return nil, errors.New("s3 is not configured")
	}
	if p.Key != "" && !strings.HasSuffix(p.Key, "/") {
		return []Source{NewS3Source(s3c, p.Bucket, p.Key)}, nil
	}

	files, err := s3c.ListFiles(ctx, p.Bucket, p.Key)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no objects under %s", p)
	}
	out := make([]Source, 0, len(files))
	for _, f := range files {
		out = append(out, NewS3Source(s3c, p.Bucket, f.Path))
	}
	return out, nil
}

func resolveGlob(in string) ([]Source, error) {
	base, pattern := doublestar.SplitPattern(filepath.ToSlash(in))
	matches, err := doublestar.Glob(os.DirFS(base), pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var out []Source
	for _, m := range matches {
		full := filepath.Join(base, filepath.FromSlash(m))
		info, err := os.Stat(full)
		if err != nil {
			return nil, err
		}
		if info.Mode().IsRegular() {
			out = append(out, NewFileSource(full))
		}
	}
	if len(out) == 0 {
		return nil, errors.New("pattern matches no files")
	}
	return out, nil
}

func resolveLocal(in string) ([]Source, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	if info.Mode().IsRegular() {
		return []Source{NewFileSource(in)}, nil
	}
	if !info.IsDir() {
		return nil, errors.New("not a regular file or directory")
	}

	var out []Source
	err = filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			out = append(out, NewFileSource(p))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("directory contains no files")
	}
	return out, nil
}
