package export

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/itisfoundation/osparc-tables/internal/config"
	"github.com/itisfoundation/osparc-tables/internal/diskspace"
	"github.com/itisfoundation/osparc-tables/internal/pathutil"
)

// Sink stores one encoded export.
type Sink interface {
	Put(ctx context.Context, data []byte, contentType string) error
	String() string
}

// Destination kinds
const (
	KindFile  = "file"
	KindS3    = "s3"
	KindAzure = "azblob"
)

// Destination is a parsed --dest value.
type Destination struct {
	Kind      string
	Bucket    string // S3 bucket or Azure container
	Key       string // object key, blob name or file path
	Directory bool   // ends with "/": one object per resource
}

// ParseDestination parses "s3://bucket/key", "azblob://container/blob" or a
// local path. A leading "~" in a local path is expanded.
func ParseDestination(dest string) (Destination, error) {
	if dest == "" {
		return Destination{}, fmt.Errorf("empty export destination")
	}
	for _, kind := range []string{KindS3, KindAzure} {
		prefix := kind + "://"
		if !strings.HasPrefix(dest, prefix) {
			continue
		}
		rest := strings.TrimPrefix(dest, prefix)
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Destination{}, fmt.Errorf("%s destination %q has no bucket", kind, dest)
		}
		return Destination{
			Kind:      kind,
			Bucket:    bucket,
			Key:       key,
			Directory: key == "" || strings.HasSuffix(key, "/"),
		}, nil
	}
	if strings.Contains(dest, "://") {
		return Destination{}, fmt.Errorf("unsupported export destination %q", dest)
	}
	dest, err := pathutil.ExpandHome(dest)
	if err != nil {
		return Destination{}, err
	}
	isDir := strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(os.PathSeparator))
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		isDir = true
	}
	return Destination{Kind: KindFile, Key: dest, Directory: isDir}, nil
}

// For returns the destination of one resource: directories get
// "<resource><ext>" appended.
func (d Destination) For(resource string, format Format) Destination {
	if !d.Directory {
		return d
	}
	out := d
	out.Directory = false
	name := resource + format.Ext()
	if d.Kind == KindFile {
		out.Key = filepath.Join(d.Key, name)
	} else {
		out.Key = d.Key + name
	}
	return out
}

func (d Destination) String() string {
	switch d.Kind {
	case KindS3, KindAzure:
		return d.Kind + "://" + d.Bucket + "/" + d.Key
	default:
		return d.Key
	}
}

// NewSink creates the sink of d. httpClient carries the proxy settings for
// object storage sinks.
func NewSink(ctx context.Context, d Destination, cfg *config.Config, httpClient *nethttp.Client) (Sink, error) {
	if d.Directory {
		return nil, fmt.Errorf("destination %s is a directory; call For first", d)
	}
	switch d.Kind {
	case KindS3:
		return NewS3Sink(ctx, d.Bucket, d.Key, cfg, httpClient)
	case KindAzure:
		return NewAzureSink(cfg.AzureServiceURL, d.Bucket, d.Key, httpClient)
	default:
		return &FileSink{Path: d.Key}, nil
	}
}

// FileSink writes to a local file, replacing it atomically.
type FileSink struct {
	Path string
}

func (s *FileSink) String() string { return s.Path }

// Put writes data through a temp file in the same directory.
func (s *FileSink) Put(ctx context.Context, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	if err := diskspace.Check(s.Path, int64(len(data)), diskspace.DefaultMargin); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}
