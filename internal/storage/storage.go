// Package storage turns crawl snapshots into persisted artifacts. Blob backends
// (local disk, GCS, S3, memory) receive a CSV rendering through BlobSink; row
// backends (Postgres, SQLite) implement crawler.Sink directly.
package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

// CSVContentType is the content type of encoded snapshots.
const CSVContentType = "text/csv; charset=utf-8"

// BlobStore is the object storage contract shared by the blob backends.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Encode writes records as CSV with a header row of columns. Columns missing from a
// record are written as empty cells.
func Encode(w io.Writer, columns []string, records []crawler.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			row[i] = rec[col]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ObjectKey names the artifact of snap under prefix: <prefix>/<mode>/<run>/<label>.csv.
func ObjectKey(prefix string, snap crawler.Snapshot) string {
	return path.Join(strings.Trim(prefix, "/"), string(snap.Mode), snap.RunID, snap.Label+".csv")
}

// BlobSink persists snapshots as CSV objects in a BlobStore.
type BlobSink struct {
	store  BlobStore
	prefix string
}

var _ crawler.Sink = (*BlobSink)(nil)

// NewBlobSink wraps store; every object key starts with prefix.
func NewBlobSink(store BlobStore, prefix string) *BlobSink {
	return &BlobSink{store: store, prefix: prefix}
}

// Persist encodes snap and uploads it, returning the object URI.
func (s *BlobSink) Persist(ctx context.Context, snap crawler.Snapshot) (string, error) {
	if snap.Label == "" {
		return "", errors.New("snapshot label is required")
	}
	var buf bytes.Buffer
	if err := Encode(&buf, snap.Columns, snap.Records); err != nil {
		return "", err
	}
	uri, err := s.store.PutObject(ctx, ObjectKey(s.prefix, snap), CSVContentType, &buf)
	if err != nil {
		return "", fmt.Errorf("put snapshot %s: %w", snap.Label, err)
	}
	return uri, nil
}

// FanoutSink persists every snapshot to all of its sinks.
type FanoutSink struct {
	sinks []crawler.Sink
}

var _ crawler.Sink = (*FanoutSink)(nil)

// NewFanoutSink returns a sink writing to each of sinks in order.
func NewFanoutSink(sinks ...crawler.Sink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

// Persist writes snap to every sink. Locations of the successful writes are joined
// with commas; failures are joined into the returned error.
func (f *FanoutSink) Persist(ctx context.Context, snap crawler.Snapshot) (string, error) {
	var (
		locations []string
		errs      []error
	)
	for _, s := range f.sinks {
		loc, err := s.Persist(ctx, snap)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}
	return strings.Join(locations, ","), errors.Join(errs...)
}
