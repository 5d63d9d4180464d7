// Package source opens raw survey exports as restartable byte streams and
// reads them as chunked, decoded, delimited rows. Inputs may be plain
// delimited text, gzip-compressed text, or zip archives in which the
// target member is selected by a name token or, failing that, by largest
// size.
package source

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/edusurvey/microagg/pkg/errors"
)

// Stream is a readable input positioned at offset 0 on open. Seek supports
// only rewinding to the start; that is the whole contract the sniffer and
// the chunk reader rely on, and it is implementable for compressed members
// without materializing them.
type Stream interface {
	io.ReadSeekCloser
	Name() string
}

// Open opens path as a Stream. memberToken selects the archive member for
// zip inputs; it is ignored for plain and gzip files.
func Open(path, memberToken string) (Stream, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return openZipMember(path, memberToken)
	case ".gz":
		return openGzip(path)
	default:
		return openPlain(path)
	}
}

// plainStream is a regular file; it seeks natively.
type plainStream struct {
	*os.File
}

func openPlain(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input file").
			WithDetail("path", path)
	}
	return &plainStream{File: f}, nil
}

func (s *plainStream) Name() string { return s.File.Name() }

// gzipStream decompresses a .gz file; rewinding re-seeks the underlying
// file and restarts the decompressor.
type gzipStream struct {
	file *os.File
	zr   *gzip.Reader
}

func openGzip(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input file").
			WithDetail("path", path)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open gzip stream").
			WithDetail("path", path)
	}
	return &gzipStream{file: f, zr: zr}, nil
}

func (s *gzipStream) Read(p []byte) (int, error) { return s.zr.Read(p) }

func (s *gzipStream) Name() string { return s.file.Name() }

func (s *gzipStream) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekStart {
		return 0, errors.New(errors.ErrorTypeInternal, "gzip stream supports seeking to start only")
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if err := s.zr.Reset(s.file); err != nil {
		return 0, err
	}
	return 0, nil
}

func (s *gzipStream) Close() error {
	s.zr.Close()
	return s.file.Close()
}

// zipMemberStream reads one member of a zip archive; rewinding reopens
// the member.
type zipMemberStream struct {
	archive *zip.ReadCloser
	member  *zip.File
	rc      io.ReadCloser
}

func openZipMember(path, token string) (Stream, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeArchive, "failed to open zip archive").
			WithDetail("path", path)
	}

	member := selectMember(archive.File, token)
	if member == nil {
		archive.Close()
		return nil, errors.New(errors.ErrorTypeArchive, "no eligible data member found in archive").
			WithDetail("path", path).
			WithDetail("member_token", token)
	}

	rc, err := member.Open()
	if err != nil {
		archive.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeArchive, "failed to open archive member").
			WithDetail("path", path).
			WithDetail("member", member.Name)
	}

	return &zipMemberStream{archive: archive, member: member, rc: rc}, nil
}

// selectMember picks the target data member: delimited-text members whose
// name contains the token, largest first; with no token (or no token hit)
// the largest delimited-text member wins.
func selectMember(files []*zip.File, token string) *zip.File {
	token = strings.ToUpper(token)

	var best, bestTagged *zip.File
	for _, f := range files {
		lower := strings.ToLower(f.Name)
		if !strings.HasSuffix(lower, ".csv") && !strings.HasSuffix(lower, ".txt") {
			continue
		}
		if best == nil || f.UncompressedSize64 > best.UncompressedSize64 {
			best = f
		}
		if token != "" && strings.Contains(strings.ToUpper(f.Name), token) {
			if bestTagged == nil || f.UncompressedSize64 > bestTagged.UncompressedSize64 {
				bestTagged = f
			}
		}
	}

	if bestTagged != nil {
		return bestTagged
	}
	return best
}

func (s *zipMemberStream) Read(p []byte) (int, error) { return s.rc.Read(p) }

func (s *zipMemberStream) Name() string { return s.member.Name }

func (s *zipMemberStream) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekStart {
		return 0, errors.New(errors.ErrorTypeInternal, "zip member stream supports seeking to start only")
	}
	if err := s.rc.Close(); err != nil {
		return 0, err
	}
	rc, err := s.member.Open()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeArchive, "failed to reopen archive member").
			WithDetail("member", s.member.Name)
	}
	s.rc = rc
	return 0, nil
}

func (s *zipMemberStream) Close() error {
	s.rc.Close()
	return s.archive.Close()
}
