// Package media caches synthesized feedback audio on local disk and serves
// it over HTTP.
//
// Files are content addressed: the name is the MD5 of the spoken text and
// the voice, so repeating a phrase with the same voice never calls the TTS
// provider twice. Writes go through a temporary file and a rename, so a
// reader never observes a partially written MP3.
package media

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Defaults for [NewStore].
const (
	DefaultDir       = "media/tts"
	DefaultURLPrefix = "/media"
)

// Ext is the extension of every cached file.
const Ext = ".mp3"

// Store is a directory of cached audio files.
type Store struct {
	dir       string
	urlPrefix string
}

// NewStore creates dir if needed and returns a Store that publishes files
// under urlPrefix. Empty arguments select the defaults.
func NewStore(dir, urlPrefix string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create dir: %w", err)
	}
	return &Store{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Key returns the cache key for text spoken by voice: the hex MD5 of
// text + "_" + voice.
func Key(text, voice string) string {
	sum := md5.Sum([]byte(text + "_" + voice))
	return hex.EncodeToString(sum[:])
}

// Filename returns the file name stored for key.
func Filename(key string) string { return key + Ext }

// Path returns the absolute location of key's file.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, Filename(key))
}

// URL returns the public URL of key's file.
func (s *Store) URL(key string) string {
	return s.urlPrefix + "/" + Filename(key)
}

// Exists reports whether key is cached.
func (s *Store) Exists(key string) bool {
	info, err := os.Stat(s.Path(key))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Put stores data under key atomically.
func (s *Store) Put(key string, data []byte) error {
	if len(data) == 0 {
		return errors.New("media: refusing to cache empty audio")
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("media: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("media: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("media: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("media: chmod: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		return fmt.Errorf("media: rename: %w", err)
	}
	return nil
}

// Open opens a cached file by its published file name. Names that are not a
// plain file inside the cache directory are rejected with [ErrInvalidName];
// unknown names return an error matching [fs.ErrNotExist].
func (s *Store) Open(filename string) (*os.File, error) {
	if !validName(filename) {
		return nil, ErrInvalidName
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, fmt.Errorf("media: open dir: %w", err)
	}
	defer root.Close()

	f, err := root.Open(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("media: open %s: %w", filename, err)
	}
	return f, nil
}

// ErrInvalidName is returned by [Store.Open] for names that could escape the
// cache directory.
var ErrInvalidName = errors.New("media: invalid file name")

func validName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
