// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package snapshot exports a store to a single JSON file and loads it back.
//
// A snapshot file wraps a storage.Dump with a format marker and version so
// that foreign or future files are rejected before anything is written.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/storage"
)

const (
	// FormatName marks a file as a snapshot.
	FormatName = "stdgap-snapshot"

	// FormatVersion is the snapshot layout written by this build.
	FormatVersion = 1
)

var (
	// ErrInvalidSnapshot indicates a file that is not a snapshot or cannot be decoded.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrUnsupportedVersion indicates a snapshot written in a different format version.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

var codec = sonic.ConfigStd

// File is the on-disk snapshot layout.
type File struct {
	Format     string        `json:"format"`
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Store      *storage.Dump `json:"store"`
}

// Stats summarizes what a snapshot holds.
type Stats struct {
	Documents       int `json:"documents"`
	Sections        int `json:"sections"`
	Gaps            int `json:"gaps"`
	Recommendations int `json:"recommendations"`
}

func statsOf(dump *storage.Dump) Stats {
	return Stats{
		Documents:       len(dump.Documents),
		Sections:        len(dump.Sections),
		Gaps:            len(dump.Gaps),
		Recommendations: len(dump.Recommendations),
	}
}

// Encode writes dump as a snapshot to w.
func Encode(w io.Writer, dump *storage.Dump) error {
	data, err := marshal(dump)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode reads a snapshot from r and returns the dump it carries.
func Decode(r io.Reader) (*storage.Dump, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return unmarshal(data)
}

// Export writes the whole store to path, replacing any existing file atomically.
func Export(ctx context.Context, store storage.Store, path string) (Stats, error) {
	dump, err := store.Export(ctx)
	if err != nil {
		return Stats{}, err
	}
	data, err := marshal(dump)
	if err != nil {
		return Stats{}, err
	}
	if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
		return Stats{}, fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return statsOf(dump), nil
}

// Import loads the snapshot at path into store, which must be empty.
func Import(ctx context.Context, store storage.Store, path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	dump, err := unmarshal(data)
	if err != nil {
		return Stats{}, err
	}
	if err := store.Import(ctx, dump); err != nil {
		return Stats{}, err
	}
	return statsOf(dump), nil
}

func marshal(dump *storage.Dump) ([]byte, error) {
	file := File{
		Format:     FormatName,
		Version:    FormatVersion,
		ExportedAt: core.Now(),
		Store:      dump,
	}
	data, err := codec.MarshalIndent(&file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal(data []byte) (*storage.Dump, error) {
	var file File
	if err := codec.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if file.Format != FormatName {
		return nil, fmt.Errorf("%w: format %q", ErrInvalidSnapshot, file.Format)
	}
	if file.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d, want %d", ErrUnsupportedVersion, file.Version, FormatVersion)
	}
	if file.Store == nil {
		return nil, fmt.Errorf("%w: no store data", ErrInvalidSnapshot)
	}
	return file.Store, nil
}
