// Copyright 2025 Emiliano Spinella (eminwux)
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
//
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eminwux/kukebox/internal/errdefs"
)

func existsFilePath(filepath string) bool {
	if _, err := os.Stat(filepath); err == nil {
		return true
	}
	return false
}

func WriteMetadata(ctx context.Context, logger *slog.Logger, metadata any, file string) error {
	logger.DebugContext(ctx, "writing metadata", "file", file)

	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		logger.ErrorContext(ctx, "failed to create metadata dir", "file", file, "error", err)
		return fmt.Errorf("%w: mkdir: %w", errdefs.ErrWriteMetadata, err)
	}

	if err := writeMetadataFile(metadata, file); err != nil {
		logger.ErrorContext(ctx, "failed to write metadata file", "file", file, "error", err)
		return fmt.Errorf("%w: %w", errdefs.ErrWriteMetadata, err)
	}
	return nil
}

func writeMetadataFile(metadata any, file string) error {
	marshaled, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", file, err)
	}
	marshaled = append(marshaled, '\n')

	const filePerm = 0o644
	if err = atomicWriteFile(file, marshaled, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}

func atomicWriteFile(file string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(file)

	f, err := os.CreateTemp(dir, ".meta-*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp) // safe if already renamed
	}()

	if err = f.Chmod(mode); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err = os.Rename(tmp, file); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if d, openErr := os.Open(dir); openErr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func ReadMetadata[T any](ctx context.Context, logger *slog.Logger, file string) (T, error) {
	var zero T
	logger.DebugContext(ctx, "reading metadata", "file", file)

	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, fmt.Errorf("%w: %s", errdefs.ErrMissingMetadataFile, file)
		}
		return zero, fmt.Errorf("read %s: %w", file, err)
	}
	var out T
	if err = json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("unmarshal %s: %w", file, err)
	}
	return out, nil
}

func RemoveMetadata(ctx context.Context, logger *slog.Logger, file string) error {
	logger.DebugContext(ctx, "removing metadata", "file", file)
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", file, err)
	}
	return nil
}
