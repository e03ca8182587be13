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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eminwux/kukebox/internal/apischeme"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/eminwux/kukebox/internal/modelhub"
	ext "github.com/eminwux/kukebox/pkg/api/model/v1beta1"
)

const (
	containersDir = "containers"
	recordSuffix  = ".json"
)

// RecordStore keeps one JSON container document per record under <runPath>/containers.
type RecordStore struct {
	logger *slog.Logger
	dir    string
}

func NewRecordStore(logger *slog.Logger, runPath string) *RecordStore {
	return &RecordStore{
		logger: logging.OrNoop(logger),
		dir:    filepath.Join(runPath, containersDir),
	}
}

func (s *RecordStore) Dir() string {
	return s.dir
}

func (s *RecordStore) file(id string) string {
	return filepath.Join(s.dir, id+recordSuffix)
}

func (s *RecordStore) Save(ctx context.Context, rec modelhub.ContainerRecord) error {
	if rec.ID == "" {
		return errdefs.ErrContainerIDRequired
	}
	doc, err := apischeme.BuildContainerExternalFromInternal(rec, apischeme.VersionV1Beta1)
	if err != nil {
		return err
	}
	return WriteMetadata(ctx, s.logger, doc, s.file(rec.ID))
}

func (s *RecordStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errdefs.ErrContainerIDRequired
	}
	return RemoveMetadata(ctx, s.logger, s.file(id))
}

// List returns every stored record sorted by id. Unreadable files are skipped and logged.
func (s *RecordStore) List(ctx context.Context) ([]modelhub.ContainerRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}

	var out []modelhub.ContainerRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordSuffix) {
			continue
		}
		file := filepath.Join(s.dir, name)
		doc, readErr := ReadMetadata[ext.ContainerDoc](ctx, s.logger, file)
		if readErr != nil {
			s.logger.WarnContext(ctx, "skipping unreadable container record", "file", file, "err", readErr)
			continue
		}
		rec, convErr := apischeme.ConvertContainerDocToInternal(doc)
		if convErr != nil {
			s.logger.WarnContext(ctx, "skipping invalid container record", "file", file, "err", convErr)
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
