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

package facade

import (
	"fmt"

	"github.com/containerd/platforms"
	"github.com/eminwux/kukebox/internal/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ParsePlatform parses an os/arch[/variant] specifier. An empty string yields nil.
func ParsePlatform(s string) (*ocispec.Platform, error) {
	if s == "" {
		return nil, nil
	}
	p, err := platforms.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", errdefs.ErrInvalidPlatform, s, err)
	}
	return &p, nil
}

// FormatPlatform renders p as os/arch[/variant]; nil renders as "".
func FormatPlatform(p *ocispec.Platform) string {
	if p == nil {
		return ""
	}
	return platforms.Format(*p)
}

// PlatformsEqual compares two platform specifiers after normalization, so that
// "linux/x86_64" and "linux/amd64" are the same. Specifiers that do not parse are
// compared verbatim.
func PlatformsEqual(a, b string) bool {
	if a == b {
		return true
	}
	pa, errA := platforms.Parse(a)
	pb, errB := platforms.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	pa = platforms.Normalize(pa)
	pb = platforms.Normalize(pb)
	return pa.OS == pb.OS && pa.Architecture == pb.Architecture && pa.Variant == pb.Variant
}
