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

// Package template reads sandbox template documents. A file may hold several YAML
// documents separated by `---`; each must be a v1beta1 Template.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/eminwux/kukebox/internal/apischeme"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/provider"
	v1beta1 "github.com/eminwux/kukebox/pkg/api/model/v1beta1"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoDocuments       = errors.New("no documents found in input")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrAmbiguousTemplate = errors.New("several templates found, pick one by name")
)

// Document is one parsed template document.
type Document struct {
	Index  int
	Raw    []byte
	Doc    v1beta1.TemplateDoc
	Config modelhub.ProviderConfig
}

// ValidationError reports a bad document by position.
type ValidationError struct {
	Index int
	Name  string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("document %d (%s %q): %v", e.Index, v1beta1.KindTemplate, e.Name, e.Err)
	}
	return fmt.Sprintf("document %d (%s): %v", e.Index, v1beta1.KindTemplate, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// SplitDocuments reads r and returns every non-empty YAML document in it.
func SplitDocuments(r io.Reader) ([][]byte, error) {
	dec := yaml.NewDecoder(r)
	var out [][]byte
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if len(node.Content) == 0 {
			continue
		}
		raw, err := yaml.Marshal(&node)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		out = append(out, raw)
	}
	if len(out) == 0 {
		return nil, ErrNoDocuments
	}
	return out, nil
}

// ParseDocument decodes and validates one template document.
func ParseDocument(index int, raw []byte) (*Document, error) {
	var doc v1beta1.TemplateDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Index: index, Err: fmt.Errorf("failed to parse Template: %w", err)}
	}
	if doc.Kind == "" {
		return nil, &ValidationError{Index: index, Name: doc.Metadata.Name, Err: errors.New("kind is required")}
	}

	cfg, _, err := apischeme.NormalizeTemplate(doc)
	if err != nil {
		return nil, &ValidationError{Index: index, Name: doc.Metadata.Name, Err: err}
	}
	if err = provider.ValidateConfig(cfg); err != nil {
		return nil, &ValidationError{Index: index, Name: doc.Metadata.Name, Err: err}
	}
	return &Document{Index: index, Raw: raw, Doc: doc, Config: cfg}, nil
}

// Parse reads every template in r. All documents are validated; the returned error lists
// each bad one.
func Parse(r io.Reader) ([]Document, error) {
	raws, err := SplitDocuments(r)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(raws))
	var errs []*ValidationError
	for i, raw := range raws {
		doc, parseErr := ParseDocument(i, raw)
		if parseErr != nil {
			var verr *ValidationError
			if !errors.As(parseErr, &verr) {
				verr = &ValidationError{Index: i, Err: parseErr}
			}
			errs = append(errs, verr)
			continue
		}
		docs = append(docs, *doc)
	}
	if err = formatValidationErrors(errs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Select returns the template called name, or the only template when name is empty.
func Select(docs []Document, name string) (modelhub.ProviderConfig, error) {
	if name == "" {
		switch len(docs) {
		case 0:
			return modelhub.ProviderConfig{}, ErrNoDocuments
		case 1:
			return docs[0].Config, nil
		default:
			return modelhub.ProviderConfig{}, ErrAmbiguousTemplate
		}
	}
	for _, d := range docs {
		if d.Config.Name == name {
			return d.Config, nil
		}
	}
	return modelhub.ProviderConfig{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

// Load parses r and selects one template from it.
func Load(r io.Reader, name string) (modelhub.ProviderConfig, error) {
	docs, err := Parse(r)
	if err != nil {
		return modelhub.ProviderConfig{}, err
	}
	return Select(docs, name)
}

func formatValidationErrors(errs []*ValidationError) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%w: %w", errdefs.ErrConfig, errs[0])
	}
	joined := make([]error, 0, len(errs))
	for _, e := range errs {
		joined = append(joined, e)
	}
	return fmt.Errorf("%w: validation errors:\n%w", errdefs.ErrConfig, errors.Join(joined...))
}
