/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/slotplanner/internal/models"
)

// document is the YAML file layout for exported templates.
type document struct {
	Version   int               `yaml:"version"`
	Templates []models.Template `yaml:"templates"`
}

const documentVersion = 1

// Export writes every template in repo to w as YAML.
func Export(ctx context.Context, repo Repository, w io.Writer) (int, error) {
	list, err := repo.List(ctx)
	if err != nil {
		return 0, err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Version: documentVersion, Templates: list}); err != nil {
		return 0, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("encode yaml: %w", err)
	}
	return len(list), nil
}

// Import reads a YAML document from r and appends its templates to repo in
// file order. Templates without a name are skipped. Slot types are normalised.
func Import(ctx context.Context, repo Repository, r io.Reader) (int, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Version > documentVersion {
		return 0, fmt.Errorf("unsupported template document version %d", doc.Version)
	}

	imported := 0
	for _, tmpl := range doc.Templates {
		if strings.TrimSpace(tmpl.Name) == "" {
			continue
		}
		for i := range tmpl.Slots {
			tmpl.Slots[i].Type = models.ParseSlotType(string(tmpl.Slots[i].Type))
		}
		if _, err := repo.Save(ctx, tmpl.Name, tmpl.Slots); err != nil {
			return imported, fmt.Errorf("import %q: %w", tmpl.Name, err)
		}
		imported++
	}
	return imported, nil
}
