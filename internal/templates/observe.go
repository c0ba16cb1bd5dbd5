/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package templates

import (
	"context"

	"github.com/friendsincode/slotplanner/internal/models"
)

// Observed wraps a Repository and reports the outcome of every call.
type Observed struct {
	Repository
	observe func(op string, err error)
}

// WithObserver returns repo instrumented with observe. op is one of
// "list", "save" or "delete".
func WithObserver(repo Repository, observe func(op string, err error)) *Observed {
	return &Observed{Repository: repo, observe: observe}
}

// List implements Repository.
func (o *Observed) List(ctx context.Context) ([]models.Template, error) {
	list, err := o.Repository.List(ctx)
	o.observe("list", err)
	return list, err
}

// Save implements Repository.
func (o *Observed) Save(ctx context.Context, name string, collection []models.Slot) (models.Template, error) {
	tmpl, err := o.Repository.Save(ctx, name, collection)
	o.observe("save", err)
	return tmpl, err
}

// Delete implements Repository.
func (o *Observed) Delete(ctx context.Context, index int) error {
	err := o.Repository.Delete(ctx, index)
	o.observe("delete", err)
	return err
}
