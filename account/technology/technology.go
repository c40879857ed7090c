// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package technology maps (tech code, fuel code) pairs to the
// technology labels used in trade agreement eligibility matching.
package technology

import (
	"context"

	"github.com/zeebo/errs"
)

// Error is the default technology errs class.
var Error = errs.Class("technology")

// UnknownLabel is used for (tech code, fuel code) pairs that have no
// registered technology.
const UnknownLabel = "Unknown"

// Technology is a labeled combination of tech code and fuel code.
type Technology struct {
	ID       int64
	Label    string
	TechCode string
	FuelCode string
}

// DB is the interface for storing and retrieving technologies.
//
// architecture: Database
type DB interface {
	// Create inserts a new technology. (TechCode, FuelCode) must be
	// unique.
	Create(ctx context.Context, t *Technology) error
	// Get returns the technology for the code pair, or nil when absent.
	Get(ctx context.Context, techCode, fuelCode string) (*Technology, error)
	// List returns all registered technologies.
	List(ctx context.Context) ([]*Technology, error)
}

// Label returns the label of t, or UnknownLabel when t is nil.
func Label(t *Technology) string {
	if t == nil {
		return UnknownLabel
	}
	return t.Label
}
