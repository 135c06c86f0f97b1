// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import "fmt"

// InvalidInputError indicates misshaped or misaligned input matrices,
// a prior that does not sum to 1, non-finite values, or a clone
// configuration with no discriminating variant. It is fatal: the
// caller's inputs need fixing, retrying cannot help.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

func invalidInputf(format string, args ...interface{}) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// DegenerateFitError indicates the model could not be fit: no cell has
// any covered variant, or a parameter collapsed onto the {0,1}
// boundary. At the top level it is fatal; inside the bootstrap a
// replicate hitting it is retried with a fresh resample.
type DegenerateFitError struct {
	Guard string
}

func (e *DegenerateFitError) Error() string {
	return "degenerate fit: " + e.Guard
}
