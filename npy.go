// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"bufio"
	"io"
	"os"

	"github.com/kshedden/gonpy"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// writeNpy writes data with the given shape to a .npy file.
func writeNpy(filename string, shape []int, data []float64) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0777)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = shape
	err = npw.WriteFloat64(data)
	if err != nil {
		return err
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return f.Close()
}
