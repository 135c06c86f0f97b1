// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	cloneid "github.com/wtsi-hgi/cloneid"
)

func main() {
	cloneid.Main()
}
