// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/civicmap/civicmap/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
