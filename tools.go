// Copyright 2026 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

//go:build tools
// +build tools

package xmpplogin

import (
	_ "golang.org/x/tools/cmd/stringer"
)
