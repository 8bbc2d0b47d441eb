// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeatureBitmapSetHas(t *testing.T) {
	var fb featureBitmap
	assert.False(t, fb.has(HeaderCPUTopology))
	fb.set(HeaderCPUTopology)
	assert.True(t, fb.has(HeaderCPUTopology))
	assert.False(t, fb.has(HeaderNUMATopology))
}

func TestFeatureBitmapHighBit(t *testing.T) {
	var fb featureBitmap
	fb.set(HeaderPMUCaps)
	assert.True(t, fb.has(HeaderPMUCaps))
}

func TestHeaderIndexString(t *testing.T) {
	assert.Equal(t, "cpu_topology", HeaderCPUTopology.String())
	assert.Equal(t, "hostname", HeaderHostname.String())
	assert.Contains(t, HeaderIndex(9999).String(), "HeaderIndex(9999)")
}
