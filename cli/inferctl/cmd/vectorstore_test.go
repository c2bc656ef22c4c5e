/*
Copyright The Modelserve Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelserve-ai/inferctl/pkg/manifests"
)

// The manifest subcommand renders through the typed builders, not the
// embedded text templates.
func TestVectorStoreManifestCommand(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "store.yaml")
	vsManifestOpts = manifests.VectorStoreOptions{Name: "kb-store", Memory: "8Gi"}
	createOutFile = outFile
	t.Cleanup(func() {
		vsManifestOpts = manifests.VectorStoreOptions{}
		createOutFile = ""
	})

	require.NoError(t, vectorStoreManifestCmd.RunE(vectorStoreManifestCmd, nil))

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	rendered := string(data)
	assert.Contains(t, rendered, "kind: Deployment")
	assert.Contains(t, rendered, "kind: Service")
	assert.Contains(t, rendered, "name: kb-store")
	assert.Contains(t, rendered, "memory: 8Gi")
	// Two documents in one stream.
	assert.Equal(t, 1, strings.Count(rendered, "\n---\n"))
}
