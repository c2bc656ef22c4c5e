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

package vectorstore

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// miniredis covers the plain Redis surface (connect, health, hashes); the
// FT.* search commands need a real vector search cluster.

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), Options{Addr: mr.Addr(), VectorDim: 4})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	_, err := New(context.Background(), Options{Addr: "localhost:1"})
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	client, mr := newTestClient(t)
	require.NoError(t, client.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, client.HealthCheck(context.Background()))
}

func TestUpsertStoresHash(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	doc := Document{ID: "d1", Text: "hello world", Vector: []float32{1, 2, 3, 4}}
	require.NoError(t, client.Upsert(ctx, doc))

	assert.Equal(t, "hello world", mr.HGet("doc:d1", "text"))
	assert.Equal(t, encodeVector(doc.Vector), mr.HGet("doc:d1", "embedding"))
}

func TestUpsertRejectsWrongDim(t *testing.T) {
	client, _ := newTestClient(t)
	err := client.Upsert(context.Background(), Document{ID: "d1", Vector: []float32{1, 2}})
	assert.Error(t, err)
}

func TestSearchRejectsWrongDim(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Search(context.Background(), []float32{1}, 3)
	assert.Error(t, err)
}

func TestEncodeVectorLittleEndian(t *testing.T) {
	encoded := encodeVector([]float32{1.5, -2})
	require.Len(t, encoded, 8)

	first := math.Float32frombits(binary.LittleEndian.Uint32([]byte(encoded)[:4]))
	second := math.Float32frombits(binary.LittleEndian.Uint32([]byte(encoded)[4:]))
	assert.Equal(t, float32(1.5), first)
	assert.Equal(t, float32(-2), second)
}

func TestParseSearchResult(t *testing.T) {
	reply := []interface{}{
		int64(2),
		"doc:d1", []interface{}{"text", "first", "score", "0.12"},
		"doc:d2", []interface{}{"text", "second", "score", "0.37"},
	}

	docs, err := parseSearchResult(reply, "doc:")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d1", docs[0].ID)
	assert.Equal(t, "first", docs[0].Text)
	assert.InDelta(t, 0.12, docs[0].Score, 1e-9)
	assert.Equal(t, "d2", docs[1].ID)

	_, err = parseSearchResult("garbage", "doc:")
	assert.Error(t, err)
}
