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

// Package vectorstore is the client for the vector search cluster the
// bundled manifests deploy. Endpoint deployments use it for retrieval
// contexts; this package only checks health, bootstraps the index, and
// reads/writes vectors.
package vectorstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

// Options configures the cluster connection and index shape.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Index settings used by EnsureIndex.
	IndexName string
	KeyPrefix string
	VectorDim int
}

func (o *Options) applyDefaults() {
	if o.Addr == "" {
		o.Addr = "localhost:6379"
	}
	if o.IndexName == "" {
		o.IndexName = "doc-index"
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = "doc:"
	}
	if o.VectorDim <= 0 {
		o.VectorDim = 768
	}
}

// Document is one stored vector with its source text.
type Document struct {
	ID     string
	Text   string
	Vector []float32
	// Score is set on search results only (cosine distance, lower is
	// closer).
	Score float64
}

// Client talks to one vector search cluster.
type Client struct {
	rdb  *redis.Client
	opts Options
}

// New connects to the cluster and verifies it is reachable.
func New(ctx context.Context, opts Options) (*Client, error) {
	opts.applyDefaults()
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pong, err := rdb.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vector store at %s: %w", opts.Addr, err)
	}
	klog.V(2).Infof("connected to vector store %s: %s", opts.Addr, pong)
	return &Client{rdb: rdb, opts: opts}, nil
}

// HealthCheck pings the cluster.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("vector store unhealthy: %w", err)
	}
	return nil
}

// EnsureIndex creates the HNSW vector index if it does not exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	err := c.rdb.Do(ctx,
		"FT.CREATE", c.opts.IndexName,
		"ON", "HASH",
		"PREFIX", "1", c.opts.KeyPrefix,
		"SCHEMA",
		"text", "TEXT",
		"embedding", "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", fmt.Sprintf("%d", c.opts.VectorDim),
		"DISTANCE_METRIC", "COSINE",
	).Err()
	if err != nil {
		if strings.Contains(err.Error(), "Index already exists") {
			return nil
		}
		return fmt.Errorf("failed to create index %s: %w", c.opts.IndexName, err)
	}
	klog.Infof("created vector index %s (dim %d)", c.opts.IndexName, c.opts.VectorDim)
	return nil
}

// Upsert writes one document. The vector is stored as little-endian
// float32 bytes, the layout the search index expects.
func (c *Client) Upsert(ctx context.Context, doc Document) error {
	if len(doc.Vector) != c.opts.VectorDim {
		return fmt.Errorf("vector of %s has dim %d, index expects %d", doc.ID, len(doc.Vector), c.opts.VectorDim)
	}
	return c.rdb.HSet(ctx, c.opts.KeyPrefix+doc.ID,
		"text", doc.Text,
		"embedding", encodeVector(doc.Vector),
	).Err()
}

// Search runs an approximate KNN query and returns the topK closest
// documents.
func (c *Client) Search(ctx context.Context, vector []float32, topK int) ([]Document, error) {
	if len(vector) != c.opts.VectorDim {
		return nil, fmt.Errorf("query vector has dim %d, index expects %d", len(vector), c.opts.VectorDim)
	}
	res, err := c.rdb.Do(ctx,
		"FT.SEARCH", c.opts.IndexName,
		fmt.Sprintf("*=>[KNN %d @embedding $vec AS score]", topK),
		"PARAMS", "2", "vec", encodeVector(vector),
		"RETURN", "2", "text", "score",
		"SORTBY", "score",
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return parseSearchResult(res, c.opts.KeyPrefix)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func encodeVector(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return string(buf)
}

// parseSearchResult walks the RESP reply of FT.SEARCH:
// [count, key, [field, value, ...], key, [...], ...].
func parseSearchResult(res interface{}, keyPrefix string) ([]Document, error) {
	rows, ok := res.([]interface{})
	if !ok || len(rows) == 0 {
		return nil, fmt.Errorf("unexpected search reply shape %T", res)
	}
	var docs []Document
	for i := 1; i+1 < len(rows); i += 2 {
		key, _ := rows[i].(string)
		fields, ok := rows[i+1].([]interface{})
		if !ok {
			continue
		}
		doc := Document{ID: strings.TrimPrefix(key, keyPrefix)}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			value, _ := fields[j+1].(string)
			switch name {
			case "text":
				doc.Text = value
			case "score":
				fmt.Sscanf(value, "%g", &doc.Score)
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
