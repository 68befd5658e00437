// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/storage"
)

// Store implements storage.VectorStore over the OpenSearch REST API.
type Store struct {
	transport *transport
	closed    atomic.Bool
	logger    *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// New validates cfg and creates a store. When a signing service is set, AWS
// credentials are loaded from the default chain for cfg.Region and cfg.Profile.
//
// Returns storage.VectorStore interface to enforce abstraction.
func New(ctx context.Context, cfg Config) (storage.VectorStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var creds aws.CredentialsProvider
	if cfg.SigningService != "" {
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
		if cfg.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		creds = awsCfg.Credentials
	}
	return NewStore(cfg, creds)
}

// NewStore creates a store with an explicit credentials provider, which is
// required when cfg.SigningService is set.
func NewStore(cfg Config, creds aws.CredentialsProvider) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	t := &transport{
		endpoint: cfg.Endpoint,
		client:   client,
		username: cfg.Username,
		password: cfg.Password,
		compress: cfg.Compress,
	}
	if cfg.SigningService != "" {
		if creds == nil {
			return nil, fmt.Errorf("%w: credentials are required for request signing", ErrInvalidConfig)
		}
		t.credentials = creds
		t.signer = v4.NewSigner()
		t.service = cfg.SigningService
		t.region = cfg.Region
	}

	return &Store{
		transport: t,
		logger:    slog.Default().With("component", "opensearch-store", "endpoint", cfg.Endpoint),
	}, nil
}

type indexBody struct {
	Settings struct {
		Index map[string]any `json:"index"`
	} `json:"settings"`
	Mappings struct {
		Properties map[string]knnVectorField `json:"properties"`
	} `json:"mappings"`
}

type knnVectorField struct {
	Type      string    `json:"type"`
	Dimension int       `json:"dimension"`
	Method    knnMethod `json:"method"`
}

type knnMethod struct {
	Name       string              `json:"name"`
	SpaceType  storage.SpaceType   `json:"space_type"`
	Engine     string              `json:"engine"`
	Parameters knnMethodParameters `json:"parameters"`
}

type knnMethodParameters struct {
	EfConstruction int `json:"ef_construction"`
	M              int `json:"m"`
}

func indexRequest(spec storage.IndexSpec) indexBody {
	var body indexBody
	body.Settings.Index = map[string]any{
		"knn":                      true,
		"knn.algo_param.ef_search": spec.EfSearch,
	}
	body.Mappings.Properties = make(map[string]knnVectorField, len(spec.VectorFields))
	for _, field := range spec.VectorFields {
		body.Mappings.Properties[field] = knnVectorField{
			Type:      "knn_vector",
			Dimension: spec.Dimension,
			Method: knnMethod{
				Name:      spec.Method,
				SpaceType: spec.SpaceType,
				Engine:    spec.Engine,
				Parameters: knnMethodParameters{
					EfConstruction: spec.EfConstruction,
					M:              spec.M,
				},
			},
		}
	}
	return body
}

// CreateIndex creates the index with knn_vector mappings for the spec's vector fields.
func (s *Store) CreateIndex(ctx context.Context, spec storage.IndexSpec) error {
	spec = spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(indexRequest(spec))
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	if _, err := s.request(ctx, http.MethodPut, "/"+url.PathEscape(spec.Name), body); err != nil {
		return err
	}
	s.logger.Info("created index", "index", spec.Name, "dimension", spec.Dimension, "fields", spec.VectorFields)
	return nil
}

// DeleteIndex deletes the index and its documents.
func (s *Store) DeleteIndex(ctx context.Context, index string) error {
	if _, err := s.request(ctx, http.MethodDelete, "/"+url.PathEscape(index), nil); err != nil {
		return err
	}
	s.logger.Info("deleted index", "index", index)
	return nil
}

// IndexExists issues a HEAD request for the index.
func (s *Store) IndexExists(ctx context.Context, index string) (bool, error) {
	if s.closed.Load() {
		return false, storage.ErrStorageClosed
	}
	path := "/" + url.PathEscape(index)
	resp, err := s.transport.do(ctx, http.MethodHead, path, nil, "")
	if err != nil {
		return false, err
	}
	switch {
	case resp.ok():
		return true, nil
	case resp.status == http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(http.MethodHead, path, resp.status, resp.body)
	}
}

// Truncate deletes every document with a match_all delete-by-query.
func (s *Store) Truncate(ctx context.Context, index string) error {
	body := []byte(`{"query":{"match_all":{}}}`)
	path := "/" + url.PathEscape(index) + "/_delete_by_query?refresh=true&conflicts=proceed"
	data, err := s.request(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	_ = json.Unmarshal(data, &resp)
	s.logger.Info("truncated index", "index", index, "deleted", resp.Deleted)
	return nil
}

type bulkAction struct {
	Index bulkTarget `json:"index"`
}

type bulkTarget struct {
	Index string          `json:"_index"`
	ID    core.DocumentID `json:"_id"`
}

type bulkResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

type bulkBody struct {
	Errors bool                    `json:"errors"`
	Items  []map[string]bulkResult `json:"items"`
}

// BulkIndex writes documents with index operations so a repeated write
// replaces the earlier document. Documents that cannot be encoded are
// reported as failed items and never sent.
func (s *Store) BulkIndex(ctx context.Context, index string, docs []core.Document) (*storage.BulkResponse, error) {
	resp := &storage.BulkResponse{Items: make([]storage.BulkItem, len(docs))}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	var sent []int
	for i, doc := range docs {
		resp.Items[i] = storage.BulkItem{ID: doc.ID}
		if err := core.ValidateDocument(&doc); err != nil {
			resp.Items[i].Status = http.StatusBadRequest
			resp.Items[i].ErrorType = "mapper_parsing_exception"
			resp.Items[i].Reason = err.Error()
			continue
		}
		source, err := json.Marshal(doc.Fields)
		if err != nil {
			resp.Items[i].Status = http.StatusBadRequest
			resp.Items[i].ErrorType = "mapper_parsing_exception"
			resp.Items[i].Reason = err.Error()
			continue
		}
		if err := enc.Encode(bulkAction{Index: bulkTarget{Index: index, ID: doc.ID}}); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		buf.Write(source)
		buf.WriteByte('\n')
		sent = append(sent, i)
	}
	if len(sent) == 0 {
		return resp, nil
	}

	data, err := s.requestWithType(ctx, http.MethodPost, "/_bulk", buf.Bytes(), "application/x-ndjson")
	if err != nil {
		return nil, err
	}
	var body bulkBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: decoding bulk response: %w", storage.ErrSerializationFailed, err)
	}
	if len(body.Items) != len(sent) {
		return nil, fmt.Errorf("%w: bulk response has %d items for %d documents",
			ErrRequestFailed, len(body.Items), len(sent))
	}

	for j, item := range body.Items {
		i := sent[j]
		for _, result := range item {
			resp.Items[i].Status = result.Status
			if result.Error != nil {
				resp.Items[i].ErrorType = result.Error.Type
				resp.Items[i].Reason = result.Error.Reason
			}
		}
	}
	if body.Errors {
		s.logger.Debug("bulk request had item errors", "index", index, "failed", len(resp.Failed()), "ignored", resp.Ignored())
	}
	return resp, nil
}

type searchBody struct {
	Size   int            `json:"size"`
	Query  map[string]any `json:"query"`
	Source *sourceFilter  `json:"_source,omitempty"`
}

type sourceFilter struct {
	Excludes []string `json:"excludes"`
}

func searchRequest(q storage.KnnQuery) searchBody {
	knn := map[string]any{
		"knn": map[string]any{
			q.Field: map[string]any{"vector": q.Vector, "k": q.K},
		},
	}
	body := searchBody{Size: q.ResultSize(), Query: knn}
	if q.Filter != nil {
		body.Query = map[string]any{
			"bool": map[string]any{
				"must":   []any{knn},
				"filter": []any{termFilter(q.Filter)},
			},
		}
	}
	if len(q.Excludes) > 0 {
		body.Source = &sourceFilter{Excludes: q.Excludes}
	}
	return body
}

// termFilter matches strings on the keyword sub-field dynamic mapping creates.
func termFilter(f *storage.Filter) map[string]any {
	field := f.Field
	if _, ok := f.Value.(string); ok {
		field += ".keyword"
	}
	return map[string]any{"term": map[string]any{field: f.Value}}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// KnnSearch runs a k-NN query, optionally inside a bool query with a term filter.
func (s *Store) KnnSearch(ctx context.Context, query storage.KnnQuery) ([]core.SearchResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(searchRequest(query))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	data, err := s.request(ctx, http.MethodPost, "/"+url.PathEscape(query.Index)+"/_search", body)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding search response: %w", storage.ErrSerializationFailed, err)
	}
	results := make([]core.SearchResult, len(resp.Hits.Hits))
	for i, hit := range resp.Hits.Hits {
		results[i] = core.SearchResult{
			ID:     core.DocumentID(hit.ID),
			Score:  hit.Score,
			Rank:   i + 1,
			Fields: hit.Source,
		}
	}
	return results, nil
}

// DocumentCount returns the index's _count.
func (s *Store) DocumentCount(ctx context.Context, index string) (int, error) {
	data, err := s.request(ctx, http.MethodGet, "/"+url.PathEscape(index)+"/_count", nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("%w: decoding count response: %w", storage.ErrSerializationFailed, err)
	}
	return resp.Count, nil
}

// Close releases idle connections. Further calls return storage.ErrStorageClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.transport.client.CloseIdleConnections()
	return nil
}

func (s *Store) request(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	return s.requestWithType(ctx, method, path, body, "application/json")
}

func (s *Store) requestWithType(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	resp, err := s.transport.do(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, statusError(method, path, resp.status, resp.body)
	}
	return resp.body, nil
}
