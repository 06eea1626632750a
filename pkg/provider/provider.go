// Package provider exposes the embedded analytics provider: batch ingestion
// into per-collection stores and multi-dimensional queries over them.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vjranagit/embedded/pkg/ingest"
	"github.com/vjranagit/embedded/pkg/metadata"
	"github.com/vjranagit/embedded/pkg/query"
	"github.com/vjranagit/embedded/pkg/storage"
	"github.com/vjranagit/embedded/pkg/types"
)

// Name identifies the provider
const Name = "Embedded"

// DefaultWorkspace is used when no workspace is given
const DefaultWorkspace = "default"

var validate = validator.New()

// Options configures a Provider
type Options struct {
	// Path is the directory holding one store per namespace.
	Path             string
	InMemory         bool
	CompressionLevel int
	// Workspace prefixes the namespace of collections without a store key.
	Workspace string
	Logger    zerolog.Logger
	// Catalog holds known collections. A new catalog is created when nil.
	Catalog *metadata.Catalog
	// Open overrides how namespace stores are opened.
	Open storage.OpenFunc
	// Now returns the ingestion time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns default provider options
func DefaultOptions() Options {
	return Options{
		Path:             "./data",
		CompressionLevel: 3,
		Workspace:        DefaultWorkspace,
		Logger:           zerolog.Nop(),
	}
}

// InsertResult describes one ingested batch
type InsertResult struct {
	Namespace string           `json:"namespace"`
	Count     int              `json:"count"`
	Keys      []string         `json:"keys"`
	Meta      ingest.BatchMeta `json:"meta"`
}

// Result is the output of a query
type Result struct {
	Dimensions []types.Dimension `json:"dimensions"`
	Metrics    []types.Metric    `json:"metrics"`
	Documents  []query.Row       `json:"documents"`
	QueryPlan  *query.QueryPlan  `json:"queryplan"`
}

// Stats describes one namespace store
type Stats struct {
	Namespace string `json:"namespace"`
	Count     int    `json:"count"`
	Size      int64  `json:"size"`
}

// Provider ingests into and queries embedded namespace stores
type Provider struct {
	workspace string
	stores    *storage.Manager
	catalog   *metadata.Catalog
	executor  *query.Executor
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a provider
func New(opts Options) (*Provider, error) {
	if opts.Path == "" && !opts.InMemory {
		return nil, fmt.Errorf("data path is required")
	}
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = 3
	}
	if opts.Workspace == "" {
		opts.Workspace = DefaultWorkspace
	}
	if opts.Catalog == nil {
		opts.Catalog = metadata.NewCatalog()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	stores := storage.NewManager(storage.ManagerOptions{
		Path:             opts.Path,
		InMemory:         opts.InMemory,
		CompressionLevel: opts.CompressionLevel,
		Logger:           opts.Logger,
		Open:             opts.Open,
	})

	return &Provider{
		workspace: opts.Workspace,
		stores:    stores,
		catalog:   opts.Catalog,
		executor:  query.NewExecutor(stores, opts.Logger),
		now:       opts.Now,
		log:       opts.Logger.With().Str("component", "provider").Str("provider", Name).Logger(),
	}, nil
}

// Catalog returns the provider's collection catalog
func (p *Provider) Catalog() *metadata.Catalog {
	return p.catalog
}

// Insert furnishes docs with time buckets and identity keys and writes
// them to the collection's store as one batch.
func (p *Provider) Insert(ctx context.Context, coll *types.Collection, docs []storage.Document) (*InsertResult, error) {
	if coll == nil {
		return nil, fmt.Errorf("collection is required")
	}
	if err := validate.Struct(coll); err != nil {
		return nil, fmt.Errorf("invalid collection: %w", err)
	}

	meta, err := ingest.Furnish(coll, docs, p.now())
	if err != nil {
		return nil, fmt.Errorf("failed to furnish documents: %w", err)
	}

	namespace := p.namespace(coll)
	store, err := p.stores.Open(ctx, namespace)
	if err != nil {
		return nil, &NotFoundError{Collection: coll.Key, Err: err}
	}

	p.log.Debug().Str("namespace", namespace).Int("documents", len(docs)).Msg("inserting batch")
	if err := store.Insert(ctx, docs); err != nil {
		return nil, &query.ExecutionError{Collection: coll.Key, Namespace: namespace, Op: "insert", Err: err}
	}

	if _, known := p.catalog.Collection(coll.Key); !known {
		if err := p.catalog.Register(coll); err != nil {
			return nil, err
		}
	}

	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[i], _ = doc[ingest.FieldKey].(string)
	}
	return &InsertResult{
		Namespace: namespace,
		Count:     len(docs),
		Keys:      keys,
		Meta:      meta,
	}, nil
}

// BuildQueryPlan compiles q against the provider's catalog.
func (p *Provider) BuildQueryPlan(q *types.Query) (*query.QueryPlan, error) {
	start := time.Now()
	plan, err := query.Compile(q, p.catalog)
	if err != nil {
		return nil, err
	}
	p.log.Debug().
		Str("plan", plan.UID).
		Int("cost", plan.Cost).
		Dur("elapsed", time.Since(start)).
		Msg("query compiled")
	return plan, nil
}

// Query compiles and runs q within workspace and merges the per-collection
// results. An empty workspace selects the provider's default.
func (p *Provider) Query(ctx context.Context, workspace string, q *types.Query) (*Result, error) {
	plan, err := p.BuildQueryPlan(q)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Dimensions: plan.Dimensions,
		Metrics:    plan.Metrics,
		Documents:  []query.Row{},
		QueryPlan:  plan,
	}
	if len(plan.ColQueries) == 0 {
		return result, nil
	}

	if workspace == "" {
		workspace = p.workspace
	}
	start := time.Now()
	partials, err := p.executor.Execute(ctx, workspace, plan)
	if err != nil {
		return nil, err
	}
	rows, err := query.Merge(plan, partials)
	if err != nil {
		return nil, err
	}
	p.log.Debug().
		Str("plan", plan.UID).
		Int("rows", len(rows)).
		Dur("elapsed", time.Since(start)).
		Msg("query executed")

	result.Documents = rows
	return result, nil
}

// Stats reports the document count and size of a namespace store.
func (p *Provider) Stats(ctx context.Context, namespace string) (*Stats, error) {
	store, err := p.stores.Open(ctx, namespace)
	if err != nil {
		return nil, err
	}
	count, err := store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count namespace %s: %w", namespace, err)
	}
	return &Stats{
		Namespace: storage.Sanitize(namespace),
		Count:     count,
		Size:      store.Size(),
	}, nil
}

// Drop removes a namespace store and its files.
func (p *Provider) Drop(namespace string) error {
	return p.stores.Drop(namespace)
}

// Purge removes every open namespace store.
func (p *Provider) Purge() error {
	return p.stores.Purge()
}

// Destroy closes every open store.
func (p *Provider) Destroy() error {
	p.log.Info().Msg("destroying provider")
	if err := p.stores.CloseAll(); err != nil {
		p.log.Error().Err(err).Msg("failed to close stores")
		return err
	}
	return nil
}

func (p *Provider) namespace(coll *types.Collection) string {
	if coll.StoreKey != "" {
		return coll.StoreKey
	}
	return query.Namespace(p.workspace, coll.Key)
}
