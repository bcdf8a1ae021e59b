package vectorindex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

const weaviateListLimit = 10000

// Weaviate stores plans as objects of one class in a Weaviate instance,
// with vectors supplied by the caller.
type Weaviate struct {
	client *weaviate.Client
	class  string
	log    *zap.Logger
}

// WeaviateOptions locate the instance and the class.
type WeaviateOptions struct {
	Host   string
	Scheme string
	APIKey string
	Class  string
}

// NewWeaviate connects and makes sure the class exists.
func NewWeaviate(ctx context.Context, opts WeaviateOptions, logger *zap.Logger) (*Weaviate, error) {
	if opts.Class == "" {
		opts.Class = "SuccessfulPlan"
	}
	cfg := weaviate.Config{Host: opts.Host, Scheme: opts.Scheme}
	if opts.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: opts.APIKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	w := &Weaviate{client: client, class: opts.Class, log: logger.Named("vectorindex.weaviate")}
	if err := w.ensureClass(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Weaviate) ensureClass(ctx context.Context) error {
	exists, err := w.client.Schema().ClassExistenceChecker().WithClassName(w.class).Do(ctx)
	if err != nil {
		return schemas.NewStorageError("check class", w.class, err)
	}
	if exists {
		return nil
	}
	class := &models.Class{
		Class:      w.class,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "task_title", DataType: []string{"text"}},
			{Name: "plan", DataType: []string{"text"}},
			{Name: "task_id", DataType: []string{"text"}},
			{Name: "execution_date", DataType: []string{"date"}},
		},
	}
	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return schemas.NewStorageError("create class", w.class, err)
	}
	w.log.Info("Created weaviate class.", zap.String("class", w.class))
	return nil
}

func (w *Weaviate) Upsert(ctx context.Context, rec schemas.PlanRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("plan record has no ID")
	}
	props := map[string]interface{}{
		"task_title":     rec.TaskTitle,
		"plan":           rec.Plan,
		"task_id":        rec.TaskID,
		"execution_date": rec.ExecutionDate.UTC().Format(time.RFC3339Nano),
	}

	exists, err := w.client.Data().Checker().WithClassName(w.class).WithID(rec.ID).Do(ctx)
	if err != nil {
		return schemas.NewStorageError("check object", w.class, err)
	}
	if exists {
		err = w.client.Data().Updater().
			WithClassName(w.class).WithID(rec.ID).
			WithProperties(props).WithVector(rec.Embedding).
			Do(ctx)
	} else {
		_, err = w.client.Data().Creator().
			WithClassName(w.class).WithID(rec.ID).
			WithProperties(props).WithVector(rec.Embedding).
			Do(ctx)
	}
	return schemas.NewStorageError("upsert", w.class, err)
}

func (w *Weaviate) fields() []graphql.Field {
	return []graphql.Field{
		{Name: "task_title"},
		{Name: "plan"},
		{Name: "task_id"},
		{Name: "execution_date"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}
}

func (w *Weaviate) Query(ctx context.Context, vector []float32, k int) ([]schemas.ScoredPlan, error) {
	near := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	resp, err := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(w.fields()...).
		WithNearVector(near).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, schemas.NewStorageError("query", w.class, err)
	}
	if err := graphQLError(resp); err != nil {
		return nil, schemas.NewStorageError("query", w.class, err)
	}
	plans, err := decodeGet(resp.Data, w.class)
	if err != nil {
		return nil, err
	}
	Rank(plans)
	return plans, nil
}

func (w *Weaviate) List(ctx context.Context) ([]schemas.PlanRecord, error) {
	resp, err := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(w.fields()...).
		WithLimit(weaviateListLimit).
		Do(ctx)
	if err != nil {
		return nil, schemas.NewStorageError("list", w.class, err)
	}
	if err := graphQLError(resp); err != nil {
		return nil, schemas.NewStorageError("list", w.class, err)
	}
	plans, err := decodeGet(resp.Data, w.class)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.PlanRecord, len(plans))
	for i, p := range plans {
		out[i] = p.PlanRecord
	}
	sortNewestFirst(out)
	return out, nil
}

func (w *Weaviate) DeleteByTitle(ctx context.Context, title string) (int, error) {
	where := filters.Where().
		WithPath([]string{"task_title"}).
		WithOperator(filters.Equal).
		WithValueText(title)
	resp, err := w.client.Batch().ObjectsBatchDeleter().
		WithClassName(w.class).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return 0, schemas.NewStorageError("delete", w.class, err)
	}
	if resp == nil || resp.Results == nil {
		return 0, nil
	}
	return int(resp.Results.Successful), nil
}

// Clear drops and recreates the class.
func (w *Weaviate) Clear(ctx context.Context) (int, error) {
	records, err := w.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := w.client.Schema().ClassDeleter().WithClassName(w.class).Do(ctx); err != nil {
		return 0, schemas.NewStorageError("drop class", w.class, err)
	}
	if err := w.ensureClass(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (w *Weaviate) Close() error { return nil }

func graphQLError(resp *models.GraphQLResponse) error {
	if resp == nil {
		return fmt.Errorf("empty graphql response")
	}
	if len(resp.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		if e != nil {
			msgs = append(msgs, e.Message)
		}
	}
	return fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
}

// decodeGet reads Get.<class>[] objects out of a GraphQL response body.
// Similarity is 1 - distance; objects without a distance score 0.
func decodeGet(data map[string]models.JSONObject, class string) ([]schemas.ScoredPlan, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("weaviate response has no Get section")
	}
	items, ok := get[class].([]interface{})
	if !ok {
		if get[class] == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("weaviate response for %s is not a list", class)
	}

	out := make([]schemas.ScoredPlan, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		var sp schemas.ScoredPlan
		sp.TaskTitle, _ = obj["task_title"].(string)
		sp.Plan, _ = obj["plan"].(string)
		sp.TaskID, _ = obj["task_id"].(string)
		if ds, ok := obj["execution_date"].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, ds); err == nil {
				sp.ExecutionDate = t
			}
		}
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			sp.ID, _ = add["id"].(string)
			if d, ok := add["distance"].(float64); ok {
				sp.Similarity = 1 - d
			}
		}
		out = append(out, sp)
	}
	return out, nil
}
