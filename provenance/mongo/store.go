// Package mongo wires provenance.Store to MongoDB for deployments that need
// traces to survive process restarts and be queryable across instances.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/fluxgraph/workflow-core/provenance"
)

const (
	defaultCollection = "provenance_traces"
	defaultTimeout    = 5 * time.Second
)

// Options configures the Mongo-backed provenance store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements provenance.Store backed by a MongoDB collection.
type Store struct {
	client  *mongodriver.Client
	coll    *mongodriver.Collection
	timeout time.Duration
}

type traceDocument struct {
	ID                string    `bson:"_id"`
	StartedAt         time.Time `bson:"started_at"`
	EndedAt           time.Time `bson:"ended_at"`
	AgentDID          string    `bson:"agent_did"`
	AgentType         string    `bson:"agent_type"`
	Affordance        string    `bson:"affordance"`
	Parameters        bson.M    `bson:"parameters"`
	Credentials       []string  `bson:"credentials"`
	Outcome           string    `bson:"outcome"`
	ResultType        string    `bson:"result_type"`
	StateChanges      []string  `bson:"state_changes"`
	EventsEmitted     []string  `bson:"events_emitted"`
	InterventionLabel string    `bson:"intervention_label,omitempty"`
}

// New builds a Mongo-backed provenance store and ensures its indexes exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	coll := opts.Client.Database(opts.Database).Collection(collection)
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureIndexes(ictx, coll); err != nil {
		return nil, err
	}
	return &Store{client: opts.Client, coll: coll, timeout: timeout}, nil
}

func ensureIndexes(ctx context.Context, coll *mongodriver.Collection) error {
	models := []mongodriver.IndexModel{
		{Keys: bson.D{{Key: "agent_did", Value: 1}, {Key: "started_at", Value: -1}}},
		{Keys: bson.D{{Key: "affordance", Value: 1}, {Key: "started_at", Value: -1}}},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

// Ping satisfies a health-check Pinger contract for the store's backing
// Mongo client.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Store implements provenance.Store.
func (s *Store) Store(ctx context.Context, t provenance.Trace) (provenance.Result, error) {
	if t.ID == "" {
		return provenance.Result{}, errors.New("trace id is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := toDocument(t)
	_, err := s.coll.InsertOne(ctx, doc)
	if mongodriver.IsDuplicateKeyError(err) {
		return provenance.Result{Rejected: true, Reason: "trace id already stored"}, nil
	}
	if err != nil {
		return provenance.Result{}, err
	}
	return provenance.Result{Stored: true}, nil
}

// Query implements provenance.Store.
func (s *Store) Query(ctx context.Context, q provenance.Query) ([]provenance.Trace, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	if q.AgentDID != "" {
		filter["agent_did"] = q.AgentDID
	}
	if q.ActionType != "" {
		filter["affordance"] = q.ActionType
	}
	if !q.FromTime.IsZero() || !q.ToTime.IsZero() {
		rng := bson.M{}
		if !q.FromTime.IsZero() {
			rng["$gte"] = q.FromTime
		}
		if !q.ToTime.IsZero() {
			rng["$lte"] = q.ToTime
		}
		filter["started_at"] = rng
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if q.Limit > 0 {
		findOpts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		findOpts.SetSkip(int64(q.Offset))
	}

	cur, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []provenance.Trace
	for cur.Next(ctx) {
		var doc traceDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, fromDocument(doc))
	}
	return out, cur.Err()
}

// GetByID implements provenance.Store.
func (s *Store) GetByID(ctx context.Context, id string) (provenance.Trace, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc traceDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return provenance.Trace{}, false, nil
	}
	if err != nil {
		return provenance.Trace{}, false, fmt.Errorf("get trace %q: %w", id, err)
	}
	return fromDocument(doc), true, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func toDocument(t provenance.Trace) traceDocument {
	var label string
	label = t.InterventionLabel
	return traceDocument{
		ID:                t.ID,
		StartedAt:         t.StartedAt.UTC(),
		EndedAt:           t.EndedAt.UTC(),
		AgentDID:          t.WasAssociatedWith.AgentDID,
		AgentType:         t.WasAssociatedWith.AgentType,
		Affordance:        t.Used.Affordance,
		Parameters:        bson.M(t.Used.Parameters),
		Credentials:       t.Used.Credentials,
		Outcome:           string(t.Generated.Outcome),
		ResultType:        t.Generated.ResultType,
		StateChanges:      t.Generated.StateChanges,
		EventsEmitted:     t.Generated.EventsEmitted,
		InterventionLabel: label,
	}
}

func fromDocument(doc traceDocument) provenance.Trace {
	return provenance.Trace{
		ID:        doc.ID,
		StartedAt: doc.StartedAt,
		EndedAt:   doc.EndedAt,
		WasAssociatedWith: provenance.Association{
			AgentDID:  doc.AgentDID,
			AgentType: doc.AgentType,
		},
		Used: provenance.Usage{
			Affordance:  doc.Affordance,
			Parameters:  doc.Parameters,
			Credentials: doc.Credentials,
		},
		Generated: provenance.Generation{
			Outcome:       provenance.Outcome(doc.Outcome),
			ResultType:    doc.ResultType,
			StateChanges:  doc.StateChanges,
			EventsEmitted: doc.EventsEmitted,
		},
		InterventionLabel: doc.InterventionLabel,
	}
}
