// Package mongostore keeps workflows in MongoDB, one document per workflow.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"reqflow/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collection = "workflows"
	opTimeout  = 10 * time.Second
)

// Store implements domain.WorkflowStore on a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// workflowDoc is the stored shape of a workflow.
type workflowDoc struct {
	ID        string                   `bson:"_id"`
	Name      string                   `bson:"name"`
	Trigger   triggerDoc               `bson:"trigger"`
	Requests  []domain.WorkflowRequest `bson:"requests"`
	Positions map[string]positionDoc   `bson:"positions"`
	Viewport  viewportDoc              `bson:"viewport"`
	CreatedAt time.Time                `bson:"createdAt"`
	UpdatedAt time.Time                `bson:"updatedAt"`
}

type triggerDoc struct {
	Type     string `bson:"type"`
	Schedule string `bson:"schedule,omitempty"`
	Path     string `bson:"path,omitempty"`
	Enabled  bool   `bson:"enabled"`
}

type positionDoc struct {
	X float64 `bson:"x"`
	Y float64 `bson:"y"`
}

type viewportDoc struct {
	X    float64 `bson:"x"`
	Y    float64 `bson:"y"`
	Zoom float64 `bson:"zoom"`
}

// New connects to uri and verifies the connection.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	if dbName == "" {
		dbName = "reqflow"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Printf("[MONGO] workflow store ready: db=%s", dbName)

	return &Store{client: client, coll: client.Database(dbName).Collection(collection)}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateWorkflow(w *domain.Workflow) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	if _, err := s.coll.InsertOne(ctx, toDoc(w)); err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

func (s *Store) GetWorkflow(id string) (*domain.Workflow, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var doc workflowDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return fromDoc(&doc), nil
}

func (s *Store) ListWorkflows() ([]domain.WorkflowSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.WorkflowSummary
	for cur.Next(ctx) {
		var doc workflowDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, summary(&doc))
	}
	return out, cur.Err()
}

func (s *Store) SaveWorkflow(w *domain.Workflow) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	w.UpdatedAt = time.Now()
	res, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: w.ID}}, toDoc(w))
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("workflow %s: %w", w.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteWorkflow(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	return err
}

func (s *Store) CountWorkflows() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, bson.D{})
	return int(n), err
}

func toDoc(w *domain.Workflow) *workflowDoc {
	doc := &workflowDoc{
		ID:   w.ID,
		Name: w.Name,
		Trigger: triggerDoc{
			Type:     string(w.Trigger.Type),
			Schedule: w.Trigger.Schedule,
			Path:     w.Trigger.Path,
			Enabled:  w.Trigger.Enabled,
		},
		Requests:  w.Requests,
		Positions: make(map[string]positionDoc, len(w.NodePositions)),
		Viewport:  viewportDoc{X: w.Viewport.X, Y: w.Viewport.Y, Zoom: w.Viewport.Zoom},
		CreatedAt: w.CreatedAt.UTC(),
		UpdatedAt: w.UpdatedAt.UTC(),
	}
	if doc.Requests == nil {
		doc.Requests = []domain.WorkflowRequest{}
	}
	for id, p := range w.NodePositions {
		doc.Positions[id] = positionDoc{X: p.X, Y: p.Y}
	}
	return doc
}

func fromDoc(doc *workflowDoc) *domain.Workflow {
	w := &domain.Workflow{
		ID:   doc.ID,
		Name: doc.Name,
		Trigger: domain.Trigger{
			Type:     domain.TriggerType(doc.Trigger.Type),
			Schedule: doc.Trigger.Schedule,
			Path:     doc.Trigger.Path,
			Enabled:  doc.Trigger.Enabled,
		},
		Requests:      doc.Requests,
		NodePositions: make(map[string]domain.Point, len(doc.Positions)),
		Viewport:      domain.Viewport{X: doc.Viewport.X, Y: doc.Viewport.Y, Zoom: doc.Viewport.Zoom},
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for id, p := range doc.Positions {
		w.NodePositions[id] = domain.Point{X: p.X, Y: p.Y}
	}
	return w
}

func summary(doc *workflowDoc) domain.WorkflowSummary {
	return domain.WorkflowSummary{
		ID:           doc.ID,
		Name:         doc.Name,
		RequestCount: len(doc.Requests),
		UpdatedAt:    doc.UpdatedAt,
	}
}
