// Package storage provides entity storage for aces using NATS KV.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// EntityType represents the type of entity stored in KV.
type EntityType string

const (
	EntityTypeManuscript EntityType = "manuscript"
	EntityTypeShard      EntityType = "shard"
	EntityTypeEvaluation EntityType = "evaluation"
)

// Bucket names for each entity type.
const (
	BucketManuscripts = "ACES_MANUSCRIPTS"
	BucketShards      = "ACES_SHARDS"
	BucketEvaluations = "ACES_EVALS"
)

// EntityID represents a typed entity identifier.
type EntityID struct {
	Type EntityType
	ID   string
}

// String returns the string representation of the entity ID.
func (e EntityID) String() string {
	return fmt.Sprintf("%s:%s", e.Type, e.ID)
}

// ParseEntityID parses an entity ID string into its components.
func ParseEntityID(s string) (EntityID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return EntityID{}, fmt.Errorf("invalid entity ID format: %s", s)
	}
	entityType := EntityType(parts[0])
	switch entityType {
	case EntityTypeManuscript, EntityTypeShard, EntityTypeEvaluation:
		return EntityID{Type: entityType, ID: parts[1]}, nil
	default:
		return EntityID{}, fmt.Errorf("unknown entity type: %s", parts[0])
	}
}

// NewEntityID generates a new unique entity ID for the given type.
func NewEntityID(t EntityType) EntityID {
	return EntityID{
		Type: t,
		ID:   uuid.New().String(),
	}
}

// ManuscriptStatus represents the validation outcome of a manuscript.
type ManuscriptStatus string

const (
	ManuscriptStatusValid   ManuscriptStatus = "valid"
	ManuscriptStatusInvalid ManuscriptStatus = "invalid"
)

// Manuscript records a validated JATS submission.
type Manuscript struct {
	ID           string           `json:"id"`
	Path         string           `json:"path"`
	Title        string           `json:"title"`
	DOI          string           `json:"doi,omitempty"`
	Contributors []string         `json:"contributors,omitempty"`
	Status       ManuscriptStatus `json:"status"`
	Failures     int              `json:"failures"`
	Warnings     int              `json:"warnings"`
	Feedback     string           `json:"feedback,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Split names a dataset split.
type Split string

const (
	SplitTraining   Split = "training"
	SplitTesting    Split = "testing"
	SplitValidation Split = "validation"
)

// DatasetShard records one indexed TFRecord file.
type DatasetShard struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Split     Split     `json:"split,omitempty"`
	Records   int       `json:"records"`
	PatchSize int       `json:"patch_size"`
	Bands     []string  `json:"bands,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Evaluation records a confusion-matrix run over truth and prediction shards.
type Evaluation struct {
	ID           string             `json:"id"`
	TruthPattern string             `json:"truth_pattern"`
	PredPattern  string             `json:"pred_pattern"`
	Classes      int                `json:"classes"`
	Pixels       int64              `json:"pixels"`
	Accuracy     float64            `json:"accuracy"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Store provides entity storage operations backed by NATS KV.
type Store struct {
	manuscripts jetstream.KeyValue
	shards      jetstream.KeyValue
	evaluations jetstream.KeyValue
}

// NewStore creates a new Store with the given JetStream context.
// It creates the necessary KV buckets if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	manuscripts, err := getOrCreateBucket(ctx, js, BucketManuscripts)
	if err != nil {
		return nil, fmt.Errorf("create manuscripts bucket: %w", err)
	}

	shards, err := getOrCreateBucket(ctx, js, BucketShards)
	if err != nil {
		return nil, fmt.Errorf("create shards bucket: %w", err)
	}

	evaluations, err := getOrCreateBucket(ctx, js, BucketEvaluations)
	if err != nil {
		return nil, fmt.Errorf("create evaluations bucket: %w", err)
	}

	return &Store{
		manuscripts: manuscripts,
		shards:      shards,
		evaluations: evaluations,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("aces %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}

// CreateManuscript creates a new manuscript record and returns its ID.
func (s *Store) CreateManuscript(ctx context.Context, m *Manuscript) (EntityID, error) {
	id := NewEntityID(EntityTypeManuscript)
	m.ID = id.String()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt

	data, err := json.Marshal(m)
	if err != nil {
		return EntityID{}, fmt.Errorf("marshal manuscript: %w", err)
	}

	if _, err := s.manuscripts.Create(ctx, id.ID, data); err != nil {
		return EntityID{}, fmt.Errorf("store manuscript: %w", err)
	}

	return id, nil
}

// GetManuscript retrieves a manuscript record by ID.
func (s *Store) GetManuscript(ctx context.Context, id EntityID) (*Manuscript, error) {
	if id.Type != EntityTypeManuscript {
		return nil, fmt.Errorf("invalid entity type: expected manuscript, got %s", id.Type)
	}

	entry, err := s.manuscripts.Get(ctx, id.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get manuscript: %w", err)
	}

	var m Manuscript
	if err := json.Unmarshal(entry.Value(), &m); err != nil {
		return nil, fmt.Errorf("unmarshal manuscript: %w", err)
	}

	return &m, nil
}

// UpdateManuscript updates an existing manuscript record.
func (s *Store) UpdateManuscript(ctx context.Context, m *Manuscript) error {
	id, err := ParseEntityID(m.ID)
	if err != nil {
		return fmt.Errorf("parse manuscript ID: %w", err)
	}

	m.UpdatedAt = time.Now()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manuscript: %w", err)
	}

	if _, err := s.manuscripts.Put(ctx, id.ID, data); err != nil {
		return fmt.Errorf("update manuscript: %w", err)
	}

	return nil
}

// ListManuscripts returns all manuscript records.
func (s *Store) ListManuscripts(ctx context.Context) ([]*Manuscript, error) {
	keys, err := s.manuscripts.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list manuscript keys: %w", err)
	}

	manuscripts := make([]*Manuscript, 0, len(keys))
	for _, key := range keys {
		entry, err := s.manuscripts.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var m Manuscript
		if err := json.Unmarshal(entry.Value(), &m); err != nil {
			continue
		}
		manuscripts = append(manuscripts, &m)
	}

	return manuscripts, nil
}

// GetManuscriptByPath retrieves the most recently updated manuscript
// record for a file path.
func (s *Store) GetManuscriptByPath(ctx context.Context, path string) (*Manuscript, error) {
	manuscripts, err := s.ListManuscripts(ctx)
	if err != nil {
		return nil, err
	}

	var found *Manuscript
	for _, m := range manuscripts {
		if m.Path != path {
			continue
		}
		if found == nil || m.UpdatedAt.After(found.UpdatedAt) {
			found = m
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// CreateShard creates a new shard record and returns its ID.
func (s *Store) CreateShard(ctx context.Context, d *DatasetShard) (EntityID, error) {
	id := NewEntityID(EntityTypeShard)
	d.ID = id.String()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt

	data, err := json.Marshal(d)
	if err != nil {
		return EntityID{}, fmt.Errorf("marshal shard: %w", err)
	}

	if _, err := s.shards.Create(ctx, id.ID, data); err != nil {
		return EntityID{}, fmt.Errorf("store shard: %w", err)
	}

	return id, nil
}

// GetShard retrieves a shard record by ID.
func (s *Store) GetShard(ctx context.Context, id EntityID) (*DatasetShard, error) {
	if id.Type != EntityTypeShard {
		return nil, fmt.Errorf("invalid entity type: expected shard, got %s", id.Type)
	}

	entry, err := s.shards.Get(ctx, id.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get shard: %w", err)
	}

	var d DatasetShard
	if err := json.Unmarshal(entry.Value(), &d); err != nil {
		return nil, fmt.Errorf("unmarshal shard: %w", err)
	}

	return &d, nil
}

// UpdateShard updates an existing shard record.
func (s *Store) UpdateShard(ctx context.Context, d *DatasetShard) error {
	id, err := ParseEntityID(d.ID)
	if err != nil {
		return fmt.Errorf("parse shard ID: %w", err)
	}

	d.UpdatedAt = time.Now()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal shard: %w", err)
	}

	if _, err := s.shards.Put(ctx, id.ID, data); err != nil {
		return fmt.Errorf("update shard: %w", err)
	}

	return nil
}

// ListShardsBySplit returns all shard records for a split. An empty
// split returns every shard.
func (s *Store) ListShardsBySplit(ctx context.Context, split Split) ([]*DatasetShard, error) {
	keys, err := s.shards.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list shard keys: %w", err)
	}

	shards := make([]*DatasetShard, 0)
	for _, key := range keys {
		entry, err := s.shards.Get(ctx, key)
		if err != nil {
			continue
		}
		var d DatasetShard
		if err := json.Unmarshal(entry.Value(), &d); err != nil {
			continue
		}
		if split == "" || d.Split == split {
			shards = append(shards, &d)
		}
	}

	return shards, nil
}

// GetShardByPath retrieves the shard record for a file path.
func (s *Store) GetShardByPath(ctx context.Context, path string) (*DatasetShard, error) {
	shards, err := s.ListShardsBySplit(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, d := range shards {
		if d.Path == path {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

// CreateEvaluation creates a new evaluation record and returns its ID.
func (s *Store) CreateEvaluation(ctx context.Context, e *Evaluation) (EntityID, error) {
	id := NewEntityID(EntityTypeEvaluation)
	e.ID = id.String()
	e.CreatedAt = time.Now()

	data, err := json.Marshal(e)
	if err != nil {
		return EntityID{}, fmt.Errorf("marshal evaluation: %w", err)
	}

	if _, err := s.evaluations.Create(ctx, id.ID, data); err != nil {
		return EntityID{}, fmt.Errorf("store evaluation: %w", err)
	}

	return id, nil
}

// GetEvaluation retrieves an evaluation record by ID.
func (s *Store) GetEvaluation(ctx context.Context, id EntityID) (*Evaluation, error) {
	if id.Type != EntityTypeEvaluation {
		return nil, fmt.Errorf("invalid entity type: expected evaluation, got %s", id.Type)
	}

	entry, err := s.evaluations.Get(ctx, id.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get evaluation: %w", err)
	}

	var e Evaluation
	if err := json.Unmarshal(entry.Value(), &e); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation: %w", err)
	}

	return &e, nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}
