// Package history keeps the ordered, persisted list of committed captions.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-caption-service/internal/models"
	"live-caption-service/internal/observability/metrics"
	"live-caption-service/internal/schema"
	"live-caption-service/internal/storage"
)

// DefaultKey is the storage key holding the serialized history.
const DefaultKey = "CaptionHistory"

// ErrDuplicate is returned when a caption repeats the newest entry.
var ErrDuplicate = errors.New("caption duplicates the most recent entry")

// Commit results, used as metric labels.
const (
	ResultCommitted         = "committed"
	ResultRejectedInvalid   = "rejected_invalid"
	ResultRejectedDuplicate = "rejected_duplicate"
)

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithValidator overrides the commit validator.
func WithValidator(v *schema.Validator) Option {
	return func(s *Store) { s.validator = v }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger overrides the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithSaveTimeout bounds each write to the backing store.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) { s.saveTimeout = d }
}

// Store holds history entries newest first and writes the whole list to a
// storage.Store after every mutation. The in-memory list stays authoritative
// when a write fails.
type Store struct {
	kv          storage.Store
	key         string
	validator   *schema.Validator
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	saveTimeout time.Duration

	mu      sync.RWMutex
	entries []models.HistoryEntry
}

// New creates a store and loads any persisted history. Missing or corrupt
// data yields an empty history.
func New(ctx context.Context, kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:          kv,
		key:         DefaultKey,
		metrics:     metrics.DefaultMetrics,
		logger:      log.Logger.With().Str("component", "history").Logger(),
		saveTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = schema.New()
	}

	s.entries = s.load(ctx)
	s.metrics.SetHistorySize(len(s.entries))
	return s
}

func (s *Store) load(ctx context.Context) []models.HistoryEntry {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.metrics.RecordPersistenceError("load")
		s.logger.Error().Err(err).Str("key", s.key).Msg("Failed to load history, starting empty")
		return nil
	}

	entries, err := Decode(data)
	if err != nil {
		s.metrics.RecordPersistenceError("decode")
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Corrupt history data, starting empty")
		return nil
	}

	s.logger.Info().Int("entries", len(entries)).Msg("History loaded")
	return entries
}

// Commit validates and inserts a caption. It reports whether an entry was added.
func (s *Store) Commit(c models.Caption) bool {
	_, err := s.Add(c)
	return err == nil
}

// Add validates and inserts a caption, returning the stored entry.
// Validation failures return a schema error; a repeat of the newest entry
// returns ErrDuplicate.
func (s *Store) Add(c models.Caption) (models.HistoryEntry, error) {
	if err := s.validator.ValidateCaption(c.Text); err != nil {
		s.record(ResultRejectedInvalid)
		s.logger.Debug().Err(err).Str("captionId", c.ID).Msg("Caption rejected")
		return models.HistoryEntry{}, err
	}

	entry := models.NewHistoryEntry(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) > 0 && strings.TrimSpace(s.entries[0].Text) == entry.Text {
		s.recordLocked(ResultRejectedDuplicate)
		s.logger.Debug().Str("captionId", c.ID).Msg("Duplicate caption suppressed")
		return models.HistoryEntry{}, ErrDuplicate
	}

	s.entries = append([]models.HistoryEntry{entry}, s.entries...)
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].CreatedAt > s.entries[j].CreatedAt
	})
	s.saveLocked()
	s.recordLocked(ResultCommitted)

	s.logger.Info().
		Str("captionId", entry.ID).
		Bool("hasAnnotation", entry.HasAnnotation).
		Int("entries", len(s.entries)).
		Msg("Caption committed")
	return entry, nil
}

// Remove deletes the entry with id. It reports whether one was found.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			s.removeLocked(i)
			return true
		}
	}
	return false
}

// RemoveAt deletes the entry at index in newest-first order. Out of range is a no-op.
func (s *Store) RemoveAt(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.entries) {
		return false
	}
	s.removeLocked(index)
	return true
}

func (s *Store) removeLocked(i int) {
	s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
	s.saveLocked()
	s.metrics.SetHistorySize(len(s.entries))
}

// ClearAll deletes every entry.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.saveLocked()
	s.metrics.SetHistorySize(0)
}

// List returns a copy of the entries, newest first.
func (s *Store) List() []models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) saveLocked() {
	data, err := Encode(s.entries)
	if err != nil {
		s.metrics.RecordPersistenceError("encode")
		s.logger.Error().Err(err).Msg("Failed to encode history")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.metrics.RecordPersistenceError("save")
		s.logger.Error().Err(err).Str("key", s.key).Int("entries", len(s.entries)).Msg("Failed to save history")
	}
}

func (s *Store) record(result string) {
	s.mu.RLock()
	n := len(s.entries)
	s.mu.RUnlock()
	s.metrics.RecordCommit(result, n)
}

func (s *Store) recordLocked(result string) {
	s.metrics.RecordCommit(result, len(s.entries))
}

// Encode serializes entries to the persisted JSON array form.
func Encode(entries []models.HistoryEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return json.Marshal(entries)
}

// Decode parses the persisted form. Unknown fields are ignored and entries
// are returned newest first.
func Decode(data []byte) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt > entries[j].CreatedAt
	})
	return entries, nil
}
