// Package subscriber resolves the subscriber on whose behalf discovery runs.
//
// The users and keywords tables belong to the web application; this package
// only reads them.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gigalert/discovery-service/internal/model"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrNotSubscriber      = errors.New("user is not a subscriber")
)

// Directory looks up subscribers by id.
type Directory interface {
	Lookup(ctx context.Context, id string) (model.Subscriber, error)
}

// Eligible returns ErrNotSubscriber unless s may run discovery.
func Eligible(s model.Subscriber) error {
	if !s.IsSubscriber {
		return ErrNotSubscriber
	}
	return nil
}

// PostgresDirectory reads users and their keywords through pgx.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory returns a Directory backed by pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// Lookup loads one user with their keywords in insertion order.
func (d *PostgresDirectory) Lookup(ctx context.Context, id string) (model.Subscriber, error) {
	var s model.Subscriber
	err := d.pool.QueryRow(ctx,
		`SELECT u.id::text, u.username, COALESCE(u.is_subscriber, FALSE), COALESCE(u.chat_id, ''),
		        COALESCE(array_agg(k.keyword ORDER BY k.id) FILTER (WHERE k.keyword IS NOT NULL), '{}')
		 FROM users u
		 LEFT JOIN keywords k ON k.user_id = u.id
		 WHERE u.id::text = $1
		 GROUP BY u.id`,
		id,
	).Scan(&s.ID, &s.Username, &s.IsSubscriber, &s.ChatID, &s.Keywords)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Subscriber{}, fmt.Errorf("%w: %s", ErrSubscriberNotFound, id)
	}
	if err != nil {
		return model.Subscriber{}, fmt.Errorf("lookup subscriber %s: %w", id, err)
	}
	s.ChatID = strings.TrimSpace(s.ChatID)
	return s, nil
}

// StaticDirectory is an in-memory Directory for tests and one-off scans.
type StaticDirectory struct {
	mu   sync.RWMutex
	subs map[string]model.Subscriber
}

// NewStaticDirectory returns a directory holding subs, keyed by ID.
func NewStaticDirectory(subs ...model.Subscriber) *StaticDirectory {
	d := &StaticDirectory{subs: make(map[string]model.Subscriber, len(subs))}
	for _, s := range subs {
		d.Put(s)
	}
	return d
}

// Put adds or replaces a subscriber.
func (d *StaticDirectory) Put(s model.Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[s.ID] = s
}

func (d *StaticDirectory) Lookup(_ context.Context, id string) (model.Subscriber, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.subs[id]
	if !ok {
		return model.Subscriber{}, fmt.Errorf("%w: %s", ErrSubscriberNotFound, id)
	}
	return s, nil
}
