package gcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/docquery-backend/internal/docquery/store"
	"github.com/yungbote/docquery-backend/internal/platform/apierr"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

const (
	DefaultUsersCollection     = "users"
	DefaultDocumentsCollection = "documents"
)

var ErrInvalidUserID = errors.New("user id is not a valid document id")

type FirestoreConfig struct {
	ProjectID           string
	UsersCollection     string
	DocumentsCollection string
}

// FirestoreDocuments lists document records stored under users/{userID}/documents.
type FirestoreDocuments struct {
	log    *logger.Logger
	client *firestore.Client
	users  string
	docs   string
}

func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

func NewFirestoreDocuments(log *logger.Logger, client *firestore.Client, cfg FirestoreConfig) *FirestoreDocuments {
	users := strings.TrimSpace(cfg.UsersCollection)
	if users == "" {
		users = DefaultUsersCollection
	}
	docs := strings.TrimSpace(cfg.DocumentsCollection)
	if docs == "" {
		docs = DefaultDocumentsCollection
	}
	return &FirestoreDocuments{
		log:    log.With("service", "FirestoreDocuments"),
		client: client,
		users:  users,
		docs:   docs,
	}
}

// ListDocuments returns the user's documents ordered by document ID. A user with no
// documents yields an empty slice.
func (s *FirestoreDocuments) ListDocuments(ctx context.Context, userID string) ([]store.Document, error) {
	if userID == "" || strings.Contains(userID, "/") {
		return nil, apierr.InvalidArgument(fmt.Errorf("%w: %q", ErrInvalidUserID, userID))
	}

	iter := s.client.Collection(s.users).Doc(userID).Collection(s.docs).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	out := []store.Document{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return []store.Document{}, nil
			}
			return nil, fmt.Errorf("list documents: %w", err)
		}
		out = append(out, documentFromData(snap.Ref.ID, snap.Data()))
	}
	s.log.Debug("listed documents", "user_id", userID, "count", len(out))
	return out, nil
}

// Ping reads at most one user record to confirm the database is reachable.
func (s *FirestoreDocuments) Ping(ctx context.Context) error {
	iter := s.client.Collection(s.users).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

func (s *FirestoreDocuments) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func documentFromData(id string, data map[string]interface{}) store.Document {
	doc := store.Document{ID: id, Fields: map[string]string{}}
	for k, v := range data {
		s := stringifyValue(v)
		if k == store.TextStoragePathKey {
			doc.TextStoragePath = strings.TrimSpace(s)
			continue
		}
		if s != "" {
			doc.Fields[k] = s
		}
	}
	return doc
}

func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringifyValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := stringifyValue(t[k]); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
