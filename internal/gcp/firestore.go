package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/qrawareness/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client: %w", ErrConfigurationMissing)
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreStore keeps one document per session, with the session id as document id.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

// EnsureInitialized is a no-op: collections need no header.
func (s *FirestoreStore) EnsureInitialized(ctx context.Context) error {
	return nil
}

// Upsert merges the non-empty fields of rec into the session document.
func (s *FirestoreStore) Upsert(ctx context.Context, rec models.Record) error {
	doc := s.client.Collection(s.collection).Doc(rec.SessionID)
	if _, err := doc.Set(ctx, recordFields(rec), firestore.MergeAll); err != nil {
		return remoteError("firestore set "+rec.SessionID, err)
	}
	return nil
}

// ReadRecords loads every session document.
func (s *FirestoreStore) ReadRecords(ctx context.Context) ([]models.Record, error) {
	it := s.client.Collection(s.collection).Documents(ctx)
	defer it.Stop()

	var records []models.Record
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, remoteError("firestore list", err)
		}
		var rec models.Record
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", snap.Ref.ID, err)
		}
		if rec.SessionID == "" {
			rec.SessionID = snap.Ref.ID
		}
		rec.Tracked = true
		records = append(records, rec)
	}
	return records, nil
}

// Reset deletes every session document.
func (s *FirestoreStore) Reset(ctx context.Context) error {
	refs, err := s.client.Collection(s.collection).DocumentRefs(ctx).GetAll()
	if err != nil {
		return remoteError("firestore list refs", err)
	}
	bw := s.client.BulkWriter(ctx)
	for _, ref := range refs {
		if _, err := bw.Delete(ref); err != nil {
			bw.End()
			return remoteError("firestore delete "+ref.ID, err)
		}
	}
	bw.End()
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// recordFields keeps only what the session has recorded so far, so a merge never blanks
// a field that another write already set.
func recordFields(rec models.Record) map[string]interface{} {
	fields := map[string]interface{}{
		"sessionId": rec.SessionID,
		"completed": rec.Completed,
	}
	setTime := func(key string, t *time.Time) {
		if t != nil {
			fields[key] = *t
		}
	}
	setString := func(key, v string) {
		if v != "" {
			fields[key] = v
		}
	}
	setTime("openedAt", rec.OpenedAt)
	setTime("formStartedAt", rec.FormStartedAt)
	setTime("step2At", rec.Step2At)
	setTime("completedAt", rec.CompletedAt)
	setString("qrLocation", rec.QRLocation)
	setString("ageRange", rec.AgeRange)
	setString("gender", rec.Gender)
	setString("birthProvince", rec.BirthProvince)
	setString("education", rec.Education)
	setString("status", string(rec.Status))
	setString("userAgent", rec.UserAgent)
	if !rec.CreatedAt.IsZero() {
		fields["createdAt"] = rec.CreatedAt
	}
	return fields
}
