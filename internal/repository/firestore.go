package repository

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/BerylCAtieno/legalease-api/internal/models"
)

const (
	documentsCollection = "documents"
	qaCollection        = "qa"
)

// firestoreRepository stores documents in a top-level collection with the QA
// history as a subcollection of each document.
type firestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreClient opens a client for the given database, or the default
// database when databaseID is empty.
func NewFirestoreClient(ctx context.Context, projectID, databaseID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

func NewFirestoreRepository(client *firestore.Client) Repository {
	return &firestoreRepository{client: client}
}

func (r *firestoreRepository) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(documentsCollection).Doc(id)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (r *firestoreRepository) Create(ctx context.Context, doc *models.Document) error {
	_, err := r.doc(doc.ID).Create(ctx, doc)
	return err
}

func (r *firestoreRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	snap, err := r.doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDocument(snap)
}

func snapshotToDocument(snap *firestore.DocumentSnapshot) (*models.Document, error) {
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}

func (r *firestoreRepository) Update(ctx context.Context, doc *models.Document) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := r.doc(doc.ID)
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Set(ref, doc)
	})
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}

// Delete removes the QA subcollection before the parent; Firestore does not
// cascade.
func (r *firestoreRepository) Delete(ctx context.Context, id string) error {
	ref := r.doc(id)
	if _, err := ref.Get(ctx); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	bw := r.client.BulkWriter(ctx)
	iter := ref.Collection(qaCollection).DocumentRefs(ctx)
	for {
		qaRef, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to list qa entries: %w", err)
		}
		if _, err := bw.Delete(qaRef); err != nil {
			bw.End()
			return fmt.Errorf("failed to queue qa delete: %w", err)
		}
	}
	bw.End()

	_, err := ref.Delete(ctx)
	return err
}

func (r *firestoreRepository) ListRecent(ctx context.Context, limit int) ([]*models.Document, error) {
	iter := r.client.Collection(documentsCollection).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var docs []*models.Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		doc, err := snapshotToDocument(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *firestoreRepository) AddQA(ctx context.Context, entry *models.QAEntry) error {
	ref := r.doc(entry.DocumentID)
	if _, err := ref.Get(ctx); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	_, err := ref.Collection(qaCollection).Doc(entry.ID).Create(ctx, entry)
	return err
}

func (r *firestoreRepository) ListQA(ctx context.Context, documentID string, limit int) ([]models.QAEntry, int, error) {
	col := r.doc(documentID).Collection(qaCollection)

	agg, err := col.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count qa entries: %w", err)
	}
	total := 0
	if v, ok := agg["total"].(*firestorepb.Value); ok {
		total = int(v.GetIntegerValue())
	}

	iter := col.OrderBy("timestamp", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	entries := []models.QAEntry{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		var entry models.QAEntry
		if err := snap.DataTo(&entry); err != nil {
			return nil, 0, fmt.Errorf("failed to decode qa entry %s: %w", snap.Ref.ID, err)
		}
		entry.ID = snap.Ref.ID
		entries = append(entries, entry)
	}
	return entries, total, nil
}

func (r *firestoreRepository) Ping(ctx context.Context) error {
	iter := r.client.Collection(documentsCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}
