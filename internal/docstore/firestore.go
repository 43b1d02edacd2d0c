package docstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore adapts a Firestore client to the Store contract. Firestore
// transactions can span documents, but every RunTransaction here is scoped
// to the single addressed document so the rest of the codebase cannot come
// to depend on multi-document atomicity the contract does not promise.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore initializes the Firestore client. Credentials come from
// the FIREBASE_SERVICE_ACCOUNT_JSON environment variable (Base64 encoded)
// when set, falling back to a local service account key file.
func NewFirestoreStore(ctx context.Context, projectID, localFilePath string) (*FirestoreStore, error) {
	var opt option.ClientOption

	encodedCreds := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials from FIREBASE_SERVICE_ACCOUNT_JSON: %v", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("Firestore: Initializing from FIREBASE_SERVICE_ACCOUNT_JSON environment variable.")
	} else {
		if _, err := os.Stat(localFilePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("local firebase file not found: %s, and FIREBASE_SERVICE_ACCOUNT_JSON environment variable is not set", localFilePath)
		}
		opt = option.WithCredentialsFile(localFilePath)
		log.Printf("Firestore: Initializing from local file: %s.", localFilePath)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %v", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %v", err)
	}

	return &FirestoreStore{client: client}, nil
}

func (f *FirestoreStore) Get(ctx context.Context, path string) (Document, error) {
	if err := ValidateDocPath(path); err != nil {
		return nil, err
	}

	snap, err := f.client.Doc(path).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("firestore get %s: %w", path, err)
	}
	return Document(snap.Data()), nil
}

func (f *FirestoreStore) Set(ctx context.Context, path string, doc Document) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}

	if _, err := f.client.Doc(path).Set(ctx, map[string]interface{}(doc)); err != nil {
		return fmt.Errorf("firestore set %s: %w", path, err)
	}
	return nil
}

func (f *FirestoreStore) Delete(ctx context.Context, path string) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}

	// Firestore deletes are idempotent; a missing document is not an error.
	if _, err := f.client.Doc(path).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s: %w", path, err)
	}
	return nil
}

func (f *FirestoreStore) List(ctx context.Context, collection string) ([]Entry, error) {
	if err := ValidateCollectionPath(collection); err != nil {
		return nil, err
	}

	iter := f.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var entries []Entry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore list %s: %w", collection, err)
		}
		entries = append(entries, Entry{ID: snap.Ref.ID, Data: Document(snap.Data())})
	}
	return entries, nil
}

func (f *FirestoreStore) RunTransaction(ctx context.Context, path string, fn UpdateFunc) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}

	ref := f.client.Doc(path)
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current Document
		exists := false

		snap, err := tx.Get(ref)
		if err == nil {
			current = Document(snap.Data())
			exists = true
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		return tx.Set(ref, map[string]interface{}(next))
	})
	if err != nil {
		return fmt.Errorf("firestore transaction %s: %w", path, err)
	}
	return nil
}

// Close releases the underlying client.
func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
