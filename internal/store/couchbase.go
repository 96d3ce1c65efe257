package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

const (
	collectionKeyPrefix = "cdc::"
	documentKeyPrefix   = "doc::"

	// replaceAttempts bounds the CAS retry loop in ReplaceDocument. A CAS
	// mismatch means a concurrent writer got in between the read and the
	// replace; the revision check on re-read settles who won.
	replaceAttempts = 3
)

// Couchbase is the persistent Store. Collections and documents live in the
// bucket's default collection; secondary lookups go through N1QL.
type Couchbase struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	bucketName string
}

// getEnv retrieves environment variable with fallback default
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// NewCouchbase connects to the cluster named by the COUCHBASE_* environment
// variables and waits for the bucket to be ready.
func NewCouchbase() (*Couchbase, error) {
	cbURL := getEnv("COUCHBASE_URL", "couchbase://firecdc-db")
	user := getEnv("COUCHBASE_USERNAME", "firecdc_user")
	pass := getEnv("COUCHBASE_PASSWORD", "password")
	bucketName := getEnv("COUCHBASE_BUCKET", "firecdc")

	log.Info().
		Str("url", cbURL).
		Str("bucket", bucketName).
		Msg("Creating Couchbase connection")

	cluster, err := gocb.Connect(cbURL, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{Username: user, Password: pass},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to Couchbase cluster")
		return nil, fmt.Errorf("connect cluster: %w", err)
	}

	bucket := cluster.Bucket(bucketName)
	err = bucket.WaitUntilReady(30*time.Second, &gocb.WaitUntilReadyOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
	})
	if err != nil {
		log.Error().Err(err).Msg("Couchbase bucket not ready")
		return nil, fmt.Errorf("bucket not ready: %w", err)
	}

	log.Info().Msg("Couchbase connection created successfully")
	return &Couchbase{
		cluster:    cluster,
		bucket:     bucket,
		bucketName: bucketName,
	}, nil
}

// Close closes the Couchbase connection.
func (s *Couchbase) Close() error {
	if s.cluster != nil {
		return s.cluster.Close(nil)
	}
	return nil
}

func collectionKey(cdcID string) string {
	return collectionKeyPrefix + cdcID
}

func documentKey(cdcID, patientID, classifier string) string {
	return documentKeyPrefix + cdcID + "::" + patientID + "::" + classifier
}

// CollectionExists probes the registry record by key.
func (s *Couchbase) CollectionExists(ctx context.Context, cdcID string) (bool, error) {
	col := s.bucket.DefaultCollection()
	_, err := col.Get(collectionKey(cdcID), &gocb.GetOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: probe collection %s: %v", ErrUnavailable, cdcID, err)
	}
	return true, nil
}

// InsertCollection persists a new registry record with an atomic insert so
// a concurrent creation of the same id loses cleanly.
func (s *Couchbase) InsertCollection(ctx context.Context, rec Collection) error {
	col := s.bucket.DefaultCollection()
	_, err := col.Insert(collectionKey(rec.CdcID), rec, &gocb.InsertOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentExists) {
		return fmt.Errorf("collection %s: %w", rec.CdcID, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("%w: insert collection %s: %v", ErrUnavailable, rec.CdcID, err)
	}

	log.Debug().
		Str("cdc_id", rec.CdcID).
		Msg("Collection record inserted")
	return nil
}

// GetCollection fetches a registry record by key.
func (s *Couchbase) GetCollection(ctx context.Context, cdcID string) (*Collection, error) {
	col := s.bucket.DefaultCollection()
	res, err := col.Get(collectionKey(cdcID), &gocb.GetOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return nil, fmt.Errorf("collection %s: %w", cdcID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get collection %s: %v", ErrUnavailable, cdcID, err)
	}

	var rec Collection
	if err := res.Content(&rec); err != nil {
		return nil, fmt.Errorf("%w: decode collection %s: %v", ErrUnavailable, cdcID, err)
	}
	return &rec, nil
}

// InsertDocument writes a document at its given revision. Load batches may
// legitimately re-seed a key, so this is an upsert.
func (s *Couchbase) InsertDocument(ctx context.Context, doc ClinicalDocument) error {
	col := s.bucket.DefaultCollection()
	key := documentKey(doc.CdcID, doc.PatientID, doc.Classifier)
	_, err := col.Upsert(key, doc, &gocb.UpsertOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("%w: upsert document %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// ReplaceDocument is the optimistic-concurrency write: read the document
// with its CAS, check the stored revision, and replace guarded by that
// CAS. Exactly one of two racing writers can succeed per round; the loser
// re-reads, sees the advanced revision and reports ErrNotFound.
func (s *Couchbase) ReplaceDocument(ctx context.Context, cdcID, patientID, classifier string, expectedRev int, newDoc interface{}) (*ClinicalDocument, error) {
	col := s.bucket.DefaultCollection()
	key := documentKey(cdcID, patientID, classifier)

	for attempt := 0; attempt < replaceAttempts; attempt++ {
		res, err := col.Get(key, &gocb.GetOptions{Context: ctx})
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, fmt.Errorf("document %s: %w", key, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: get document %s: %v", ErrUnavailable, key, err)
		}

		var cur ClinicalDocument
		if err := res.Content(&cur); err != nil {
			return nil, fmt.Errorf("%w: decode document %s: %v", ErrUnavailable, key, err)
		}
		if cur.RevID != expectedRev {
			return nil, fmt.Errorf("document %s at revision %d: %w", key, expectedRev, ErrNotFound)
		}

		next := ClinicalDocument{
			CdcID:      cdcID,
			PatientID:  patientID,
			Classifier: classifier,
			RevID:      expectedRev + 1,
			Doc:        newDoc,
			TimeStamp:  Now(),
		}
		_, err = col.Replace(key, next, &gocb.ReplaceOptions{Cas: res.Cas(), Context: ctx})
		if errors.Is(err, gocb.ErrCasMismatch) {
			log.Debug().
				Str("doc_key", key).
				Int("attempt", attempt+1).
				Msg("CAS mismatch on replace, re-reading")
			continue
		}
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, fmt.Errorf("document %s: %w", key, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: replace document %s: %v", ErrUnavailable, key, err)
		}
		return &next, nil
	}

	return nil, fmt.Errorf("document %s at revision %d: %w", key, expectedRev, ErrNotFound)
}

// QueryBySubject returns all documents for one subject in a collection.
func (s *Couchbase) QueryBySubject(ctx context.Context, cdcID, patientID string) ([]ClinicalDocument, error) {
	query := fmt.Sprintf(
		"SELECT d.* FROM `%s` AS d WHERE d.cdcId = $cdcId AND d.patientId = $patientId AND d.classifier IS NOT MISSING",
		s.bucketName)
	return s.queryDocuments(ctx, query, map[string]interface{}{
		"cdcId":     cdcID,
		"patientId": patientID,
	})
}

// QueryByClassifier returns all documents of one classifier in a collection.
func (s *Couchbase) QueryByClassifier(ctx context.Context, cdcID, classifier string) ([]ClinicalDocument, error) {
	query := fmt.Sprintf(
		"SELECT d.* FROM `%s` AS d WHERE d.cdcId = $cdcId AND d.classifier = $classifier AND d.patientId IS NOT MISSING",
		s.bucketName)
	return s.queryDocuments(ctx, query, map[string]interface{}{
		"cdcId":      cdcID,
		"classifier": classifier,
	})
}

func (s *Couchbase) queryDocuments(ctx context.Context, query string, params map[string]interface{}) ([]ClinicalDocument, error) {
	start := time.Now()
	rows, err := s.cluster.Query(query, &gocb.QueryOptions{
		Context:         ctx,
		NamedParameters: params,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("query", query).
			Msg("Query failed")
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var docs []ClinicalDocument
	for rows.Next() {
		var doc ClinicalDocument
		if err := rows.Row(&doc); err != nil {
			log.Warn().
				Err(err).
				Msg("Failed to decode query row")
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query rows: %v", ErrUnavailable, err)
	}

	log.Debug().
		Int("result_count", len(docs)).
		Dur("duration", time.Since(start)).
		Msg("Documents queried")
	return docs, nil
}
