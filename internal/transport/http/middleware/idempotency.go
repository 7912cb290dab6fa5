package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"hrims/internal/platform/querier"
	"hrims/internal/transport/http/api"
)

var (
	ErrIdempotencyConflict   = errors.New("idempotency key conflicts with existing request")
	ErrIdempotencyInProgress = errors.New("a request with this idempotency key is still running")
)

const IdempotencyHeader = "Idempotency-Key"

// pendingStatus marks a reserved key whose request has not finished.
const pendingStatus = 0

// abandonedAfter is how long a reservation may stay pending before another
// request with the same key and body may take it over.
const abandonedAfter = 5 * time.Minute

// StoredResponse is what a replay returns.
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type IdempotencyStore struct {
	db querier.Querier
}

func NewIdempotencyStore(db querier.Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Reserve claims key for a new request. found is true when a completed
// response exists and should be replayed. A key held by a running request
// returns ErrIdempotencyInProgress; a key used with another body returns
// ErrIdempotencyConflict.
func (s *IdempotencyStore) Reserve(ctx context.Context, userID, endpoint, key, requestHash string) (StoredResponse, bool, error) {
	if s == nil || s.db == nil {
		return StoredResponse{}, false, nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, status_code, response_json)
    VALUES ($1, $2, $3, $4, $5, 'null'::jsonb)
    ON CONFLICT (user_id, key, endpoint) DO NOTHING
  `, userID, key, endpoint, requestHash, pendingStatus)
	if err != nil {
		return StoredResponse{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return StoredResponse{}, false, nil
	}

	tag, err = s.db.Exec(ctx, `
    UPDATE idempotency_keys SET created_at = now()
    WHERE user_id = $1 AND key = $2 AND endpoint = $3 AND request_hash = $4
      AND status_code = $5 AND created_at < now() - make_interval(secs => $6)
  `, userID, key, endpoint, requestHash, pendingStatus, abandonedAfter.Seconds())
	if err != nil {
		return StoredResponse{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return StoredResponse{}, false, nil
	}

	var storedHash string
	var stored StoredResponse
	err = s.db.QueryRow(ctx, `
    SELECT request_hash, status_code, response_json
    FROM idempotency_keys
    WHERE user_id = $1 AND key = $2 AND endpoint = $3
  `, userID, key, endpoint).Scan(&storedHash, &stored.Status, &stored.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		// Released between the insert and the read; the client may retry.
		return StoredResponse{}, false, ErrIdempotencyInProgress
	}
	if err != nil {
		return StoredResponse{}, false, err
	}
	switch {
	case storedHash != requestHash:
		return StoredResponse{}, false, ErrIdempotencyConflict
	case stored.Status == pendingStatus:
		return StoredResponse{}, false, ErrIdempotencyInProgress
	}
	return stored, true, nil
}

// Save stores the final response for a reserved key.
func (s *IdempotencyStore) Save(ctx context.Context, userID, endpoint, key, requestHash string, resp StoredResponse) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, status_code, response_json)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (user_id, key, endpoint)
    DO UPDATE SET response_json = EXCLUDED.response_json, status_code = EXCLUDED.status_code
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
  `, userID, key, endpoint, requestHash, resp.Status, []byte(resp.Body))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Release drops a pending reservation so the key can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, userID, endpoint, key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
    DELETE FROM idempotency_keys
    WHERE user_id = $1 AND key = $2 AND endpoint = $3 AND status_code = $4
  `, userID, key, endpoint, pendingStatus)
	return err
}

// IdempotencyChecker is satisfied by *IdempotencyStore.
type IdempotencyChecker interface {
	Reserve(ctx context.Context, userID, endpoint, key, requestHash string) (StoredResponse, bool, error)
	Save(ctx context.Context, userID, endpoint, key, requestHash string, resp StoredResponse) error
	Release(ctx context.Context, userID, endpoint, key string) error
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// Idempotent replays the stored response when a request repeats its
// Idempotency-Key with the same body. The key is reserved before the handler
// runs, so a concurrent duplicate gets 409 instead of running twice. Requests
// without the header, or without a signed-in caller, run normally. Only 2xx
// responses are stored; anything else releases the key.
func Idempotent(store IdempotencyChecker, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			identity, ok := GetIdentity(r.Context())
			if store == nil || key == "" || !ok || identity.UID == "" {
				next.ServeHTTP(w, r)
				return
			}
			requestID := GetRequestID(r.Context())
			if len(key) > 128 {
				api.Fail(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key too long", requestID)
				return
			}

			raw, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			hash := RequestHash(raw)
			endpoint := r.Method + " " + r.URL.Path

			reserved := false
			stored, found, err := store.Reserve(r.Context(), identity.UID, endpoint, key, hash)
			switch {
			case errors.Is(err, ErrIdempotencyConflict):
				api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), requestID)
				return
			case errors.Is(err, ErrIdempotencyInProgress):
				w.Header().Set("Retry-After", "1")
				api.Fail(w, http.StatusConflict, "idempotency_in_progress", err.Error(), requestID)
				return
			case err != nil:
				log.Warn().Err(err).Str("request_id", requestID).Msg("idempotency reserve failed")
			case found:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			default:
				reserved = true
			}

			saved := false
			defer func() {
				if !reserved || saved {
					return
				}
				if err := store.Release(context.WithoutCancel(r.Context()), identity.UID, endpoint, key); err != nil {
					log.Warn().Err(err).Str("request_id", requestID).Msg("idempotency release failed")
				}
			}()

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status < 200 || capture.status >= 300 {
				return
			}
			body := bytes.TrimSpace(capture.body.Bytes())
			if len(body) == 0 {
				body = []byte("null")
			}
			resp := StoredResponse{Status: capture.status, Body: json.RawMessage(body)}
			if err := store.Save(context.WithoutCancel(r.Context()), identity.UID, endpoint, key, hash, resp); err != nil {
				log.Warn().Err(err).Str("request_id", requestID).Msg("idempotency save failed")
				return
			}
			saved = true
		})
	}
}
