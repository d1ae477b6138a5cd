package pinauth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix       = "pac"
	codeRecordVersionV1 = 1
)

var (
	errCodeNotFound         = errors.New("verification code record not found")
	errCodeExpired          = errors.New("verification code record expired")
	errCodeMismatch         = errors.New("verification code mismatch")
	errCodeRedisUnavailable = errors.New("verification code redis unavailable")
)

// emailCodeRecord is the stored form of a one-time code. Only the SHA-256 of
// the code is persisted; the plaintext exists solely in the outbound email.
type emailCodeRecord struct {
	SecretHash [32]byte
	IssuedAt   int64 // unix UTC seconds
	ExpiresAt  int64 // unix UTC seconds
}

type emailCodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newEmailCodeStore(redisClient redis.UniversalClient) *emailCodeStore {
	return &emailCodeStore{
		redis:  redisClient,
		prefix: codeKeyPrefix,
	}
}

func (s *emailCodeStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save persists a new code for the session, superseding any prior unconsumed
// code by overwriting the single per-session key (last write wins). retention
// must exceed the code TTL so an expired record is still present to report
// expiry instead of absence.
func (s *emailCodeStore) Save(
	ctx context.Context,
	sessionID string,
	record *emailCodeRecord,
	retention time.Duration,
) error {
	encoded, err := encodeEmailCodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sessionID), encoded, retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
	}

	return nil
}

// Consume atomically validates and consumes the session's current code.
// Expiry is checked before the value comparison, so an expired-but-correct
// code reports errCodeExpired, never a mismatch or success. Exactly one
// concurrent caller can win the unconsumed→consumed transition; losers observe
// errCodeNotFound on their retry. A mismatch leaves the record in place —
// attempt throttling is the lockout limiter's job, not the store's.
func (s *emailCodeStore) Consume(
	ctx context.Context,
	sessionID string,
	providedHash [32]byte,
	now int64,
) (*emailCodeRecord, error) {
	const maxRetries = 4
	key := s.key(sessionID)

	for i := 0; i < maxRetries; i++ {
		var matched *emailCodeRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeEmailCodeRecord(data)
			if err != nil {
				return err
			}

			if now >= record.ExpiresAt {
				// Left in place until retention lapses so retries keep
				// reporting expiry rather than absence.
				return errCodeExpired
			}

			if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
				return errCodeMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, errCodeNotFound
			case errors.Is(err, errCodeExpired), errors.Is(err, errCodeMismatch):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, errCodeNotFound
}

func encodeEmailCodeRecord(record *emailCodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeEmailCodeRecord(data []byte) (*emailCodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeRecordVersionV1 {
		return nil, errors.New("invalid code record version")
	}

	record := &emailCodeRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
