package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"payconfirm/internal/domain"
	"payconfirm/internal/repository"
)

const ledgerKeyPrefix = "ledger:"

// getOrCreateScript creates the hash if absent and returns its fields.
var getOrCreateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1],
		'payment_id', ARGV[1], 'rail', ARGV[2], 'status', ARGV[3],
		'raw_status', '', 'version', '1', 'created_at', ARGV[4], 'updated_at', ARGV[4])
end
return redis.call('HGETALL', KEYS[1])
`)

// compareAndSetScript returns {applied, field, value, ...}; applied is -1
// when the key does not exist.
var compareAndSetScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], 'version')
if not v then
	return {-1}
end
local applied = 0
if tonumber(v) == tonumber(ARGV[1]) then
	redis.call('HSET', KEYS[1],
		'status', ARGV[2], 'raw_status', ARGV[3],
		'version', tostring(tonumber(v) + 1), 'updated_at', ARGV[4])
	applied = 1
end
local fields = redis.call('HGETALL', KEYS[1])
table.insert(fields, 1, applied)
return fields
`)

// LedgerStore is a Redis implementation of repository.Ledger. Each entry is
// a hash; every mutation runs as a single Lua script.
type LedgerStore struct {
	client *redis.Client
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(client *redis.Client) *LedgerStore {
	return &LedgerStore{client: client}
}

// GetOrCreate returns the entry for paymentID, creating it as pending if absent.
func (s *LedgerStore) GetOrCreate(ctx context.Context, paymentID string, rail domain.RailKind) (*domain.LedgerEntry, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := getOrCreateScript.Run(ctx, s.client, []string{ledgerKeyPrefix + paymentID},
		paymentID, string(rail), string(domain.StatusPending), now,
	).Slice()
	if err != nil {
		return nil, err
	}

	return entryFromFields(res)
}

// Get retrieves an entry by payment ID.
func (s *LedgerStore) Get(ctx context.Context, paymentID string) (*domain.LedgerEntry, error) {
	fields, err := s.client.HGetAll(ctx, ledgerKeyPrefix+paymentID).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, repository.ErrNotFound
	}

	return entryFromMap(fields)
}

// CompareAndSet applies newStatus only if the stored version matches.
func (s *LedgerStore) CompareAndSet(ctx context.Context, paymentID string, expectedVersion int64, newStatus domain.ConfirmationStatus, rawStatus string) (repository.CASResult, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := compareAndSetScript.Run(ctx, s.client, []string{ledgerKeyPrefix + paymentID},
		expectedVersion, string(newStatus), rawStatus, now,
	).Slice()
	if err != nil {
		return repository.CASResult{}, err
	}
	if len(res) == 0 {
		return repository.CASResult{}, fmt.Errorf("ledger cas: empty reply for %s", paymentID)
	}

	applied, ok := res[0].(int64)
	if !ok {
		return repository.CASResult{}, fmt.Errorf("ledger cas: unexpected reply type %T", res[0])
	}
	if applied < 0 {
		return repository.CASResult{}, repository.ErrNotFound
	}

	entry, err := entryFromFields(res[1:])
	if err != nil {
		return repository.CASResult{}, err
	}

	return repository.CASResult{Applied: applied == 1, Entry: entry}, nil
}

// entryFromFields converts a flat HGETALL reply into an entry.
func entryFromFields(vals []interface{}) (*domain.LedgerEntry, error) {
	if len(vals)%2 != 0 {
		return nil, fmt.Errorf("ledger: odd field count %d", len(vals))
	}

	fields := make(map[string]string, len(vals)/2)
	for i := 0; i < len(vals); i += 2 {
		k, _ := vals[i].(string)
		v, _ := vals[i+1].(string)
		fields[k] = v
	}
	return entryFromMap(fields)
}

func entryFromMap(fields map[string]string) (*domain.LedgerEntry, error) {
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ledger: bad version %q: %w", fields["version"], err)
	}

	entry := &domain.LedgerEntry{
		PaymentID: fields["payment_id"],
		Rail:      domain.RailKind(fields["rail"]),
		Status:    domain.ConfirmationStatus(fields["status"]),
		RawStatus: fields["raw_status"],
		Version:   version,
	}
	// Timestamps are informational; a malformed value leaves the zero time.
	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	entry.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])

	return entry, nil
}
