package repositories

import (
	"chat-relay/domain"
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// PresenceRecord is the last persisted status of a user.
type PresenceRecord struct {
	UserID   domain.UserID
	Status   domain.PresenceStatus
	LastSeen time.Time
}

// PresenceRepository persists presence transitions. It satisfies contract.PresenceStore.
type PresenceRepository struct {
	db *badger.DB
}

func NewPresenceRepository(db *badger.DB) PresenceRepository {
	return PresenceRepository{db: db}
}

func presenceKey(userID domain.UserID) []byte {
	return []byte("presence:" + string(userID))
}

// SetStatus overwrites the user's status and stamps the time of the change.
func (p PresenceRepository) SetStatus(ctx context.Context, userID domain.UserID, status domain.PresenceStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record, err := structpb.NewStruct(map[string]any{
		"status":   string(status),
		"lastSeen": float64(time.Now().UTC().UnixMilli()),
	})
	if err != nil {
		return err
	}
	bytes, err := proto.Marshal(record)
	if err != nil {
		return err
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(presenceKey(userID), bytes)
	})
}

// GetStatus returns the stored record. Users never seen are OFFLINE with a zero LastSeen.
func (p PresenceRepository) GetStatus(ctx context.Context, userID domain.UserID) (PresenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return PresenceRecord{}, err
	}
	var record structpb.Struct
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(presenceKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return proto.Unmarshal(val, &record)
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return PresenceRecord{UserID: userID, Status: domain.Offline}, nil
	case err != nil:
		return PresenceRecord{}, err
	}
	fields := record.GetFields()
	return PresenceRecord{
		UserID:   userID,
		Status:   domain.PresenceStatus(fields["status"].GetStringValue()),
		LastSeen: time.UnixMilli(int64(fields["lastSeen"].GetNumberValue())).UTC(),
	}, nil
}
