package repositories

import (
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	workspacePrefix = "ws"
	channelPrefix   = "ch"
)

// MembershipRepository stores which workspaces and channels a user belongs to.
// It satisfies contract.MembershipLookup.
//
// Keys are "{kind}:{len(user_id)}:{user_id}:{target_id}" so a user's memberships
// of one kind come back with a single prefix scan. The length keeps a user id
// containing ':' from matching another user's prefix.
type MembershipRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMembershipRepository(db *badger.DB, log *slog.Logger) MembershipRepository {
	return MembershipRepository{db: db, log: log}
}

func membershipKey(kind string, userID domain.UserID, targetID string) []byte {
	return append(membershipPrefix(kind, userID), targetID...)
}

func membershipPrefix(kind string, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s:", kind, len(userID), userID))
}

// ParseMembershipKey splits a key written by MembershipRepository.
func ParseMembershipKey(key []byte) (kind string, userID domain.UserID, targetID string, ok bool) {
	kind, rest, found := strings.Cut(string(key), ":")
	if !found || (kind != workspacePrefix && kind != channelPrefix) {
		return "", "", "", false
	}
	size, rest, found := strings.Cut(rest, ":")
	n, err := strconv.Atoi(size)
	if !found || err != nil || n < 0 || len(rest) < n+1 || rest[n] != ':' {
		return "", "", "", false
	}
	return kind, domain.UserID(rest[:n]), rest[n+1:], true
}

// AddWorkspaceMember records userID as a member of workspaceID with role.
func (m MembershipRepository) AddWorkspaceMember(userID domain.UserID, workspaceID string, role domain.WorkspaceRole) error {
	return m.put(membershipKey(workspacePrefix, userID, workspaceID), map[string]any{
		"role":     string(role),
		"joinedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (m MembershipRepository) RemoveWorkspaceMember(userID domain.UserID, workspaceID string) error {
	return m.delete(membershipKey(workspacePrefix, userID, workspaceID))
}

// WorkspaceRole returns the stored role, or badger.ErrKeyNotFound when userID is not a member.
func (m MembershipRepository) WorkspaceRole(userID domain.UserID, workspaceID string) (domain.WorkspaceRole, error) {
	var record structpb.Struct
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(membershipKey(workspacePrefix, userID, workspaceID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return proto.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return "", err
	}
	return domain.WorkspaceRole(record.GetFields()["role"].GetStringValue()), nil
}

func (m MembershipRepository) AddChannelMember(userID domain.UserID, channelID string) error {
	return m.put(membershipKey(channelPrefix, userID, channelID), map[string]any{
		"joinedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (m MembershipRepository) RemoveChannelMember(userID domain.UserID, channelID string) error {
	return m.delete(membershipKey(channelPrefix, userID, channelID))
}

func (m MembershipRepository) WorkspacesOf(ctx context.Context, userID domain.UserID) ([]string, error) {
	return m.scan(ctx, membershipPrefix(workspacePrefix, userID))
}

func (m MembershipRepository) ChannelsOf(ctx context.Context, userID domain.UserID) ([]string, error) {
	return m.scan(ctx, membershipPrefix(channelPrefix, userID))
}

func (m MembershipRepository) put(key []byte, fields map[string]any) error {
	record, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	bytes, err := proto.Marshal(record)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, bytes)
	})
}

func (m MembershipRepository) delete(key []byte) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// scan returns the target ids under prefix. Values are never read.
func (m MembershipRepository) scan(ctx context.Context, prefix []byte) ([]string, error) {
	var ids []string
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug("Memberships loaded", "prefix", string(prefix), "count", len(ids))
	return ids, nil
}
