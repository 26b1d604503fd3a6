package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/duetapp/duet-server/internal/types"
)

func (db *PgRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (external_id, username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"RETURNING id, external_id, username, email, created_at, updated_at",
		params.ExternalId,
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.ExternalId,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, username, email, password_hash, created_at, updated_at "+
			"FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.ExternalId,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgRepository) GetAccountByExternalId(externalId string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, username, email, created_at, updated_at "+
			"FROM accounts WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.ExternalId,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgRepository) CreateMessage(params CreateMessageParams) (types.Message, error) {
	row := db.conn.QueryRow(
		"INSERT INTO messages (sender_id, receiver_id, kind, payload, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, sender_id, receiver_id, kind, payload, read, created_at",
		params.SenderId,
		params.ReceiverId,
		string(params.Kind),
		[]byte(params.Payload),
		time.Now().UTC(),
	)

	return scanMessage(row)
}

func (db *PgRepository) GetMessage(id int64) (types.Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, sender_id, receiver_id, kind, payload, read, created_at FROM messages "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	return scanMessage(row)
}

func (db *PgRepository) GetMessages(userId, peerId string, before int64, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, sender_id, receiver_id, kind, payload, read, created_at FROM messages " +
		"WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))"
	args := []any{userId, peerId}

	if before > 0 {
		query += fmt.Sprintf(" AND id < $%d", len(args)+1)
		args = append(args, before)
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgRepository) MarkMessageRead(id int64, read bool) error {
	res, err := db.conn.Exec(
		"UPDATE messages SET read = $2 WHERE id = $1",
		id, read,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgRepository) DeleteMessage(id int64) error {
	res, err := db.conn.Exec("DELETE FROM messages WHERE id = $1", id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgRepository) UpsertSubscription(params UpsertSubscriptionParams) (types.PushSubscription, error) {
	keys, err := json.Marshal(params.Keys)
	if err != nil {
		return types.PushSubscription{}, fmt.Errorf("marshal keys: %w", err)
	}

	row := db.conn.QueryRow(
		"INSERT INTO push_subscriptions (user_id, origin, endpoint, keys, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (user_id, origin) DO UPDATE SET endpoint = $3, keys = $4 "+
			"RETURNING id, user_id, origin, endpoint, keys, created_at",
		params.UserId,
		params.Origin,
		params.Endpoint,
		keys,
		time.Now().UTC(),
	)

	return scanSubscription(row)
}

func (db *PgRepository) ListSubscriptions(userId string) ([]types.PushSubscription, error) {
	rows, err := db.conn.Query(
		"SELECT id, user_id, origin, endpoint, keys, created_at FROM push_subscriptions "+
			"WHERE user_id = $1 ORDER BY id",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []types.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (db *PgRepository) DeleteSubscription(userId, origin string) error {
	res, err := db.conn.Exec(
		"DELETE FROM push_subscriptions WHERE user_id = $1 AND origin = $2",
		userId, origin,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgRepository) DeleteSubscriptionByEndpoint(endpoint string) error {
	_, err := db.conn.Exec(
		"DELETE FROM push_subscriptions WHERE endpoint = $1",
		endpoint,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (types.Message, error) {
	var (
		msg     types.Message
		kind    string
		payload []byte
	)

	err := row.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.ReceiverId,
		&kind,
		&payload,
		&msg.Read,
		&msg.CreatedAt,
	)
	if err != nil {
		return types.Message{}, err
	}

	msg.Kind = types.MessageKind(kind)
	msg.Payload = json.RawMessage(payload)

	return msg, nil
}

func scanSubscription(row rowScanner) (types.PushSubscription, error) {
	var (
		sub  types.PushSubscription
		keys []byte
	)

	err := row.Scan(
		&sub.Id,
		&sub.UserId,
		&sub.Origin,
		&sub.Endpoint,
		&keys,
		&sub.CreatedAt,
	)
	if err != nil {
		return types.PushSubscription{}, err
	}

	if len(keys) > 0 {
		if err := json.Unmarshal(keys, &sub.Keys); err != nil {
			return types.PushSubscription{}, fmt.Errorf("unmarshal keys: %w", err)
		}
	}

	return sub, nil
}
