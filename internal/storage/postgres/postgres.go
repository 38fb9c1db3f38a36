package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
)

const maxTxAttempts = 3

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type txKey struct{}

// Storage implements storage.Storage on PostgreSQL.
type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(dsn string) (*Storage, error) {
	if dsn == "" {
		return nil, errors.New("database connection string is empty")
	}

	ctx := context.Background()
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &Storage{
		pool: pool,
	}

	if err := s.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			uid VARCHAR(64) PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS groups (
			gid VARCHAR(64) PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS group_user (
			gid VARCHAR(64) NOT NULL REFERENCES groups(gid) ON DELETE CASCADE,
			uid VARCHAR(64) NOT NULL,
			PRIMARY KEY (gid, uid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_group_user_uid ON group_user(uid)`,
		`CREATE TABLE IF NOT EXISTS shares (
			id BIGSERIAL PRIMARY KEY,
			item_type VARCHAR(64) NOT NULL,
			item_source BIGINT NOT NULL DEFAULT 0,
			file_target TEXT NOT NULL DEFAULT '',
			share_type SMALLINT NOT NULL,
			share_with VARCHAR(255) NOT NULL DEFAULT '',
			uid_owner VARCHAR(64) NOT NULL,
			permissions SMALLINT NOT NULL DEFAULT 0,
			token VARCHAR(32) UNIQUE,
			password TEXT NOT NULL DEFAULT '',
			expiration TIMESTAMP WITH TIME ZONE,
			stime TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shares_recipient ON shares(share_type, share_with, item_type)`,
		`CREATE INDEX IF NOT EXISTS idx_shares_owner ON shares(uid_owner)`,
		`CREATE TABLE IF NOT EXISTS share_external (
			id BIGSERIAL PRIMARY KEY,
			remote TEXT NOT NULL,
			remote_id VARCHAR(255) NOT NULL DEFAULT '',
			share_token VARCHAR(64) NOT NULL,
			password TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			owner VARCHAR(64) NOT NULL,
			"user" VARCHAR(64) NOT NULL,
			mountpoint TEXT NOT NULL DEFAULT '',
			accepted BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_share_external_user ON share_external("user")`,
		`CREATE TABLE IF NOT EXISTS preferences (
			userid VARCHAR(64) NOT NULL,
			appid VARCHAR(32) NOT NULL,
			configkey VARCHAR(64) NOT NULL,
			configvalue TEXT NOT NULL,
			PRIMARY KEY (userid, appid, configkey)
		)`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	return nil
}

// q returns the transaction bound to ctx, or the pool.
func (s *Storage) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// InTx runs fn in a REPEATABLE READ transaction. Every read made with the
// transaction context observes the same snapshot plus the transaction's own
// writes. Serialization failures are retried.
func (s *Storage) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isCode(err, pgerrcode.SerializationFailure) {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("Retrying serialization failure")
	}
	return err
}

func (s *Storage) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txCtx, hooks := storage.WithTxHooks(context.WithValue(ctx, txKey{}, tx))
	if err := fn(txCtx); err != nil {
		hooks.Rollback()
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		hooks.Rollback()
		return err
	}
	hooks.Commit(ctx)
	return nil
}

func isCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// mapError converts driver errors to storage sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return storage.ErrNotFound
	case isCode(err, pgerrcode.UniqueViolation):
		return fmt.Errorf("%w: %v", storage.ErrAlreadyExists, err)
	case isCode(err, pgerrcode.ForeignKeyViolation):
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	default:
		return err
	}
}

const shareColumns = `id, item_type, item_source, file_target, share_type, share_with, uid_owner,
	permissions, COALESCE(token, ''), password, expiration, stime`

func scanShare(row pgx.Row) (model.Share, error) {
	var share model.Share
	var shareType int16
	var permissions int16
	var expiration *time.Time
	err := row.Scan(&share.ID, &share.ItemType, &share.ItemSource, &share.FileTarget, &shareType,
		&share.ShareWith, &share.Owner, &permissions, &share.Token, &share.Password, &expiration, &share.CreatedAt)
	if err != nil {
		return model.Share{}, err
	}
	share.ShareType = model.ShareType(shareType)
	share.Permissions = int(permissions)
	share.Expiration = expiration
	return share, nil
}

func (s *Storage) queryShares(ctx context.Context, query string, args ...interface{}) ([]model.Share, error) {
	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying shares: %w", err)
	}
	defer rows.Close()

	result := []model.Share{}
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning share: %w", err)
		}
		result = append(result, share)
	}
	return result, rows.Err()
}

func (s *Storage) CreateShare(ctx context.Context, share model.Share) (model.Share, error) {
	row := s.q(ctx).QueryRow(ctx, `
		INSERT INTO shares (item_type, item_source, file_target, share_type, share_with, uid_owner,
			permissions, token, password, expiration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
		RETURNING `+shareColumns,
		share.ItemType, share.ItemSource, share.FileTarget, int16(share.ShareType), share.ShareWith,
		share.Owner, int16(share.Permissions), share.Token, share.Password, share.Expiration)

	created, err := scanShare(row)
	if err != nil {
		return model.Share{}, fmt.Errorf("error inserting share: %w", mapError(err))
	}
	return created, nil
}

func (s *Storage) GetShare(ctx context.Context, id int64) (model.Share, error) {
	share, err := scanShare(s.q(ctx).QueryRow(ctx, `SELECT `+shareColumns+` FROM shares WHERE id = $1`, id))
	return share, mapError(err)
}

func (s *Storage) GetShareByToken(ctx context.Context, token string) (model.Share, error) {
	share, err := scanShare(s.q(ctx).QueryRow(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE token = $1 AND share_type = $2`, token, int16(model.ShareTypeLink)))
	return share, mapError(err)
}

func (s *Storage) DeleteShare(ctx context.Context, id int64) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM shares WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Storage) SharesForRecipients(ctx context.Context, itemType, userID string, groupIDs []string) ([]model.Share, error) {
	if groupIDs == nil {
		groupIDs = []string{}
	}
	return s.queryShares(ctx, `
		SELECT `+shareColumns+` FROM shares
		WHERE ($1 = '' OR item_type = $1)
		  AND ((share_type = $2 AND share_with = $3) OR (share_type = $4 AND share_with = ANY($5)))
		ORDER BY id`,
		itemType, int16(model.ShareTypeUser), userID, int16(model.ShareTypeGroup), groupIDs)
}

func (s *Storage) SharesByOwner(ctx context.Context, owner string) ([]model.Share, error) {
	return s.queryShares(ctx, `SELECT `+shareColumns+` FROM shares WHERE uid_owner = $1 ORDER BY id`, owner)
}

func (s *Storage) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO users (uid, display_name, password_hash) VALUES ($1, $2, $3)`,
		user.UID, user.DisplayName, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("error inserting user %q: %w", user.UID, mapError(err))
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, uid string) (model.User, error) {
	var user model.User
	err := s.q(ctx).QueryRow(ctx,
		`SELECT uid, display_name, password_hash FROM users WHERE uid = $1`, uid).
		Scan(&user.UID, &user.DisplayName, &user.PasswordHash)
	return user, mapError(err)
}

func (s *Storage) SearchUsers(ctx context.Context, pattern string, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q(ctx).Query(ctx, `
		SELECT uid, display_name, password_hash FROM users
		WHERE uid ILIKE '%' || $1 || '%' OR display_name ILIKE '%' || $1 || '%'
		ORDER BY uid LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("error searching users: %w", err)
	}
	defer rows.Close()

	result := []model.User{}
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.UID, &user.DisplayName, &user.PasswordHash); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func (s *Storage) CreateGroup(ctx context.Context, group model.Group) error {
	_, err := s.q(ctx).Exec(ctx, `INSERT INTO groups (gid, display_name) VALUES ($1, $2)`, group.GID, group.DisplayName)
	if err != nil {
		return fmt.Errorf("error inserting group %q: %w", group.GID, mapError(err))
	}
	return nil
}

func (s *Storage) GetGroup(ctx context.Context, gid string) (model.Group, error) {
	var group model.Group
	err := s.q(ctx).QueryRow(ctx, `SELECT gid, display_name FROM groups WHERE gid = $1`, gid).
		Scan(&group.GID, &group.DisplayName)
	return group, mapError(err)
}

func (s *Storage) AddMember(ctx context.Context, gid, uid string) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO group_user (gid, uid) VALUES ($1, $2) ON CONFLICT DO NOTHING`, gid, uid)
	if err != nil {
		return fmt.Errorf("error adding %q to group %q: %w", uid, gid, mapError(err))
	}
	return nil
}

func (s *Storage) RemoveMember(ctx context.Context, gid, uid string) error {
	if _, err := s.GetGroup(ctx, gid); err != nil {
		return fmt.Errorf("group %q: %w", gid, err)
	}
	_, err := s.q(ctx).Exec(ctx, `DELETE FROM group_user WHERE gid = $1 AND uid = $2`, gid, uid)
	return err
}

func (s *Storage) IsMember(ctx context.Context, gid, uid string) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM group_user WHERE gid = $1 AND uid = $2)`, gid, uid).Scan(&exists)
	return exists, err
}

func (s *Storage) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (s *Storage) GroupsForUser(ctx context.Context, uid string) ([]string, error) {
	return s.queryStrings(ctx, `SELECT gid FROM group_user WHERE uid = $1 ORDER BY gid`, uid)
}

func (s *Storage) Members(ctx context.Context, gid string) ([]string, error) {
	if _, err := s.GetGroup(ctx, gid); err != nil {
		return nil, err
	}
	return s.queryStrings(ctx, `SELECT uid FROM group_user WHERE gid = $1 ORDER BY uid`, gid)
}

const externalColumns = `id, remote, remote_id, share_token, password, name, owner, "user", mountpoint, accepted`

func scanExternal(row pgx.Row) (model.ExternalShare, error) {
	var share model.ExternalShare
	err := row.Scan(&share.ID, &share.Remote, &share.RemoteID, &share.ShareToken, &share.Password,
		&share.Name, &share.Owner, &share.User, &share.MountPoint, &share.Accepted)
	return share, err
}

func (s *Storage) AddExternalShare(ctx context.Context, share model.ExternalShare) (model.ExternalShare, error) {
	row := s.q(ctx).QueryRow(ctx, `
		INSERT INTO share_external (remote, remote_id, share_token, password, name, owner, "user", mountpoint, accepted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+externalColumns,
		share.Remote, share.RemoteID, share.ShareToken, share.Password, share.Name, share.Owner,
		share.User, share.MountPoint, share.Accepted)

	created, err := scanExternal(row)
	if err != nil {
		return model.ExternalShare{}, fmt.Errorf("error inserting external share: %w", mapError(err))
	}
	return created, nil
}

func (s *Storage) GetExternalShare(ctx context.Context, id int64) (model.ExternalShare, error) {
	share, err := scanExternal(s.q(ctx).QueryRow(ctx, `SELECT `+externalColumns+` FROM share_external WHERE id = $1`, id))
	return share, mapError(err)
}

func (s *Storage) ExternalSharesForUser(ctx context.Context, uid string, accepted *bool) ([]model.ExternalShare, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT `+externalColumns+` FROM share_external
		WHERE "user" = $1 AND ($2::BOOLEAN IS NULL OR accepted = $2)
		ORDER BY id`, uid, accepted)
	if err != nil {
		return nil, fmt.Errorf("error querying external shares: %w", err)
	}
	defer rows.Close()

	result := []model.ExternalShare{}
	for rows.Next() {
		share, err := scanExternal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, share)
	}
	return result, rows.Err()
}

func (s *Storage) AcceptExternalShare(ctx context.Context, id int64, mountPoint string) error {
	tag, err := s.q(ctx).Exec(ctx,
		`UPDATE share_external SET accepted = TRUE, mountpoint = $2 WHERE id = $1`, id, mountPoint)
	if err != nil {
		return fmt.Errorf("error accepting external share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteExternalShare(ctx context.Context, id int64) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM share_external WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting external share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Storage) SetUserValue(ctx context.Context, uid, appID, key, value string) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO preferences (userid, appid, configkey, configvalue) VALUES ($1, $2, $3, $4)
		ON CONFLICT (userid, appid, configkey) DO UPDATE SET configvalue = EXCLUDED.configvalue`,
		uid, appID, key, value)
	if err != nil {
		return fmt.Errorf("error storing preference: %w", err)
	}
	return nil
}

func (s *Storage) GetUserValue(ctx context.Context, uid, appID, key string) (string, bool, error) {
	var value string
	err := s.q(ctx).QueryRow(ctx,
		`SELECT configvalue FROM preferences WHERE userid = $1 AND appid = $2 AND configkey = $3`,
		uid, appID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Storage) UserValues(ctx context.Context, uid, appID string) (map[string]string, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT configkey, configvalue FROM preferences WHERE userid = $1 AND appid = $2`, uid, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
