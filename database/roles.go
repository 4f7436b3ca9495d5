package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Add persists a newly created clock role.
func (db *DB) Add(ctx context.Context, role TrackedRole) error {
	query := db.Rebind(`INSERT INTO roles (id, guild_id, timezone) VALUES (?, ?, ?)`)
	if _, err := db.ExecContext(ctx, query, role.RoleID, role.GuildID, role.Timezone); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRole
		}
		return fmt.Errorf("insert role %d: %w", role.RoleID, err)
	}

	db.logger.Info("role tracked",
		zap.Int64("guild_id", role.GuildID),
		zap.Int64("role_id", role.RoleID),
		zap.String("timezone", role.Timezone))

	db.notify()
	return nil
}

// Exists reports whether the guild already tracks the timezone.
func (db *DB) Exists(ctx context.Context, guildID int64, timezone string) (bool, error) {
	query := db.Rebind(`SELECT COUNT(*) FROM roles WHERE guild_id = ? AND timezone = ?`)

	var n int
	if err := db.GetContext(ctx, &n, query, guildID, timezone); err != nil {
		return false, fmt.Errorf("check role for guild %d: %w", guildID, err)
	}
	return n > 0, nil
}

// List returns the timezones tracked by a guild.
func (db *DB) List(ctx context.Context, guildID int64) ([]string, error) {
	query := db.Rebind(`SELECT timezone FROM roles WHERE guild_id = ? ORDER BY id`)

	zones := []string{}
	if err := db.SelectContext(ctx, &zones, query, guildID); err != nil {
		return nil, fmt.Errorf("list roles for guild %d: %w", guildID, err)
	}
	return zones, nil
}

// Remove deletes the guild's roles matched by sel and returns their ids so
// the caller can delete them on Discord.
func (db *DB) Remove(ctx context.Context, guildID int64, sel Selector) ([]int64, error) {
	query := `DELETE FROM roles WHERE guild_id = ? RETURNING id`
	args := []any{guildID}
	if !sel.All() {
		query = `DELETE FROM roles WHERE guild_id = ? AND timezone = ? RETURNING id`
		args = append(args, sel.Timezone())
	}

	ids := []int64{}
	if err := db.SelectContext(ctx, &ids, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("remove roles for guild %d: %w", guildID, err)
	}

	db.logger.Info("roles removed",
		zap.Int64("guild_id", guildID),
		zap.Bool("all", sel.All()),
		zap.String("timezone", sel.Timezone()),
		zap.Int("count", len(ids)))

	if len(ids) > 0 {
		db.notify()
	}
	return ids, nil
}

// RemoveRole deletes a single entry by its Discord role id. Removing an id
// that is not tracked is not an error.
func (db *DB) RemoveRole(ctx context.Context, roleID int64) error {
	query := db.Rebind(`DELETE FROM roles WHERE id = ?`)
	result, err := db.ExecContext(ctx, query, roleID)
	if err != nil {
		return fmt.Errorf("remove role %d: %w", roleID, err)
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		db.notify()
	}
	return nil
}

// ListAll returns every tracked role across all guilds.
func (db *DB) ListAll(ctx context.Context) ([]TrackedRole, error) {
	roles := []TrackedRole{}
	if err := db.SelectContext(ctx, &roles, `SELECT id, guild_id, timezone FROM roles ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list all roles: %w", err)
	}
	return roles, nil
}

// Count returns the number of tracked roles.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM roles`); err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	return n, nil
}
