// Package gateway creates, renames and deletes clock roles on Discord.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrNotFound means the role or guild no longer exists on Discord.
	ErrNotFound = errors.New("discord resource not found")
	// ErrTransient covers every other failure; it is expected to clear by itself.
	ErrTransient = errors.New("discord request failed")
)

// RoleSession is the part of *discordgo.Session the gateway uses.
type RoleSession interface {
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildRoleEdit(guildID, roleID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildRoleDelete(guildID, roleID string, options ...discordgo.RequestOption) error
}

// Discord implements role management on top of a discordgo session.
// Every call is bounded by Timeout in addition to the caller's context.
type Discord struct {
	session RoleSession
	Timeout time.Duration
}

// New returns a gateway for the session.
func New(s RoleSession, timeout time.Duration) *Discord {
	return &Discord{session: s, Timeout: timeout}
}

func (d *Discord) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.Timeout)
}

// CreateRole creates a role named name and returns its id.
func (d *Discord) CreateRole(ctx context.Context, guildID int64, name string) (int64, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	role, err := d.session.GuildRoleCreate(formatID(guildID), &discordgo.RoleParams{Name: name}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, classify(fmt.Errorf("create role in guild %d: %w", guildID, err))
	}

	id, err := strconv.ParseInt(role.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse role id %q: %w", role.ID, err)
	}
	return id, nil
}

// RenameRole sets the display name of an existing role.
func (d *Discord) RenameRole(ctx context.Context, guildID, roleID int64, name string) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	_, err := d.session.GuildRoleEdit(formatID(guildID), formatID(roleID), &discordgo.RoleParams{Name: name}, discordgo.WithContext(ctx))
	if err != nil {
		return classify(fmt.Errorf("rename role %d: %w", roleID, err))
	}
	return nil
}

// DeleteRole removes a role from the guild.
func (d *Discord) DeleteRole(ctx context.Context, guildID, roleID int64) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := d.session.GuildRoleDelete(formatID(guildID), formatID(roleID), discordgo.WithContext(ctx)); err != nil {
		return classify(fmt.Errorf("delete role %d: %w", roleID, err))
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// classify tags err with ErrNotFound or ErrTransient, keeping the original
// error in the chain.
func classify(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownRole, discordgo.ErrCodeUnknownGuild:
				return fmt.Errorf("%w: %w", ErrNotFound, err)
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
