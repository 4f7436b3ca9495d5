package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clockroles/clock"
	"clockroles/database"
	"clockroles/gateway"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Registry is the role storage used by commands.
type Registry interface {
	Add(ctx context.Context, role database.TrackedRole) error
	Exists(ctx context.Context, guildID int64, timezone string) (bool, error)
	List(ctx context.Context, guildID int64) ([]string, error)
	Remove(ctx context.Context, guildID int64, sel database.Selector) ([]int64, error)
}

// RoleGateway creates and deletes roles on Discord.
type RoleGateway interface {
	CreateRole(ctx context.Context, guildID int64, name string) (int64, error)
	DeleteRole(ctx context.Context, guildID, roleID int64) error
}

const replyFailed = "Something went wrong, please try again later."

// cleanupTimeout bounds the role deletions that must run even after the
// command's own context is done.
const cleanupTimeout = 30 * time.Second

// Handler executes commands for one guild at a time and produces the reply
// text. Errors never escape Dispatch.
type Handler struct {
	registry Registry
	gateway  RoleGateway
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewHandler(registry Registry, gw RoleGateway, clk clockwork.Clock, logger *zap.Logger) *Handler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, gateway: gw, clock: clk, logger: logger}
}

// Dispatch runs cmd for the guild and returns the message to send back.
func (h *Handler) Dispatch(ctx context.Context, guildID int64, cmd Command) string {
	switch cmd.Kind {
	case KindAdd:
		return h.add(ctx, guildID, cmd.Arg)
	case KindList:
		return h.list(ctx, guildID)
	case KindPurge:
		return h.purge(ctx, guildID, cmd.Arg)
	default:
		return helpText()
	}
}

func (h *Handler) add(ctx context.Context, guildID int64, arg string) string {
	if arg == "" {
		return "Usage: " + usageAdd
	}

	loc, err := clock.LoadZone(arg)
	if err != nil {
		return err.Error()
	}
	tz := loc.String()
	log := h.logger.With(zap.Int64("guild_id", guildID), zap.String("timezone", tz))

	exists, err := h.registry.Exists(ctx, guildID, tz)
	if err != nil {
		log.Error("add: checking registry failed", zap.Error(err))
		return replyFailed
	}
	if exists {
		return fmt.Sprintf("Timezone %s is already tracked in this server", tz)
	}

	roleID, err := h.gateway.CreateRole(ctx, guildID, clock.Render(loc, h.clock.Now()))
	if err != nil {
		log.Warn("add: creating role failed", zap.Error(err))
		return fmt.Sprintf("Could not create a role for %s, please try again later.", tz)
	}

	err = h.registry.Add(ctx, database.TrackedRole{RoleID: roleID, GuildID: guildID, Timezone: tz})
	if err != nil {
		// Leave Discord as it was so the registry and the guild stay in step.
		cleanupCtx, cancel := cleanupContext(ctx)
		delErr := h.gateway.DeleteRole(cleanupCtx, guildID, roleID)
		cancel()
		if delErr != nil && !errors.Is(delErr, gateway.ErrNotFound) {
			log.Error("add: removing unsaved role failed", zap.Int64("role_id", roleID), zap.Error(delErr))
		}
		if errors.Is(err, database.ErrDuplicateRole) {
			return fmt.Sprintf("Timezone %s is already tracked in this server", tz)
		}
		log.Error("add: saving role failed", zap.Int64("role_id", roleID), zap.Error(err))
		return replyFailed
	}

	return fmt.Sprintf("Added timezone %s", tz)
}

func (h *Handler) list(ctx context.Context, guildID int64) string {
	zones, err := h.registry.List(ctx, guildID)
	if err != nil {
		h.logger.Error("list failed", zap.Int64("guild_id", guildID), zap.Error(err))
		return replyFailed
	}
	if len(zones) == 0 {
		return "No timezones are tracked in this server."
	}
	return strings.Join(zones, "\n")
}

func (h *Handler) purge(ctx context.Context, guildID int64, arg string) string {
	var sel database.Selector
	switch arg {
	case "":
		return "Usage: " + usagePurge
	case "all":
		sel = database.SelectAll()
	default:
		loc, err := clock.LoadZone(arg)
		if err != nil {
			return err.Error()
		}
		sel = database.SelectTimezone(loc.String())
	}

	ids, err := h.registry.Remove(ctx, guildID, sel)
	if err != nil {
		h.logger.Error("purge failed", zap.Int64("guild_id", guildID), zap.Error(err))
		return replyFailed
	}

	// The rows are gone, so the roles are deleted even if the command times out.
	cleanupCtx, cancel := cleanupContext(ctx)
	defer cancel()

	failed := 0
	for _, id := range ids {
		err := h.gateway.DeleteRole(cleanupCtx, guildID, id)
		if err == nil || errors.Is(err, gateway.ErrNotFound) {
			continue
		}
		failed++
		h.logger.Warn("purge: deleting role failed",
			zap.Int64("guild_id", guildID),
			zap.Int64("role_id", id),
			zap.Error(err))
	}

	reply := "Purged " + pluralRoles(len(ids))
	if failed > 0 {
		reply += fmt.Sprintf(" (%d could not be deleted on Discord and must be removed by hand)", failed)
	}
	return reply
}

func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

func pluralRoles(n int) string {
	if n == 1 {
		return "1 role"
	}
	return fmt.Sprintf("%d roles", n)
}
