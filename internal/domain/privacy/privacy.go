// Package privacy decides whether a ranking owner's identity may be shown to a viewer.
//
// The gate only affects presentation: hidden owners' ratings still take part in
// every aggregate.
package privacy

import (
	"context"
	"fmt"

	"github.com/okian/tierlens/internal/domain/model"
	"github.com/okian/tierlens/pkg/logger"
	"github.com/okian/tierlens/pkg/metrics"
)

// Placeholder identities.
const (
	AnonymousName = "Anonymous"
	UnknownName   = "Unknown"
	DefaultAvatar = "data:image/svg+xml;base64,PHN2ZyB4bWxucz0iaHR0cDovL3d3dy53My5vcmcvMjAwMC9zdmciIHZpZXdCb3g9IjAgMCAxMDAgMTAwIj48Y2lyY2xlIGN4PSI1MCIgY3k9IjUwIiByPSI1MCIgZmlsbD0iI2NjYyIvPjxjaXJjbGUgY3g9IjUwIiBjeT0iNDAiIHI9IjE4IiBmaWxsPSIjZmZmIi8+PHBhdGggZD0iTTIwIDgwIFEyMCA2MCA1MCA2MCBRODAgNjAgODAgODAiIGZpbGw9IiNmZmYiLz48L3N2Zz4="
)

// Membership answers whether two users share at least one group.
type Membership interface {
	SharesGroup(ctx context.Context, a, b int64) (bool, error)
}

// Directory resolves user ids to display identities.
type Directory interface {
	User(ctx context.Context, id int64) (model.User, error)
}

// Gate applies the disclosure rule.
type Gate struct {
	membership Membership
	directory  Directory
	logger     logger.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for degraded lookups.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithDirectory sets the directory used by Present.
func WithDirectory(d Directory) Option {
	return func(g *Gate) { g.directory = d }
}

// NewGate builds a gate over the membership predicate.
func NewGate(membership Membership, opts ...Option) *Gate {
	g := &Gate{membership: membership}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Named("privacy")
	}
	return g
}

// Reveal reports whether viewer may see owner's identity: always for their own
// rankings, otherwise only when they share a group. Lookup failures deny.
func (g *Gate) Reveal(ctx context.Context, viewer, owner int64) bool {
	if viewer == owner {
		return true
	}
	if g.membership == nil {
		return false
	}
	shared, err := g.membership.SharesGroup(ctx, viewer, owner)
	if err != nil {
		metrics.RecordCollaboratorFailure("group_membership")
		g.logger.Warn(ctx, "group membership lookup failed",
			logger.Int64("viewer", viewer),
			logger.Int64("owner", owner),
			logger.Error(err),
		)
		return false
	}
	return shared
}

// Present returns the identity viewer should see for owner. Hidden owners get
// the anonymous placeholder; owners the directory cannot resolve get Unknown.
func (g *Gate) Present(ctx context.Context, viewer, owner int64) model.Identity {
	if !g.Reveal(ctx, viewer, owner) {
		return Anonymous()
	}
	return g.Resolve(ctx, owner)
}

// Resolve looks up owner without applying the gate.
func (g *Gate) Resolve(ctx context.Context, owner int64) model.Identity {
	id := model.Identity{UserID: owner, DisplayName: UnknownName, AvatarURL: DefaultAvatar, Revealed: true}
	if g.directory == nil {
		return id
	}
	u, err := g.directory.User(ctx, owner)
	if err != nil {
		metrics.RecordCollaboratorFailure("user_directory")
		g.logger.Warn(ctx, "user lookup failed", logger.Int64("user", owner), logger.Error(err))
		return id
	}
	if u.DisplayName != "" {
		id.DisplayName = u.DisplayName
	}
	if u.AvatarURL != "" {
		id.AvatarURL = u.AvatarURL
	}
	return id
}

// Anonymous is the placeholder identity for a hidden owner. It carries no user id.
func Anonymous() model.Identity {
	return model.Identity{DisplayName: AnonymousName, AvatarURL: DefaultAvatar}
}

// Label formats a ranking row for display.
func Label(id model.Identity, rankingName string) string {
	return fmt.Sprintf("%s - %s", id.DisplayName, rankingName)
}
