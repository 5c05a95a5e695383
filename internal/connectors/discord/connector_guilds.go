package discord

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// guildCache mirrors the channels and roles the gateway announces so category
// and role lookups rarely need a REST call.
type guildCache struct {
	mu       sync.RWMutex
	channels map[string]discordChannel
	roles    map[string]map[string]discordRole
}

func newGuildCache() *guildCache {
	return &guildCache{
		channels: map[string]discordChannel{},
		roles:    map[string]map[string]discordRole{},
	}
}

func (g *guildCache) loadGuild(guild discordGuildCreate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, channel := range append(guild.Channels, guild.Threads...) {
		if channel.GuildID == "" {
			channel.GuildID = guild.ID
		}
		g.channels[channel.ID] = channel
	}
	roles := make(map[string]discordRole, len(guild.Roles))
	for _, role := range guild.Roles {
		roles[role.ID] = role
	}
	g.roles[guild.ID] = roles
}

func (g *guildCache) putChannel(channel discordChannel) {
	if strings.TrimSpace(channel.ID) == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[channel.ID] = channel
}

func (g *guildCache) deleteChannel(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.channels, channelID)
}

func (g *guildCache) channel(channelID string) (discordChannel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	channel, ok := g.channels[channelID]
	return channel, ok
}

func (g *guildCache) putRole(guildID string, role discordRole) {
	if strings.TrimSpace(guildID) == "" || strings.TrimSpace(role.ID) == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	roles, ok := g.roles[guildID]
	if !ok {
		roles = map[string]discordRole{}
		g.roles[guildID] = roles
	}
	roles[role.ID] = role
}

func (g *guildCache) deleteRole(guildID, roleID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if roles, ok := g.roles[guildID]; ok {
		delete(roles, roleID)
	}
}

// hasRole reports whether the role is cached and whether the guild's roles
// are known at all.
func (g *guildCache) hasRole(guildID, roleID string) (found bool, known bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	roles, known := g.roles[guildID]
	if !known {
		return false, false
	}
	_, found = roles[roleID]
	return found, true
}

func (g *guildCache) setRoles(guildID string, list []discordRole) {
	roles := make(map[string]discordRole, len(list))
	for _, role := range list {
		roles[role.ID] = role
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles[guildID] = roles
}

func (c *Connector) lookupChannel(ctx context.Context, channelID string) (discordChannel, error) {
	if channel, ok := c.guilds.channel(channelID); ok {
		return channel, nil
	}
	var channel discordChannel
	if _, err := c.doJSON(ctx, http.MethodGet, "/channels/"+channelID, nil, &channel); err != nil {
		return discordChannel{}, fmt.Errorf("discord channel lookup: %w", err)
	}
	c.guilds.putChannel(channel)
	return channel, nil
}

// categoryName resolves the name of the category a channel sits in. Threads
// resolve through their parent channel. Channels outside any category yield "".
func (c *Connector) categoryName(ctx context.Context, channelID string) (string, error) {
	channel, err := c.lookupChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	if channel.isThread() && channel.ParentID != "" {
		channel, err = c.lookupChannel(ctx, channel.ParentID)
		if err != nil {
			return "", err
		}
	}
	if channel.Type == channelTypeCategory {
		return channel.Name, nil
	}
	if channel.ParentID == "" {
		return "", nil
	}
	category, err := c.lookupChannel(ctx, channel.ParentID)
	if err != nil {
		return "", err
	}
	if category.Type != channelTypeCategory {
		return "", nil
	}
	return category.Name, nil
}

// RoleExists checks the guild's roles, fetching them once when the gateway has
// not delivered the guild yet.
func (c *Connector) RoleExists(ctx context.Context, guildID, roleID string) (bool, error) {
	guildID = strings.TrimSpace(guildID)
	roleID = strings.TrimSpace(roleID)
	if guildID == "" || roleID == "" {
		return false, nil
	}
	if found, known := c.guilds.hasRole(guildID, roleID); known {
		return found, nil
	}
	var roles []discordRole
	if _, err := c.doJSON(ctx, http.MethodGet, "/guilds/"+guildID+"/roles", nil, &roles); err != nil {
		return false, fmt.Errorf("discord role lookup: %w", err)
	}
	c.guilds.setRoles(guildID, roles)
	found, _ := c.guilds.hasRole(guildID, roleID)
	return found, nil
}
