package database

// TrackedRole is a Discord role whose name is kept in sync with the local
// time of Timezone. RoleID is the Discord snowflake assigned on creation.
type TrackedRole struct {
	RoleID   int64  `db:"id"`
	GuildID  int64  `db:"guild_id"`
	Timezone string `db:"timezone"`
}

// Selector picks the roles of a guild that Remove deletes.
type Selector struct {
	all      bool
	timezone string
}

// SelectAll matches every role of the guild.
func SelectAll() Selector {
	return Selector{all: true}
}

// SelectTimezone matches roles tracking the given canonical zone name.
func SelectTimezone(name string) Selector {
	return Selector{timezone: name}
}

// All reports whether the selector matches every role.
func (s Selector) All() bool { return s.all }

// Timezone returns the zone name matched by a specific selector.
func (s Selector) Timezone() string { return s.timezone }
