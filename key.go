package tally

import "strings"

// ComponentKind packs the source-of-data enum into its low byte and the
// direction flags into the bits above it. Direction is part of the stored
// value and of key equality, but not of the enum itself.
type ComponentKind uint16

const (
	None ComponentKind = iota
	File
	Pipe
	TCP
	UDP
	TCP6
	UDP6
	UnixStream
	UnixDgram
	Syslog
	Network
	Internal
	Logstore
	Program
	SQL
	SunStreams
	UserTTY
	Group
	Center
	Host
	Global
	MongoDB
	Class
	RuleID
	Tag
	Severity
	Facility
	Sender
	SMTP
	AMQP
	STOMP
	Redis
	SNMP

	numComponentKinds
)

const (
	// KindMask extracts the source enum from a packed ComponentKind.
	KindMask ComponentKind = 0xff

	// FlagSource and FlagDestination mark which side of the pipeline the
	// component sits on. Mutually exclusive in legitimate usage; when both
	// are set, source wins.
	FlagSource      ComponentKind = 0x100
	FlagDestination ComponentKind = 0x200
)

var componentKindNames = [numComponentKinds]string{
	None:       "none",
	File:       "file",
	Pipe:       "pipe",
	TCP:        "tcp",
	UDP:        "udp",
	TCP6:       "tcp6",
	UDP6:       "udp6",
	UnixStream: "unix-stream",
	UnixDgram:  "unix-dgram",
	Syslog:     "syslog",
	Network:    "network",
	Internal:   "internal",
	Logstore:   "logstore",
	Program:    "program",
	SQL:        "sql",
	SunStreams: "sun-streams",
	UserTTY:    "usertty",
	Group:      "group",
	Center:     "center",
	Host:       "host",
	Global:     "global",
	MongoDB:    "mongodb",
	Class:      "class",
	RuleID:     "rule_id",
	Tag:        "tag",
	Severity:   "severity",
	Facility:   "facility",
	Sender:     "sender",
	SMTP:       "smtp",
	AMQP:       "amqp",
	STOMP:      "stomp",
	Redis:      "redis",
	SNMP:       "snmp",
}

// Kind returns the source enum with the direction flags stripped.
func (c ComponentKind) Kind() ComponentKind {
	return c & KindMask
}

// IsSource reports whether the source flag is set.
func (c ComponentKind) IsSource() bool {
	return c&FlagSource != 0
}

// IsDestination reports whether the destination flag is set.
func (c ComponentKind) IsDestination() bool {
	return c&FlagDestination != 0
}

// String returns the canonical name of the source enum, ignoring flags.
func (c ComponentKind) String() string {
	k := c.Kind()
	if k >= numComponentKinds {
		return "unknown"
	}
	return componentKindNames[k]
}

// Prefix returns the direction prefix for published output: "src." for
// sources, "dst." for destinations, empty otherwise. Source wins when
// both flags are set.
func (c ComponentKind) Prefix() string {
	switch {
	case c.IsSource():
		return "src."
	case c.IsDestination():
		return "dst."
	default:
		return ""
	}
}

// Key identifies a counter cluster. ID and Instance are plain strings;
// absent values are simply empty. Equality is componentwise on the full
// packed Source value, so the same enum registered as source and as
// destination yields two distinct clusters.
type Key struct {
	Source   ComponentKind
	ID       string
	Instance string
}

// String renders the key the way the publisher prints it:
// "<dir-and-source>(<id>[,<instance>])". The group meta-kind collapses to
// the bare words "source" or "destination"; the instance is printed only
// when both id and instance are non-empty.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Label())
	b.WriteByte('(')
	b.WriteString(k.ID)
	if k.ID != "" && k.Instance != "" {
		b.WriteByte(',')
		b.WriteString(k.Instance)
	}
	b.WriteByte(')')
	return b.String()
}

// Label renders the dir-and-source part alone, e.g. "dst.file" or
// "source" for a source group.
func (k Key) Label() string {
	if k.Source.Kind() == Group {
		switch {
		case k.Source.IsSource():
			return "source"
		case k.Source.IsDestination():
			return "destination"
		}
	}
	return k.Source.Prefix() + k.Source.String()
}
