package events

// Event types follow the format: domain.action

// Vote events
const (
	EventTypeVoteCast = "vote.cast"
)

// Poll events
const (
	EventTypePollCreated       = "poll.created"
	EventTypePollStatusChanged = "poll.status_changed"
	EventTypePollClosed        = "poll.closed"
	EventTypePollDeleted       = "poll.deleted"
)

// Aggregate type constants
const (
	AggregateTypePoll = "poll"
)

// Redis channel prefixes for the live results feed
const (
	ChannelPrefixPoll = "channel:poll:"
	ChannelPollAll    = "channel:poll:*"
)

// Stream entry field holding the encoded envelope
const StreamFieldEnvelope = "envelope"
