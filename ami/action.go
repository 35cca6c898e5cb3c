package ami

import (
	"strconv"

	"github.com/google/uuid"
)

// OriginateTimeoutMS is the default Originate action timeout, in
// milliseconds, used when a caller doesn't override it.
const OriginateTimeoutMS = 30000

// Action is a Record plus the two reserved fields every outbound AMI
// action carries: Action (the command name) and ActionID (the
// correlation token). ActionID is a freshly generated canonical UUID
// assigned at construction time; it is the sole handle Connection.Invoke
// uses to match a Reaction back to this Action.
type Action struct {
	*Record
	name string
	id   string
}

// NewAction constructs an Action named name, restricted to allowedKeys.
// Concrete action constructors (NewLogin, NewPing, ...) are thin
// wrappers around this.
func NewAction(name string, allowedKeys ...string) *Action {
	return &Action{
		Record: NewRecord(allowedKeys...),
		name:   name,
		id:     uuid.NewString(),
	}
}

// Name returns the action's command name (the Action field).
func (a *Action) Name() string {
	return a.name
}

// ActionID returns the action's correlation token.
func (a *Action) ActionID() string {
	return a.id
}

// ToWire renders the action's reserved fields followed by its Record
// body, matching the wire framing the AMI protocol expects:
//
//	Action: <Name>\r\n
//	ActionID: <uuid>\r\n
//	<other fields...>
//	\r\n
func (a *Action) ToWire() []byte {
	out := make([]byte, 0, 64)
	out = append(out, "Action: "...)
	out = append(out, a.name...)
	out = append(out, lineTerm...)
	out = append(out, "ActionID: "...)
	out = append(out, a.id...)
	out = append(out, lineTerm...)
	out = append(out, a.Record.ToWire()...)
	return out
}

// NewLogin builds a Login action. AuthType/Key are left unset for
// plaintext login; use NewChallenge and ChallengeResponse for MD5 auth.
func NewLogin(username, secret string) *Action {
	a := NewAction("Login", "Username", "AuthType", "Secret", "Key", "Events")
	a.Set("Username", username)
	a.Set("Secret", secret)
	return a
}

// NewLoginMD5 builds a Login action with only Username set, leaving
// AuthType/Key for the caller to fill in from a Challenge action and
// ChallengeResponse so the plaintext secret is never sent.
func NewLoginMD5(username string) *Action {
	a := NewAction("Login", "Username", "AuthType", "Secret", "Key", "Events")
	a.Set("Username", username)
	return a
}

// NewLogoff builds a Logoff action.
func NewLogoff() *Action {
	return NewAction("Logoff")
}

// NewPing builds a Ping action.
func NewPing() *Action {
	return NewAction("Ping")
}

// NewChallenge builds a Challenge action requesting an MD5 challenge
// string, used together with ChallengeResponse to log in without
// sending a plaintext secret.
func NewChallenge() *Action {
	a := NewAction("Challenge", "AuthType")
	a.Set("AuthType", "MD5")
	return a
}

// NewEvents builds an Events action controlling whether the connection
// receives unsolicited events.
func NewEvents(mask string) *Action {
	a := NewAction("Events", "EventMask")
	if mask == "" {
		mask = "on"
	}
	a.Set("EventMask", mask)
	return a
}

// NewParkedCalls builds a ParkedCalls action, an EventList response.
func NewParkedCalls() *Action {
	return NewAction("ParkedCalls", "ParkingLot")
}

// NewExtensionState builds an ExtensionState action.
func NewExtensionState(exten, context string) *Action {
	a := NewAction("ExtensionState", "Exten", "Context")
	a.Set("Exten", exten)
	a.Set("Context", context)
	return a
}

// NewDeviceStateList builds a DeviceStateList action, an EventList response.
func NewDeviceStateList() *Action {
	return NewAction("DeviceStateList")
}

// NewGetvar builds a Getvar action reading a channel or global variable.
func NewGetvar(channel, variable string) *Action {
	a := NewAction("Getvar", "Channel", "Variable")
	a.Set("Channel", channel)
	a.Set("Variable", variable)
	return a
}

// NewListCommands builds a ListCommands action.
func NewListCommands() *Action {
	return NewAction("ListCommands")
}

// NewMailboxStatus builds a MailboxStatus action.
func NewMailboxStatus(mailbox string) *Action {
	a := NewAction("MailboxStatus", "Mailbox")
	a.Set("Mailbox", mailbox)
	return a
}

// NewMailboxCount builds a MailboxCount action.
func NewMailboxCount(mailbox string) *Action {
	a := NewAction("MailboxCount", "Mailbox")
	a.Set("Mailbox", mailbox)
	return a
}

// NewVoicemailBoxSummary builds a VoicemailBoxSummary action, an
// EventList response.
func NewVoicemailBoxSummary(context, mailbox string) *Action {
	a := NewAction("VoicemailBoxSummary", "Context", "Mailbox")
	a.Set("Context", context)
	a.Set("Mailbox", mailbox)
	return a
}

// NewVoicemailRefresh builds a VoicemailRefresh action.
func NewVoicemailRefresh() *Action {
	return NewAction("VoicemailRefresh", "Context", "Mailbox")
}

var originateKeys = []string{
	"Channel", "Context", "Exten", "Priority", "Timeout",
	"CallerID", "Account", "Application", "Data", "Async",
}

// NewOriginateToContext builds an Originate action that, on success,
// moves the new channel to context/exten/priority.
func NewOriginateToContext(channel, context, exten, priority string) *Action {
	a := NewAction("Originate", originateKeys...)
	a.Set("Channel", channel)
	a.Set("Context", context)
	a.Set("Exten", exten)
	a.Set("Priority", priority)
	a.Set("Timeout", strconv.Itoa(OriginateTimeoutMS))
	a.Set("Async", "false")
	return a
}

// NewOriginateToApplication builds an Originate action that, on
// success, runs application with data instead of moving to a
// context/exten/priority.
func NewOriginateToApplication(channel, application, data string) *Action {
	a := NewAction("Originate", originateKeys...)
	a.Set("Channel", channel)
	a.Set("Application", application)
	a.Set("Data", data)
	a.Set("Timeout", strconv.Itoa(OriginateTimeoutMS))
	a.Set("Async", "false")
	return a
}
