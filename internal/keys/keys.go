// Package keys defines the Redis key schema shared by every component that
// touches the ephemeral store. All transient login state (attempt counters,
// lock markers, in-flight exchanges, verification codes, session markers)
// lives under these prefixes so that a horizontally scaled deployment sees a
// single consistent namespace.
package keys

// LoginAttempt is the consecutive-failure counter for an identity.
func LoginAttempt(email string) string {
	return "auth:login:attempt:" + email
}

// LoginExchange holds the serialized in-flight proof exchange for an identity.
func LoginExchange(email string) string {
	return "auth:login:exchange:" + email
}

// AccountUnlock is the lock marker; its value is the opaque unlock token.
func AccountUnlock(email string) string {
	return "auth:account:unlock:" + email
}

// EmailVerification holds the pending verification code for an address.
func EmailVerification(email string) string {
	return "auth:email:verification:" + email
}

// Session is the liveness marker for one issued session.
func Session(email, sessionID string) string {
	return "sessions:" + email + ":" + sessionID
}

// SessionPattern matches every session marker belonging to an identity.
func SessionPattern(email string) string {
	return "sessions:" + email + ":*"
}
