// Package mpass is the server core of a credential store whose login never
// transports a password. Clients enroll with an SRP-6a salt and verifier and
// later prove knowledge of the password in a three-step exchange; the server
// answers with its own evidence and a signed session token backed by a
// revocable Redis marker. Repeated proof failures lock the account until an
// emailed unlock link is followed.
//
// Construct the engine through the Builder:
//
//	engine, err := mpass.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithIdentityStore(identityStore).
//		WithNotifier(notifier).
//		Build()
//
// The httpserver package exposes the engine over HTTP; cmd/mpassd is the
// ready-made binary.
package mpass
