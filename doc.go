// Package posauth is the authentication core of a point-of-sale backend:
// account registration with OTP verification, login, the signed-token
// lifecycle with revocation, and the password reset and change flows.
//
// The package is a library, not a server. It owns the security decisions
// and the Redis-backed ephemeral state (OTP sessions, revocation markers,
// reset credentials) and delegates everything else: the credential database
// behind UserRepository, notification delivery behind events.Publisher, and
// transport framing to the host process.
//
// Build a Service through the Builder:
//
//	svc, err := posauth.New().
//		WithSecret(secret).
//		WithRedis(client).
//		WithUserRepository(repo).
//		WithPublisher(pub).
//		WithLogger(log).
//		Build()
//
// All Service methods are safe for concurrent use. Errors are the sentinel
// values in errors.go; StatusCode maps them to HTTP statuses for transport
// layers.
package posauth
