// Package auth holds the stateless building blocks of authentication:
// the bcrypt credential hasher and the scoped JWT codec used for access,
// refresh, and email-verification tokens.
//
// Tokens of different purposes share one secret and algorithm and are told
// apart only by their scope claim, so every decode path that consumes a
// token for a particular purpose must check the scope.
package auth
