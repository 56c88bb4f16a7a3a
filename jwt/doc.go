// Package jwt turns access tokens into principals on the client side.
//
// A client normally cannot verify the backend's signature, so [Parser] decodes
// tokens unverified and trusts only their expiry. When a verification key is
// configured it pins the algorithm and checks the signature, issuer and
// audience as well. [CachingParser] memoizes decoded principals without ever
// extending their lifetime. [Signer] issues tokens for fake backends and
// benchmarks.
//
// # What this package must NOT do
//
//   - Perform network I/O.
//   - Import authpipe, session, refresh or tokenstore.
//   - Escalate a decode failure beyond [ErrInvalidToken].
package jwt
