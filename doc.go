// Package authpipe is a client for APIs secured by short-lived access tokens
// and longer-lived refresh tokens.
//
// # Request pipeline
//
// [Client.Execute] attaches the current access token as a bearer credential
// and sends the request. When the server answers 401 the client refreshes
// the credentials through a single-flight coordinator shared by every
// concurrent caller, then re-issues the request exactly once. If the refresh
// is denied (or the refresh endpoint cannot be reached) the credentials are
// cleared, the [SessionEndedHook] fires once, and the call fails with
// [ErrSessionEnded].
//
// # Session state
//
// [Client.Status] derives the session status from the stored access token;
// [Client.Subscribe] registers callbacks that run on every credential change.
//
// # Construction
//
//	client, err := authpipe.New().
//		WithConfig(cfg).
//		WithLogger(logger).
//		WithSessionEndedHook(func(cause error) { showLogin() }).
//		Build(ctx)
//
// # Sub-packages
//
//   - tokenstore: credential store and key-value backends.
//   - jwt: access-token decoding and signing.
//   - session: status derivation and change notification.
//   - refresh: single-flight refresh coordinator.
//   - middleware: outbound round-trippers.
//   - authtest: in-process fake backend for tests.
package authpipe
