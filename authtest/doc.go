// Package authtest runs an in-process fake of the authentication backend.
//
// [Server] issues HS256 access tokens and opaque refresh tokens, serves a
// few protected resources, and counts every call. Failure modes for the
// refresh endpoint ([RefreshReject], [RefreshDrop], [RefreshError]) and
// [Server.ExpireAccess] let tests drive the client through every branch of
// its request pipeline.
package authtest
