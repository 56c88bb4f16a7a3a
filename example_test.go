package authpipe_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authpipe"
	"github.com/MrEthical07/authpipe/authtest"
)

// ExampleNew shows client construction against a local server.
func ExampleNew() {
	srv := authtest.NewServer(authtest.WithUser("alice", "secret"))
	defer srv.Close()

	client, err := authpipe.New().
		WithBaseURL(srv.URL).
		WithHTTPClient(srv.Client()).
		WithSessionEndedHook(func(cause error) {
			fmt.Println("session ended")
		}).
		Build(context.Background())
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	fmt.Println(client.Status().IsAuthenticated())
	// Output: false
}

// ExampleClient_Execute shows a request that is refreshed and retried after
// the server invalidates the access token.
func ExampleClient_Execute() {
	ctx := context.Background()
	srv := authtest.NewServer(authtest.WithUser("alice", "secret"))
	defer srv.Close()

	client, _ := authpipe.New().
		WithBaseURL(srv.URL).
		WithHTTPClient(srv.Client()).
		Build(ctx)
	defer client.Close()

	if _, err := client.Login(ctx, "alice", "secret"); err != nil {
		fmt.Println(err)
		return
	}
	srv.ExpireAccess()

	resp, err := client.Execute(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+authtest.ResourcePath, nil)
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	resp.Body.Close()

	fmt.Println(resp.StatusCode, srv.RefreshCalls())
	// Output: 200 1
}

// ExampleErrSessionEnded shows how a caller detects the end of a session.
func ExampleErrSessionEnded() {
	ctx := context.Background()
	srv := authtest.NewServer(authtest.WithUser("alice", "secret"))
	defer srv.Close()

	client, _ := authpipe.New().
		WithBaseURL(srv.URL).
		WithHTTPClient(srv.Client()).
		Build(ctx)
	defer client.Close()

	if _, err := client.Login(ctx, "alice", "secret"); err != nil {
		fmt.Println(err)
		return
	}
	srv.ExpireAccess()
	srv.SetRefreshMode(authtest.RefreshReject)

	_, err := client.Get(ctx, authtest.ResourcePath)
	fmt.Println(errors.Is(err, authpipe.ErrSessionEnded), errors.Is(err, authpipe.ErrRefreshDenied))
	fmt.Println(client.Status().IsAuthenticated())
	// Output:
	// true true
	// false
}
