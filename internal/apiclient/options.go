package apiclient

import "context"

type requestOptions struct {
	anonymous         bool
	quietServerErrors bool
}

type optionsKey struct{}

func optionsFrom(ctx context.Context) requestOptions {
	opts, _ := ctx.Value(optionsKey{}).(requestOptions)
	return opts
}

func withOptions(ctx context.Context, update func(*requestOptions)) context.Context {
	opts := optionsFrom(ctx)
	update(&opts)
	return context.WithValue(ctx, optionsKey{}, opts)
}

// Anonymous sends requests made with ctx without the bearer token. A 401 on
// such a request is a plain credentials error and leaves the stored session
// alone.
func Anonymous(ctx context.Context) context.Context {
	return withOptions(ctx, func(o *requestOptions) { o.anonymous = true })
}

// QuietServerErrors suppresses the server error notification for requests
// made with ctx. The caller reports the failure itself if it has to.
func QuietServerErrors(ctx context.Context) context.Context {
	return withOptions(ctx, func(o *requestOptions) { o.quietServerErrors = true })
}
