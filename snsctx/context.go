// Package snsctx carries invocation settings of the CLI down to the bus
// adapters.
package snsctx

import "context"

type verboseKey struct{}

// IsVerbose reports whether adapters should dump the raw traffic.
func IsVerbose(ctx context.Context) bool {
	verbose, _ := ctx.Value(verboseKey{}).(bool)
	return verbose
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, verboseKey{}, value)
}
