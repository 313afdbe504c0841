// Package transform defines the engine-side client interface for transform
// stages. Runner stages use a transform.Client to invoke the gke filter either
// in-process or as a gRPC plugin, with timeouts, retries, and close lifecycle.
package transform
