// Package httpclient provides a small HTTP client with typed error
// classification for springkit's registry and config-server transports.
//
// The client carries no retry logic. It reports each outcome as a *Error
// classified by ErrorCode, and callers decide the retry policy.
package httpclient
