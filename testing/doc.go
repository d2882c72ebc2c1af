// Package testing provides testing utilities for code built on the go-bricks-fetch client.
//
// # Mocks
//
// The mocks subpackage provides testify-based implementations of the transport
// interfaces consumed by the client:
//   - httpclient.Doer (MockDoer)
//   - httpclient.Uploader (MockUploader)
//
// # Fixtures
//
// The fixtures subpackage builds canned *http.Response values (JSON, text, chunked
// bodies that return one fragment per read) and pre-configured mocks for common scenarios.
//
// # Usage
//
//	import (
//		"github.com/gaborage/go-bricks-fetch/testing/mocks"
//		"github.com/gaborage/go-bricks-fetch/testing/fixtures"
//	)
package testing
