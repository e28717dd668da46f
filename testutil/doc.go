// Package testutil provides a fake CRM backend for tests.
//
// Backend is a gin engine behind httptest.Server that serves paginated
// resources per location and lets a test inject failures:
//
//	b := testutil.NewBackend(t)
//	b.Seed("jobs", "guilford", 25)
//	b.Fail("/jobs", 2, http.StatusServiceUnavailable)  // next two requests fail
//	b.Unauthorized("/jobs")                             // every request gets 401
//
// The server is closed automatically when the test ends.
package testutil
