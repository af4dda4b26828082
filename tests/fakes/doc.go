// Package fakes provides test doubles for the Team Password Manager API.
//
// FakeTPM is an in-memory TPM instance served over TLS by httptest. It
// implements the v4 endpoints the client uses (search with Link paging,
// get, create, update, delete and generate_password), can require Basic or
// HMAC credentials, and records every request so tests can assert on what
// was sent. It does not import the client, so any package can use it.
//
// Usage:
//
//	f := fakes.NewFakeTPM(t)
//	f.RequireBasic("ansible", "hunter22")
//	f.AddProject(map[string]interface{}{"name": "infra"})
//	client, _ := tpm.New(tpm.Config{Host: f.Host(), Basic: &tpm.BasicAuth{...}})
//	// Run client calls, then inspect f.Requests() or f.Password(id).
package fakes
