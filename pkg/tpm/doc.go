// Package tpm is a client for the Team Password Manager REST API (v4).
//
// The package covers the pieces every caller needs and nothing else:
//
//   - Signer computes HMAC request headers from a public/private key pair
//   - Transport issues signed HTTPS requests, follows Link-header
//     pagination and maps unexpected statuses to *OpenURLError
//   - PasswordClient and ProjectClient expose the resource verbs
//     (GetByID, Find, FindFirst, Generate, Create, Update, Delete)
//
// Every call is a live round-trip. Nothing is cached: entries carry secret
// material and are only held in memory for as long as the caller keeps them.
//
// # Authentication
//
// Config carries at most two credential sets. HMAC keys win when both the
// public and the private key are present; otherwise Basic credentials are
// sent on every request (never negotiated):
//
//	client, err := tpm.New(tpm.Config{
//	    Host:      "tpm.example.com/tpm",
//	    SSLVerify: true,
//	    HMAC:      &tpm.HMACAuth{PublicKey: pub, PrivateKey: priv},
//	})
//	if err != nil {
//	    return err
//	}
//	entry, err := client.Passwords().GetByID(ctx, 42)
//
// # Errors
//
// Transport failures are *OpenURLError. Resource verbs wrap them in
// *OperationError whose Op names the verb that failed; use IsOp to test
// for a verb anywhere in the chain and StatusCode to recover the HTTP
// status.
package tpm
