// Package secrets redacts credential material from tool results before they
// reach session transcripts, audit events, or logs.
//
// The built-in rules target the credential shapes a deployment pipeline
// actually handles: cloud access keys, session tokens, bearer headers,
// private key blocks, and credential-bearing connection URLs. An optional
// deep scan runs the gitleaks detector over the same content for coverage
// beyond the built-in rules.
package secrets
