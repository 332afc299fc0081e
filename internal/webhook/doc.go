// Package webhook receives GitHub App webhook deliveries and runs the
// configured workflow against each one.
//
// # Request Flow
//
//  1. POST / arrives
//  2. Body size checked (413 if too large)
//  3. X-Hub-Signature-256 extracted (400 if missing)
//  4. HMAC-SHA256 computed over the raw body and compared in constant time
//     (400 if malformed, 401 if it does not match)
//  5. X-GitHub-Event extracted and the payload decoded (400 on failure)
//  6. Workflow executed; its completion value is returned as JSON with 200
//
// Nothing in the body is parsed before the signature has been verified.
//
// # Workflow Errors
//
//   - configuration: 200 with {"message": ...}, so GitHub does not redeliver
//   - missing data: 400
//   - anything else: 500
//
// # Other Routes
//
//   - GET /health mints an app token and calls GET /app on GitHub
//   - GET / answers "Hello, World!" for liveness probes
package webhook
