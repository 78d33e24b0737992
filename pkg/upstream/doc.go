// Package upstream defines the boundary to the wrapped chat provider.
//
// The session layer depends only on the capability interfaces in this
// package (Client, Conn, Conversation) and on the Outcome classification;
// it never inspects provider error text. Any conforming implementation,
// real or test double, is substitutable.
//
// The concrete implementation here (GeminiClient) speaks to the Gemini
// web endpoint over a cookie-authenticated session: there is no stable
// public API, so all failures are normalized into the typed errors in
// errors.go and classified into exactly one Outcome before any policy
// logic runs.
package upstream
