// Ganymede bridges a chat HTTP API onto a cookie-authenticated Gemini
// web session.
//
// It keeps one upstream session healthy on the caller's behalf: account
// rotation, retry policy, a circuit breaker for cooldowns, and credential
// hot-reload, all behind a single ask endpoint.
//
// Usage:
//
//	# Start the server with the default configuration file
//	ganymede run
//
//	# Start with a custom configuration file
//	ganymede run --config /etc/ganymede/config.yaml
//
//	# Check a credential bundle without starting the server
//	ganymede cookies validate cookies.json
//
//	# Show version information
//	ganymede version
package main

func main() {
	Execute()
}
