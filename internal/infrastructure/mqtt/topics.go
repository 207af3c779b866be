package mqtt

import (
	"fmt"
	"time"
)

// Topic layout for the variable-server protocol.
//
// The variable server owns the varserver/ namespace:
//
//	varserver/req/<op>             daemon -> server RPC requests (find, get, set, notify)
//	varserver/reply/<request-id>   server -> daemon RPC replies
//	varserver/signal/<client-id>   server -> daemon variable signals
//	varserver/print/<session-id>   daemon -> server print session output
//
// The daemon publishes its own liveness under gpioctrl/:
//
//	gpioctrl/status/<client-id>    retained online/offline/crashed status
const (
	varserverPrefix = "varserver"
	statusPrefix    = "gpioctrl/status"
)

// RequestTopic returns the topic varserver RPC requests for op are published to.
func RequestTopic(op string) string {
	return fmt.Sprintf("%s/req/%s", varserverPrefix, op)
}

// ReplyTopic returns the topic the reply to a single request arrives on.
func ReplyTopic(requestID string) string {
	return fmt.Sprintf("%s/reply/%s", varserverPrefix, requestID)
}

// SignalTopic returns the topic this client receives variable signals on.
func SignalTopic(clientID string) string {
	return fmt.Sprintf("%s/signal/%s", varserverPrefix, clientID)
}

// PrintTopic returns the topic a print session's output is published to.
func PrintTopic(sessionID string) string {
	return fmt.Sprintf("%s/print/%s", varserverPrefix, sessionID)
}

// StatusTopic returns the retained daemon status topic.
func StatusTopic(clientID string) string {
	return fmt.Sprintf("%s/%s", statusPrefix, clientID)
}

// buildOnlinePayload builds the retained status payload for a live daemon.
func buildOnlinePayload(clientID string) string {
	return buildStatusPayload(clientID, "online")
}

// buildOfflinePayload builds the status payload for a clean shutdown.
func buildOfflinePayload(clientID string) string {
	return buildStatusPayload(clientID, "offline")
}

// buildCrashedPayload builds the LWT payload the broker publishes if the
// daemon dies without a clean disconnect.
func buildCrashedPayload(clientID string) string {
	return buildStatusPayload(clientID, "crashed")
}

func buildStatusPayload(clientID, state string) string {
	return fmt.Sprintf(`{"client_id":%q,"state":%q,"timestamp":%q}`,
		clientID, state, time.Now().UTC().Format(time.RFC3339))
}
