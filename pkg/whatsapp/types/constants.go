package types

const (
	APIBase           = "/api"
	EndpointSendText  = "/sendText"
	EndpointSendImage = "/sendImage"
	EndpointSendFile  = "/sendFile"
	EndpointSessions  = "/sessions"
	EndpointAuthQR    = "/auth/qr"
	EndpointGroups    = "/groups"
	EndpointWebsocket = "/ws"
)

// WAHA event names
const (
	EventMessage    = "message"
	EventMessageAny = "message.any"
	EventSession    = "session.status"
)

// HeaderAPIKey authenticates every request to WAHA.
const HeaderAPIKey = "X-Api-Key"
