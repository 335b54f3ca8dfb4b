package types

type contextKey string

// ClientAppKey locates the initialized *client.App in the command
// context.
const ClientAppKey contextKey = "clientApp"
