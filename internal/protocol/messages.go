package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Worlds          []string       `json:"worlds"`
	ActiveWorld     string         `json:"active_world,omitempty"`
	Day             int            `json:"day"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	CatalogsDigest string `json:"catalogs_digest"`
	TuningDigest   string `json:"tuning_digest,omitempty"`
	Races          int    `json:"races"`
	Classes        int    `json:"classes"`
}

// ACT (client -> server): one action per message.
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Action          Action `json:"action"`
}

// RESULT (server -> client): the outcome of one ACT.
type ResultMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	AckFor          string          `json:"ack_for"`
	OK              bool            `json:"ok"`
	Code            string          `json:"code,omitempty"`
	Message         string          `json:"message,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}
