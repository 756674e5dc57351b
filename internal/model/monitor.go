package model

// MonitorResponse is the full payload returned by the monitor API.
type MonitorResponse struct {
	Status      string             `json:"status"`
	Connections ConnectionStats    `json:"connections"`
	Users       []UserPresenceInfo `json:"users"`
}

// ConnectionStats summarises the realtime connection population.
type ConnectionStats struct {
	TotalUsers       int `json:"totalUsers"`
	TotalConnections int `json:"totalConnections"`
}

// UserPresenceInfo describes one online user and their open connections.
type UserPresenceInfo struct {
	UserID      string   `json:"userId"`
	Activity    string   `json:"activity"`
	Connections int      `json:"connections"`
	ClientIDs   []string `json:"clientIds"`
}
