package hub

import (
	"sort"

	"github.com/Tisha7353/Resono/internal/model"

	"github.com/samber/lo"
)

// MonitorService gathers hub statistics for the monitoring API.
type MonitorService struct {
	hub *Hub
}

func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats returns a point-in-time view of the connection population. The
// user list and the connection counts come from the same registry, so the
// totals are mutually consistent.
func (ms *MonitorService) GetStats() model.MonitorResponse {
	users := ms.getUserPresence()

	totalConnections := lo.SumBy(users, func(u model.UserPresenceInfo) int {
		return u.Connections
	})

	status := "healthy"
	if len(users) == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status: status,
		Connections: model.ConnectionStats{
			TotalUsers:       len(users),
			TotalConnections: totalConnections,
		},
		Users: users,
	}
}

func (ms *MonitorService) getUserPresence() []model.UserPresenceInfo {
	ms.hub.clientsMu.RLock()
	defer ms.hub.clientsMu.RUnlock()

	users := make([]model.UserPresenceInfo, 0, len(ms.hub.clients))
	for userID, conns := range ms.hub.clients {
		clientIDs := lo.Keys(conns)
		sort.Strings(clientIDs)

		users = append(users, model.UserPresenceInfo{
			UserID:      userID,
			Activity:    ms.hub.presence.Activity(userID),
			Connections: len(conns),
			ClientIDs:   clientIDs,
		})
	}

	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}
