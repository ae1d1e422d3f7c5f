package server

// broadcastRoom queues msg on every connection joined to chatId except skip.
func (g *Gateway) broadcastRoom(chatId int, msg *ServerMessage, skip *Client) int {
	var delivered int
	for _, c := range g.snapshotClients() {
		if c == skip || !c.rooms.IsJoined(chatId) {
			continue
		}
		if c.queueMessage(msg) {
			delivered++
		}
	}

	return delivered
}

// broadcastAll queues msg on every authenticated connection.
func (g *Gateway) broadcastAll(msg *ServerMessage) {
	for _, c := range g.snapshotClients() {
		c.queueMessage(msg)
	}
}

func (g *Gateway) broadcastOnlineUsers() {
	g.broadcastAll(NewOnlineUsers(g.presence.ListOnline()))
}
