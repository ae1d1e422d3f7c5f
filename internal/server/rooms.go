package server

import (
	"fmt"
	"slices"
	"sync"
)

// RoomName is the broadcast group name of a chat.
func RoomName(chatId int) string {
	return fmt.Sprintf("chat_%d", chatId)
}

// RoomIndex is the set of chats a connection receives broadcasts for. The
// owning connection mutates it; fan-out reads it from other goroutines.
type RoomIndex struct {
	mu    sync.RWMutex
	rooms map[int]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[int]struct{})}
}

func (ri *RoomIndex) Join(chatId int) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.rooms[chatId] = struct{}{}
}

func (ri *RoomIndex) Leave(chatId int) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	delete(ri.rooms, chatId)
}

func (ri *RoomIndex) IsJoined(chatId int) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	_, ok := ri.rooms[chatId]
	return ok
}

func (ri *RoomIndex) List() []int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	ids := make([]int, 0, len(ri.rooms))
	for id := range ri.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

func (ri *RoomIndex) Clear() {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	clear(ri.rooms)
}
