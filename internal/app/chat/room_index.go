package chat

import (
	"sort"

	"github.com/samber/lo"
)

// RoomIndex maps a room name to the connections currently joined to it.
// A room entry exists only while it has members. Members are returned in join order.
type RoomIndex struct {
	rooms map[string]map[string]uint64
	seq   uint64
}

// NewRoomIndex returns an empty RoomIndex.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[string]uint64)}
}

// Add inserts id into room, creating the room entry if needed. Re-adding keeps the original position.
func (x *RoomIndex) Add(room, id string) {
	members, ok := x.rooms[room]
	if !ok {
		members = make(map[string]uint64)
		x.rooms[room] = members
	}
	if _, exists := members[id]; exists {
		return
	}
	x.seq++
	members[id] = x.seq
}

// Remove deletes id from room and drops the room entry once it is empty.
func (x *RoomIndex) Remove(room, id string) {
	members, ok := x.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(x.rooms, room)
	}
}

// Has reports whether id is a member of room.
func (x *RoomIndex) Has(room, id string) bool {
	_, ok := x.rooms[room][id]
	return ok
}

// Members returns a snapshot of room's connection identifiers in join order.
func (x *RoomIndex) Members(room string) []string {
	members := x.rooms[room]
	ids := lo.Keys(members)
	sort.Slice(ids, func(i, j int) bool {
		return members[ids[i]] < members[ids[j]]
	})
	return ids
}

// Occupancy returns the member count of every non-empty room.
func (x *RoomIndex) Occupancy() map[string]int {
	return lo.MapValues(x.rooms, func(members map[string]uint64, _ string) int {
		return len(members)
	})
}
