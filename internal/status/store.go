package status

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adnxnn/ILCT-Platform-sub001/internal/models"
)

const roomTTL = 24 * time.Hour

// Store mirrors room metadata to Redis so the REST surface (and other
// services) can answer status queries without touching the sync core. Reads
// hit an in-memory cache first and fall back to Redis.
type Store struct {
	rdb   *redis.Client
	mu    sync.RWMutex
	cache map[string]*models.RoomInfo
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, cache: make(map[string]*models.RoomInfo)}
}

// RecordRoom writes the room's metadata hash and refreshes its expiry.
func (s *Store) RecordRoom(ctx context.Context, info models.RoomInfo) error {
	s.mu.Lock()
	s.cache[info.RoomID] = cloneRoomInfo(&info)
	s.mu.Unlock()

	key := "room:" + info.RoomID
	if err := s.rdb.HSet(ctx, key, map[string]interface{}{
		"roomId":    info.RoomID,
		"host":      info.Host,
		"status":    info.Status,
		"createdAt": info.CreatedAt,
	}).Err(); err != nil {
		return fmt.Errorf("failed to write room status: %w", err)
	}
	return s.rdb.Expire(ctx, key, roomTTL).Err()
}

// SetParticipants updates the live participant count for a room.
func (s *Store) SetParticipants(ctx context.Context, roomID string, count int) error {
	s.mu.Lock()
	if info, ok := s.cache[roomID]; ok {
		info.Participants = count
	}
	s.mu.Unlock()

	return s.rdb.HSet(ctx, "room:"+roomID, "participants", count).Err()
}

// GetRoomStatus returns the room's metadata, preferring the local cache.
func (s *Store) GetRoomStatus(ctx context.Context, roomID string) (*models.RoomInfo, error) {
	s.mu.RLock()
	if info, ok := s.cache[roomID]; ok {
		out := cloneRoomInfo(info)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	info, err := s.fetchFromRedis(ctx, roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[roomID] = info
	s.mu.Unlock()

	return cloneRoomInfo(info), nil
}

func (s *Store) fetchFromRedis(ctx context.Context, roomID string) (*models.RoomInfo, error) {
	result := s.rdb.HGetAll(ctx, "room:"+roomID)
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", result.Err())
	}

	roomMap := result.Val()
	if len(roomMap) == 0 {
		return nil, fmt.Errorf("room not found")
	}

	participants, _ := strconv.Atoi(roomMap["participants"])
	return &models.RoomInfo{
		RoomID:       roomMap["roomId"],
		Host:         roomMap["host"],
		Status:       roomMap["status"],
		Participants: participants,
		CreatedAt:    roomMap["createdAt"],
	}, nil
}

func cloneRoomInfo(src *models.RoomInfo) *models.RoomInfo {
	if src == nil {
		return nil
	}
	copy := *src
	return &copy
}
