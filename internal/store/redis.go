package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stillwater-health/telesession/config"
)

const (
	apptKeyPrefix  = "appt:"
	peersKeySuffix = ":peers"
	peersTTL       = 24 * time.Hour
)

// Redis implements AppointmentStore and Presence against a single
// redis instance. The handle is owned by main and injected; there is
// no package-level client.
type Redis struct {
	client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// GetAppointment reads the appointment JSON blob written by the
// practice app's scheduling sync.
func (r *Redis) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	data, err := r.client.Get(ctx, apptKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}

	var appt Appointment
	if err := json.Unmarshal([]byte(data), &appt); err != nil {
		return nil, fmt.Errorf("parse appointment %s: %w", id, err)
	}
	return &appt, nil
}

func (r *Redis) AddPeer(ctx context.Context, roomID, socketID string) error {
	key := "room:" + roomID + peersKeySuffix
	if err := r.client.SAdd(ctx, key, socketID).Err(); err != nil {
		return fmt.Errorf("add peer to %s: %w", key, err)
	}
	// Expiry guards against leaked sets if the process dies mid-session.
	r.client.Expire(ctx, key, peersTTL)
	return nil
}

func (r *Redis) RemovePeer(ctx context.Context, roomID, socketID string) error {
	key := "room:" + roomID + peersKeySuffix
	if err := r.client.SRem(ctx, key, socketID).Err(); err != nil {
		return fmt.Errorf("remove peer from %s: %w", key, err)
	}
	return nil
}
