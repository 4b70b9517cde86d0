package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	guestCartKeyPrefix = "guest_cart:"
	guestCartTTL       = 30 * 24 * time.Hour
)

// GuestCartStore persists carts for visitors who have not signed in, keyed
// by an opaque token the client keeps. A missing or corrupted entry reads
// as an empty cart; the store never fails a read over bad data.
type GuestCartStore interface {
	Get(ctx context.Context, token string) ([]model.GuestCartLine, error)
	Save(ctx context.Context, token string, lines []model.GuestCartLine) error
	Clear(ctx context.Context, token string) error
}

type redisGuestCartStore struct {
	client *redis.Client
}

func NewRedisGuestCartStore(client *redis.Client) GuestCartStore {
	return &redisGuestCartStore{client: client}
}

func (s *redisGuestCartStore) Get(ctx context.Context, token string) ([]model.GuestCartLine, error) {
	data, err := s.client.Get(ctx, guestCartKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return []model.GuestCartLine{}, nil
	}
	if err != nil {
		logger.Error("Failed to read guest cart from redis", err, map[string]interface{}{
			"token": token,
		})
		return nil, err
	}

	return decodeGuestCartLines(token, []byte(data)), nil
}

func (s *redisGuestCartStore) Save(ctx context.Context, token string, lines []model.GuestCartLine) error {
	if len(lines) == 0 {
		return s.Clear(ctx, token)
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, guestCartKey(token), data, guestCartTTL).Err(); err != nil {
		logger.Error("Failed to write guest cart to redis", err, map[string]interface{}{
			"token": token,
		})
		return err
	}
	return nil
}

func (s *redisGuestCartStore) Clear(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, guestCartKey(token)).Err(); err != nil {
		logger.Error("Failed to clear guest cart in redis", err, map[string]interface{}{
			"token": token,
		})
		return err
	}
	return nil
}

func guestCartKey(token string) string {
	return fmt.Sprintf("%s%s", guestCartKeyPrefix, token)
}

// decodeGuestCartLines tolerates corrupted payloads: a cart that cannot be
// decoded is treated as empty rather than blocking the user.
func decodeGuestCartLines(token string, data []byte) []model.GuestCartLine {
	var lines []model.GuestCartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		logger.Warn("Discarding corrupted guest cart payload", map[string]interface{}{
			"token": token,
		})
		return []model.GuestCartLine{}
	}
	if lines == nil {
		return []model.GuestCartLine{}
	}
	return lines
}

// memoryGuestCartStore is the in-process fallback used in tests and when
// redis is not configured.
type memoryGuestCartStore struct {
	mu    sync.RWMutex
	carts map[string][]model.GuestCartLine
}

func NewMemoryGuestCartStore() GuestCartStore {
	return &memoryGuestCartStore{carts: make(map[string][]model.GuestCartLine)}
}

func (s *memoryGuestCartStore) Get(_ context.Context, token string) ([]model.GuestCartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines, ok := s.carts[token]
	if !ok {
		return []model.GuestCartLine{}, nil
	}
	out := make([]model.GuestCartLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *memoryGuestCartStore) Save(_ context.Context, token string, lines []model.GuestCartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(lines) == 0 {
		delete(s.carts, token)
		return nil
	}
	stored := make([]model.GuestCartLine, len(lines))
	copy(stored, lines)
	s.carts[token] = stored
	return nil
}

func (s *memoryGuestCartStore) Clear(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, token)
	return nil
}

// The helpers below operate on a line slice in memory; stores only persist
// what these produce.

// AddLine bumps the quantity for a product, appending a new line when the
// product is not in the cart yet.
func AddLine(lines []model.GuestCartLine, productID uint, delta int) []model.GuestCartLine {
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += delta
			return lines
		}
	}
	return append(lines, model.GuestCartLine{ProductID: productID, Quantity: delta})
}

// DecreaseLine lowers the quantity for a product and drops the line when it
// reaches zero. Unknown products are a no-op.
func DecreaseLine(lines []model.GuestCartLine, productID uint) []model.GuestCartLine {
	for i := range lines {
		if lines[i].ProductID != productID {
			continue
		}
		lines[i].Quantity--
		if lines[i].Quantity <= 0 {
			return append(lines[:i], lines[i+1:]...)
		}
		return lines
	}
	return lines
}

// RemoveLine drops a product's line entirely regardless of quantity.
func RemoveLine(lines []model.GuestCartLine, productID uint) []model.GuestCartLine {
	for i := range lines {
		if lines[i].ProductID == productID {
			return append(lines[:i], lines[i+1:]...)
		}
	}
	return lines
}

// SumQuantities is the badge count for a guest cart.
func SumQuantities(lines []model.GuestCartLine) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}
