package store

import (
    "context"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RedisSurfaces caches rendered surfaces in Redis with a TTL, so a restarted
// process (or a sibling instance) can serve already-rendered pages.
type RedisSurfaces struct {
    client *redis.Client
    ttl    time.Duration
}

func NewRedisSurfaces(redisURL string, ttl time.Duration) (*RedisSurfaces, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    if ttl <= 0 { ttl = time.Hour }
    return &RedisSurfaces{client: c, ttl: ttl}, nil
}

func (s *RedisSurfaces) Close() error { return s.client.Close() }

func (s *RedisSurfaces) key(sessionID string, page int) string {
    return fmt.Sprintf("session:%s:surface:%d", sessionID, page)
}

func (s *RedisSurfaces) indexKey(sessionID string) string {
    return fmt.Sprintf("session:%s:surfaces", sessionID)
}

func (s *RedisSurfaces) Save(ctx context.Context, sessionID string, page int, sf Surface) error {
    key := s.key(sessionID, page)
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, key, map[string]interface{}{
        "jpeg":   sf.JPEG,
        "width":  sf.Width,
        "height": sf.Height,
    })
    pipe.Expire(ctx, key, s.ttl)
    pipe.SAdd(ctx, s.indexKey(sessionID), page)
    pipe.Expire(ctx, s.indexKey(sessionID), s.ttl)
    _, err := pipe.Exec(ctx)
    return err
}

func (s *RedisSurfaces) Get(ctx context.Context, sessionID string, page int) (Surface, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(sessionID, page)).Result()
    if err != nil { return Surface{}, false, err }
    if len(res) == 0 { return Surface{}, false, nil }
    sf := Surface{JPEG: []byte(res["jpeg"])}
    sf.Width, _ = strconv.Atoi(res["width"])
    sf.Height, _ = strconv.Atoi(res["height"])
    return sf, true, nil
}

func (s *RedisSurfaces) DeleteSession(ctx context.Context, sessionID string) error {
    pages, err := s.client.SMembers(ctx, s.indexKey(sessionID)).Result()
    if err != nil { return err }
    pipe := s.client.TxPipeline()
    for _, p := range pages {
        if n, err := strconv.Atoi(p); err == nil {
            pipe.Del(ctx, s.key(sessionID, n))
        }
    }
    pipe.Del(ctx, s.indexKey(sessionID))
    _, err = pipe.Exec(ctx)
    return err
}
