package store

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RedisStatus records session status in a Redis hash.
type RedisStatus struct {
    client *redis.Client
    keyNS  string
}

func NewRedisStatus(redisURL string) (*RedisStatus, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    return &RedisStatus{client: c, keyNS: "session"}, nil
}

func (s *RedisStatus) key(sessionID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, sessionID) }

func (s *RedisStatus) Set(ctx context.Context, sessionID string, st SessionStatus) error {
    m := map[string]interface{}{
        "status":   st.Status,
        "progress": st.Progress,
        "message":  st.Message,
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    if st.Metadata != nil {
        b, _ := json.Marshal(st.Metadata)
        m["metadata"] = string(b)
    }
    return s.client.HSet(ctx, s.key(sessionID), m).Err()
}

func (s *RedisStatus) Get(ctx context.Context, sessionID string) (SessionStatus, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
    if err != nil { return SessionStatus{}, false, err }
    if len(res) == 0 { return SessionStatus{}, false, nil }
    st := SessionStatus{}
    st.Status = res["status"]
    st.Message = res["message"]
    if p, ok := res["progress"]; ok && p != "" {
        var pi int
        fmt.Sscan(p, &pi)
        st.Progress = pi
    }
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    if v := res["metadata"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Metadata)
    }
    return st, true, nil
}

func (s *RedisStatus) Close() error { return s.client.Close() }
