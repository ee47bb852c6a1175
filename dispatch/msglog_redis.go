package dispatch

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

type RedisMessageLog struct {
	rdclient *redis.Client
}

func NewRedisMessageLog(redisURL string, redisPW string, redisDB int) *RedisMessageLog {
	rdclient := redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: redisPW,
		DB:       redisDB,
	})
	return &RedisMessageLog{
		rdclient: rdclient,
	}
}

func msgLogKey(gameCode string) string {
	return fmt.Sprintf("comm:msglog:%s", gameCode)
}

func (r *RedisMessageLog) Append(gameCode string, line string) error {
	ctx := context.Background()
	key := msgLogKey(gameCode)
	_, err := r.rdclient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, line)
		pipe.LTrim(ctx, key, -maxLogLines, -1)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "Unable to append message log for game %s", gameCode)
	}
	return nil
}

func (r *RedisMessageLog) Load(gameCode string) ([]string, error) {
	lines, err := r.rdclient.LRange(context.Background(), msgLogKey(gameCode), 0, -1).Result()
	if err == redis.Nil {
		return []string{}, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "Unable to load message log for game %s", gameCode)
	}
	return lines, nil
}

func (r *RedisMessageLog) Remove(gameCode string) error {
	err := r.rdclient.Del(context.Background(), msgLogKey(gameCode)).Err()
	return err
}

func (r *RedisMessageLog) Close() error {
	return r.rdclient.Close()
}
