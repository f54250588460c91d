package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	// 为原生Redis客户端添加别名，解决命名冲突
	goredis "github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"

	// 为redsync的redis接口包添加别名，避免冲突
	goredisadapter "github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// RedisClient 全局Redis客户端（导出，供外部包直接使用）
var RedisClient *goredis.Client

// Redisync 全局RedSync实例（用于RedLock分布式锁）
var Redisync *redsync.Redsync

// InitRedis 初始化Redis客户端与RedSync（需在程序启动时调用）
func InitRedis(addr, password string, db int) error {
	RedisClient = goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	// 校验Redis连接可用性
	if err := RedisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	adapterPool := goredisadapter.NewPool(RedisClient)
	Redisync = redsync.New(adapterPool)

	return nil
}

// Locker 互斥锁抽象：竞价串行化、鉴定师池、排期日历检查都要求临界区互斥。
// 生产环境走Redis分布式锁，测试环境走进程内锁。
type Locker interface {
	// Acquire 加锁，返回用于释放的句柄
	Acquire(ctx context.Context, key string, expire time.Duration) (Unlocker, error)
}

// Unlocker 锁释放句柄
type Unlocker interface {
	Release() error
}

// -------------------------- RedSync实现 --------------------------

// RedisLocker 基于RedSync的分布式锁实现
type RedisLocker struct {
	rs *redsync.Redsync
}

// NewRedisLocker 创建分布式锁实例（依赖InitRedis先完成初始化）
func NewRedisLocker() (*RedisLocker, error) {
	if Redisync == nil {
		return nil, errors.New("redsync not initialized")
	}
	return &RedisLocker{rs: Redisync}, nil
}

// Acquire 加锁（支持上下文超时/取消）
func (l *RedisLocker) Acquire(ctx context.Context, key string, expire time.Duration) (Unlocker, error) {
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(expire))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("redsync lock failed: %w", err)
	}
	return &redisUnlocker{mutex: mutex}, nil
}

type redisUnlocker struct {
	mutex *redsync.Mutex
}

// Release 释放锁
func (u *redisUnlocker) Release() error {
	ok, err := u.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("redsync unlock failed: %w", err)
	}
	if !ok {
		return errors.New("mutex has expired or not held")
	}
	return nil
}

// -------------------------- 进程内实现（测试用） --------------------------

// LocalLocker 进程内按key互斥的Locker实现
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLocker 创建进程内锁实例
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

// Acquire 加锁（阻塞直到获得该key的互斥量）
func (l *LocalLocker) Acquire(ctx context.Context, key string, expire time.Duration) (Unlocker, error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return &localUnlocker{m: m}, nil
}

type localUnlocker struct {
	m *sync.Mutex
}

// Release 释放锁
func (u *localUnlocker) Release() error {
	u.m.Unlock()
	return nil
}
