//go:build integration

// Package containers starts throwaway infrastructure for integration tests.
// Containers are shared by every suite of a test binary and reaped by Ryuk.
package containers

import (
	"sync"
	"testing"
)

type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	mongo    *MongoContainer
	sftp     *SFTPContainer
	kafka    *KafkaContainer
}

var (
	manager     *Manager
	managerOnce sync.Once
)

func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
	}
	return m.postgres
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}

func (m *Manager) GetMongo(t *testing.T) *MongoContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mongo == nil {
		m.mongo = NewMongoContainer(t)
	}
	return m.mongo
}

func (m *Manager) GetSFTP(t *testing.T) *SFTPContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sftp == nil {
		m.sftp = NewSFTPContainer(t)
	}
	return m.sftp
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kafka == nil {
		m.kafka = NewKafkaContainer(t)
	}
	return m.kafka
}
