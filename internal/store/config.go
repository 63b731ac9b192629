package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// 偏好配置键
const (
	KeyDefaultBrands      = "default_brands"
	KeyDefaultGranularity = "default_granularity"
)

// ErrConfigNotFound 配置项不存在
var ErrConfigNotFound = errors.New("config key not found")

// GetConfig 获取配置项
func (s *Store) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, key)
		}
		return "", err
	}
	return value, nil
}

// SetConfig 设置配置项
func (s *Store) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP
	`, key, value, value)
	return err
}

// GetDefaultBrands 已保存的默认品牌；未保存时 ok=false
func (s *Store) GetDefaultBrands() (brands []string, ok bool, err error) {
	value, err := s.GetConfig(KeyDefaultBrands)
	if errors.Is(err, ErrConfigNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(value), &brands); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", KeyDefaultBrands, err)
	}
	return brands, true, nil
}

// SetDefaultBrands 保存默认品牌
func (s *Store) SetDefaultBrands(brands []string) error {
	if brands == nil {
		brands = []string{}
	}
	data, err := json.Marshal(brands)
	if err != nil {
		return err
	}
	return s.SetConfig(KeyDefaultBrands, string(data))
}

// GetDefaultGranularity 已保存的默认粒度；未保存时返回空串
func (s *Store) GetDefaultGranularity() (string, error) {
	value, err := s.GetConfig(KeyDefaultGranularity)
	if errors.Is(err, ErrConfigNotFound) {
		return "", nil
	}
	return value, err
}

// SetDefaultGranularity 保存默认粒度
func (s *Store) SetDefaultGranularity(g string) error {
	return s.SetConfig(KeyDefaultGranularity, g)
}
