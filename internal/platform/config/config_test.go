// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/atelier/internal/platform/config"
)

/*
TestLoad_Defaults verifies that only JWT_SECRET is mandatory.
*/
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, config.StorageLocal, cfg.StorageDriver)
	assert.Equal(t, 100, cfg.CacheCapacity)
	assert.Positive(t, cfg.TranscodeConcurrency)
	assert.True(t, cfg.IsDevelopment())
}

/*
TestLoad_Rejects covers configurations that must stop startup.
*/
func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"unknown driver", map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "ftp"}},
		{"s3 without bucket", map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "s3", "S3_ENDPOINT": "http://minio:9000"}},
		{"zero capacity", map[string]string{"JWT_SECRET": "s", "CACHE_CAPACITY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestConfig_AllowedOrigins(t *testing.T) {
	cfg := &config.Config{ExtraOrigins: " https://studio.example , ,https://admin.studio.example"}
	assert.Equal(t, []string{"https://studio.example", "https://admin.studio.example"}, cfg.AllowedOrigins())
}
