package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	s := &MinioStorage{publicBase: "https://img.example.com"}
	assert.Equal(t, "https://img.example.com/42/a.jpg", s.PublicURL("42/a.jpg"))
}

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Version   string
		Statement []struct {
			Effect   string
			Action   string
			Resource string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("images")), &policy))

	require.Len(t, policy.Statement, 1)
	assert.Equal(t, "Allow", policy.Statement[0].Effect)
	assert.Equal(t, "s3:GetObject", policy.Statement[0].Action)
	assert.Equal(t, "arn:aws:s3:::images/*", policy.Statement[0].Resource)
}
