package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/despesas/internal/auth"
	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository/memory"
)

// newTestConnect はインメモリストアとローカルIdPでsignupperを構成する。
func newTestConnect(t *testing.T) (connectFunc, *memory.Store) {
	t.Helper()
	store := memory.New()
	idp, err := auth.NewLocalProvider(filepath.Join(t.TempDir(), "identities.yaml"))
	require.NoError(t, err)

	svc := auth.NewService(idp, store.Users(), store.Sessions(), auth.ServiceConfig{SessionMaxAge: 3600}, nil)
	return func(ctx context.Context) (signupper, func() error, error) {
		return svc, func() error { return nil }, nil
	}, store
}

func TestRun_Success(t *testing.T) {
	connect, store := newTestConnect(t)
	stdout := new(bytes.Buffer)

	args := []string{"-email", "admin@example.com", "-name", "Admin", "-role", "admin", "-password", "secret123"}
	err := run(context.Background(), args, new(bytes.Buffer), stdout, new(bytes.Buffer), connect)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "User admin@example.com created successfully")

	u, err := store.Users().FindByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.NotNil(t, u.AuthUID)
}

func TestRun_DuplicateUser(t *testing.T) {
	connect, _ := newTestConnect(t)
	args := []string{"-email", "dup@example.com", "-name", "Dup", "-password", "secret123"}

	require.NoError(t, run(context.Background(), args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer), connect))

	err := run(context.Background(), args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer), connect)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRun_MissingFlags(t *testing.T) {
	connect, _ := newTestConnect(t)
	stdout := new(bytes.Buffer)

	err := run(context.Background(), []string{"-password", "secret"}, new(bytes.Buffer), stdout, new(bytes.Buffer), connect)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required flags")
	assert.Contains(t, stdout.String(), "Usage:")
}

func TestRun_InvalidRole(t *testing.T) {
	connect, _ := newTestConnect(t)

	err := run(context.Background(), []string{"-email", "a@example.com", "-name", "A", "-role", "root", "-password", "x"},
		new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer), connect)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
}

func TestRun_InteractivePassword(t *testing.T) {
	connect, _ := newTestConnect(t)
	stdout := new(bytes.Buffer)
	stdin := bytes.NewBufferString("interactive_secret\n")

	err := run(context.Background(), []string{"-email", "i@example.com", "-name", "Interativo"}, stdin, stdout, new(bytes.Buffer), connect)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "Password: ")
	assert.Contains(t, stdout.String(), "created successfully")
}

func TestRun_EmptyPassword(t *testing.T) {
	connect, _ := newTestConnect(t)

	err := run(context.Background(), []string{"-email", "e@example.com", "-name", "E"}, bytes.NewBufferString("   \n"),
		new(bytes.Buffer), new(bytes.Buffer), connect)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password cannot be empty")
}

func TestRun_ConnectError(t *testing.T) {
	connect := func(ctx context.Context) (signupper, func() error, error) {
		return nil, nil, errors.New("database unavailable")
	}

	err := run(context.Background(), []string{"-email", "c@example.com", "-name", "C", "-password", "secret123"},
		new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer), connect)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
}
