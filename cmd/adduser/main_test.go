package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-tracker/internal/auth"
	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func invoke(input string, args ...string) result {
	var out, errOut bytes.Buffer
	err := run(args, strings.NewReader(input), &out, &errOut)
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func lookup(t *testing.T, dbPath, login string) *models.User {
	t.Helper()
	db, err := storage.NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()
	u, err := db.GetUserByLogin(context.Background(), login)
	require.NoError(t, err)
	return u
}

func TestCreatesUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")

	res := invoke("", "-user", "ann", "-password", "secret1", "-name", "Ann Lee", "-db", dbPath)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "User ann (User) created successfully with ID 1")

	u := lookup(t, dbPath, "ann")
	assert.Equal(t, "Ann Lee", u.FullName)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.True(t, auth.CheckPassword("secret1", u.PasswordHash))
}

func TestCreatesAdminWithLoginAsName(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")

	res := invoke("", "-user", "boss", "-role", "admin", "-password", "boss1234", "-db", dbPath)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "User boss (Admin) created successfully")

	u := lookup(t, dbPath, "boss")
	assert.True(t, u.IsAdmin())
	assert.Equal(t, "boss", u.FullName)
}

func TestRejectsInvalidInput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown role", []string{"-user", "someone", "-role", "owner", "-password", "secret1"}, models.ErrInvalidRole},
		{"login with spaces", []string{"-user", "no spaces", "-password", "secret1"}, models.ErrLoginFormat},
		{"short password", []string{"-user", "weak", "-password", "abc1", "-db", dbPath}, auth.ErrPasswordTooShort},
		{"password without digit", []string{"-user", "weak", "-password", "secret", "-db", dbPath}, auth.ErrPasswordNoDigit},
		{"password without letter", []string{"-user", "weak", "-password", "123456", "-db", dbPath}, auth.ErrPasswordNoLetter},
		{"password with symbols", []string{"-user", "weak", "-password", "secret-1", "-db", dbPath}, auth.ErrPasswordCharset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, invoke("", tt.args...).err, tt.want)
		})
	}
}

func TestRejectsExistingLogin(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")

	require.NoError(t, invoke("", "-user", "ann", "-password", "secret1", "-db", dbPath).err)

	res := invoke("", "-user", "ANN", "-password", "secret1", "-db", dbPath)
	assert.EqualError(t, res.err, "user ANN already exists")
}

func TestMissingLoginPrintsUsage(t *testing.T) {
	res := invoke("", "-password", "secret1")
	assert.EqualError(t, res.err, "missing required flags: user")
	assert.Contains(t, res.stdout, "Usage:")
	assert.Contains(t, res.stderr, "-role")
}

func TestPromptsForPassword(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")

	res := invoke("typed1pass\n", "-user", "typist", "-db", dbPath)
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.stdout, "Password: \n"))
	assert.True(t, auth.CheckPassword("typed1pass", lookup(t, dbPath, "typist").PasswordHash))

	res = invoke("", "-user", "typist2", "-db", dbPath)
	assert.EqualError(t, res.err, "password cannot be empty")

	res = invoke("\n", "-user", "typist3", "-db", dbPath)
	assert.EqualError(t, res.err, "password cannot be empty")
}

func TestDBPathFromEnv(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("DB_PATH", dbPath)

	require.NoError(t, invoke("", "-user", "envuser", "-password", "secret1").err)
	assert.FileExists(t, dbPath)

	other := filepath.Join(t.TempDir(), "flag.db")
	require.NoError(t, invoke("", "-user", "flaguser", "-password", "secret1", "-db", other).err)
	assert.FileExists(t, other)
}

func TestOpenFailure(t *testing.T) {
	res := invoke("", "-user", "failuser", "-password", "secret1", "-db", t.TempDir())
	assert.ErrorContains(t, res.err, "failed to open database")
}

func TestUnknownFlag(t *testing.T) {
	res := invoke("", "-invalid")
	assert.ErrorContains(t, res.err, "flag provided but not defined")
}
