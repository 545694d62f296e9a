/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePasswordAPI struct {
	staff      string
	resetMsg   string
	resetToken string
	admin      string
	err        error
	calls      int
}

func (f *fakePasswordAPI) StaffPassword(context.Context) (string, error) {
	f.calls++
	return f.staff, f.err
}

func (f *fakePasswordAPI) ChangeStaffPassword(_ context.Context, pw string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.staff = pw
	return nil
}

func (f *fakePasswordAPI) RequestAdminReset(context.Context) (string, error) {
	f.calls++
	return f.resetMsg, f.err
}

func (f *fakePasswordAPI) ResetAdminPassword(_ context.Context, token, pw string) error {
	f.calls++
	if token != f.resetToken {
		return fetchError(400, "Invalid or expired token", nil)
	}
	f.admin = pw
	return nil
}

func TestPasswords_SetStaff(t *testing.T) {
	api := &fakePasswordAPI{staff: "old"}
	p := newPasswords(&Config{}, api)

	_, err := p.SetStaff(context.Background(), "   ")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "New staff password cannot be empty.", messageOf(err))
	assert.Zero(t, api.calls, "blank passwords are refused locally")

	msg, err := p.SetStaff(context.Background(), "  new one ")
	require.NoError(t, err)
	assert.Equal(t, "Staff password updated.", msg)
	assert.Equal(t, "new one", api.staff)

	pw, err := p.Staff(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new one", pw)
}

func TestPasswords_SetStaffBackendError(t *testing.T) {
	api := &fakePasswordAPI{staff: "old", err: fetchError(500, "Database unavailable", nil)}
	p := newPasswords(&Config{}, api)

	_, err := p.SetStaff(context.Background(), "new")
	require.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, "Database unavailable", messageOf(err))
	assert.Equal(t, "old", api.staff)
}

func TestPasswords_RequestReset(t *testing.T) {
	api := &fakePasswordAPI{}
	p := newPasswords(&Config{}, api)

	msg, err := p.RequestReset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "If email is configured, a reset token has been sent.", msg)

	api.resetMsg = "Reset email sent to a***@example.com"
	msg, err = p.RequestReset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Reset email sent to a***@example.com", msg)
}

func TestPasswords_CompleteReset(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		password string
	}{
		{"no token", "", "secret"},
		{"blank token", "  ", "secret"},
		{"no password", "tok", ""},
		{"blank password", "tok", " \t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakePasswordAPI{resetToken: "tok"}
			p := newPasswords(&Config{}, api)

			_, err := p.CompleteReset(context.Background(), tt.token, tt.password)
			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, "Token and new admin password are required.", messageOf(err))
			assert.Zero(t, api.calls)
		})
	}

	api := &fakePasswordAPI{resetToken: "tok"}
	p := newPasswords(&Config{}, api)

	_, err := p.CompleteReset(context.Background(), "wrong", "secret")
	require.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, "Invalid or expired token", messageOf(err))

	msg, err := p.CompleteReset(context.Background(), " tok ", " secret ")
	require.NoError(t, err)
	assert.Equal(t, "Admin password updated.", msg)
	assert.Equal(t, "secret", api.admin)
}
