/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"strings"
)

type passwordAPI interface {
	StaffPassword(ctx context.Context) (string, error)
	ChangeStaffPassword(ctx context.Context, newPassword string) error
	RequestAdminReset(ctx context.Context) (string, error)
	ResetAdminPassword(ctx context.Context, token, newPassword string) error
}

// Passwords manages the shared staff password and the admin reset flow.
// Callers gate it on an admin-like Session, except CompleteReset, whose
// emailed token is the credential.
type Passwords struct {
	cfg *Config
	api passwordAPI
}

func newPasswords(cfg *Config, api passwordAPI) *Passwords {
	return &Passwords{cfg: cfg, api: api}
}

func (p *Passwords) Staff(ctx context.Context) (string, error) {
	return p.api.StaffPassword(ctx)
}

func (p *Passwords) SetStaff(ctx context.Context, newPassword string) (string, error) {
	newPassword = strings.TrimSpace(newPassword)
	if newPassword == "" {
		return "", validationError("New staff password cannot be empty.")
	}

	if err := p.api.ChangeStaffPassword(ctx, newPassword); err != nil {
		return "", err
	}

	logf(p.cfg, "LOGIN: Staff password changed")

	return "Staff password updated.", nil
}

func (p *Passwords) RequestReset(ctx context.Context) (string, error) {
	msg, err := p.api.RequestAdminReset(ctx)
	if err != nil {
		return "", err
	}
	if msg == "" {
		msg = "If email is configured, a reset token has been sent."
	}
	return msg, nil
}

func (p *Passwords) CompleteReset(ctx context.Context, token, newPassword string) (string, error) {
	token = strings.TrimSpace(token)
	newPassword = strings.TrimSpace(newPassword)
	if token == "" || newPassword == "" {
		return "", validationError("Token and new admin password are required.")
	}

	if err := p.api.ResetAdminPassword(ctx, token, newPassword); err != nil {
		return "", err
	}

	logf(p.cfg, "LOGIN: Admin password reset")

	return "Admin password updated.", nil
}
