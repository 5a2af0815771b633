package users

import (
	"context"
	"crypto/subtle"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/cryptox"
)

// dummyHash and dummySalt are verified against for unknown users so a miss
// costs the same PBKDF2 work as a hit.
const (
	dummyHash = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	dummySalt = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
)

// VerifyPassword checks password against the stored PBKDF2 hash, falling
// back to a legacy plaintext app_pass. A successful legacy login upgrades
// the record to a hash.
func (m *Manager) VerifyPassword(ctx context.Context, username, password string) bool {
	u, ok := m.GetUser(ctx, username)
	if !ok {
		cryptox.VerifyPassword(password, dummyHash, dummySalt)
		return false
	}

	if u.HasPasswordHash() {
		return cryptox.VerifyPassword(password, u.AppPassHash, u.AppPassSalt)
	}
	if u.LegacyAppPass == "" {
		m.logger.Warn(ctx, "no password data for user", "username", username)
		return false
	}

	m.logger.Warn(ctx, "plaintext password verification", "username", username)
	if subtle.ConstantTimeCompare([]byte(u.LegacyAppPass), []byte(password)) != 1 {
		return false
	}
	if err := m.upgradeLegacyPassword(ctx, username, password); err != nil {
		m.logger.Error(ctx, "legacy password upgrade failed", "username", username, "error", err)
	}
	return true
}

func (m *Manager) upgradeLegacyPassword(ctx context.Context, username, password string) error {
	hash, salt, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.load(ctx)
	rec, ok := users[username]
	if !ok || rec.LegacyAppPass != password {
		return nil
	}
	rec.AppPassHash, rec.AppPassSalt, rec.LegacyAppPass = hash, salt, ""
	users[username] = rec
	if err := m.save(ctx, users); err != nil {
		return err
	}
	m.logger.Info(ctx, "legacy password upgraded", "username", username)
	return nil
}

// ReadymodeCredentials returns the decrypted ReadyMode login of username.
// ok is false when the user is unknown or has no credentials stored.
func (m *Manager) ReadymodeCredentials(ctx context.Context, username string) (user, pass string, ok bool) {
	u, found := m.GetUser(ctx, username)
	if !found {
		return "", "", false
	}

	switch {
	case u.ReadymodePassEncrypted != "":
		p, err := m.cipher.DecryptString(u.ReadymodePassEncrypted)
		if err != nil {
			m.logger.Error(ctx, "readymode password decryption failed", "username", username, "error", err)
			return "", "", false
		}
		pass = p
	default:
		pass = u.LegacyReadymodePass
	}

	if u.ReadymodeUser == "" && pass == "" {
		return "", "", false
	}
	return u.ReadymodeUser, pass, true
}

// AssemblyAIKey returns the decrypted transcription API key of username.
func (m *Manager) AssemblyAIKey(ctx context.Context, username string) (string, bool) {
	u, found := m.GetUser(ctx, username)
	if !found || u.AssemblyAIKeyEncrypted == "" {
		return "", false
	}
	key, err := m.cipher.DecryptString(u.AssemblyAIKeyEncrypted)
	if err != nil {
		m.logger.Error(ctx, "api key decryption failed", "username", username, "error", err)
		return "", false
	}
	return key, true
}
