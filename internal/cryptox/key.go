package cryptox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
)

// LoadKey resolves the credential key. An explicit key (normally from the
// ENCRYPTION_KEY environment variable) wins; otherwise keyFile is read, and
// created with mode 0600 when absent.
//
// A key that is present but malformed is an error. Generating a replacement
// would orphan every secret already encrypted with the old one.
func LoadKey(ctx context.Context, explicit, keyFile string, l logging.Logger) (*Fernet, error) {
	if explicit != "" {
		f, err := ParseKey(explicit)
		if err != nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
		}
		l.Info(ctx, "using encryption key from environment")
		return f, nil
	}

	data, err := os.ReadFile(keyFile)
	switch {
	case err == nil:
		f, perr := ParseKey(string(data))
		if perr != nil {
			return nil, fmt.Errorf("%s: %w", keyFile, perr)
		}
		l.Info(ctx, "using persistent encryption key", "file", keyFile)
		return f, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(keyFile), 0o770); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(keyFile, []byte(key), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	l.Warn(ctx, "generated new encryption key", "file", keyFile)

	return ParseKey(key)
}
