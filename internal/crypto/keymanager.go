package crypto

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// KeyFileName is the on-disk fallback location for the AEAD key,
// relative to DATA_DIR, consulted when FERNET_KEY is unset.
const KeyFileName = "core.key"

// LoadKey resolves the 32-byte AEAD key: explicit argument first,
// then FERNET_KEY, then the on-disk key
// file under dataDir, then, only if none of those are present, a
// freshly generated key that is persisted to the key file and logged
// once.
func LoadKey(explicit string, envKey string, dataDir string, log *zap.Logger) ([]byte, error) {
	if explicit != "" {
		key, err := decodeKey(explicit)
		if err != nil {
			return nil, fmt.Errorf("%w: explicit key argument", ErrKeyInvalid)
		}
		return key, nil
	}

	if envKey != "" {
		key, err := decodeKey(envKey)
		if err != nil {
			return nil, fmt.Errorf("%w: FERNET_KEY environment variable", ErrKeyInvalid)
		}
		return key, nil
	}

	keyPath := filepath.Join(dataDir, KeyFileName)
	if raw, err := os.ReadFile(keyPath); err == nil {
		key, err := decodeKey(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: key file %s", ErrKeyInvalid, keyPath)
		}
		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file %s: %w", keyPath, err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate AEAD key: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}
	if err := os.WriteFile(keyPath, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist generated key to %s: %w", keyPath, err)
	}

	log.Info("generated new AEAD key and persisted it",
		zap.String("path", keyPath))

	return key, nil
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) != KeySize {
		return nil, ErrKeyInvalid
	}
	return key, nil
}
