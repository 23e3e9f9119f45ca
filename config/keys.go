package config

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// LoadKeyPair returns the RS256 signing key pair from the configured PEM
// material. When neither key is set it generates an ephemeral pair so the
// service can run in development; generated is true in that case and callers
// should warn, since tokens will not survive a restart.
func (c *Config) LoadKeyPair() (priv *rsa.PrivateKey, pub *rsa.PublicKey, generated bool, err error) {
	if c.JWTPrivateKeyPEM == "" && c.JWTPublicKeyPEM == "" {
		priv, err = rsa.GenerateKey(rand.Reader, 4096)
		if err != nil {
			return nil, nil, false, fmt.Errorf("generate dev key pair: %w", err)
		}
		return priv, &priv.PublicKey, true, nil
	}

	if c.JWTPrivateKeyPEM == "" || c.JWTPublicKeyPEM == "" {
		return nil, nil, false, errors.New("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}

	priv, err = jwt.ParseRSAPrivateKeyFromPEM([]byte(c.JWTPrivateKeyPEM))
	if err != nil {
		return nil, nil, false, fmt.Errorf("parse JWT_PRIVATE_KEY: %w", err)
	}

	pub, err = jwt.ParseRSAPublicKeyFromPEM([]byte(c.JWTPublicKeyPEM))
	if err != nil {
		return nil, nil, false, fmt.Errorf("parse JWT_PUBLIC_KEY: %w", err)
	}

	return priv, pub, false, nil
}
