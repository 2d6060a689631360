package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/netly/wgtopo/internal/docio"
	"github.com/netly/wgtopo/internal/keystore"
	"github.com/netly/wgtopo/internal/model"
)

func loadDocument(path string) (*model.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("no document path given (use --document or set cli.default_document)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	doc, err := docio.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	return doc, nil
}

func openKeyStore(path string) (*keystore.Store, error) {
	var opts []keystore.Option
	if cfg.KeyStore.EncryptionKeyFile != "" {
		b, err := os.ReadFile(cfg.KeyStore.EncryptionKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading keystore encryption key file: %w", err)
		}
		opts = append(opts, keystore.WithEncryption(strings.TrimSpace(string(b))))
	} else if cfg.KeyStore.EncryptionKey != "" {
		opts = append(opts, keystore.WithEncryption(cfg.KeyStore.EncryptionKey))
	}
	return keystore.Open(path, opts...)
}
