package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/config"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/secrets"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Encrypt a password with the configured public key",
	Long: `Encrypt a password with the server's public key and print the base64
ciphertext. The output is what clients send as the password value when
pw-encryption is enabled.

The password is read from --password-file when given, otherwise prompted
for without echo.`,
	RunE: runKeygen,
}

var keygenPasswordFile string

func init() {
	keygenCmd.Flags().StringVar(&keygenPasswordFile, "password-file", "", "Read the password from this file instead of prompting")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	flagPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(config.Resolve(flagPath))
	if err != nil {
		return err
	}
	if cfg.Security.PublicKeyPath == "" {
		return errors.New("no security public-key configured")
	}

	codec, err := secrets.Load(cfg.Security.PublicKeyPath, "")
	if err != nil {
		return err
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}

	encrypted, err := codec.Encrypt(password)
	if err != nil {
		return err
	}

	logger.Info("password encrypted", "key", cfg.Security.PublicKeyPath)
	fmt.Println(encrypted)
	return nil
}

func readPassword() (string, error) {
	if keygenPasswordFile != "" {
		data, err := os.ReadFile(keygenPasswordFile)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
