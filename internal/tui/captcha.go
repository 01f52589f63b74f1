package tui

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"groucho/internal/ui"
)

// ConfirmWithCaptcha prompts the user with a short random token and requires
// the exact token to be typed to confirm a destructive operation.
// It succeeds without a prompt when stdin is not a TTY or when
// GROUCHO_FORCE_CAPTCHA is "false".
func ConfirmWithCaptcha(prompt string, attempts int) (bool, error) {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("GROUCHO_FORCE_CAPTCHA"))); v == "false" || v == "0" || v == "no" {
		ui.Default.Println("ℹ️  GROUCHO_FORCE_CAPTCHA=false detected, skipping captcha")
		return true, nil
	}

	if fi, err := os.Stdin.Stat(); err != nil || (fi.Mode()&os.ModeCharDevice) == 0 {
		ui.Default.Println("ℹ️  Non-interactive stdin detected, skipping captcha")
		return true, nil
	}

	token, err := genToken(6)
	if err != nil {
		return false, fmt.Errorf("failed to generate token: %v", err)
	}
	return confirm(os.Stdin, prompt, token, attempts)
}

func confirm(in io.Reader, prompt, token string, attempts int) (bool, error) {
	if attempts <= 0 {
		attempts = 3
	}

	reader := bufio.NewReader(in)
	for i := 0; i < attempts; i++ {
		ui.Default.Printf("⚠️  %s\n", prompt)
		ui.Default.Printf("Type the token to confirm [%s]: ", token)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, fmt.Errorf("failed to read input: %v", err)
		}
		if strings.TrimSpace(line) == token {
			ui.Default.Println("✅ Confirmation accepted")
			return true, nil
		}
		ui.Default.Printf("❌ Token mismatch (%d/%d).\n", i+1, attempts)
	}
	ui.Default.Println("⚠️  Confirmation failed, aborting")
	return false, nil
}

// genToken generates an uppercase alphanumeric token of given length.
func genToken(n int) (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	out := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := 0; i < n; i++ {
		r, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[r.Int64()]
	}
	return string(out), nil
}
