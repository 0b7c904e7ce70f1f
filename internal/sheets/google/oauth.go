package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthCredentials point at an installed-app OAuth client and the user token
// minted for it by ledger-sheets-auth. Inline JSON wins over files.
type OAuthCredentials struct {
	ClientJSON string
	ClientFile string
	TokenJSON  string
	TokenFile  string
}

func (c OAuthCredentials) configured() bool {
	return strings.TrimSpace(c.ClientJSON) != "" || strings.TrimSpace(c.ClientFile) != ""
}

// readSecret returns inline when set, otherwise the contents of file.
func readSecret(inline, file, what string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if f := strings.TrimSpace(file); f != "" {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", what, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("missing %s", what)
}

// OAuthConfig builds the spreadsheet-scoped OAuth config for the client.
func OAuthConfig(creds OAuthCredentials, redirectURL string) (*oauth2.Config, error) {
	client, err := readSecret(creds.ClientJSON, creds.ClientFile, "OAuth client")
	if err != nil {
		return nil, err
	}
	cfg, err := googleoauth.ConfigFromJSON(client, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return cfg, nil
}

// oauthTokenSource refreshes the stored user token as needed.
func oauthTokenSource(ctx context.Context, creds OAuthCredentials) (oauth2.TokenSource, error) {
	cfg, err := OAuthConfig(creds, "")
	if err != nil {
		return nil, err
	}
	raw, err := readSecret(creds.TokenJSON, creds.TokenFile, "OAuth token")
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode OAuth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("OAuth token has neither access nor refresh token")
	}
	return cfg.TokenSource(ctx, &tok), nil
}

// SaveToken writes tok to path readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}
