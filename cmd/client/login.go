package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	authproviders "github.com/cbodonnell/progsync/pkg/auth/providers"
	"github.com/cbodonnell/progsync/pkg/progression"
)

func getIDToken(authURL, player string) (string, error) {
	values := url.Values{}
	values.Set("player", player)
	requestBody := strings.NewReader(values.Encode())

	req, err := http.NewRequest("POST", authURL+"/login", requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to login: status: %s, body: %s", resp.Status, string(b))
	}

	token := &authproviders.IssuedToken{}
	if err := json.NewDecoder(resp.Body).Decode(token); err != nil {
		return "", fmt.Errorf("failed to decode login response: %v", err)
	}
	return token.IDToken, nil
}

// getCatalog fetches the shop from the API server.
func getCatalog(apiURL string) (progression.Catalog, error) {
	resp, err := http.Get(apiURL + "/catalog")
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get catalog: status: %s", resp.Status)
	}

	var upgrades []progression.Upgrade
	if err := json.NewDecoder(resp.Body).Decode(&upgrades); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %v", err)
	}
	catalog := make(progression.Catalog, len(upgrades))
	for _, u := range upgrades {
		catalog[u.Key] = u
	}
	return catalog, nil
}
